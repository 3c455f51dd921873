package parser

import (
	"bytes"
	"fmt"

	"dealdesk-backend/internal/importer/domain"

	"github.com/xuri/excelize/v2"
)

// XLSXParser reads the first sheet of a workbook and reuses the tabular
// column mapping.
type XLSXParser struct{}

func NewXLSXParser() *XLSXParser { return &XLSXParser{} }

func (p *XLSXParser) Name() string    { return "standardized_xlsx" }
func (p *XLSXParser) Version() string { return "1.0" }

func (p *XLSXParser) Parse(content []byte) (*domain.ParseResult, error) {
	book, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer book.Close()

	sheets := book.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}

	rows, err := book.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}

	result, err := rowsToResult(rows, p.Name(), p.Version())
	if err != nil {
		return nil, err
	}
	if len(sheets) > 1 {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("workbook has %d sheets, only %s was read", len(sheets), sheets[0]))
	}
	return result, nil
}
