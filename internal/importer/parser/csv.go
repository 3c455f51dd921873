package parser

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"

	"dealdesk-backend/internal/importer/domain"

	"github.com/shopspring/decimal"
)

// Column aliases cover plain exports plus vtiger CRM field names.
var (
	dealNameColumns   = []string{"deal_name", "dealname", "deal", "opportunity", "potentialname", "potential_name"}
	vendorColumns     = []string{"vendor", "vendor_name", "vendorname", "account", "accountname", "account_name"}
	valueColumns      = []string{"value", "amount", "deal_value", "sum_invoise"}
	currencyColumns   = []string{"currency", "currency_code"}
	stageColumns      = []string{"stage", "sales_stage", "salesstage"}
	closeDateColumns  = []string{"close_date", "closedate", "closingdate"}
	contactColumns    = []string{"contact", "contact_name", "contactname", "lastname"}
	emailColumns      = []string{"email", "contact_email"}
	phoneColumns      = []string{"phone", "contact_phone", "mobile"}
	roleColumns       = []string{"role", "title", "designation"}
	websiteColumns    = []string{"website", "vendor_website"}
	industryColumns   = []string{"industry", "vendor_industry"}
)

type CSVParser struct{}

func NewCSVParser() *CSVParser { return &CSVParser{} }

func (p *CSVParser) Name() string    { return "standardized_csv" }
func (p *CSVParser) Version() string { return "2.0" }

func (p *CSVParser) Parse(content []byte) (*domain.ParseResult, error) {
	reader := csv.NewReader(bytes.NewReader(content))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return rowsToResult(rows, p.Name(), p.Version())
}

// rowsToResult maps a header row plus data rows onto normalized entities.
// Shared with the spreadsheet parser.
func rowsToResult(rows [][]string, parserName, parserVersion string) (*domain.ParseResult, error) {
	result := &domain.ParseResult{
		ParserName:    parserName,
		ParserVersion: parserVersion,
		SourceTags:    []string{"tabular"},
	}
	if len(rows) < 2 {
		result.Warnings = append(result.Warnings, "file has no data rows")
		return result, nil
	}

	header := make(map[string]int)
	for i, col := range rows[0] {
		header[normalizeColumn(col)] = i
	}

	vendorSeen := make(map[string]bool)
	for rowNum, row := range rows[1:] {
		vendorName := cellByAlias(row, header, vendorColumns)
		dealName := cellByAlias(row, header, dealNameColumns)

		if vendorName == "" && dealName == "" {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("row %d has neither vendor nor deal, skipped", rowNum+2))
			continue
		}

		if vendorName != "" && !vendorSeen[strings.ToLower(vendorName)] {
			vendorSeen[strings.ToLower(vendorName)] = true
			result.Vendors = append(result.Vendors, domain.NormalizedVendor{
				Name:           vendorName,
				NormalizedName: strings.ToLower(strings.TrimSpace(vendorName)),
				Website:        cellByAlias(row, header, websiteColumns),
				Industry:       cellByAlias(row, header, industryColumns),
			})
		}

		if dealName != "" {
			value, valueErr := parseMoney(cellByAlias(row, header, valueColumns))
			if valueErr != nil {
				result.Warnings = append(result.Warnings,
					fmt.Sprintf("row %d: unparseable deal value, defaulting to 0", rowNum+2))
			}
			result.Deals = append(result.Deals, domain.NormalizedDeal{
				DealName:   dealName,
				VendorName: vendorName,
				Value:      value,
				Currency:   defaultCurrency(cellByAlias(row, header, currencyColumns)),
				Stage:      cellByAlias(row, header, stageColumns),
				CloseDate:  cellByAlias(row, header, closeDateColumns),
				Extraction: domain.ExtractionMeta{
					ParserName:    parserName,
					ParserVersion: parserVersion,
					SourceTags:    []string{"tabular"},
					Confidence:    0.95,
				},
			})
		}

		if contactName := cellByAlias(row, header, contactColumns); contactName != "" {
			result.Contacts = append(result.Contacts, domain.NormalizedContact{
				Name:       contactName,
				VendorName: vendorName,
				Email:      cellByAlias(row, header, emailColumns),
				Phone:      cellByAlias(row, header, phoneColumns),
				Role:       cellByAlias(row, header, roleColumns),
			})
		}
	}

	return result, nil
}

func normalizeColumn(col string) string {
	col = strings.ToLower(strings.TrimSpace(col))
	col = strings.ReplaceAll(col, " ", "_")
	return strings.Trim(col, "\uFEFF") // Excel exports prefix a BOM
}

func cellByAlias(row []string, header map[string]int, aliases []string) string {
	for _, alias := range aliases {
		if idx, ok := header[alias]; ok && idx < len(row) {
			if v := strings.TrimSpace(row[idx]); v != "" {
				return v
			}
		}
	}
	return ""
}

// parseMoney accepts "$1,234.56", "1234.56", "USD 1234" style values.
func parseMoney(raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, nil
	}
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= '0' && r <= '9', r == '.', r == '-':
			return r
		default:
			return -1
		}
	}, raw)
	if cleaned == "" {
		return decimal.Zero, fmt.Errorf("no numeric value in %q", raw)
	}
	return decimal.NewFromString(cleaned)
}

func defaultCurrency(currency string) string {
	if currency == "" {
		return "USD"
	}
	return strings.ToUpper(currency)
}
