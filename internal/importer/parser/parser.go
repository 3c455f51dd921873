package parser

import (
	"fmt"

	"dealdesk-backend/internal/importer/domain"
)

// Parser is the fixed contract the file processor selects by file type.
type Parser interface {
	Name() string
	Version() string
	Parse(content []byte) (*domain.ParseResult, error)
}

// Registry maps source file types onto parsers.
type Registry struct {
	byType map[string]Parser
}

// NewRegistry wires the default parser set: CSV (plain and vtiger exports),
// spreadsheet, transcript-style text documents, and mail archives.
func NewRegistry() *Registry {
	csv := NewCSVParser()
	xlsx := NewXLSXParser()
	transcript := NewTranscriptParser()
	mbox := NewMboxParser()

	return &Registry{byType: map[string]Parser{
		"csv":        csv,
		"vtiger_csv": csv,
		"xlsx":       xlsx,
		"txt":        transcript,
		"pdf":        transcript,
		"docx":       transcript,
		"transcript": transcript,
		"mbox":       mbox,
		"eml":        mbox,
	}}
}

func (r *Registry) ForFileType(fileType string) (Parser, error) {
	p, ok := r.byType[fileType]
	if !ok {
		return nil, fmt.Errorf("no parser registered for file type %q", fileType)
	}
	return p, nil
}
