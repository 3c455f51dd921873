package domain

import "github.com/shopspring/decimal"

// Parser output entities. These are transient per-parse values; the file
// processor maps them into vendor/deal/contact rows.

type NormalizedVendor struct {
	Name           string `json:"name"`
	NormalizedName string `json:"normalized_name"`
	Website        string `json:"website,omitempty"`
	Industry       string `json:"industry,omitempty"`
}

type NormalizedDeal struct {
	DealName   string          `json:"deal_name"`
	VendorName string          `json:"vendor_name"`
	Value      decimal.Decimal `json:"value"`
	Currency   string          `json:"currency"`
	Stage      string          `json:"stage,omitempty"`
	CloseDate  string          `json:"close_date,omitempty"`
	Extraction ExtractionMeta  `json:"extraction"`
}

type NormalizedContact struct {
	Name       string `json:"name"`
	VendorName string `json:"vendor_name,omitempty"`
	Email      string `json:"email,omitempty"`
	Phone      string `json:"phone,omitempty"`
	Role       string `json:"role,omitempty"`
}

// ExtractionMeta records how a field set was derived from the source file.
type ExtractionMeta struct {
	ParserName    string   `json:"parser_name"`
	ParserVersion string   `json:"parser_version"`
	SourceTags    []string `json:"source_tags,omitempty"`
	Confidence    float64  `json:"confidence"`
}

// ParseResult is the fixed parser contract: which parser produced the
// result, the entities it found, and parser-reported errors and warnings.
type ParseResult struct {
	ParserName    string   `json:"parser_name"`
	ParserVersion string   `json:"parser_version"`
	SourceTags    []string `json:"source_tags,omitempty"`

	Vendors  []NormalizedVendor  `json:"vendors"`
	Deals    []NormalizedDeal    `json:"deals"`
	Contacts []NormalizedContact `json:"contacts"`
	Errors   []string            `json:"errors,omitempty"`
	Warnings []string            `json:"warnings,omitempty"`
}

// ImportError is one structured per-entity failure.
type ImportError struct {
	Entity string `json:"entity"` // vendor | deal | contact
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

func (e ImportError) Error() string {
	return e.Reason
}

// ImportOutcome is the per-phase result, returned by value so the phases
// share no mutable state.
type ImportOutcome struct {
	Created int           `json:"created"`
	Errors  []ImportError `json:"errors,omitempty"`
}

func (o ImportOutcome) Merge(other ImportOutcome) ImportOutcome {
	return ImportOutcome{
		Created: o.Created + other.Created,
		Errors:  append(append([]ImportError{}, o.Errors...), other.Errors...),
	}
}
