package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Vendor is one registered vendor. normalized_name backs case-insensitive
// lookups during import.
type Vendor struct {
	ID             string    `json:"id" gorm:"primaryKey"`
	Name           string    `json:"name" gorm:"not null"`
	NormalizedName string    `json:"normalized_name" gorm:"uniqueIndex;not null"`
	Website        string    `json:"website,omitempty"`
	Industry       string    `json:"industry,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// NormalizeVendorName collapses a vendor name for matching: lowercased,
// trimmed, inner whitespace squeezed.
func NormalizeVendorName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(name))), " ")
}

// DealRegistration is one imported deal, linked to its vendor and carrying
// the extraction metadata of the parse that produced it.
type DealRegistration struct {
	ID           string          `json:"id" gorm:"primaryKey"`
	DealName     string          `json:"deal_name" gorm:"not null"`
	VendorID     string          `json:"vendor_id" gorm:"index;not null"`
	Value        decimal.Decimal `json:"value" gorm:"type:numeric(18,2)"`
	Currency     string          `json:"currency"`
	Stage        string          `json:"stage,omitempty"`
	CloseDate    string          `json:"close_date,omitempty"`
	SourceFileID string          `json:"source_file_id" gorm:"index"`

	ParserName    string  `json:"parser_name,omitempty"`
	ParserVersion string  `json:"parser_version,omitempty"`
	SourceTags    string  `json:"source_tags,omitempty"` // comma separated
	Confidence    float64 `json:"confidence,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Contact struct {
	ID           string    `json:"id" gorm:"primaryKey"`
	Name         string    `json:"name" gorm:"not null"`
	VendorID     *string   `json:"vendor_id,omitempty" gorm:"index"`
	Email        string    `json:"email,omitempty"`
	Phone        string    `json:"phone,omitempty"`
	Role         string    `json:"role,omitempty"`
	SourceFileID string    `json:"source_file_id" gorm:"index"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Provenance records which source and extraction produced an entity.
// Written best-effort; a failed provenance insert never fails an import.
type Provenance struct {
	ID            string    `json:"id" gorm:"primaryKey"`
	EntityType    string    `json:"entity_type" gorm:"index:idx_provenance_entity;not null"`
	EntityID      string    `json:"entity_id" gorm:"index:idx_provenance_entity;not null"`
	SourceFileID  string    `json:"source_file_id" gorm:"index"`
	ParserName    string    `json:"parser_name"`
	ParserVersion string    `json:"parser_version"`
	SourceTags    string    `json:"source_tags,omitempty"`
	Confidence    float64   `json:"confidence,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}
