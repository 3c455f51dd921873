package domain

import "time"

// ImportIssue is the persisted form of a parser or import error, written
// fire-and-forget by the error tracker for later review.
type ImportIssue struct {
	ID           string    `json:"id" gorm:"primaryKey"`
	SourceFileID string    `json:"source_file_id" gorm:"index;not null"`
	Phase        string    `json:"phase" gorm:"not null"` // parse | vendor | deal | contact
	Severity     string    `json:"severity" gorm:"not null;default:error"`
	Message      string    `json:"message" gorm:"not null"`
	CreatedAt    time.Time `json:"created_at"`
}
