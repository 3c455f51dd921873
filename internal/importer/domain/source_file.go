package domain

import "time"

const (
	ProcessingPending    = "pending"
	ProcessingInProgress = "processing"
	ProcessingCompleted  = "completed"
	ProcessingFailed     = "failed"
)

const ScanPassed = "passed"

// SourceFile is one spooled artifact fetched from an external source. The
// sync path creates it and the file processor advances processing_status;
// rows are never deleted by sync itself.
type SourceFile struct {
	ID               string                 `json:"id" gorm:"primaryKey"`
	Filename         string                 `json:"filename" gorm:"not null"`
	FileType         string                 `json:"file_type" gorm:"not null"`
	StoragePath      string                 `json:"storage_path" gorm:"not null"`
	SizeBytes        int64                  `json:"size_bytes"`
	ProcessingStatus string                 `json:"processing_status" gorm:"not null;default:pending"`
	ScanStatus       string                 `json:"scan_status"`
	ErrorMessage     string                 `json:"error_message,omitempty"`
	Metadata         map[string]interface{} `json:"metadata" gorm:"serializer:json"`
	UploadedBy       string                 `json:"uploaded_by"`
	CreatedAt        time.Time              `json:"created_at"`
	UpdatedAt        time.Time              `json:"updated_at"`
}
