package domain

import "time"

// Sync run statuses. A run only moves running -> completed or
// running -> failed, never back.
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

const (
	TriggerManual    = "manual"
	TriggerScheduled = "scheduled"
)

const (
	ScheduleManual = "manual"
	ScheduleHourly = "hourly"
	ScheduleDaily  = "daily"
	ScheduleWeekly = "weekly"
)

// SyncConfiguration identifies one recurring sync target: which connected
// account to pull from and what to pull. Deleting a configuration cascades
// to its runs and synced items.
type SyncConfiguration struct {
	ID      string `json:"id" gorm:"primaryKey"`
	UserID  string `json:"user_id" gorm:"index;not null"`
	Name    string `json:"name" gorm:"not null"`
	Service string `json:"service" gorm:"not null"` // gmail | drive

	// TokenID links a connected user OAuth account. Empty means the
	// configuration runs under the shared service account and
	// ImpersonateEmail names the delegated mailbox or drive owner.
	TokenID          string `json:"token_id,omitempty" gorm:"index"`
	ImpersonateEmail string `json:"impersonate_email,omitempty"`

	// Gmail filters
	Query      string     `json:"query,omitempty"`
	LabelIDs   string     `json:"label_ids,omitempty"` // comma separated
	DateAfter  *time.Time `json:"date_after,omitempty"`
	DateBefore *time.Time `json:"date_before,omitempty"`

	// Drive filters
	FolderID          string `json:"folder_id,omitempty"`
	MimeType          string `json:"mime_type,omitempty"`
	IncludeSubfolders bool   `json:"include_subfolders"`

	Schedule   string     `json:"schedule" gorm:"not null;default:manual"`
	Enabled    bool       `json:"enabled" gorm:"default:true"`
	LastSyncAt *time.Time `json:"last_sync_at,omitempty"`
	NextSyncAt *time.Time `json:"next_sync_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// SyncRun is one execution of a configuration.
type SyncRun struct {
	ID             string     `json:"id" gorm:"primaryKey"`
	ConfigID       string     `json:"config_id" gorm:"index;not null"`
	Status         string     `json:"status" gorm:"not null"`
	TriggerType    string     `json:"trigger_type" gorm:"not null"`
	TriggeredBy    string     `json:"triggered_by,omitempty"`
	StartedAt      time.Time  `json:"started_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	ItemsFound     int        `json:"items_found"`
	ItemsProcessed int        `json:"items_processed"`
	DealsCreated   int        `json:"deals_created"`
	ErrorsCount    int        `json:"errors_count"`
	// HasMore records that the search page was truncated, so another run
	// is needed to drain the backlog.
	HasMore      bool   `json:"has_more"`
	ErrorMessage string `json:"error_message,omitempty"`
}

func (r *SyncRun) Terminal() bool {
	return r.Status == RunStatusCompleted || r.Status == RunStatusFailed
}

// SyncedItem is the idempotency ledger: at most one row per
// (config_id, external_id). Re-syncing a seen item bumps synced_at instead
// of duplicating the spool file.
type SyncedItem struct {
	ID           string    `json:"id" gorm:"primaryKey"`
	ConfigID     string    `json:"config_id" gorm:"uniqueIndex:idx_synced_item;not null"`
	ExternalID   string    `json:"external_id" gorm:"uniqueIndex:idx_synced_item;not null"`
	SourceFileID string    `json:"source_file_id"`
	SyncedAt     time.Time `json:"synced_at"`
}
