package dto

import "time"

type CreateSyncConfigRequest struct {
	Name    string `json:"name" validate:"required,max=120"`
	Service string `json:"service" validate:"required,oneof=gmail drive"`

	// Exactly one identity source: a connected account token, or a
	// service-account impersonation target.
	TokenID          string `json:"token_id,omitempty" validate:"omitempty,uuid4"`
	ImpersonateEmail string `json:"impersonate_email,omitempty" validate:"omitempty,email"`

	Query      string     `json:"query,omitempty"`
	LabelIDs   string     `json:"label_ids,omitempty"`
	DateAfter  *time.Time `json:"date_after,omitempty"`
	DateBefore *time.Time `json:"date_before,omitempty"`

	FolderID          string `json:"folder_id,omitempty"`
	MimeType          string `json:"mime_type,omitempty"`
	IncludeSubfolders bool   `json:"include_subfolders"`

	Schedule string `json:"schedule" validate:"required,oneof=manual hourly daily weekly"`
	Enabled  *bool  `json:"enabled,omitempty"`
}

type UpdateSyncConfigRequest struct {
	Name     *string `json:"name,omitempty" validate:"omitempty,max=120"`
	Query    *string `json:"query,omitempty"`
	LabelIDs *string `json:"label_ids,omitempty"`

	DateAfter  *time.Time `json:"date_after,omitempty"`
	DateBefore *time.Time `json:"date_before,omitempty"`

	FolderID          *string `json:"folder_id,omitempty"`
	MimeType          *string `json:"mime_type,omitempty"`
	IncludeSubfolders *bool   `json:"include_subfolders,omitempty"`

	Schedule *string `json:"schedule,omitempty" validate:"omitempty,oneof=manual hourly daily weekly"`
	Enabled  *bool   `json:"enabled,omitempty"`
}

type TriggerSyncResponse struct {
	JobID    string `json:"job_id"`
	ConfigID string `json:"config_id"`
}
