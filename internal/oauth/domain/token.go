package domain

import "time"

// Service names a connected Google product.
const (
	ServiceGmail = "gmail"
	ServiceDrive = "drive"
)

// OAuthToken stores one connected account's credentials. Access and refresh
// tokens are encrypted at rest; at most one active (non-revoked) row exists
// per (user, account_email, service).
type OAuthToken struct {
	ID           string     `json:"id" gorm:"primaryKey"`
	UserID       string     `json:"user_id" gorm:"index:idx_token_owner;not null"`
	AccountEmail string     `json:"account_email" gorm:"index:idx_token_owner;not null"`
	Service      string     `json:"service" gorm:"index:idx_token_owner;not null"`
	AccessToken  string     `json:"-"` // encrypted
	RefreshToken string     `json:"-"` // encrypted
	TokenExpiry  time.Time  `json:"token_expiry"`
	Scopes       string     `json:"scopes"`
	RevokedAt    *time.Time `json:"revoked_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func (t *OAuthToken) Revoked() bool {
	return t.RevokedAt != nil
}

// AccountInfo is the connected-accounts listing shape (no secrets).
type AccountInfo struct {
	ID           string    `json:"id"`
	AccountEmail string    `json:"account_email"`
	Service      string    `json:"service"`
	Scopes       string    `json:"scopes"`
	TokenExpiry  time.Time `json:"token_expiry"`
	CreatedAt    time.Time `json:"created_at"`
}
