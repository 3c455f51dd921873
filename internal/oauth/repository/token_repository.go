package repository

import (
	"time"

	"dealdesk-backend/internal/oauth/domain"
)

// TokenRepository persists connected-account credentials. All lookups
// exclude revoked rows.
type TokenRepository interface {
	FindActiveByID(id string) (*domain.OAuthToken, error)
	FindActiveByAccountEmail(accountEmail, service string) (*domain.OAuthToken, error)
	ListActiveByUser(userID string) ([]*domain.OAuthToken, error)
	// Upsert enforces one active row per (user, account_email, service):
	// an existing active row is updated in place, otherwise a new row is
	// inserted.
	Upsert(token *domain.OAuthToken) error
	UpdateAccessToken(id, encryptedAccessToken string, expiry time.Time) error
	Revoke(id string, at time.Time) error
}
