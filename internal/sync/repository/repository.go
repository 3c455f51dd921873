package repository

import (
	"time"

	"dealdesk-backend/internal/sync/domain"
)

// ConfigRepository persists sync configurations.
type ConfigRepository interface {
	Create(cfg *domain.SyncConfiguration) error
	FindByID(id string) (*domain.SyncConfiguration, error)
	ListByUser(userID string) ([]*domain.SyncConfiguration, error)
	ListEnabledByAccountEmail(accountEmail, service string) ([]*domain.SyncConfiguration, error)
	// ListDue returns enabled, schedulable configs whose next_sync_at is at
	// or before now.
	ListDue(now time.Time) ([]*domain.SyncConfiguration, error)
	Update(cfg *domain.SyncConfiguration) error
	UpdateSyncTimes(id string, lastSyncAt time.Time, nextSyncAt *time.Time) error
	UpdateNextSyncAt(id string, nextSyncAt *time.Time) error
	// Delete removes the configuration together with its runs and ledger
	// entries.
	Delete(id string) error
	DeleteByTokenID(tokenID string) error
}

// RunRepository persists sync run history.
type RunRepository interface {
	Create(run *domain.SyncRun) error
	FindByID(id string) (*domain.SyncRun, error)
	ListByConfig(configID string, limit int) ([]*domain.SyncRun, error)
	Update(run *domain.SyncRun) error
}

// SyncedItemRepository is the idempotency ledger.
type SyncedItemRepository interface {
	// Seen reports whether an external id was already synced for a config.
	Seen(configID, externalID string) (bool, error)
	// MarkSynced inserts the ledger row, or bumps synced_at when the pair
	// already exists.
	MarkSynced(configID, externalID, sourceFileID string, at time.Time) error
}
