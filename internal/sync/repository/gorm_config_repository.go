package repository

import (
	"time"

	"dealdesk-backend/internal/sync/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type gormConfigRepository struct {
	db *gorm.DB
}

func NewGormConfigRepository(db *gorm.DB) ConfigRepository {
	return &gormConfigRepository{db: db}
}

func (r *gormConfigRepository) Create(cfg *domain.SyncConfiguration) error {
	if cfg.ID == "" {
		cfg.ID = uuid.New().String()
	}
	return r.db.Create(cfg).Error
}

func (r *gormConfigRepository) FindByID(id string) (*domain.SyncConfiguration, error) {
	var cfg domain.SyncConfiguration
	err := r.db.Where("id = ?", id).First(&cfg).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &cfg, nil
}

func (r *gormConfigRepository) ListByUser(userID string) ([]*domain.SyncConfiguration, error) {
	var configs []*domain.SyncConfiguration
	err := r.db.Where("user_id = ?", userID).Order("created_at ASC").Find(&configs).Error
	return configs, err
}

func (r *gormConfigRepository) ListEnabledByAccountEmail(accountEmail, service string) ([]*domain.SyncConfiguration, error) {
	var configs []*domain.SyncConfiguration
	err := r.db.
		Joins("JOIN o_auth_tokens ON o_auth_tokens.id = sync_configurations.token_id").
		Where("o_auth_tokens.account_email = ? AND o_auth_tokens.revoked_at IS NULL", accountEmail).
		Where("sync_configurations.service = ? AND sync_configurations.enabled = ?", service, true).
		Find(&configs).Error
	return configs, err
}

func (r *gormConfigRepository) ListDue(now time.Time) ([]*domain.SyncConfiguration, error) {
	var configs []*domain.SyncConfiguration
	err := r.db.
		Where("enabled = ? AND schedule <> ? AND next_sync_at IS NOT NULL AND next_sync_at <= ?",
			true, domain.ScheduleManual, now).
		Find(&configs).Error
	return configs, err
}

func (r *gormConfigRepository) Update(cfg *domain.SyncConfiguration) error {
	cfg.UpdatedAt = time.Now()
	return r.db.Save(cfg).Error
}

func (r *gormConfigRepository) UpdateSyncTimes(id string, lastSyncAt time.Time, nextSyncAt *time.Time) error {
	return r.db.Model(&domain.SyncConfiguration{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"last_sync_at": lastSyncAt,
			"next_sync_at": nextSyncAt,
			"updated_at":   time.Now(),
		}).Error
}

func (r *gormConfigRepository) UpdateNextSyncAt(id string, nextSyncAt *time.Time) error {
	return r.db.Model(&domain.SyncConfiguration{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"next_sync_at": nextSyncAt,
			"updated_at":   time.Now(),
		}).Error
}

func (r *gormConfigRepository) Delete(id string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("config_id = ?", id).Delete(&domain.SyncedItem{}).Error; err != nil {
			return err
		}
		if err := tx.Where("config_id = ?", id).Delete(&domain.SyncRun{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&domain.SyncConfiguration{}).Error
	})
}

func (r *gormConfigRepository) DeleteByTokenID(tokenID string) error {
	var configs []*domain.SyncConfiguration
	if err := r.db.Where("token_id = ?", tokenID).Find(&configs).Error; err != nil {
		return err
	}
	for _, cfg := range configs {
		if err := r.Delete(cfg.ID); err != nil {
			return err
		}
	}
	return nil
}
