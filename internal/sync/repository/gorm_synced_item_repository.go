package repository

import (
	"time"

	"dealdesk-backend/internal/sync/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type gormSyncedItemRepository struct {
	db *gorm.DB
}

func NewGormSyncedItemRepository(db *gorm.DB) SyncedItemRepository {
	return &gormSyncedItemRepository{db: db}
}

func (r *gormSyncedItemRepository) Seen(configID, externalID string) (bool, error) {
	var count int64
	err := r.db.Model(&domain.SyncedItem{}).
		Where("config_id = ? AND external_id = ?", configID, externalID).
		Count(&count).Error
	return count > 0, err
}

func (r *gormSyncedItemRepository) MarkSynced(configID, externalID, sourceFileID string, at time.Time) error {
	var existing domain.SyncedItem
	err := r.db.Where("config_id = ? AND external_id = ?", configID, externalID).
		First(&existing).Error
	if err == gorm.ErrRecordNotFound {
		return r.db.Create(&domain.SyncedItem{
			ID:           uuid.New().String(),
			ConfigID:     configID,
			ExternalID:   externalID,
			SourceFileID: sourceFileID,
			SyncedAt:     at,
		}).Error
	} else if err != nil {
		return err
	}

	return r.db.Model(&domain.SyncedItem{}).Where("id = ?", existing.ID).
		Update("synced_at", at).Error
}
