package repository

import (
	"dealdesk-backend/internal/sync/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type gormRunRepository struct {
	db *gorm.DB
}

func NewGormRunRepository(db *gorm.DB) RunRepository {
	return &gormRunRepository{db: db}
}

func (r *gormRunRepository) Create(run *domain.SyncRun) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	return r.db.Create(run).Error
}

func (r *gormRunRepository) FindByID(id string) (*domain.SyncRun, error) {
	var run domain.SyncRun
	err := r.db.Where("id = ?", id).First(&run).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &run, nil
}

func (r *gormRunRepository) ListByConfig(configID string, limit int) ([]*domain.SyncRun, error) {
	if limit <= 0 {
		limit = 20
	}
	var runs []*domain.SyncRun
	err := r.db.Where("config_id = ?", configID).
		Order("started_at DESC").Limit(limit).Find(&runs).Error
	return runs, err
}

func (r *gormRunRepository) Update(run *domain.SyncRun) error {
	return r.db.Save(run).Error
}
