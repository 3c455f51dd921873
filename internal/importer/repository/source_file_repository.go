package repository

import (
	"time"

	"dealdesk-backend/internal/importer/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SourceFileRepository interface {
	Create(file *domain.SourceFile) error
	FindByID(id string) (*domain.SourceFile, error)
	UpdateStatus(id, status, errorMessage string) error
	MergeMetadata(id string, fields map[string]interface{}) error
}

type gormSourceFileRepository struct {
	db *gorm.DB
}

func NewGormSourceFileRepository(db *gorm.DB) SourceFileRepository {
	return &gormSourceFileRepository{db: db}
}

func (r *gormSourceFileRepository) Create(file *domain.SourceFile) error {
	if file.ID == "" {
		file.ID = uuid.New().String()
	}
	if file.ProcessingStatus == "" {
		file.ProcessingStatus = domain.ProcessingPending
	}
	return r.db.Create(file).Error
}

func (r *gormSourceFileRepository) FindByID(id string) (*domain.SourceFile, error) {
	var file domain.SourceFile
	err := r.db.Where("id = ?", id).First(&file).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &file, nil
}

func (r *gormSourceFileRepository) UpdateStatus(id, status, errorMessage string) error {
	return r.db.Model(&domain.SourceFile{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"processing_status": status,
			"error_message":     errorMessage,
			"updated_at":        time.Now(),
		}).Error
}

func (r *gormSourceFileRepository) MergeMetadata(id string, fields map[string]interface{}) error {
	var file domain.SourceFile
	if err := r.db.Where("id = ?", id).First(&file).Error; err != nil {
		return err
	}
	if file.Metadata == nil {
		file.Metadata = make(map[string]interface{})
	}
	for k, v := range fields {
		file.Metadata[k] = v
	}
	return r.db.Model(&domain.SourceFile{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"metadata":   file.Metadata,
			"updated_at": time.Now(),
		}).Error
}
