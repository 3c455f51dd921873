package repository

import (
	"time"

	"dealdesk-backend/internal/oauth/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type gormTokenRepository struct {
	db *gorm.DB
}

func NewGormTokenRepository(db *gorm.DB) TokenRepository {
	return &gormTokenRepository{db: db}
}

func (r *gormTokenRepository) FindActiveByID(id string) (*domain.OAuthToken, error) {
	var token domain.OAuthToken
	err := r.db.Where("id = ? AND revoked_at IS NULL", id).First(&token).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &token, nil
}

func (r *gormTokenRepository) FindActiveByAccountEmail(accountEmail, service string) (*domain.OAuthToken, error) {
	var token domain.OAuthToken
	err := r.db.Where("account_email = ? AND service = ? AND revoked_at IS NULL", accountEmail, service).
		First(&token).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &token, nil
}

func (r *gormTokenRepository) ListActiveByUser(userID string) ([]*domain.OAuthToken, error) {
	var tokens []*domain.OAuthToken
	err := r.db.Where("user_id = ? AND revoked_at IS NULL", userID).
		Order("created_at ASC").Find(&tokens).Error
	return tokens, err
}

func (r *gormTokenRepository) Upsert(token *domain.OAuthToken) error {
	var existing domain.OAuthToken
	err := r.db.Where("user_id = ? AND account_email = ? AND service = ? AND revoked_at IS NULL",
		token.UserID, token.AccountEmail, token.Service).First(&existing).Error

	now := time.Now()
	if err == gorm.ErrRecordNotFound {
		if token.ID == "" {
			token.ID = uuid.New().String()
		}
		token.CreatedAt = now
		token.UpdatedAt = now
		return r.db.Create(token).Error
	} else if err != nil {
		return err
	}

	token.ID = existing.ID
	token.CreatedAt = existing.CreatedAt
	token.UpdatedAt = now
	return r.db.Save(token).Error
}

func (r *gormTokenRepository) UpdateAccessToken(id, encryptedAccessToken string, expiry time.Time) error {
	return r.db.Model(&domain.OAuthToken{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"access_token": encryptedAccessToken,
			"token_expiry": expiry,
			"updated_at":   time.Now(),
		}).Error
}

func (r *gormTokenRepository) Revoke(id string, at time.Time) error {
	return r.db.Model(&domain.OAuthToken{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"revoked_at": at,
			"updated_at": at,
		}).Error
}
