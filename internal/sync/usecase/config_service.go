package usecase

import (
	"errors"
	"fmt"
	"time"

	oauthdomain "dealdesk-backend/internal/oauth/domain"
	"dealdesk-backend/internal/sync/domain"
	"dealdesk-backend/internal/sync/dto"
	"dealdesk-backend/internal/sync/repository"
	"dealdesk-backend/pkg/validate"

	"github.com/sirupsen/logrus"
)

var ErrNotOwner = errors.New("sync configuration belongs to a different user")

// TokenChecker verifies that a token id resolves to an active connected
// account. The OAuth token repository implements it.
type TokenChecker interface {
	FindActiveByID(id string) (*oauthdomain.OAuthToken, error)
}

// ConfigService owns CRUD over sync configurations plus run history reads.
type ConfigService struct {
	configs repository.ConfigRepository
	runs    repository.RunRepository
	tokens  TokenChecker
	log     *logrus.Entry
	now     func() time.Time
}

func NewConfigService(configs repository.ConfigRepository, runs repository.RunRepository, tokens TokenChecker, log *logrus.Entry) *ConfigService {
	return &ConfigService{
		configs: configs,
		runs:    runs,
		tokens:  tokens,
		log:     log,
		now:     time.Now,
	}
}

func (s *ConfigService) Create(userID string, req dto.CreateSyncConfigRequest) (*domain.SyncConfiguration, error) {
	if err := validate.Struct(req); err != nil {
		return nil, err
	}

	if req.TokenID == "" && req.ImpersonateEmail == "" {
		return nil, errors.New("either token_id or impersonate_email is required")
	}
	if req.TokenID != "" && req.ImpersonateEmail != "" {
		return nil, errors.New("token_id and impersonate_email are mutually exclusive")
	}
	if req.TokenID != "" {
		token, err := s.tokens.FindActiveByID(req.TokenID)
		if err != nil {
			return nil, err
		}
		if token == nil || token.UserID != userID {
			return nil, errors.New("token not found or not owned by user")
		}
		if token.Service != req.Service {
			return nil, fmt.Errorf("token is for %s, configuration is for %s", token.Service, req.Service)
		}
	}
	if req.Service == oauthdomain.ServiceDrive && req.FolderID == "" {
		return nil, errors.New("drive configurations require a folder id")
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}
	cfg := &domain.SyncConfiguration{
		UserID:            userID,
		Name:              req.Name,
		Service:           req.Service,
		TokenID:           req.TokenID,
		ImpersonateEmail:  req.ImpersonateEmail,
		Query:             req.Query,
		LabelIDs:          req.LabelIDs,
		DateAfter:         req.DateAfter,
		DateBefore:        req.DateBefore,
		FolderID:          req.FolderID,
		MimeType:          req.MimeType,
		IncludeSubfolders: req.IncludeSubfolders,
		Schedule:          req.Schedule,
		Enabled:           enabled,
		NextSyncAt:        NextRunTime(req.Schedule, s.now()),
	}
	if err := s.configs.Create(cfg); err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"config_id": cfg.ID, "service": cfg.Service}).Info("sync configuration created")
	return cfg, nil
}

func (s *ConfigService) List(userID string) ([]*domain.SyncConfiguration, error) {
	return s.configs.ListByUser(userID)
}

func (s *ConfigService) Get(userID, id string) (*domain.SyncConfiguration, error) {
	cfg, err := s.configs.FindByID(id)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, ErrConfigNotFound
	}
	if cfg.UserID != userID {
		return nil, ErrNotOwner
	}
	return cfg, nil
}

func (s *ConfigService) Update(userID, id string, req dto.UpdateSyncConfigRequest) (*domain.SyncConfiguration, error) {
	if err := validate.Struct(req); err != nil {
		return nil, err
	}

	cfg, err := s.Get(userID, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		cfg.Name = *req.Name
	}
	if req.Query != nil {
		cfg.Query = *req.Query
	}
	if req.LabelIDs != nil {
		cfg.LabelIDs = *req.LabelIDs
	}
	if req.DateAfter != nil {
		cfg.DateAfter = req.DateAfter
	}
	if req.DateBefore != nil {
		cfg.DateBefore = req.DateBefore
	}
	if req.FolderID != nil {
		cfg.FolderID = *req.FolderID
	}
	if req.MimeType != nil {
		cfg.MimeType = *req.MimeType
	}
	if req.IncludeSubfolders != nil {
		cfg.IncludeSubfolders = *req.IncludeSubfolders
	}
	if req.Schedule != nil && *req.Schedule != cfg.Schedule {
		cfg.Schedule = *req.Schedule
		cfg.NextSyncAt = NextRunTime(cfg.Schedule, s.now())
	}
	if req.Enabled != nil {
		cfg.Enabled = *req.Enabled
	}

	if err := s.configs.Update(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (s *ConfigService) Delete(userID, id string) error {
	if _, err := s.Get(userID, id); err != nil {
		return err
	}
	return s.configs.Delete(id)
}

func (s *ConfigService) History(userID, id string, limit int) ([]*domain.SyncRun, error) {
	if _, err := s.Get(userID, id); err != nil {
		return nil, err
	}
	return s.runs.ListByConfig(id, limit)
}

// Status returns the latest run for a configuration, or nil when it has
// never run.
func (s *ConfigService) Status(userID, id string) (*domain.SyncRun, error) {
	runs, err := s.History(userID, id, 1)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, nil
	}
	return runs[0], nil
}
