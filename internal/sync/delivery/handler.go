package delivery

import (
	"errors"
	"net/http"
	"strconv"

	"dealdesk-backend/internal/sync/domain"
	"dealdesk-backend/internal/sync/dto"
	"dealdesk-backend/internal/sync/usecase"

	"github.com/gin-gonic/gin"
)

// SyncHandler handles sync configuration HTTP requests
type SyncHandler struct {
	configs  *usecase.ConfigService
	enqueuer usecase.SyncEnqueuer
}

func NewSyncHandler(configs *usecase.ConfigService, enqueuer usecase.SyncEnqueuer) *SyncHandler {
	return &SyncHandler{configs: configs, enqueuer: enqueuer}
}

// CreateConfig creates a sync configuration
// POST /api/sync/configs
func (h *SyncHandler) CreateConfig(c *gin.Context) {
	userID := c.GetString("userID")

	var req dto.CreateSyncConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cfg, err := h.configs.Create(userID, req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, cfg)
}

// ListConfigs returns the user's sync configurations
// GET /api/sync/configs
func (h *SyncHandler) ListConfigs(c *gin.Context) {
	userID := c.GetString("userID")

	configs, err := h.configs.List(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"configs": configs})
}

// GetConfig returns one sync configuration
// GET /api/sync/configs/:id
func (h *SyncHandler) GetConfig(c *gin.Context) {
	cfg, err := h.configs.Get(c.GetString("userID"), c.Param("id"))
	if err != nil {
		h.configError(c, err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

// UpdateConfig mutates a sync configuration
// PUT /api/sync/configs/:id
func (h *SyncHandler) UpdateConfig(c *gin.Context) {
	var req dto.UpdateSyncConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cfg, err := h.configs.Update(c.GetString("userID"), c.Param("id"), req)
	if err != nil {
		h.configError(c, err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

// DeleteConfig removes a configuration together with its runs and ledger
// DELETE /api/sync/configs/:id
func (h *SyncHandler) DeleteConfig(c *gin.Context) {
	if err := h.configs.Delete(c.GetString("userID"), c.Param("id")); err != nil {
		h.configError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Sync configuration deleted"})
}

// TriggerSync enqueues a manual sync job
// POST /api/sync/configs/:id/trigger
func (h *SyncHandler) TriggerSync(c *gin.Context) {
	userID := c.GetString("userID")

	cfg, err := h.configs.Get(userID, c.Param("id"))
	if err != nil {
		h.configError(c, err)
		return
	}

	jobID, err := h.enqueuer.EnqueueSync(c.Request.Context(), cfg.ID, cfg.Service, domain.TriggerManual, userID)
	if err != nil {
		// Admission rejection: a job for this config is already queued or
		// running.
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, dto.TriggerSyncResponse{JobID: jobID, ConfigID: cfg.ID})
}

// History lists recent runs for a configuration
// GET /api/sync/configs/:id/history?limit=20
func (h *SyncHandler) History(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	runs, err := h.configs.History(c.GetString("userID"), c.Param("id"), limit)
	if err != nil {
		h.configError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

// Status returns the latest run for a configuration
// GET /api/sync/configs/:id/status
func (h *SyncHandler) Status(c *gin.Context) {
	run, err := h.configs.Status(c.GetString("userID"), c.Param("id"))
	if err != nil {
		h.configError(c, err)
		return
	}
	if run == nil {
		c.JSON(http.StatusOK, gin.H{"status": "never_run"})
		return
	}
	c.JSON(http.StatusOK, run)
}

func (h *SyncHandler) configError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, usecase.ErrConfigNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Sync configuration not found"})
	case errors.Is(err, usecase.ErrNotOwner):
		c.JSON(http.StatusForbidden, gin.H{"error": "Unauthorized"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
