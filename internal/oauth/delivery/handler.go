package delivery

import (
	"errors"
	"net/http"

	"dealdesk-backend/internal/oauth/usecase"

	"github.com/gin-gonic/gin"
)

// OAuthHandler handles account connection HTTP requests
type OAuthHandler struct {
	oauthUsecase usecase.OAuthUsecase
	frontendURL  string
}

func NewOAuthHandler(oauthUsecase usecase.OAuthUsecase, frontendURL string) *OAuthHandler {
	return &OAuthHandler{
		oauthUsecase: oauthUsecase,
		frontendURL:  frontendURL,
	}
}

// Authorize starts the consent flow for a Google service
// GET /api/oauth/authorize?service=gmail
func (h *OAuthHandler) Authorize(c *gin.Context) {
	userID := c.GetString("userID")
	service := c.Query("service")

	authURL, err := h.oauthUsecase.AuthorizeURL(userID, service)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"auth_url": authURL})
}

// Callback completes the consent flow
// GET /api/oauth/callback?state=...&code=...
func (h *OAuthHandler) Callback(c *gin.Context) {
	state := c.Query("state")
	code := c.Query("code")
	if errMsg := c.Query("error"); errMsg != "" {
		c.Redirect(http.StatusFound, h.frontendURL+"/settings/accounts?error="+errMsg)
		return
	}
	if state == "" || code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing state or code"})
		return
	}

	token, err := h.oauthUsecase.HandleCallback(c.Request.Context(), state, code)
	if err != nil {
		if errors.Is(err, usecase.ErrInvalidState) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Authorization session expired, please retry"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.Redirect(http.StatusFound, h.frontendURL+"/settings/accounts?connected="+token.AccountEmail)
}

// Accounts lists the user's connected accounts
// GET /api/oauth/accounts
func (h *OAuthHandler) Accounts(c *gin.Context) {
	userID := c.GetString("userID")

	accounts, err := h.oauthUsecase.Accounts(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"accounts": accounts})
}

// Disconnect revokes a connected account and removes its sync configurations
// DELETE /api/oauth/accounts/:id
func (h *OAuthHandler) Disconnect(c *gin.Context) {
	userID := c.GetString("userID")
	tokenID := c.Param("id")

	if err := h.oauthUsecase.Revoke(c.Request.Context(), userID, tokenID); err != nil {
		if errors.Is(err, usecase.ErrTokenNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Account not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Account disconnected"})
}
