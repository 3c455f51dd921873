package api

import (
	"net/http"

	authDelivery "dealdesk-backend/internal/auth/delivery"
	oauthDelivery "dealdesk-backend/internal/oauth/delivery"
	syncDelivery "dealdesk-backend/internal/sync/delivery"
	"dealdesk-backend/pkg/config"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(r *gin.Engine, cfg *config.Config, oauthHandler *oauthDelivery.OAuthHandler, syncHandler *syncDelivery.SyncHandler) {
	r.Use(corsMiddleware(cfg.FrontendURL))

	api := r.Group("/api")
	{
		// Health check (no auth required)
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		// OAuth routes; the provider callback carries state instead of a
		// bearer token.
		oauth := api.Group("/oauth")
		{
			oauth.GET("/callback", oauthHandler.Callback)
			oauth.GET("/authorize", authDelivery.AuthMiddleware(cfg.JWTSecret), oauthHandler.Authorize)
			oauth.GET("/accounts", authDelivery.AuthMiddleware(cfg.JWTSecret), oauthHandler.Accounts)
			oauth.DELETE("/accounts/:id", authDelivery.AuthMiddleware(cfg.JWTSecret), oauthHandler.Disconnect)
		}

		// Sync configuration routes (protected)
		sync := api.Group("/sync")
		sync.Use(authDelivery.AuthMiddleware(cfg.JWTSecret))
		{
			sync.POST("/configs", syncHandler.CreateConfig)
			sync.GET("/configs", syncHandler.ListConfigs)
			sync.GET("/configs/:id", syncHandler.GetConfig)
			sync.PUT("/configs/:id", syncHandler.UpdateConfig)
			sync.DELETE("/configs/:id", syncHandler.DeleteConfig)
			sync.POST("/configs/:id/trigger", syncHandler.TriggerSync)
			sync.GET("/configs/:id/history", syncHandler.History)
			sync.GET("/configs/:id/status", syncHandler.Status)
		}
	}
}

func corsMiddleware(frontendURL string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", frontendURL)
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
