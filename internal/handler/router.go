package handler

import (
	"collab_editor/internal/config"
	"collab_editor/internal/middleware"
	"collab_editor/pkg/logger"

	"github.com/gin-gonic/gin"
)

type Middlewares struct {
	Auth      *middleware.AuthMiddleware
	RateLimit *middleware.RateLimitMiddleware
}

func NewRouter(handlers *Handlers, mw Middlewares, cfg *config.Config, log logger.Logger) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.CORS(cfg.CORS))
	router.Use(middleware.RequestLogger(log))
	router.Use(middleware.ErrorHandler())

	// Health check
	router.GET("/health", handlers.Health.Check)

	// WebSocket: токен обязателен только при JWT_REQUIRED
	wsAuth := mw.Auth.OptionalAuth()
	if cfg.JWT.Required {
		wsAuth = mw.Auth.RequireAuth()
	}
	router.GET("/ws", mw.RateLimit.Limit("ws"), wsAuth, handlers.WebSocket.Handle)

	// API v1
	v1 := router.Group("/api/v1")
	v1.Use(mw.RateLimit.Limit("api"), mw.Auth.RequireAuth())
	{
		chat := v1.Group("/workspaces/:id/chat")
		{
			chat.GET("/messages", handlers.Chat.GetMessages)
			chat.DELETE("/messages/:messageId", handlers.Chat.DeleteMessage)
			chat.DELETE("/messages", handlers.Chat.DeleteAllMessages)
		}
	}

	return router
}
