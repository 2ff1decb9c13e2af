package handler

import (
	"collab_editor/internal/config"
	"collab_editor/internal/realtime"
	"collab_editor/internal/service"
	"collab_editor/pkg/logger"
)

type Handlers struct {
	Health    *HealthHandler
	WebSocket *WebSocketHandler
	Chat      *ChatHandler
}

func NewHandlers(services *service.Services, relay *realtime.Relay, cfg *config.Config, log logger.Logger) *Handlers {
	return &Handlers{
		Health:    NewHealthHandler(relay, cfg.Environment),
		WebSocket: NewWebSocketHandler(relay, cfg, log),
		Chat:      NewChatHandler(services.Chat, relay, log),
	}
}
