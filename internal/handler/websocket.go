package handler

import (
	"context"
	"net/http"

	"collab_editor/internal/config"
	"collab_editor/internal/middleware"
	"collab_editor/internal/realtime"
	"collab_editor/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

type WebSocketHandler struct {
	relay    *realtime.Relay
	cfg      config.WebSocketConfig
	upgrader websocket.Upgrader
	log      logger.Logger
}

func NewWebSocketHandler(relay *realtime.Relay, cfg *config.Config, log logger.Logger) *WebSocketHandler {
	cors := cfg.CORS
	return &WebSocketHandler{
		relay: relay,
		cfg:   cfg.WebSocket,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				// не-браузерные клиенты Origin не присылают
				return origin == "" || cors.AllowsOrigin(origin)
			},
		},
		log: log,
	}
}

// Handle апгрейдит соединение и держит его до отключения клиента
func (h *WebSocketHandler) Handle(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("Failed to upgrade connection", "error", err, "client_ip", c.ClientIP())
		return
	}

	identity, _ := middleware.IdentityFrom(c)
	connID := uuid.New().String()

	fields := []any{"connection_id", connID, "client_ip", c.ClientIP()}
	if identity != nil {
		fields = append(fields, "user_id", identity.UserID)
	}
	h.log.Info("WebSocket connected", fields...)

	client := realtime.NewClient(connID, conn, identity, h.relay, h.cfg, h.log)
	// обработка начатого события не прерывается отменой запроса
	client.Run(context.WithoutCancel(c.Request.Context()))

	h.log.Info("WebSocket disconnected", "connection_id", connID)
}
