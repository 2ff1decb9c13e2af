package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ConnectionStats - живые соединения и комнаты процесса
type ConnectionStats interface {
	ConnectionCount() int
	RoomCount() int
}

type HealthHandler struct {
	stats       ConnectionStats
	environment string
}

func NewHealthHandler(stats ConnectionStats, environment string) *HealthHandler {
	return &HealthHandler{stats: stats, environment: environment}
}

func (h *HealthHandler) Check(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"service":     "collab-editor",
		"environment": h.environment,
		"connections": h.stats.ConnectionCount(),
		"rooms":       h.stats.RoomCount(),
	})
}
