package handler

import (
	"net/http"
	"strconv"

	"collab_editor/internal/middleware"
	"collab_editor/internal/realtime"
	"collab_editor/internal/service"
	apperrors "collab_editor/pkg/errors"
	"collab_editor/pkg/logger"

	"github.com/gin-gonic/gin"
)

// ChatNotifier рассылает результат REST-удалений подключенным участникам комнаты
type ChatNotifier interface {
	NotifyMessageDeleted(roomID string, messageID int64) error
	NotifyAllDeleted(roomID string) error
}

type ChatHandler struct {
	chatService service.ChatService
	notifier    ChatNotifier
	log         logger.Logger
}

func NewChatHandler(chatService service.ChatService, notifier ChatNotifier, log logger.Logger) *ChatHandler {
	return &ChatHandler{
		chatService: chatService,
		notifier:    notifier,
		log:         log,
	}
}

func (h *ChatHandler) GetMessages(c *gin.Context) {
	roomID := c.Param("id")

	messages, err := h.chatService.History(c.Request.Context(), roomID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, realtime.NewChatHistoryPayload(messages))
}

func (h *ChatHandler) DeleteMessage(c *gin.Context) {
	roomID := c.Param("id")
	messageID, err := strconv.ParseInt(c.Param("messageId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message ID"})
		return
	}

	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		_ = c.Error(apperrors.New(apperrors.ErrUnauthorized, "user not authenticated"))
		return
	}

	if err := h.chatService.DeleteMessage(c.Request.Context(), roomID, messageID, identity.UserID); err != nil {
		_ = c.Error(err)
		return
	}

	if err := h.notifier.NotifyMessageDeleted(roomID, messageID); err != nil {
		h.log.Error("Failed to broadcast message deletion", "room_id", roomID, "message_id", messageID, "error", err)
	}

	c.JSON(http.StatusOK, gin.H{"message": "Message deleted", "messageId": messageID})
}

func (h *ChatHandler) DeleteAllMessages(c *gin.Context) {
	roomID := c.Param("id")

	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		_ = c.Error(apperrors.New(apperrors.ErrUnauthorized, "user not authenticated"))
		return
	}

	deleted, err := h.chatService.DeleteAllMessages(c.Request.Context(), roomID, identity.UserID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	if err := h.notifier.NotifyAllDeleted(roomID); err != nil {
		h.log.Error("Failed to broadcast chat wipe", "room_id", roomID, "error", err)
	}

	c.JSON(http.StatusOK, gin.H{"message": "All messages deleted", "deleted": deleted})
}
