package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"collab_editor/internal/config"
	"collab_editor/internal/domain"
	"collab_editor/internal/repository"
	apperrors "collab_editor/pkg/errors"
	"collab_editor/pkg/logger"
)

type ChatService interface {
	// PostMessage сохраняет сообщение и возвращает запись хранилища (id и время назначает БД)
	PostMessage(ctx context.Context, roomID string, authorID int64, authorName, body string) (*domain.ChatMessage, error)
	// History возвращает сообщения комнаты по возрастанию времени создания
	History(ctx context.Context, roomID string) ([]*domain.ChatMessage, error)
	DeleteMessage(ctx context.Context, roomID string, messageID, requesterID int64) error
	DeleteAllMessages(ctx context.Context, roomID string, requesterID int64) (int64, error)
}

type chatService struct {
	chatRepo      repository.ChatRepository
	workspaceRepo repository.WorkspaceRepository
	audit         AuditService
	cfg           config.ChatConfig
	now           func() time.Time
	log           logger.Logger
}

// NewChatService создает сервис чата. now == nil означает time.Now.
func NewChatService(
	chatRepo repository.ChatRepository,
	workspaceRepo repository.WorkspaceRepository,
	audit AuditService,
	cfg config.ChatConfig,
	now func() time.Time,
	log logger.Logger,
) ChatService {
	if now == nil {
		now = time.Now
	}
	return &chatService{
		chatRepo:      chatRepo,
		workspaceRepo: workspaceRepo,
		audit:         audit,
		cfg:           cfg,
		now:           now,
		log:           log,
	}
}

func (s *chatService) PostMessage(ctx context.Context, roomID string, authorID int64, authorName, body string) (*domain.ChatMessage, error) {
	if strings.TrimSpace(body) == "" {
		return nil, apperrors.ErrEmptyMessage
	}
	if s.cfg.MaxMessageLength > 0 && utf8.RuneCountInString(body) > s.cfg.MaxMessageLength {
		return nil, apperrors.ErrMessageTooLong
	}

	message, err := s.chatRepo.InsertMessage(ctx, roomID, authorID, authorName, body)
	if err != nil {
		return nil, apperrors.Storage("Failed to send message", err)
	}

	s.log.Debug("Chat message stored", "room_id", roomID, "message_id", message.ID, "user_id", authorID)
	return message, nil
}

func (s *chatService) History(ctx context.Context, roomID string) ([]*domain.ChatMessage, error) {
	messages, err := s.chatRepo.ListMessages(ctx, roomID, s.cfg.HistoryLimit)
	if err != nil {
		return nil, apperrors.Storage("Failed to load chat history", err)
	}
	return messages, nil
}

func (s *chatService) DeleteMessage(ctx context.Context, roomID string, messageID, requesterID int64) error {
	ownerID, err := s.ownerOf(ctx, roomID, "Failed to delete message")
	if err != nil {
		return err
	}

	message, err := s.chatRepo.GetMessage(ctx, messageID, roomID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return err
		}
		return apperrors.Storage("Failed to delete message", err)
	}

	role, err := s.authorizeDelete(message, ownerID, requesterID)
	if err != nil {
		s.log.Debug("Chat message deletion denied",
			"room_id", roomID, "message_id", messageID, "user_id", requesterID, "reason", err.Error())
		return err
	}

	if err := s.chatRepo.DeleteMessage(ctx, messageID, roomID); err != nil {
		return apperrors.Storage("Failed to delete message", err)
	}

	if s.audit != nil {
		if err := s.audit.MessageDeleted(ctx, roomID, requesterID, role, message); err != nil {
			s.log.Warn("Failed to write audit log", "error", err, "event_type", domain.EventTypeChatMessageDeleted, "room_id", roomID)
		}
	}
	return nil
}

func (s *chatService) DeleteAllMessages(ctx context.Context, roomID string, requesterID int64) (int64, error) {
	ownerID, err := s.ownerOf(ctx, roomID, "Failed to delete all messages")
	if err != nil {
		return 0, err
	}
	if requesterID != ownerID {
		return 0, apperrors.ErrNotWorkspaceOwner
	}

	deleted, err := s.chatRepo.DeleteAllMessages(ctx, roomID)
	if err != nil {
		return 0, apperrors.Storage("Failed to delete all messages", err)
	}

	if s.audit != nil {
		if err := s.audit.HistoryCleared(ctx, roomID, requesterID, deleted); err != nil {
			s.log.Warn("Failed to write audit log", "error", err, "event_type", domain.EventTypeChatAllDeleted, "room_id", roomID)
		}
	}
	return deleted, nil
}

// authorizeDelete: владелец может всегда, автор только пока не истекло окно
func (s *chatService) authorizeDelete(message *domain.ChatMessage, ownerID, requesterID int64) (string, error) {
	if requesterID == ownerID {
		return domain.ActorRoleOwner, nil
	}
	if message.UserID != requesterID {
		return "", apperrors.ErrNotMessageAuthor
	}
	// ровно на границе окна удаление еще разрешено
	if message.ElapsedSince(s.now()) > s.cfg.DeleteWindow {
		return "", s.windowExpired()
	}
	return domain.ActorRoleAuthor, nil
}

func (s *chatService) windowExpired() error {
	if s.cfg.DeleteWindow == 5*time.Minute {
		return apperrors.ErrDeleteWindowExpired
	}
	return apperrors.New(apperrors.ErrPermissionDenied,
		fmt.Sprintf("You can only delete messages within %s of sending", s.cfg.DeleteWindow))
}

func (s *chatService) ownerOf(ctx context.Context, roomID, failure string) (int64, error) {
	ownerID, err := s.workspaceRepo.GetOwnerID(ctx, roomID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return 0, err
		}
		return 0, apperrors.Storage(failure, err)
	}
	return ownerID, nil
}

