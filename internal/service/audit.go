package service

import (
	"context"
	"fmt"
	"time"

	"collab_editor/internal/domain"
	"collab_editor/internal/repository"
	"collab_editor/pkg/logger"
)

// AuditService фиксирует удаления в чате: кто удалил, в какой роли и что именно
type AuditService interface {
	MessageDeleted(ctx context.Context, roomID string, actorUserID int64, actorRole string, message *domain.ChatMessage) error
	HistoryCleared(ctx context.Context, roomID string, ownerID, deleted int64) error
}

type auditService struct {
	auditRepo repository.AuditRepository
	now       func() time.Time
	log       logger.Logger
}

func NewAuditService(auditRepo repository.AuditRepository, log logger.Logger) AuditService {
	return &auditService{
		auditRepo: auditRepo,
		now:       time.Now,
		log:       log,
	}
}

func (s *auditService) MessageDeleted(ctx context.Context, roomID string, actorUserID int64, actorRole string, message *domain.ChatMessage) error {
	if actorRole != domain.ActorRoleOwner && actorRole != domain.ActorRoleAuthor {
		return fmt.Errorf("unknown actor role %q", actorRole)
	}

	at := s.now().UTC()
	entry := &domain.AuditLog{
		EventTime:   at,
		ActorUserID: actorUserID,
		ActorRole:   actorRole,
		RoomID:      roomID,
		EventType:   domain.EventTypeChatMessageDeleted,
		Payload: map[string]interface{}{
			"message_id":  message.ID,
			"author_id":   message.UserID,
			"age_seconds": int64(message.ElapsedSince(at) / time.Second),
		},
	}
	if err := s.auditRepo.CreateLog(ctx, entry); err != nil {
		return err
	}

	s.log.Info("Chat message deleted by "+actorRole,
		"room_id", roomID, "message_id", message.ID, "actor_user_id", actorUserID, "author_id", message.UserID)
	return nil
}

func (s *auditService) HistoryCleared(ctx context.Context, roomID string, ownerID, deleted int64) error {
	entry := &domain.AuditLog{
		EventTime:   s.now().UTC(),
		ActorUserID: ownerID,
		ActorRole:   domain.ActorRoleOwner,
		RoomID:      roomID,
		EventType:   domain.EventTypeChatAllDeleted,
		Payload:     map[string]interface{}{"deleted": deleted},
	}
	if err := s.auditRepo.CreateLog(ctx, entry); err != nil {
		return err
	}

	s.log.Info("Chat history cleared by owner", "room_id", roomID, "actor_user_id", ownerID, "deleted", deleted)
	return nil
}
