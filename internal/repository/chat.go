package repository

import (
	"context"
	"errors"

	"collab_editor/internal/domain"
	apperrors "collab_editor/pkg/errors"
	"collab_editor/pkg/logger"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:generate go run go.uber.org/mock/mockgen -source=chat.go -destination=mocks/mock_chat.go -package=mocks

// ChatRepository хранит сообщения чата. ID и created_at назначаются хранилищем.
type ChatRepository interface {
	InsertMessage(ctx context.Context, roomID string, userID int64, displayName, body string) (*domain.ChatMessage, error)
	// ListMessages возвращает сообщения по возрастанию created_at; limit <= 0 - без ограничения
	ListMessages(ctx context.Context, roomID string, limit int) ([]*domain.ChatMessage, error)
	// GetMessage возвращает apperrors.ErrMessageNotFound, если сообщения нет
	GetMessage(ctx context.Context, messageID int64, roomID string) (*domain.ChatMessage, error)
	DeleteMessage(ctx context.Context, messageID int64, roomID string) error
	DeleteAllMessages(ctx context.Context, roomID string) (int64, error)
	CountMessages(ctx context.Context, roomID string) (int64, error)
}

type chatRepository struct {
	db  *pgxpool.Pool
	log logger.Logger
}

func NewChatRepository(db *pgxpool.Pool, log logger.Logger) ChatRepository {
	return &chatRepository{db: db, log: log}
}

func (r *chatRepository) InsertMessage(ctx context.Context, roomID string, userID int64, displayName, body string) (*domain.ChatMessage, error) {
	query := `
		INSERT INTO user_chat_messages (workspace_id, user_id, username, message)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`

	message := &domain.ChatMessage{
		RoomID:      roomID,
		UserID:      userID,
		DisplayName: displayName,
		Body:        body,
	}
	err := r.db.QueryRow(ctx, query, roomID, userID, displayName, body).Scan(&message.ID, &message.CreatedAt)
	if err != nil {
		r.log.Error("Failed to insert chat message", "error", err, "room_id", roomID)
		return nil, err
	}

	return message, nil
}

func (r *chatRepository) ListMessages(ctx context.Context, roomID string, limit int) ([]*domain.ChatMessage, error) {
	query := `
		SELECT id, workspace_id, user_id, username, message, created_at
		FROM user_chat_messages
		WHERE workspace_id = $1
		ORDER BY created_at ASC, id ASC
	`
	args := []any{roomID}
	if limit > 0 {
		// последние limit сообщений, но в хронологическом порядке
		query = `
			SELECT id, workspace_id, user_id, username, message, created_at FROM (
				SELECT id, workspace_id, user_id, username, message, created_at
				FROM user_chat_messages
				WHERE workspace_id = $1
				ORDER BY created_at DESC, id DESC
				LIMIT $2
			) latest
			ORDER BY created_at ASC, id ASC
		`
		args = append(args, limit)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.log.Error("Failed to list chat messages", "error", err, "room_id", roomID)
		return nil, err
	}
	defer rows.Close()

	messages := make([]*domain.ChatMessage, 0)
	for rows.Next() {
		message := &domain.ChatMessage{}
		if err := rows.Scan(
			&message.ID, &message.RoomID, &message.UserID,
			&message.DisplayName, &message.Body, &message.CreatedAt,
		); err != nil {
			r.log.Error("Failed to scan chat message", "error", err)
			return nil, err
		}
		messages = append(messages, message)
	}
	if err := rows.Err(); err != nil {
		r.log.Error("Failed to iterate chat messages", "error", err)
		return nil, err
	}

	return messages, nil
}

func (r *chatRepository) GetMessage(ctx context.Context, messageID int64, roomID string) (*domain.ChatMessage, error) {
	query := `
		SELECT id, workspace_id, user_id, username, message, created_at
		FROM user_chat_messages
		WHERE id = $1 AND workspace_id = $2
	`

	message := &domain.ChatMessage{}
	err := r.db.QueryRow(ctx, query, messageID, roomID).Scan(
		&message.ID, &message.RoomID, &message.UserID,
		&message.DisplayName, &message.Body, &message.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrMessageNotFound
		}
		r.log.Error("Failed to get chat message", "error", err, "message_id", messageID)
		return nil, err
	}

	return message, nil
}

func (r *chatRepository) DeleteMessage(ctx context.Context, messageID int64, roomID string) error {
	query := `DELETE FROM user_chat_messages WHERE id = $1 AND workspace_id = $2`

	if _, err := r.db.Exec(ctx, query, messageID, roomID); err != nil {
		r.log.Error("Failed to delete chat message", "error", err, "message_id", messageID)
		return err
	}

	return nil
}

func (r *chatRepository) DeleteAllMessages(ctx context.Context, roomID string) (int64, error) {
	query := `DELETE FROM user_chat_messages WHERE workspace_id = $1`

	tag, err := r.db.Exec(ctx, query, roomID)
	if err != nil {
		r.log.Error("Failed to delete chat messages", "error", err, "room_id", roomID)
		return 0, err
	}

	return tag.RowsAffected(), nil
}

func (r *chatRepository) CountMessages(ctx context.Context, roomID string) (int64, error) {
	query := `SELECT COUNT(*) FROM user_chat_messages WHERE workspace_id = $1`

	var count int64
	if err := r.db.QueryRow(ctx, query, roomID).Scan(&count); err != nil {
		r.log.Error("Failed to count chat messages", "error", err, "room_id", roomID)
		return 0, err
	}

	return count, nil
}
