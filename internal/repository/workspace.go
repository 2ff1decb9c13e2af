package repository

import (
	"context"
	"errors"

	apperrors "collab_editor/pkg/errors"
	"collab_editor/pkg/logger"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:generate go run go.uber.org/mock/mockgen -source=workspace.go -destination=mocks/mock_workspace.go -package=mocks

// WorkspaceRepository отвечает только на вопрос "кто владелец комнаты".
// Таблицей workspaces владеет сервис рабочих пространств.
type WorkspaceRepository interface {
	// GetOwnerID возвращает apperrors.ErrWorkspaceNotFound, если рабочего пространства нет
	GetOwnerID(ctx context.Context, roomID string) (int64, error)
}

type workspaceRepository struct {
	db  *pgxpool.Pool
	log logger.Logger
}

func NewWorkspaceRepository(db *pgxpool.Pool, log logger.Logger) WorkspaceRepository {
	return &workspaceRepository{db: db, log: log}
}

func (r *workspaceRepository) GetOwnerID(ctx context.Context, roomID string) (int64, error) {
	query := `SELECT owner_id FROM workspaces WHERE id = $1`

	var ownerID int64
	err := r.db.QueryRow(ctx, query, roomID).Scan(&ownerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, apperrors.ErrWorkspaceNotFound
		}
		r.log.Error("Failed to get workspace owner", "error", err, "room_id", roomID)
		return 0, err
	}

	return ownerID, nil
}
