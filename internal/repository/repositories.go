package repository

import (
	"time"

	"collab_editor/internal/config"
	"collab_editor/pkg/logger"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

type Repositories struct {
	Chat      ChatRepository
	Workspace WorkspaceRepository
	Audit     AuditRepository
	RateLimit RateLimitRepository
}

// NewRepositories собирает Postgres-репозитории. rdb может быть nil (Redis выключен).
func NewRepositories(db *pgxpool.Pool, rdb *redis.Client, cfg *config.Config, log logger.Logger) *Repositories {
	repos := &Repositories{
		Chat:      NewChatRepository(db, log),
		Workspace: NewWorkspaceRepository(db, log),
		Audit:     NewAuditRepository(db, log),
	}

	if rdb != nil {
		repos.Workspace = NewCachedWorkspaceRepository(repos.Workspace, rdb, cfg.Redis.OwnerTTL, log)
		repos.RateLimit = NewRateLimitRepository(rdb, log)
		log.Info("Redis-backed owner cache and rate limit initialized")
	} else {
		repos.RateLimit = NewMemoryRateLimitRepository(nil)
		log.Warn("Redis disabled, using in-memory rate limit")
	}

	return repos
}

// NewMemoryRepositories используется без БД (локальная разработка, тесты)
func NewMemoryRepositories(workspaces WorkspaceRepository, now func() time.Time) *Repositories {
	if workspaces == nil {
		workspaces = NewMemoryWorkspaceRepository()
	}
	return &Repositories{
		Chat:      NewMemoryChatRepository(now),
		Workspace: workspaces,
		Audit:     NewMemoryAuditRepository(),
		RateLimit: NewMemoryRateLimitRepository(now),
	}
}
