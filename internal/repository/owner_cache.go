package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"collab_editor/pkg/logger"

	"github.com/redis/go-redis/v9"
)

const OwnerCacheKeyPrefix = "workspace:%s:owner"

// cachedWorkspaceRepository кеширует владельца комнаты в Redis.
// Ошибки Redis не критичны: запрос уходит в основное хранилище.
type cachedWorkspaceRepository struct {
	next WorkspaceRepository
	rdb  *redis.Client
	ttl  time.Duration
	log  logger.Logger
}

func NewCachedWorkspaceRepository(next WorkspaceRepository, rdb *redis.Client, ttl time.Duration, log logger.Logger) WorkspaceRepository {
	return &cachedWorkspaceRepository{next: next, rdb: rdb, ttl: ttl, log: log}
}

func (r *cachedWorkspaceRepository) ownerKey(roomID string) string {
	return fmt.Sprintf(OwnerCacheKeyPrefix, roomID)
}

func (r *cachedWorkspaceRepository) GetOwnerID(ctx context.Context, roomID string) (int64, error) {
	key := r.ownerKey(roomID)

	cached, err := r.rdb.Get(ctx, key).Result()
	switch {
	case err == nil:
		if ownerID, parseErr := strconv.ParseInt(cached, 10, 64); parseErr == nil {
			return ownerID, nil
		}
		r.log.Warn("Corrupted owner cache entry", "key", key, "value", cached)
	case !errors.Is(err, redis.Nil):
		r.log.Warn("Failed to read owner cache", "error", err, "room_id", roomID)
	}

	ownerID, err := r.next.GetOwnerID(ctx, roomID)
	if err != nil {
		return 0, err
	}

	if err := r.rdb.Set(ctx, key, strconv.FormatInt(ownerID, 10), r.ttl).Err(); err != nil {
		r.log.Warn("Failed to write owner cache", "error", err, "room_id", roomID)
	}

	return ownerID, nil
}
