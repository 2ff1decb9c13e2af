package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"collab_editor/internal/repository/mocks"
	apperrors "collab_editor/pkg/errors"
	"collab_editor/pkg/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestCachedWorkspaceRepository_ReadThrough(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	mr, rdb := newTestRedis(t)

	next := mocks.NewMockWorkspaceRepository(ctrl)
	repo := NewCachedWorkspaceRepository(next, rdb, time.Minute, logger.Nop())

	// Given the owner is only fetched once from the backing store
	next.EXPECT().GetOwnerID(gomock.Any(), "room-1").Return(int64(42), nil).Times(1)

	// When the owner is requested twice
	first, err := repo.GetOwnerID(ctx, "room-1")
	req.NoError(err)
	second, err := repo.GetOwnerID(ctx, "room-1")
	req.NoError(err)

	// Then both answers match and the value is cached with a TTL
	req.Equal(int64(42), first)
	req.Equal(int64(42), second)
	cached, err := mr.Get("workspace:room-1:owner")
	req.NoError(err)
	req.Equal("42", cached)
	req.Equal(time.Minute, mr.TTL("workspace:room-1:owner"))
}

func TestCachedWorkspaceRepository_ExpiredEntryRefetches(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	mr, rdb := newTestRedis(t)

	next := mocks.NewMockWorkspaceRepository(ctrl)
	repo := NewCachedWorkspaceRepository(next, rdb, time.Minute, logger.Nop())

	gomock.InOrder(
		next.EXPECT().GetOwnerID(gomock.Any(), "room-1").Return(int64(1), nil),
		next.EXPECT().GetOwnerID(gomock.Any(), "room-1").Return(int64(2), nil),
	)

	owner, err := repo.GetOwnerID(ctx, "room-1")
	req.NoError(err)
	req.Equal(int64(1), owner)

	mr.FastForward(2 * time.Minute)

	owner, err = repo.GetOwnerID(ctx, "room-1")
	req.NoError(err)
	req.Equal(int64(2), owner)
}

func TestCachedWorkspaceRepository_NotFoundIsNotCached(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	mr, rdb := newTestRedis(t)

	next := mocks.NewMockWorkspaceRepository(ctrl)
	repo := NewCachedWorkspaceRepository(next, rdb, time.Minute, logger.Nop())

	next.EXPECT().GetOwnerID(gomock.Any(), "missing").Return(int64(0), apperrors.ErrWorkspaceNotFound).Times(2)

	_, err := repo.GetOwnerID(ctx, "missing")
	req.ErrorIs(err, apperrors.ErrWorkspaceNotFound)
	_, err = repo.GetOwnerID(ctx, "missing")
	req.ErrorIs(err, apperrors.ErrNotFound)

	req.False(mr.Exists("workspace:missing:owner"))
}

func TestCachedWorkspaceRepository_RedisDownFallsBack(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	mr, rdb := newTestRedis(t)
	mr.SetError("ERR server unavailable")

	next := mocks.NewMockWorkspaceRepository(ctrl)
	repo := NewCachedWorkspaceRepository(next, rdb, time.Minute, logger.Nop())

	next.EXPECT().GetOwnerID(gomock.Any(), "room-1").Return(int64(9), nil)

	owner, err := repo.GetOwnerID(ctx, "room-1")
	req.NoError(err)
	req.Equal(int64(9), owner)
}

func TestCachedWorkspaceRepository_BackendErrorPropagates(t *testing.T) {
	ctrl := gomock.NewController(t)
	_, rdb := newTestRedis(t)
	boom := errors.New("connection reset")

	next := mocks.NewMockWorkspaceRepository(ctrl)
	next.EXPECT().GetOwnerID(gomock.Any(), "room-1").Return(int64(0), boom)

	repo := NewCachedWorkspaceRepository(next, rdb, time.Minute, logger.Nop())
	_, err := repo.GetOwnerID(context.Background(), "room-1")
	require.ErrorIs(t, err, boom)
}
