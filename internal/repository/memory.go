package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"collab_editor/internal/domain"
	apperrors "collab_editor/pkg/errors"
)

// In-memory реализации для STORAGE_DRIVER=memory и тестов. Данные живут до рестарта.

type memoryChatRepository struct {
	mu       sync.Mutex
	now      func() time.Time
	nextID   int64
	messages map[string][]*domain.ChatMessage
}

// NewMemoryChatRepository назначает id и created_at так же, как это делает БД.
// now == nil означает time.Now.
func NewMemoryChatRepository(now func() time.Time) ChatRepository {
	if now == nil {
		now = time.Now
	}
	return &memoryChatRepository{now: now, messages: make(map[string][]*domain.ChatMessage)}
}

func (r *memoryChatRepository) InsertMessage(_ context.Context, roomID string, userID int64, displayName, body string) (*domain.ChatMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	message := &domain.ChatMessage{
		ID:          r.nextID,
		RoomID:      roomID,
		UserID:      userID,
		DisplayName: displayName,
		Body:        body,
		CreatedAt:   r.now().UTC(),
	}
	r.messages[roomID] = append(r.messages[roomID], message)

	copied := *message
	return &copied, nil
}

func (r *memoryChatRepository) ListMessages(_ context.Context, roomID string, limit int) ([]*domain.ChatMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := r.messages[roomID]
	out := make([]*domain.ChatMessage, 0, len(stored))
	for _, m := range stored {
		copied := *m
		out = append(out, &copied)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (r *memoryChatRepository) GetMessage(_ context.Context, messageID int64, roomID string) (*domain.ChatMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, m := range r.messages[roomID] {
		if m.ID == messageID {
			copied := *m
			return &copied, nil
		}
	}
	return nil, apperrors.ErrMessageNotFound
}

func (r *memoryChatRepository) DeleteMessage(_ context.Context, messageID int64, roomID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := r.messages[roomID]
	for i, m := range stored {
		if m.ID == messageID {
			r.messages[roomID] = append(stored[:i:i], stored[i+1:]...)
			break
		}
	}
	return nil
}

func (r *memoryChatRepository) DeleteAllMessages(_ context.Context, roomID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := int64(len(r.messages[roomID]))
	delete(r.messages, roomID)
	return n, nil
}

func (r *memoryChatRepository) CountMessages(_ context.Context, roomID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return int64(len(r.messages[roomID])), nil
}

// MemoryWorkspaceRepository позволяет регистрировать владельцев вручную
type MemoryWorkspaceRepository struct {
	mu     sync.RWMutex
	owners map[string]int64
}

func NewMemoryWorkspaceRepository() *MemoryWorkspaceRepository {
	return &MemoryWorkspaceRepository{owners: make(map[string]int64)}
}

func (r *MemoryWorkspaceRepository) SetOwner(roomID string, ownerID int64) {
	r.mu.Lock()
	r.owners[roomID] = ownerID
	r.mu.Unlock()
}

func (r *MemoryWorkspaceRepository) GetOwnerID(_ context.Context, roomID string) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ownerID, ok := r.owners[roomID]
	if !ok {
		return 0, apperrors.ErrWorkspaceNotFound
	}
	return ownerID, nil
}

type memoryAuditRepository struct {
	mu     sync.Mutex
	nextID int64
	logs   []domain.AuditLog
}

func NewMemoryAuditRepository() AuditRepository {
	return &memoryAuditRepository{}
}

func (r *memoryAuditRepository) CreateLog(_ context.Context, auditLog *domain.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	auditLog.ID = r.nextID
	r.logs = append(r.logs, *auditLog)
	return nil
}

type memoryRateLimitRepository struct {
	mu      sync.Mutex
	now     func() time.Time
	buckets map[string]*memoryBucket
}

type memoryBucket struct {
	count     int64
	expiresAt time.Time
}

func NewMemoryRateLimitRepository(now func() time.Time) RateLimitRepository {
	if now == nil {
		now = time.Now
	}
	return &memoryRateLimitRepository{now: now, buckets: make(map[string]*memoryBucket)}
}

func (r *memoryRateLimitRepository) bucket(key string) *memoryBucket {
	b, ok := r.buckets[key]
	if ok && !r.now().Before(b.expiresAt) {
		delete(r.buckets, key)
		return nil
	}
	return b
}

func (r *memoryRateLimitRepository) CheckLimit(_ context.Context, key string, limit int, _ time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b := r.bucket(key)
	if b == nil {
		return true, nil
	}
	return b.count < int64(limit), nil
}

func (r *memoryRateLimitRepository) Increment(_ context.Context, key string, window time.Duration) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b := r.bucket(key)
	if b == nil {
		b = &memoryBucket{expiresAt: r.now().Add(window)}
		r.buckets[key] = b
	}
	b.count++
	return b.count, nil
}
