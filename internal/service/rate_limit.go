package service

import (
	"context"
	"time"

	"collab_editor/internal/config"
	"collab_editor/internal/repository"
	"collab_editor/pkg/logger"
)

// RateLimitDecision - ответ на один запрос клиента в рамках scope
type RateLimitDecision struct {
	Allowed   bool
	Limit     int
	Remaining int
}

type RateLimitService interface {
	// Allow учитывает запрос клиента clientKey к маршрутам scope ("ws", "api").
	// Отказанный запрос в счетчик не попадает.
	Allow(ctx context.Context, scope, clientKey string) (RateLimitDecision, error)
}

type rateLimitService struct {
	rateLimitRepo repository.RateLimitRepository
	limit         int
	window        time.Duration
	log           logger.Logger
}

func NewRateLimitService(rateLimitRepo repository.RateLimitRepository, cfg config.RateLimitConfig, log logger.Logger) RateLimitService {
	return &rateLimitService{
		rateLimitRepo: rateLimitRepo,
		limit:         cfg.PerMinute,
		window:        time.Minute,
		log:           log,
	}
}

func (s *rateLimitService) Allow(ctx context.Context, scope, clientKey string) (RateLimitDecision, error) {
	// limit <= 0 отключает ограничение
	if s.limit <= 0 {
		return RateLimitDecision{Allowed: true}, nil
	}
	key := scope + ":" + clientKey

	allowed, err := s.rateLimitRepo.CheckLimit(ctx, key, s.limit, s.window)
	if err != nil {
		return RateLimitDecision{}, err
	}
	if !allowed {
		s.log.Warn("Rate limit exceeded", "scope", scope, "client", clientKey, "limit", s.limit)
		return RateLimitDecision{Allowed: false, Limit: s.limit}, nil
	}

	count, err := s.rateLimitRepo.Increment(ctx, key, s.window)
	if err != nil {
		// запрос уже разрешен, потеря одного инкремента не критична
		s.log.Error("Rate limit increment failed", "scope", scope, "error", err)
		count = 0
	}
	return RateLimitDecision{
		Allowed:   true,
		Limit:     s.limit,
		Remaining: max(s.limit-int(count), 0),
	}, nil
}
