package service

import (
	"collab_editor/internal/config"
	"collab_editor/internal/repository"
	"collab_editor/pkg/logger"
)

type Services struct {
	Chat      ChatService
	Audit     AuditService
	RateLimit RateLimitService
	Tokens    TokenVerifier
}

func NewServices(repos *repository.Repositories, cfg *config.Config, log logger.Logger) *Services {
	services := &Services{
		Audit:     NewAuditService(repos.Audit, log),
		RateLimit: NewRateLimitService(repos.RateLimit, cfg.RateLimit, log),
		Tokens:    NewTokenVerifier(cfg.JWT.Secret, log),
	}
	services.Chat = NewChatService(repos.Chat, repos.Workspace, services.Audit, cfg.Chat, nil, log)

	if cfg.JWT.Secret == "" {
		log.Warn("JWT_SECRET is empty, authenticated routes will reject every request")
	}

	return services
}
