package middleware

import (
	"net/http"
	"strings"

	"collab_editor/internal/domain"
	"collab_editor/internal/service"
	"collab_editor/pkg/logger"

	"github.com/gin-gonic/gin"
)

const (
	ContextUserID   = "user_id"
	ContextUsername = "username"
	ContextEmail    = "user_email"
	ContextIdentity = "identity"
)

// AuthMiddleware проверяет JWT токены от сервиса аутентификации
type AuthMiddleware struct {
	tokens service.TokenVerifier
	log    logger.Logger
}

func NewAuthMiddleware(tokens service.TokenVerifier, log logger.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		tokens: tokens,
		log:    log,
	}
}

// RequireAuth требует валидный токен
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := extractToken(c)
		if !ok {
			m.log.Debug("Missing token", "path", c.Request.URL.Path)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			c.Abort()
			return
		}

		identity, err := m.tokens.Verify(tokenString)
		if err != nil {
			m.log.Warn("Token validation failed", "error", err.Error(), "client_ip", c.ClientIP())
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			c.Abort()
			return
		}

		setIdentity(c, identity)
		c.Next()
	}
}

// OptionalAuth проверяет токен если он есть, но не требует его
func (m *AuthMiddleware) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := extractToken(c)
		if !ok {
			c.Next()
			return
		}

		identity, err := m.tokens.Verify(tokenString)
		if err != nil {
			m.log.Debug("Ignoring invalid optional token", "error", err.Error())
			c.Next()
			return
		}

		setIdentity(c, identity)
		c.Next()
	}
}

// extractToken: заголовок Authorization, либо ?token= (браузерный WebSocket не умеет заголовки)
func extractToken(c *gin.Context) (string, bool) {
	if authHeader := c.GetHeader("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
			return "", false
		}
		return parts[1], true
	}
	if token := c.Query("token"); token != "" {
		return token, true
	}
	return "", false
}

func setIdentity(c *gin.Context, identity *domain.Identity) {
	c.Set(ContextUserID, identity.UserID)
	c.Set(ContextUsername, identity.Username)
	c.Set(ContextEmail, identity.Email)
	c.Set(ContextIdentity, identity)
}

// IdentityFrom возвращает пользователя, установленного RequireAuth/OptionalAuth
func IdentityFrom(c *gin.Context) (*domain.Identity, bool) {
	v, ok := c.Get(ContextIdentity)
	if !ok {
		return nil, false
	}
	identity, ok := v.(*domain.Identity)
	return identity, ok && identity != nil
}
