package service

import (
	"errors"
	"fmt"

	"collab_editor/internal/domain"
	apperrors "collab_editor/pkg/errors"
	"collab_editor/pkg/logger"

	"github.com/golang-jwt/jwt/v5"
)

// TokenClaims - claims токенов сервиса аутентификации
type TokenClaims struct {
	UserID   int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	jwt.RegisteredClaims
}

// TokenVerifier проверяет токены, выпущенные сервисом аутентификации.
// Сам сервис токены не выпускает.
type TokenVerifier interface {
	Verify(tokenString string) (*domain.Identity, error)
}

type tokenVerifier struct {
	secret []byte
	log    logger.Logger
}

func NewTokenVerifier(secret string, log logger.Logger) TokenVerifier {
	return &tokenVerifier{secret: []byte(secret), log: log}
}

func (v *tokenVerifier) Verify(tokenString string) (*domain.Identity, error) {
	claims := &TokenClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperrors.New(apperrors.ErrTokenExpired, "Token expired")
		}
		v.log.Debug("Token validation failed", "error", err)
		return nil, apperrors.New(apperrors.ErrInvalidToken, "Invalid or expired token")
	}
	if !token.Valid || claims.UserID == 0 {
		return nil, apperrors.New(apperrors.ErrInvalidToken, "Invalid token claims")
	}

	return &domain.Identity{
		UserID:   claims.UserID,
		Username: claims.Username,
		Email:    claims.Email,
	}, nil
}
