package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/redmonkez12/loan-advisor-api/internal/config"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

// TokenClaims represents the claims carried by a session token
type TokenClaims struct {
	UserID    string    `json:"sub"`
	IssuedAt  time.Time `json:"iat"`
	ExpiresAt time.Time `json:"exp"`
}

// TokenService defines the interface for session token creation and validation.
// Implementations include JWTService (HS256) and PasetoService (PASETO v4.local).
// Verification is a pure function of the token, the secret and the clock.
type TokenService interface {
	CreateToken(userID string) (token string, expiresAt time.Time, err error)
	VerifyToken(tokenStr string) (*TokenClaims, error)
}

// TokenOption customises a token service
type TokenOption func(*tokenOptions)

type tokenOptions struct {
	now func() time.Time
}

// WithClock overrides the time source used for issuing and verifying tokens
func WithClock(now func() time.Time) TokenOption {
	return func(o *tokenOptions) {
		o.now = now
	}
}

func buildTokenOptions(opts []TokenOption) tokenOptions {
	o := tokenOptions{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// NewTokenService builds the token service selected by TOKEN_FORMAT
func NewTokenService(cfg config.AuthConfig, opts ...TokenOption) (TokenService, error) {
	switch cfg.TokenFormat {
	case config.TokenFormatJWT:
		svc, err := NewJWTService(cfg.Secret, cfg.TokenTTL, opts...)
		if err != nil {
			return nil, err
		}
		return svc, nil
	case config.TokenFormatPaseto:
		svc, err := NewPasetoService(cfg.Secret, cfg.TokenTTL, opts...)
		if err != nil {
			return nil, err
		}
		return svc, nil
	default:
		return nil, fmt.Errorf("unsupported token format %q", cfg.TokenFormat)
	}
}
