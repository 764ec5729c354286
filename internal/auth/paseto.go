package auth

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"time"

	"aidanwoods.dev/go-paseto"
	"golang.org/x/crypto/hkdf"
)

// pasetoKeyInfo separates the derived PASETO key from any other use of the secret
const pasetoKeyInfo = "loan-advisor-api paseto v4.local session key"

// PasetoService handles PASETO token creation and validation
// Uses v4.local (symmetric encryption with XChaCha20-Poly1305)
type PasetoService struct {
	symmetricKey paseto.V4SymmetricKey
	ttl          time.Duration
	now          func() time.Time
}

// NewPasetoService derives a 32 byte v4.local key from secret with HKDF-SHA256
func NewPasetoService(secret []byte, ttl time.Duration, opts ...TokenOption) (*PasetoService, error) {
	if len(secret) < minSecretLen {
		return nil, fmt.Errorf("signing secret must be at least %d bytes, got %d", minSecretLen, len(secret))
	}
	if ttl <= 0 {
		return nil, errors.New("token ttl must be positive")
	}

	keyBytes := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte(pasetoKeyInfo)), keyBytes); err != nil {
		return nil, fmt.Errorf("failed to derive paseto key: %w", err)
	}

	key, err := paseto.V4SymmetricKeyFromBytes(keyBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to create symmetric key: %w", err)
	}

	o := buildTokenOptions(opts)

	return &PasetoService{
		symmetricKey: key,
		ttl:          ttl,
		now:          o.now,
	}, nil
}

// CreateToken generates a new PASETO v4.local token for userID
func (s *PasetoService) CreateToken(userID string) (string, time.Time, error) {
	// claims are encoded as RFC 3339 without fractional seconds
	now := s.now().Truncate(time.Second)
	expiresAt := now.Add(s.ttl)

	token := paseto.NewToken()
	token.SetIssuedAt(now)
	token.SetExpiration(expiresAt)
	token.SetSubject(userID)

	return token.V4Encrypt(s.symmetricKey, nil), expiresAt, nil
}

// VerifyToken decrypts a PASETO v4.local token and checks its expiry against the service clock
func (s *PasetoService) VerifyToken(tokenStr string) (*TokenClaims, error) {
	// expiry is checked below so the injected clock is honoured
	parser := paseto.NewParserWithoutExpiryCheck()

	token, err := parser.ParseV4Local(s.symmetricKey, tokenStr, nil)
	if err != nil {
		return nil, ErrInvalidToken
	}

	expiresAt, err := token.GetExpiration()
	if err != nil {
		return nil, ErrInvalidToken
	}
	if !s.now().Before(expiresAt) {
		return nil, ErrExpiredToken
	}

	userID, err := token.GetSubject()
	if err != nil || userID == "" {
		return nil, ErrInvalidToken
	}

	issuedAt, err := token.GetIssuedAt()
	if err != nil {
		return nil, ErrInvalidToken
	}

	return &TokenClaims{
		UserID:    userID,
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
	}, nil
}
