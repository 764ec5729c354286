package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/redmonkez12/loan-advisor-api/internal/logging"
	"github.com/redmonkez12/loan-advisor-api/internal/user"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrNameRequired       = errors.New("name is required")
	ErrEmailRequired      = errors.New("email is required")
	ErrInvalidEmailFormat = errors.New("invalid email format")
	ErrPasswordRequired   = errors.New("password is required")
	ErrPasswordTooShort   = errors.New("password must be at least 8 characters")
	ErrPasswordTooLong    = errors.New("password must be at most 72 bytes")
)

const (
	minPasswordLen   = 8
	maxPasswordBytes = 72 // bcrypt ignores everything after this
	maxEmailBytes    = 254
)

// dummyPassword is hashed once and verified against for unknown emails so a
// miss costs the same as a wrong password.
const dummyPassword = "loan-advisor-timing-equaliser"

// Session is the result of a successful register or login
type Session struct {
	User      *user.User
	Token     string
	ExpiresAt time.Time
}

// Service handles authentication business logic
type Service struct {
	users  user.Repository
	hasher Hasher
	tokens TokenService
	logger *logging.Logger
	now    func() time.Time

	dummyOnce sync.Once
	dummyHash string
}

func NewService(users user.Repository, hasher Hasher, tokens TokenService, logger *logging.Logger) *Service {
	return &Service{
		users:  users,
		hasher: hasher,
		tokens: tokens,
		logger: logger,
		now:    time.Now,
	}
}

// Register creates a new account and issues a session token for it.
// Duplicate emails are detected by the store's unique index only.
func (s *Service) Register(ctx context.Context, name, email, password string) (*Session, error) {
	name = strings.TrimSpace(name)
	email = user.NormalizeEmail(email)

	if err := validateRegistration(name, email, password); err != nil {
		return nil, err
	}

	passwordHash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate user id: %w", err)
	}

	newUser := &user.User{
		ID:           id.String(),
		Name:         name,
		Email:        email,
		PasswordHash: passwordHash,
		// stores keep millisecond precision at best
		CreatedAt: s.now().UTC().Truncate(time.Millisecond),
	}

	if err := s.users.Create(ctx, newUser); err != nil {
		if errors.Is(err, user.ErrDuplicateEmail) {
			return nil, user.ErrDuplicateEmail
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return s.issue(newUser)
}

// Login verifies credentials and issues a session token.
// Every credential failure yields ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	email = user.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	existingUser, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			s.verifyDummy(password)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	ok, err := s.hasher.Verify(password, existingUser.PasswordHash)
	if err != nil {
		s.logger.Error("stored password hash could not be verified", "user_id", existingUser.ID, "error", err)
		return nil, ErrInvalidCredentials
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}

	if s.hasher.NeedsRehash(existingUser.PasswordHash) {
		s.rehash(ctx, existingUser, password)
	}

	return s.issue(existingUser)
}

// CurrentUser loads the account a verified token refers to
func (s *Service) CurrentUser(ctx context.Context, userID string) (*user.User, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, user.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

func (s *Service) issue(u *user.User) (*Session, error) {
	token, expiresAt, err := s.tokens.CreateToken(u.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create token: %w", err)
	}

	return &Session{
		User:      u,
		Token:     token,
		ExpiresAt: expiresAt,
	}, nil
}

// rehash upgrades a hash produced with older parameters; failure only costs the upgrade
func (s *Service) rehash(ctx context.Context, u *user.User, password string) {
	newHash, err := s.hasher.Hash(password)
	if err != nil {
		s.logger.Warn("failed to rehash password", "user_id", u.ID, "error", err)
		return
	}
	if err := s.users.UpdatePasswordHash(ctx, u.ID, newHash); err != nil {
		s.logger.Warn("failed to store rehashed password", "user_id", u.ID, "error", err)
		return
	}
	u.PasswordHash = newHash
}

func (s *Service) verifyDummy(password string) {
	s.dummyOnce.Do(func() {
		hash, err := s.hasher.Hash(dummyPassword)
		if err != nil {
			s.logger.Warn("failed to compute dummy hash", "error", err)
			return
		}
		s.dummyHash = hash
	})
	if s.dummyHash != "" {
		_, _ = s.hasher.Verify(password, s.dummyHash)
	}
}

func validateRegistration(name, email, password string) error {
	if name == "" {
		return ErrNameRequired
	}
	if email == "" {
		return ErrEmailRequired
	}
	if err := ValidateEmail(email); err != nil {
		return err
	}
	if password == "" {
		return ErrPasswordRequired
	}
	if utf8.RuneCountInString(password) < minPasswordLen {
		return ErrPasswordTooShort
	}
	if len(password) > maxPasswordBytes {
		return ErrPasswordTooLong
	}
	return nil
}

// ValidateEmail accepts a bare RFC 5322 address of at most 254 bytes
func ValidateEmail(email string) error {
	if len(email) > maxEmailBytes {
		return ErrInvalidEmailFormat
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return ErrInvalidEmailFormat
	}
	return nil
}

// IsValidationError reports whether err came from input validation
func IsValidationError(err error) bool {
	return errors.Is(err, ErrNameRequired) ||
		errors.Is(err, ErrEmailRequired) ||
		errors.Is(err, ErrInvalidEmailFormat) ||
		errors.Is(err, ErrPasswordRequired) ||
		errors.Is(err, ErrPasswordTooShort) ||
		errors.Is(err, ErrPasswordTooLong)
}
