package auth

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/redmonkez12/loan-advisor-api/internal/config"
	"github.com/redmonkez12/loan-advisor-api/internal/logging"
	"github.com/redmonkez12/loan-advisor-api/internal/user"
)

// memoryUsers is an in-memory user.Repository with the same uniqueness guarantee as the real stores
type memoryUsers struct {
	mu      sync.Mutex
	byID    map[string]*user.User
	byEmail map[string]string
	failGet error
}

func newMemoryUsers() *memoryUsers {
	return &memoryUsers{
		byID:    make(map[string]*user.User),
		byEmail: make(map[string]string),
	}
}

func (m *memoryUsers) Create(_ context.Context, u *user.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.byEmail[u.Email]; exists {
		return user.ErrDuplicateEmail
	}
	stored := *u
	m.byID[u.ID] = &stored
	m.byEmail[u.Email] = u.ID
	return nil
}

func (m *memoryUsers) GetByEmail(_ context.Context, email string) (*user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failGet != nil {
		return nil, m.failGet
	}
	id, ok := m.byEmail[email]
	if !ok {
		return nil, user.ErrNotFound
	}
	u := *m.byID[id]
	return &u, nil
}

func (m *memoryUsers) GetByID(_ context.Context, id string) (*user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failGet != nil {
		return nil, m.failGet
	}
	u, ok := m.byID[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	out := *u
	return &out, nil
}

func (m *memoryUsers) UpdatePasswordHash(_ context.Context, id, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.byID[id]
	if !ok {
		return user.ErrNotFound
	}
	u.PasswordHash = passwordHash
	return nil
}

func (m *memoryUsers) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byID)
}

type testEnv struct {
	service *Service
	users   *memoryUsers
	tokens  TokenService
	hasher  *PasswordHasher
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	users := newMemoryUsers()
	hasher := bcryptHasher(t, bcrypt.MinCost)
	tokens, err := NewJWTService(testSecret, time.Hour)
	require.NoError(t, err)

	logger := logging.NewLoggerWithWriter(io.Discard, false)

	return &testEnv{
		service: NewService(users, hasher, tokens, logger),
		users:   users,
		tokens:  tokens,
		hasher:  hasher,
	}
}

func TestService_Register(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	session, err := env.service.Register(ctx, "  Jana Novak ", " Jana@Example.COM ", "secret123")
	require.NoError(t, err)

	assert.NotEmpty(t, session.User.ID)
	assert.Equal(t, "Jana Novak", session.User.Name)
	assert.Equal(t, "jana@example.com", session.User.Email)
	assert.NotEqual(t, "secret123", session.User.PasswordHash)
	assert.False(t, session.User.CreatedAt.IsZero())

	claims, err := env.tokens.VerifyToken(session.Token)
	require.NoError(t, err)
	assert.Equal(t, session.User.ID, claims.UserID)

	stored, err := env.users.GetByEmail(ctx, "jana@example.com")
	require.NoError(t, err)
	ok, err := env.hasher.Verify("secret123", stored.PasswordHash)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestService_RegisterValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		userName string
		email    string
		password string
		wantErr  error
	}{
		{name: "missing name", userName: "  ", email: "a@example.com", password: "secret123", wantErr: ErrNameRequired},
		{name: "missing email", userName: "A", email: "", password: "secret123", wantErr: ErrEmailRequired},
		{name: "malformed email", userName: "A", email: "not-an-email", password: "secret123", wantErr: ErrInvalidEmailFormat},
		{name: "display name form", userName: "A", email: "A <a@example.com>", password: "secret123", wantErr: ErrInvalidEmailFormat},
		{name: "email too long", userName: "A", email: strings.Repeat("a", 250) + "@example.com", password: "secret123", wantErr: ErrInvalidEmailFormat},
		{name: "missing password", userName: "A", email: "a@example.com", password: "", wantErr: ErrPasswordRequired},
		{name: "short password", userName: "A", email: "a@example.com", password: "short", wantErr: ErrPasswordTooShort},
		{name: "long password", userName: "A", email: "a@example.com", password: strings.Repeat("p", 73), wantErr: ErrPasswordTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.service.Register(ctx, tt.userName, tt.email, tt.password)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.True(t, IsValidationError(err))
		})
	}

	assert.Zero(t, env.users.count())
}

func TestService_RegisterDuplicateEmail(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.service.Register(ctx, "First", "dup@example.com", "secret123")
	require.NoError(t, err)

	_, err = env.service.Register(ctx, "Second", "DUP@example.com", "other-secret")
	assert.ErrorIs(t, err, user.ErrDuplicateEmail)
	assert.Equal(t, 1, env.users.count())
}

func TestService_RegisterConcurrentDuplicate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	const attempts = 8
	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		successes  int
		duplicates int
	)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.service.Register(ctx, "Racer", "race@example.com", "secret123")

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, user.ErrDuplicateEmail):
				duplicates++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, attempts-1, duplicates)
	assert.Equal(t, 1, env.users.count())
}

func TestService_Login(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	registered, err := env.service.Register(ctx, "Login User", "login@example.com", "secret123")
	require.NoError(t, err)

	session, err := env.service.Login(ctx, " LOGIN@example.com", "secret123")
	require.NoError(t, err)
	assert.Equal(t, registered.User.ID, session.User.ID)

	claims, err := env.tokens.VerifyToken(session.Token)
	require.NoError(t, err)
	assert.Equal(t, registered.User.ID, claims.UserID)
}

func TestService_LoginFailuresAreIndistinguishable(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.service.Register(ctx, "Known", "known@example.com", "secret123")
	require.NoError(t, err)

	_, wrongPassword := env.service.Login(ctx, "known@example.com", "wrong-password")
	_, unknownEmail := env.service.Login(ctx, "nobody@example.com", "secret123")
	_, blank := env.service.Login(ctx, "", "")

	for _, err := range []error{wrongPassword, unknownEmail, blank} {
		require.ErrorIs(t, err, ErrInvalidCredentials)
		assert.Equal(t, ErrInvalidCredentials.Error(), err.Error())
	}
}

func TestService_LoginStoreFailure(t *testing.T) {
	env := newTestEnv(t)
	env.users.failGet = errors.New("connection reset")

	_, err := env.service.Login(context.Background(), "a@example.com", "secret123")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidCredentials)
}

func TestService_LoginRehashesOutdatedHash(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.service.Register(ctx, "Old Hash", "old@example.com", "secret123")
	require.NoError(t, err)

	upgraded, err := NewPasswordHasher(config.HasherConfig{
		Algorithm:      config.HasherArgon2id,
		Argon2Time:     1,
		Argon2MemoryKB: 8 * 1024,
		Argon2Threads:  1,
	})
	require.NoError(t, err)
	env.service.hasher = upgraded

	_, err = env.service.Login(ctx, "old@example.com", "secret123")
	require.NoError(t, err)

	stored, err := env.users.GetByEmail(ctx, "old@example.com")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(stored.PasswordHash, "$argon2id$"))

	_, err = env.service.Login(ctx, "old@example.com", "secret123")
	assert.NoError(t, err)
}

func TestService_CurrentUser(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	session, err := env.service.Register(ctx, "Me", "me@example.com", "secret123")
	require.NoError(t, err)

	u, err := env.service.CurrentUser(ctx, session.User.ID)
	require.NoError(t, err)
	assert.Equal(t, "me@example.com", u.Email)

	_, err = env.service.CurrentUser(ctx, "missing")
	assert.ErrorIs(t, err, user.ErrNotFound)
}
