package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redmonkez12/loan-advisor-api/internal/auth"
	"github.com/redmonkez12/loan-advisor-api/internal/config"
	"github.com/redmonkez12/loan-advisor-api/internal/contact"
	"github.com/redmonkez12/loan-advisor-api/internal/httputil"
	"github.com/redmonkez12/loan-advisor-api/internal/logging"
	"github.com/redmonkez12/loan-advisor-api/internal/metrics"
	"github.com/redmonkez12/loan-advisor-api/internal/user"
)

const allowedOrigin = "https://loans.example.com"

type userStore struct {
	mu    sync.Mutex
	users map[string]user.User
}

func (s *userStore) Create(_ context.Context, u *user.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Email == u.Email {
			return user.ErrDuplicateEmail
		}
	}
	s.users[u.ID] = *u
	return nil
}

func (s *userStore) GetByEmail(_ context.Context, email string) (*user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, user.ErrNotFound
}

func (s *userStore) GetByID(_ context.Context, id string) (*user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	return &u, nil
}

func (s *userStore) UpdatePasswordHash(_ context.Context, id, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return user.ErrNotFound
	}
	u.PasswordHash = hash
	s.users[id] = u
	return nil
}

type messageStore struct {
	mu       sync.Mutex
	messages []contact.Message
}

func (s *messageStore) Create(_ context.Context, m *contact.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, *m)
	return nil
}

func (s *messageStore) List(_ context.Context, _ contact.ListOptions) ([]contact.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]contact.Message, 0, len(s.messages))
	for i := len(s.messages) - 1; i >= 0; i-- {
		out = append(out, s.messages[i])
	}
	return out, nil
}

func (s *messageStore) UpdateStatus(_ context.Context, id string, status contact.Status, updatedAt time.Time) (*contact.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.messages {
		if s.messages[i].ID == id {
			if s.messages[i].Status != status {
				s.messages[i].Status = status
				s.messages[i].UpdatedAt = updatedAt
			}
			m := s.messages[i]
			return &m, nil
		}
	}
	return nil, contact.ErrNotFound
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	cfg := &config.Config{
		Server: config.ServerConfig{Env: "prod", TrustedOrigins: []string{allowedOrigin}},
	}
	logger := logging.NewLoggerWithWriter(io.Discard, false)

	users := &userStore{users: make(map[string]user.User)}
	hasher, err := auth.NewPasswordHasher(config.HasherConfig{Algorithm: config.HasherBcrypt, BcryptCost: 4})
	require.NoError(t, err)
	tokens, err := auth.NewJWTService([]byte(strings.Repeat("k", 32)), time.Hour)
	require.NoError(t, err)

	m := metrics.New()
	authService := auth.NewService(users, hasher, tokens, logger)
	contactService := contact.NewService(&messageStore{}, nil, logger)

	return NewRouter(cfg, Handlers{
		Auth:           auth.NewHandler(authService, nil, m, auth.CookieSettings{TTL: time.Hour}),
		AuthMiddleware: auth.NewMiddleware(tokens, users, []string{"admin@example.com"}),
		Contact:        contact.NewHandler(contactService, nil, m),
		Metrics:        m,
	}, logger)
}

func request(h http.Handler, method, path, body string, mutate ...func(*http.Request)) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, m := range mutate {
		m(req)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func withOrigin(origin string) func(*http.Request) {
	return func(r *http.Request) { r.Header.Set("Origin", origin) }
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body httputil.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Success)
	return body.Code
}

func TestRouter_Health(t *testing.T) {
	r := newTestRouter(t)

	rec := request(r, http.MethodGet, "/api/health", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.WithinDuration(t, time.Now(), body.Timestamp, time.Minute)

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}

func TestRouter_OriginAllowList(t *testing.T) {
	r := newTestRouter(t)

	t.Run("disallowed origin is rejected", func(t *testing.T) {
		rec := request(r, http.MethodPost, "/api/auth/login", `{"email":"a@example.com","password":"secret123"}`,
			withOrigin("https://evil.example.net"))
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, httputil.CodeOriginNotAllowed, errorCode(t, rec))
		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("disallowed preflight is rejected", func(t *testing.T) {
		rec := request(r, http.MethodOptions, "/api/auth/login", "", withOrigin("https://evil.example.net"), func(req *http.Request) {
			req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		})
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("allowed preflight gets credentialed CORS headers", func(t *testing.T) {
		rec := request(r, http.MethodOptions, "/api/auth/login", "", withOrigin(allowedOrigin), func(req *http.Request) {
			req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			req.Header.Set("Access-Control-Request-Headers", "Content-Type")
		})
		assert.Equal(t, allowedOrigin, rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
	})

	t.Run("allowed origin reaches handler", func(t *testing.T) {
		rec := request(r, http.MethodGet, "/api/health", "", withOrigin(allowedOrigin))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, allowedOrigin, rec.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestRouter_JSONFallbacks(t *testing.T) {
	r := newTestRouter(t)

	rec := request(r, http.MethodGet, "/api/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, httputil.CodeNotFound, errorCode(t, rec))

	rec = request(r, http.MethodDelete, "/api/health", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, httputil.CodeMethodNotAllowed, errorCode(t, rec))
}

func TestRouter_ContactAdministrationRequiresAdmin(t *testing.T) {
	r := newTestRouter(t)

	rec := request(r, http.MethodPost, "/api/contact", `{"name":"Eva","email":"eva@example.com","message":"Call me"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = request(r, http.MethodGet, "/api/contact", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	login := func(email string) *http.Cookie {
		rec := request(r, http.MethodPost, "/api/auth/register", `{"name":"N","email":"`+email+`","password":"secret123"}`)
		require.Equal(t, http.StatusCreated, rec.Code)
		for _, c := range rec.Result().Cookies() {
			if c.Name == auth.CookieName {
				return c
			}
		}
		t.Fatal("no session cookie")
		return nil
	}

	staff := login("staff@example.com")
	rec = request(r, http.MethodGet, "/api/contact", "", func(req *http.Request) { req.AddCookie(staff) })
	assert.Equal(t, http.StatusForbidden, rec.Code)

	admin := login("admin@example.com")
	rec = request(r, http.MethodGet, "/api/contact", "", func(req *http.Request) { req.AddCookie(admin) })
	require.Equal(t, http.StatusOK, rec.Code)

	var list contact.ListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Equal(t, 1, list.Count)

	rec = request(r, http.MethodPut, "/api/contact/"+list.Data[0].ID+"/status", `{"status":"replied"}`,
		func(req *http.Request) { req.AddCookie(admin) })
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_Metrics(t *testing.T) {
	r := newTestRouter(t)

	request(r, http.MethodGet, "/api/health", "")
	rec := request(r, http.MethodGet, "/metrics", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `loanadvisor_http_requests_total{method="GET",route="/api/health",status="200"}`)
}

func TestRecoverer(t *testing.T) {
	logger := logging.NewLoggerWithWriter(io.Discard, false)
	h := Recoverer(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, httputil.CodeInternalError, errorCode(t, rec))
	assert.NotContains(t, rec.Body.String(), "boom")
}
