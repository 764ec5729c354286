package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/redmonkez12/loan-advisor-api/internal/httputil"
	"github.com/redmonkez12/loan-advisor-api/internal/logging"
	"github.com/redmonkez12/loan-advisor-api/internal/user"
)

// ContextKey is a type for context keys to avoid collisions
type ContextKey string

const (
	UserIDContextKey ContextKey = "user_id"
)

// Middleware handles authentication for protected routes
type Middleware struct {
	tokenService TokenService
	users        user.Repository
	adminEmails  map[string]struct{}
}

func NewMiddleware(tokenService TokenService, users user.Repository, adminEmails []string) *Middleware {
	admins := make(map[string]struct{}, len(adminEmails))
	for _, email := range adminEmails {
		if email = user.NormalizeEmail(email); email != "" {
			admins[email] = struct{}{}
		}
	}

	return &Middleware{
		tokenService: tokenService,
		users:        users,
		adminEmails:  admins,
	}
}

// RequireAuth validates the session token and stores the user id in the request context.
// The identity comes from the token alone.
func (m *Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var token string

		// Priority 1: Authorization header
		authHeader := r.Header.Get("Authorization")
		if authHeader != "" {
			scheme, value, ok := strings.Cut(authHeader, " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(value) == "" {
				httputil.RespondErrorWithCode(w, "invalid authorization header format", httputil.CodeInvalidAuthHeader, http.StatusUnauthorized)
				return
			}
			token = strings.TrimSpace(value)
		}

		// Priority 2: session cookie
		if token == "" {
			cookieToken, err := GetTokenFromCookie(r)
			if err != nil {
				httputil.RespondErrorWithCode(w, "missing authentication", httputil.CodeMissingAuth, http.StatusUnauthorized)
				return
			}
			token = cookieToken
		}

		claims, err := m.tokenService.VerifyToken(token)
		if err != nil {
			if errors.Is(err, ErrExpiredToken) {
				httputil.RespondErrorWithCode(w, "token has expired", httputil.CodeTokenExpired, http.StatusUnauthorized)
				return
			}
			httputil.RespondErrorWithCode(w, "invalid token", httputil.CodeInvalidToken, http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), UserIDContextKey, claims.UserID)
		ctx = logging.WithUserID(ctx, claims.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin allows only users whose email is on the admin list.
// Must run after RequireAuth. An empty admin list denies everyone.
func (m *Middleware) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger := logging.GetLoggerFromContext(r.Context())

		userID, ok := GetUserIDFromContext(r.Context())
		if !ok {
			httputil.RespondErrorWithCode(w, "missing authentication", httputil.CodeMissingAuth, http.StatusUnauthorized)
			return
		}

		u, err := m.users.GetByID(r.Context(), userID)
		if err != nil {
			if errors.Is(err, user.ErrNotFound) {
				// token outlived its account
				httputil.RespondErrorWithCode(w, "invalid token", httputil.CodeInvalidToken, http.StatusUnauthorized)
				return
			}
			logger.Error("failed to load user for admin check", "user_id", userID, "error", err)
			httputil.RespondErrorWithCode(w, "internal server error", httputil.CodeInternalError, http.StatusInternalServerError)
			return
		}

		if !m.IsAdmin(u.Email) {
			logger.Warn("admin access denied", "user_id", userID)
			httputil.RespondErrorWithCode(w, "admin access required", httputil.CodeForbidden, http.StatusForbidden)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// IsAdmin reports whether email is on the admin list
func (m *Middleware) IsAdmin(email string) bool {
	_, ok := m.adminEmails[user.NormalizeEmail(email)]
	return ok
}

// GetUserIDFromContext extracts the user ID from the request context
func GetUserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(UserIDContextKey).(string)
	return userID, ok && userID != ""
}
