package logging

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type contextKey string

const (
	loggerKey  contextKey = "logger"
	sessionKey contextKey = "log_session"
)

// requestSession collects request facts learned after the logger was attached,
// such as the authenticated user, so the completion line can report them.
type requestSession struct {
	mu     sync.Mutex
	userID string
}

func (s *requestSession) setUserID(id string) {
	s.mu.Lock()
	s.userID = id
	s.mu.Unlock()
}

func (s *requestSession) getUserID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID
}

// RequestLogger logs one line per request with status, chi route pattern,
// response size and, once a session was verified, the user id.
func RequestLogger(logger *Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi's RequestID middleware runs before this one
			reqLogger := logger.With(
				"request_id", middleware.GetReqID(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				"remote_ip", r.RemoteAddr,
			)
			reqLogger.Debug("request started")

			session := &requestSession{}
			ctx := context.WithValue(WithLogger(r.Context(), reqLogger), sessionKey, session)
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r.WithContext(ctx))

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}

			logLevel := slog.LevelInfo
			if status >= 500 {
				logLevel = slog.LevelError
			} else if status >= 400 {
				logLevel = slog.LevelWarn
			}

			attrs := []any{
				"status", status,
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
			}
			if rctx := chi.RouteContext(ctx); rctx != nil && rctx.RoutePattern() != "" {
				attrs = append(attrs, "route", rctx.RoutePattern())
			}
			if userID := session.getUserID(); userID != "" {
				attrs = append(attrs, "user_id", userID)
			}

			reqLogger.Log(r.Context(), logLevel, "request completed", attrs...)
		})
	}
}

// WithUserID records the authenticated user for the rest of the request:
// later log lines from the context logger and the completion line carry user_id.
func WithUserID(ctx context.Context, userID string) context.Context {
	if session, ok := ctx.Value(sessionKey).(*requestSession); ok {
		session.setUserID(userID)
	}
	return WithLogger(ctx, GetLoggerFromContext(ctx).With("user_id", userID))
}

// WithLogger stores the logger in ctx
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// GetLoggerFromContext retrieves the logger from the request context
func GetLoggerFromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(loggerKey).(*Logger); ok {
		return logger
	}
	// Fallback to a default logger if not found
	return NewLogger(true)
}
