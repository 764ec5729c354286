package auth

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/redmonkez12/loan-advisor-api/internal/httputil"
	"github.com/redmonkez12/loan-advisor-api/internal/logging"
	"github.com/redmonkez12/loan-advisor-api/internal/metrics"
	"github.com/redmonkez12/loan-advisor-api/internal/user"
)

const (
	purposeRegister = "register"
	purposeLogin    = "login"
)

// RateLimiter counts requests per client IP and purpose
type RateLimiter interface {
	AllowIPRequestWithPurpose(ctx context.Context, ip, purpose string) (bool, error)
}

// Handler contains HTTP handlers for authentication endpoints
type Handler struct {
	service     *Service
	rateLimiter RateLimiter
	metrics     *metrics.Metrics
	cookies     CookieSettings
}

func NewHandler(service *Service, rateLimiter RateLimiter, m *metrics.Metrics, cookies CookieSettings) *Handler {
	return &Handler{
		service:     service,
		rateLimiter: rateLimiter,
		metrics:     m,
		cookies:     cookies,
	}
}

// RegisterRequest represents the registration request body
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest represents the login request body
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserResponse represents a user in API responses. It has no password field.
type UserResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// SessionResponse is returned by register and login; the token travels in the cookie only
type SessionResponse struct {
	Success bool         `json:"success"`
	Message string       `json:"message"`
	User    UserResponse `json:"user"`
}

// MeResponse is returned by the current-user endpoint
type MeResponse struct {
	Success bool         `json:"success"`
	User    UserResponse `json:"user"`
}

// MessageResponse is a bare acknowledgement
type MessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func toUserResponse(u *user.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		CreatedAt: u.CreatedAt,
	}
}

// Register handles user registration
// @Summary      Register a new user
// @Description  Create an account and start a session. The token is set as an HttpOnly cookie.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body RegisterRequest true "Registration details"
// @Success      201 {object} SessionResponse
// @Failure      400 {object} httputil.ErrorResponse "Invalid request or validation error"
// @Failure      409 {object} httputil.ErrorResponse "Email already exists"
// @Failure      429 {object} httputil.ErrorResponse "Too many requests"
// @Failure      500 {object} httputil.ErrorResponse "Internal server error"
// @Router       /api/auth/register [post]
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	if h.rateLimited(w, r, purposeRegister) {
		h.metrics.RecordAuth(purposeRegister, metrics.OutcomeRateLimited)
		return
	}

	var req RegisterRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		logger.Warn("invalid registration request body", "error", err.Error())
		h.metrics.RecordAuth(purposeRegister, metrics.OutcomeInvalid)
		respondError(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	session, err := h.service.Register(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		if IsValidationError(err) {
			logger.Warn("registration failed: validation error", "error", err.Error())
			h.metrics.RecordAuth(purposeRegister, metrics.OutcomeInvalid)
			respondError(w, err.Error(), validationCode(err), http.StatusBadRequest)
			return
		}
		if errors.Is(err, user.ErrDuplicateEmail) {
			logger.Warn("registration failed: email already exists")
			h.metrics.RecordAuth(purposeRegister, metrics.OutcomeConflict)
			respondError(w, "email already exists", httputil.CodeEmailAlreadyExists, http.StatusConflict)
			return
		}
		logger.Error("registration failed: internal error", "error", err.Error())
		h.metrics.RecordAuth(purposeRegister, metrics.OutcomeError)
		respondError(w, "failed to register user", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	logger.Info("user registered successfully", "user_id", session.User.ID)
	h.metrics.RecordAuth(purposeRegister, metrics.OutcomeSuccess)

	SetAuthCookie(w, session.Token, session.ExpiresAt, h.cookies)
	respondJSON(w, SessionResponse{
		Success: true,
		Message: "registration successful",
		User:    toUserResponse(session.User),
	}, http.StatusCreated)
}

// Login handles user login
// @Summary      User login
// @Description  Authenticate and start a session. The token is set as an HttpOnly cookie.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body LoginRequest true "Login credentials"
// @Success      200 {object} SessionResponse
// @Failure      400 {object} httputil.ErrorResponse "Invalid request body"
// @Failure      401 {object} httputil.ErrorResponse "Invalid credentials"
// @Failure      429 {object} httputil.ErrorResponse "Too many requests"
// @Failure      500 {object} httputil.ErrorResponse "Internal server error"
// @Router       /api/auth/login [post]
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	if h.rateLimited(w, r, purposeLogin) {
		h.metrics.RecordAuth(purposeLogin, metrics.OutcomeRateLimited)
		return
	}

	var req LoginRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		logger.Warn("invalid login request body", "error", err.Error())
		h.metrics.RecordAuth(purposeLogin, metrics.OutcomeInvalid)
		respondError(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	session, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			logger.Warn("login failed: invalid credentials")
			h.metrics.RecordAuth(purposeLogin, metrics.OutcomeUnauthorized)
			respondError(w, ErrInvalidCredentials.Error(), httputil.CodeInvalidCredentials, http.StatusUnauthorized)
			return
		}
		logger.Error("login failed: internal error", "error", err.Error())
		h.metrics.RecordAuth(purposeLogin, metrics.OutcomeError)
		respondError(w, "failed to login", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	logger.Info("user logged in successfully", "user_id", session.User.ID)
	h.metrics.RecordAuth(purposeLogin, metrics.OutcomeSuccess)

	SetAuthCookie(w, session.Token, session.ExpiresAt, h.cookies)
	respondJSON(w, SessionResponse{
		Success: true,
		Message: "login successful",
		User:    toUserResponse(session.User),
	}, http.StatusOK)
}

// Logout handles user logout
// @Summary      User logout
// @Description  Clear the session cookie. Tokens are stateless and are not revoked server-side.
// @Tags         auth
// @Produce      json
// @Success      200 {object} MessageResponse
// @Router       /api/auth/logout [post]
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	ClearAuthCookie(w, h.cookies)

	logger.Info("user logged out")

	respondJSON(w, MessageResponse{Success: true, Message: "logged out"}, http.StatusOK)
}

// Me returns the authenticated user
// @Summary      Current user
// @Description  Return the account the session token belongs to
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} MeResponse
// @Failure      401 {object} httputil.ErrorResponse "Missing, invalid or expired token"
// @Failure      404 {object} httputil.ErrorResponse "User no longer exists"
// @Router       /api/auth/me [get]
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		respondError(w, "missing authentication", httputil.CodeMissingAuth, http.StatusUnauthorized)
		return
	}

	u, err := h.service.CurrentUser(r.Context(), userID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			logger.Warn("current user not found", "user_id", userID)
			respondError(w, "user not found", httputil.CodeUserNotFound, http.StatusNotFound)
			return
		}
		logger.Error("failed to load current user", "user_id", userID, "error", err.Error())
		respondError(w, "failed to load user", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	respondJSON(w, MeResponse{Success: true, User: toUserResponse(u)}, http.StatusOK)
}

// rateLimited writes 429 and returns true when the client IP is over its limit.
// Limiter failures let the request through.
func (h *Handler) rateLimited(w http.ResponseWriter, r *http.Request, purpose string) bool {
	if h.rateLimiter == nil {
		return false
	}

	logger := logging.GetLoggerFromContext(r.Context())
	ip := httputil.ClientIP(r)

	allowed, err := h.rateLimiter.AllowIPRequestWithPurpose(r.Context(), ip, purpose)
	if err != nil {
		logger.Error("failed to check IP rate limit", "error", err.Error())
		return false
	}
	if !allowed {
		logger.Warn("IP rate limit exceeded", "ip", ip, "purpose", purpose)
		respondError(w, "too many requests, please try again later", httputil.CodeTooManyRequests, http.StatusTooManyRequests)
		return true
	}

	return false
}

func validationCode(err error) string {
	switch {
	case errors.Is(err, ErrNameRequired):
		return httputil.CodeNameRequired
	case errors.Is(err, ErrEmailRequired):
		return httputil.CodeEmailRequired
	case errors.Is(err, ErrInvalidEmailFormat):
		return httputil.CodeInvalidEmailFormat
	case errors.Is(err, ErrPasswordRequired):
		return httputil.CodePasswordRequired
	case errors.Is(err, ErrPasswordTooShort):
		return httputil.CodePasswordTooShort
	case errors.Is(err, ErrPasswordTooLong):
		return httputil.CodePasswordTooLong
	default:
		return httputil.CodeValidationFailed
	}
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, data any, statusCode int) {
	httputil.RespondJSON(w, data, statusCode)
}

// respondError sends an error response with a machine-readable code
func respondError(w http.ResponseWriter, message string, code string, statusCode int) {
	httputil.RespondErrorWithCode(w, message, code, statusCode)
}
