package contact

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/redmonkez12/loan-advisor-api/internal/httputil"
	"github.com/redmonkez12/loan-advisor-api/internal/logging"
	"github.com/redmonkez12/loan-advisor-api/internal/metrics"
)

const purposeContact = "contact"

// RateLimiter counts requests per client IP and purpose
type RateLimiter interface {
	AllowIPRequestWithPurpose(ctx context.Context, ip, purpose string) (bool, error)
}

// Handler contains HTTP handlers for the contact endpoints
type Handler struct {
	service     *Service
	rateLimiter RateLimiter
	metrics     *metrics.Metrics
}

func NewHandler(service *Service, rateLimiter RateLimiter, m *metrics.Metrics) *Handler {
	return &Handler{
		service:     service,
		rateLimiter: rateLimiter,
		metrics:     m,
	}
}

// SubmitRequest represents the contact form body
type SubmitRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Message string `json:"message"`
}

// UpdateStatusRequest represents the status change body
type UpdateStatusRequest struct {
	Status string `json:"status"`
}

// MessageResponse wraps a single message
type MessageResponse struct {
	Success bool     `json:"success"`
	Message string   `json:"message"`
	Data    *Message `json:"data"`
}

// ListResponse wraps a page of messages
type ListResponse struct {
	Success bool      `json:"success"`
	Count   int       `json:"count"`
	Data    []Message `json:"data"`
}

// Submit handles a contact form submission
// @Summary      Submit a contact message
// @Tags         contact
// @Accept       json
// @Produce      json
// @Param        request body SubmitRequest true "Contact form"
// @Success      201 {object} MessageResponse
// @Failure      400 {object} httputil.ErrorResponse "Missing fields"
// @Failure      429 {object} httputil.ErrorResponse "Too many requests"
// @Failure      500 {object} httputil.ErrorResponse "Internal server error"
// @Router       /api/contact [post]
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	if h.rateLimited(w, r) {
		h.metrics.RecordContact(metrics.OutcomeRateLimited)
		return
	}

	var req SubmitRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		logger.Warn("invalid contact request body", "error", err.Error())
		h.metrics.RecordContact(metrics.OutcomeInvalid)
		httputil.RespondErrorWithCode(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	m, err := h.service.Submit(r.Context(), req.Name, req.Email, req.Message)
	if err != nil {
		if errors.Is(err, ErrValidation) {
			logger.Warn("contact submission rejected", "error", err.Error())
			h.metrics.RecordContact(metrics.OutcomeInvalid)
			httputil.RespondErrorWithCode(w, "please provide name, email and message", httputil.CodeValidationFailed, http.StatusBadRequest)
			return
		}
		logger.Error("contact submission failed", "error", err.Error())
		h.metrics.RecordContact(metrics.OutcomeError)
		httputil.RespondErrorWithCode(w, "failed to send message", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	logger.Info("contact message received", "message_id", m.ID)
	h.metrics.RecordContact(metrics.OutcomeSuccess)

	httputil.RespondJSON(w, MessageResponse{
		Success: true,
		Message: "message sent successfully",
		Data:    m,
	}, http.StatusCreated)
}

// List returns contact messages newest first
// @Summary      List contact messages
// @Tags         contact
// @Produce      json
// @Security     BearerAuth
// @Param        status query string false "Filter by status" Enums(new, read, replied)
// @Param        limit  query int    false "Page size (default 100, max 500)"
// @Param        offset query int    false "Number of messages to skip"
// @Success      200 {object} ListResponse
// @Failure      400 {object} httputil.ErrorResponse "Invalid query"
// @Failure      401 {object} httputil.ErrorResponse "Not authenticated"
// @Failure      403 {object} httputil.ErrorResponse "Not an admin"
// @Failure      500 {object} httputil.ErrorResponse "Internal server error"
// @Router       /api/contact [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	q := r.URL.Query()
	opts := ListOptions{Status: Status(q.Get("status"))}

	var err error
	if opts.Limit, err = queryInt(q.Get("limit")); err != nil {
		httputil.RespondErrorWithCode(w, "limit must be a non-negative integer", httputil.CodeValidationFailed, http.StatusBadRequest)
		return
	}
	if opts.Offset, err = queryInt(q.Get("offset")); err != nil {
		httputil.RespondErrorWithCode(w, "offset must be a non-negative integer", httputil.CodeValidationFailed, http.StatusBadRequest)
		return
	}

	messages, err := h.service.List(r.Context(), opts)
	if err != nil {
		if errors.Is(err, ErrInvalidStatus) {
			httputil.RespondErrorWithCode(w, "status must be one of new, read, replied", httputil.CodeInvalidStatus, http.StatusBadRequest)
			return
		}
		logger.Error("failed to list contact messages", "error", err.Error())
		httputil.RespondErrorWithCode(w, "failed to list messages", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	httputil.RespondJSON(w, ListResponse{
		Success: true,
		Count:   len(messages),
		Data:    messages,
	}, http.StatusOK)
}

// UpdateStatus changes the status of a message
// @Summary      Update contact message status
// @Tags         contact
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id      path string              true "Message ID"
// @Param        request body UpdateStatusRequest true "New status"
// @Success      200 {object} MessageResponse
// @Failure      400 {object} httputil.ErrorResponse "Invalid status"
// @Failure      401 {object} httputil.ErrorResponse "Not authenticated"
// @Failure      403 {object} httputil.ErrorResponse "Not an admin"
// @Failure      404 {object} httputil.ErrorResponse "Message not found"
// @Failure      500 {object} httputil.ErrorResponse "Internal server error"
// @Router       /api/contact/{id}/status [put]
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())
	id := chi.URLParam(r, "id")

	var req UpdateStatusRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		logger.Warn("invalid status request body", "error", err.Error())
		httputil.RespondErrorWithCode(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	m, err := h.service.UpdateStatus(r.Context(), id, Status(req.Status))
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidStatus):
			httputil.RespondErrorWithCode(w, "status must be one of new, read, replied", httputil.CodeInvalidStatus, http.StatusBadRequest)
		case errors.Is(err, ErrNotFound):
			httputil.RespondErrorWithCode(w, "message not found", httputil.CodeMessageNotFound, http.StatusNotFound)
		default:
			logger.Error("failed to update contact message status", "message_id", id, "error", err.Error())
			httputil.RespondErrorWithCode(w, "failed to update message", httputil.CodeInternalError, http.StatusInternalServerError)
		}
		return
	}

	logger.Info("contact message status updated", "message_id", m.ID, "status", m.Status)

	httputil.RespondJSON(w, MessageResponse{
		Success: true,
		Message: "status updated",
		Data:    m,
	}, http.StatusOK)
}

func (h *Handler) rateLimited(w http.ResponseWriter, r *http.Request) bool {
	if h.rateLimiter == nil {
		return false
	}

	logger := logging.GetLoggerFromContext(r.Context())
	ip := httputil.ClientIP(r)

	allowed, err := h.rateLimiter.AllowIPRequestWithPurpose(r.Context(), ip, purposeContact)
	if err != nil {
		logger.Error("failed to check IP rate limit", "error", err.Error())
		return false
	}
	if !allowed {
		logger.Warn("IP rate limit exceeded", "ip", ip, "purpose", purposeContact)
		httputil.RespondErrorWithCode(w, "too many requests, please try again later", httputil.CodeTooManyRequests, http.StatusTooManyRequests)
		return true
	}
	return false
}

func queryInt(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, strconv.ErrRange
	}
	return n, nil
}
