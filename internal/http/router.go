package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/redmonkez12/loan-advisor-api/internal/auth"
	"github.com/redmonkez12/loan-advisor-api/internal/config"
	"github.com/redmonkez12/loan-advisor-api/internal/contact"
	"github.com/redmonkez12/loan-advisor-api/internal/httputil"
	"github.com/redmonkez12/loan-advisor-api/internal/logging"
	"github.com/redmonkez12/loan-advisor-api/internal/metrics"
)

// Handlers groups everything the router mounts
type Handlers struct {
	Auth           *auth.Handler
	AuthMiddleware *auth.Middleware
	Contact        *contact.Handler
	Metrics        *metrics.Metrics // nil disables /metrics
}

// NewRouter creates and configures the HTTP router
func NewRouter(cfg *config.Config, h Handlers, logger *logging.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.NotFound(notFound)
	r.MethodNotAllowed(methodNotAllowed)

	// Origin allow-list, then CORS for the allowed ones
	r.Use(OriginGuard(cfg.Server.TrustedOrigins, logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.TrustedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	// Global middleware
	r.Use(SecurityHeaders)                   // Security headers on all responses
	r.Use(Recoverer(logger))                 // Recover from panics with a JSON 500
	r.Use(middleware.RequestID)              // Add request ID
	r.Use(RealIP(cfg.Server.TrustedProxies)) // Client IP from trusted proxies only
	r.Use(logging.RequestLogger(logger))     // Structured logging with request context
	r.Use(h.Metrics.Middleware)              // Request count and latency
	r.Use(middleware.Compress(5))            // Compress responses

	r.Get("/api/health", handleHealth)

	if h.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.Metrics.Handler())
	}

	// Swagger UI - only in development
	if cfg.Server.IsDevelopment() {
		logger.Info("Swagger UI enabled at /swagger/*")
		r.Get("/swagger/*", httpSwagger.WrapHandler)
	}

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/register", h.Auth.Register)
		r.Post("/login", h.Auth.Login)
		r.Post("/logout", h.Auth.Logout)

		r.With(h.AuthMiddleware.RequireAuth).Get("/me", h.Auth.Me)
	})

	r.Route("/api/contact", func(r chi.Router) {
		r.Post("/", h.Contact.Submit)

		// Administration (require an admin session)
		r.Group(func(r chi.Router) {
			r.Use(h.AuthMiddleware.RequireAuth)
			r.Use(h.AuthMiddleware.RequireAdmin)
			r.Get("/", h.Contact.List)
			r.Put("/{id}/status", h.Contact.UpdateStatus)
		})
	})

	return r
}

// HealthResponse reports liveness
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// handleHealth is a simple health check endpoint
// @Summary      Health check
// @Description  Check if the API is running
// @Tags         health
// @Produce      json
// @Success      200 {object} HealthResponse
// @Router       /api/health [get]
func handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.RespondJSON(w, HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
	}, http.StatusOK)
}
