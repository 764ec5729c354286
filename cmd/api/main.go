package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	_ "github.com/redmonkez12/loan-advisor-api/docs" // Swagger docs
	"github.com/redmonkez12/loan-advisor-api/internal/app"
	"github.com/redmonkez12/loan-advisor-api/internal/auth"
	"github.com/redmonkez12/loan-advisor-api/internal/config"
	"github.com/redmonkez12/loan-advisor-api/internal/contact"
	"github.com/redmonkez12/loan-advisor-api/internal/email"
	httpServer "github.com/redmonkez12/loan-advisor-api/internal/http"
	"github.com/redmonkez12/loan-advisor-api/internal/logging"
	"github.com/redmonkez12/loan-advisor-api/internal/metrics"
	"github.com/redmonkez12/loan-advisor-api/internal/ratelimit"
)

// @title           Loan Advisor API
// @version         1.0
// @description     Backend for the loan advisory site: accounts, sessions and contact form intake.

// @contact.name   API Support
// @contact.email  support@example.com

// @license.name  MIT
// @license.url   https://opensource.org/licenses/MIT

// @host      localhost:8080
// @BasePath  /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the session token. Browsers use the token cookie instead.

const startupTimeout = 15 * time.Second

func main() {
	if err := run(); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize logger
	logger := logging.NewLogger(cfg.Server.IsDevelopment())
	logger.Info("starting application",
		"env", cfg.Server.Env,
		"port", cfg.Server.Port,
		"db_driver", cfg.Database.Driver,
		"token_format", cfg.Auth.TokenFormat,
	)

	startCtx, cancelStart := context.WithTimeout(context.Background(), startupTimeout)
	defer cancelStart()

	// Initialize database connection
	stores, err := app.OpenStores(startCtx, cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := stores.Close(closeCtx); err != nil {
			logger.Error("failed to close database", "error", err.Error())
		}
	}()

	if err := stores.InitSchema(startCtx); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	// Initialize Redis connection; without it rate limiting is off
	redisClient, err := initRedis(startCtx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("failed to initialize Redis: %w", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
	} else {
		logger.Warn("REDIS_HOST not set, rate limiting disabled")
	}
	rateLimiter := ratelimit.NewLimiter(redisClient, cfg.RateLimit.Requests, cfg.RateLimit.Window)

	// Initialize token and password services
	tokenService, err := auth.NewTokenService(cfg.Auth)
	if err != nil {
		return fmt.Errorf("failed to initialize token service: %w", err)
	}
	hasher, err := auth.NewPasswordHasher(cfg.Auth.Hasher)
	if err != nil {
		return fmt.Errorf("failed to initialize password hasher: %w", err)
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	// Initialize email notifications
	var notifier contact.Notifier
	if emailService := email.NewServiceFromConfig(cfg.Email, logger); emailService != nil {
		notifier = emailService
	} else {
		logger.Warn("email not configured, contact notifications disabled")
	}

	// Initialize services
	authService := auth.NewService(stores.Users, hasher, tokenService, logger)
	contactService := contact.NewService(stores.Contacts, notifier, logger)

	// Initialize HTTP handlers
	handlers := httpServer.Handlers{
		Auth: auth.NewHandler(authService, rateLimiter, m, auth.CookieSettings{
			Domain: cfg.Auth.CookieDomain,
			TTL:    cfg.Auth.TokenTTL,
		}),
		AuthMiddleware: auth.NewMiddleware(tokenService, stores.Users, cfg.Auth.AdminEmails),
		Contact:        contact.NewHandler(contactService, rateLimiter, m),
		Metrics:        m,
	}

	// Initialize router
	router := httpServer.NewRouter(cfg, handlers, logger)

	// Initialize HTTP server
	serverAddr := ":" + cfg.Server.Port
	server := httpServer.NewServer(
		serverAddr,
		router,
		cfg.Server.ReadTimeout,
		cfg.Server.WriteTimeout,
		logger,
	)

	// Start server in a goroutine
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- server.Start()
	}()

	// Wait for interrupt signal or server error
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdown:
		logger.Info("received signal", "signal", sig.String())

		// Graceful shutdown with timeout
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}

		// let in-flight notification emails finish
		contactService.Wait()
	}

	return nil
}

// initRedis connects to Redis when a host is configured. It returns a nil client otherwise.
func initRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	if !cfg.Enabled() {
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := ratelimit.Ping(ctx, client); err != nil {
		_ = client.Close()
		return nil, err
	}

	return client, nil
}
