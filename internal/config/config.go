package config

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Database drivers
const (
	DriverMongo    = "mongodb"
	DriverPostgres = "postgres"
)

// Token formats
const (
	TokenFormatJWT    = "jwt"
	TokenFormatPaseto = "paseto"
)

// Password hashing algorithms
const (
	HasherBcrypt   = "bcrypt"
	HasherArgon2id = "argon2id"
)

// minSecretLen is the minimum signing secret length in bytes
const minSecretLen = 32

// bcrypt work factor bounds
const (
	minBcryptCost = 4
	maxBcryptCost = 31
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Email     EmailConfig
	Metrics   MetricsConfig
}

type ServerConfig struct {
	Port            string
	Env             string // dev or prod
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	TrustedOrigins  []string // CORS allowed origins for cookie auth

	// TrustedProxies are the peers whose X-Forwarded-For is believed.
	// Empty means forwarded headers are ignored.
	TrustedProxies []netip.Prefix
}

type DatabaseConfig struct {
	Driver   string
	Mongo    MongoConfig
	Postgres PostgresConfig
}

type MongoConfig struct {
	URI      string
	Database string
}

type PostgresConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type AuthConfig struct {
	Secret       []byte
	TokenFormat  string
	TokenTTL     time.Duration
	CookieDomain string
	Hasher       HasherConfig
	AdminEmails  []string
}

type HasherConfig struct {
	Algorithm      string
	BcryptCost     int
	Argon2Time     uint32
	Argon2MemoryKB uint32
	Argon2Threads  uint8
}

type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

type EmailConfig struct {
	SMTPHost       string
	SMTPPort       string
	SMTPUser       string
	SMTPPassword   string
	SendGridAPIKey string
	From           string
	ContactNotify  string // recipient of new contact message notifications
}

type MetricsConfig struct {
	Enabled bool
}

// Load reads configuration from environment variables.
// A .env file in the working directory is loaded first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	env := &envReader{}

	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnv("PORT", getEnv("SERVER_PORT", "5000")),
			Env:             getEnv("APP_ENV", "dev"),
			ReadTimeout:     env.duration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    env.duration("SERVER_WRITE_TIMEOUT", 10*time.Second),
			ShutdownTimeout: env.duration("SERVER_SHUTDOWN_TIMEOUT", 15*time.Second),
			TrustedOrigins:  getSliceEnv("TRUSTED_ORIGINS", getSliceEnv("CLIENT_URLS", []string{"http://localhost:3000"})),
			TrustedProxies:  env.prefixes("TRUSTED_PROXIES"),
		},
		Database: DatabaseConfig{
			Driver: strings.ToLower(getEnv("DATABASE_DRIVER", DriverMongo)),
			Mongo: MongoConfig{
				URI:      getEnv("MONGODB_URI", "mongodb://localhost:27017"),
				Database: getEnv("MONGODB_DATABASE", "loanadvisor"),
			},
			Postgres: PostgresConfig{
				Host:     getEnv("DB_HOST", "localhost"),
				Port:     getEnv("DB_PORT", "5432"),
				User:     getEnv("DB_USER", "postgres"),
				Password: getEnv("DB_PASSWORD", "postgres"),
				DBName:   getEnv("DB_NAME", "loanadvisor"),
				SSLMode:  getEnv("DB_SSLMODE", "disable"),
			},
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", ""),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       env.intValue("REDIS_DB", 0),
		},
		Auth: AuthConfig{
			Secret:       []byte(getEnv("JWT_SECRET", "")),
			TokenFormat:  strings.ToLower(getEnv("TOKEN_FORMAT", TokenFormatJWT)),
			TokenTTL:     env.duration("TOKEN_TTL", 7*24*time.Hour),
			CookieDomain: getEnv("COOKIE_DOMAIN", ""),
			Hasher: HasherConfig{
				Algorithm:      strings.ToLower(getEnv("PASSWORD_HASHER", HasherBcrypt)),
				BcryptCost:     env.intValue("BCRYPT_COST", 12),
				Argon2Time:     env.uint32Value("ARGON2_TIME", 3),
				Argon2MemoryKB: env.uint32Value("ARGON2_MEMORY_KB", 64*1024),
				Argon2Threads:  env.uint8Value("ARGON2_THREADS", 4),
			},
			AdminEmails: lowerAll(getSliceEnv("ADMIN_EMAILS", nil)),
		},
		RateLimit: RateLimitConfig{
			Requests: env.intValue("RATE_LIMIT_REQUESTS", 10),
			Window:   env.duration("RATE_LIMIT_WINDOW", 15*time.Minute),
		},
		Email: EmailConfig{
			SMTPHost:       getEnv("SMTP_HOST", ""),
			SMTPPort:       getEnv("SMTP_PORT", "587"),
			SMTPUser:       getEnv("SMTP_USER", ""),
			SMTPPassword:   getEnv("SMTP_PASS", ""),
			SendGridAPIKey: getEnv("SENDGRID_API_KEY", ""),
			From:           getEnv("EMAIL_FROM", getEnv("SMTP_USER", "")),
			ContactNotify:  getEnv("CONTACT_NOTIFY_EMAIL", ""),
		},
		Metrics: MetricsConfig{
			Enabled: env.boolValue("METRICS_ENABLED", true),
		},
	}

	// malformed values are reported, never replaced by defaults
	if err := errors.Join(env.errs...); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks values that would otherwise fail late at request time
func (c *Config) Validate() error {
	var errs []error

	if len(c.Auth.Secret) < minSecretLen {
		errs = append(errs, fmt.Errorf("JWT_SECRET must be at least %d bytes, got %d", minSecretLen, len(c.Auth.Secret)))
	}
	if c.Auth.TokenTTL <= 0 {
		errs = append(errs, errors.New("TOKEN_TTL must be positive"))
	}

	h := c.Auth.Hasher
	if h.BcryptCost < minBcryptCost || h.BcryptCost > maxBcryptCost {
		errs = append(errs, fmt.Errorf("BCRYPT_COST must be between %d and %d, got %d", minBcryptCost, maxBcryptCost, h.BcryptCost))
	}
	if h.Argon2Time < 1 {
		errs = append(errs, errors.New("ARGON2_TIME must be at least 1"))
	}
	if h.Argon2Threads < 1 {
		errs = append(errs, errors.New("ARGON2_THREADS must be at least 1"))
	}
	// argon2 needs at least 8 KiB per lane
	if h.Argon2MemoryKB < 8*uint32(h.Argon2Threads) {
		errs = append(errs, fmt.Errorf("ARGON2_MEMORY_KB must be at least %d for %d threads", 8*uint32(h.Argon2Threads), h.Argon2Threads))
	}

	if c.RateLimit.Requests < 0 {
		errs = append(errs, errors.New("RATE_LIMIT_REQUESTS must not be negative"))
	}
	if c.RateLimit.Window < 0 {
		errs = append(errs, errors.New("RATE_LIMIT_WINDOW must not be negative"))
	}

	switch c.Auth.TokenFormat {
	case TokenFormatJWT, TokenFormatPaseto:
	default:
		errs = append(errs, fmt.Errorf("unsupported TOKEN_FORMAT %q", c.Auth.TokenFormat))
	}

	switch c.Auth.Hasher.Algorithm {
	case HasherBcrypt, HasherArgon2id:
	default:
		errs = append(errs, fmt.Errorf("unsupported PASSWORD_HASHER %q", c.Auth.Hasher.Algorithm))
	}

	switch c.Database.Driver {
	case DriverMongo, DriverPostgres:
	default:
		errs = append(errs, fmt.Errorf("unsupported DATABASE_DRIVER %q", c.Database.Driver))
	}

	if len(c.Server.TrustedOrigins) == 0 {
		errs = append(errs, errors.New("TRUSTED_ORIGINS must list at least one origin"))
	}
	for _, origin := range c.Server.TrustedOrigins {
		if origin == "*" {
			errs = append(errs, errors.New("TRUSTED_ORIGINS must not contain a wildcard when cookies carry credentials"))
		}
	}

	return errors.Join(errs...)
}

func (c *PostgresConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// Address returns Redis connection address (host:port)
func (c *RedisConfig) Address() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// Enabled reports whether a Redis host is configured
func (c *RedisConfig) Enabled() bool {
	return c.Host != ""
}

// IsDevelopment returns true if the environment is set to dev
func (c *ServerConfig) IsDevelopment() bool {
	return c.Env == "dev"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// envReader parses typed environment values and remembers every malformed one
type envReader struct {
	errs []error
}

func (e *envReader) fail(key, value string, err error) {
	e.errs = append(e.errs, fmt.Errorf("invalid %s %q: %w", key, value, err))
}

func (e *envReader) intValue(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	intValue, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		e.fail(key, value, err)
		return defaultValue
	}

	return intValue
}

func (e *envReader) uint32Value(key string, defaultValue uint32) uint32 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	n, err := strconv.ParseUint(strings.TrimSpace(value), 10, 32)
	if err != nil {
		e.fail(key, value, err)
		return defaultValue
	}

	return uint32(n)
}

func (e *envReader) uint8Value(key string, defaultValue uint8) uint8 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	n, err := strconv.ParseUint(strings.TrimSpace(value), 10, 8)
	if err != nil {
		e.fail(key, value, err)
		return defaultValue
	}

	return uint8(n)
}

func (e *envReader) boolValue(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	b, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		e.fail(key, value, err)
		return defaultValue
	}

	return b
}

// prefixes parses a comma-separated list of CIDRs or bare IPs
func (e *envReader) prefixes(key string) []netip.Prefix {
	var out []netip.Prefix
	for _, item := range getSliceEnv(key, nil) {
		if strings.Contains(item, "/") {
			prefix, err := netip.ParsePrefix(item)
			if err != nil {
				e.fail(key, item, err)
				continue
			}
			out = append(out, prefix.Masked())
			continue
		}

		addr, err := netip.ParseAddr(item)
		if err != nil {
			e.fail(key, item, err)
			continue
		}
		addr = addr.Unmap()
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out
}

// duration accepts plain seconds ("900"), Go durations ("15m") and days ("7d")
func (e *envReader) duration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	d, err := ParseDuration(value)
	if err != nil {
		e.fail(key, value, err)
		return defaultValue
	}

	return d
}

// ParseDuration parses plain seconds, Go duration strings and a "<n>d" day suffix
func ParseDuration(value string) (time.Duration, error) {
	value = strings.TrimSpace(value)

	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second, nil
	}

	if days, ok := strings.CutSuffix(value, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil {
			return 0, fmt.Errorf("invalid day duration %q: %w", value, err)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}

	return time.ParseDuration(value)
}

func getSliceEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, strings.TrimSuffix(trimmed, "/"))
		}
	}

	if len(result) == 0 {
		return defaultValue
	}

	return result
}

func lowerAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, strings.ToLower(v))
	}
	return out
}
