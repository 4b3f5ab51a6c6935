// Package config loads service settings from the environment and an optional .env file.
package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	EnvProduction  = "production"
	EnvDevelopment = "development"
	EnvTest        = "test"

	DefaultJWTSecret          = "dev-secret-change-me"
	DefaultEmailHMACKey       = "dev-hmac-key-change-me-in-production"
	DefaultEmailEncryptionKey = "0000000000000000000000000000000000000000000000000000000000000000"
)

type Config struct {
	Env  string
	Port string
	Addr string

	DatabaseURL    string
	RedisURL       string
	MigrateOnStart bool

	JWTSecret   string
	TokenExpiry time.Duration
	SaltRounds  int

	CookieName     string
	CSRFCookieName string

	EmailHMACKey       string
	EmailEncryptionKey string
	ResetTokenExpiry   time.Duration

	AppName    string
	AppBaseURL string

	Email EmailConfig

	CORSAllowedOrigins []string
	RateLimitDisabled  bool

	// TrustProxyHeaders takes the client address from X-Forwarded-For and
	// friends. Only enable it behind a proxy that overwrites those headers.
	TrustProxyHeaders bool

	LogLevel  string
	LogFormat string
}

type EmailConfig struct {
	From         string
	ResendAPIKey string
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPass     string
}

// Load reads .env (when present) and the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}
	return FromEnv()
}

// FromEnv builds the configuration from environment variables only.
func FromEnv() (*Config, error) {
	env := getenv("APP_ENV", EnvDevelopment)

	cfg := &Config{
		Env:                env,
		Port:               getenv("PORT", "8080"),
		DatabaseURL:        getenv("DATABASE_URL", composeDatabaseURL()),
		RedisURL:           getenv("REDIS_URL", ""),
		MigrateOnStart:     getenvBool("MIGRATE_ON_START", false),
		JWTSecret:          getenv("JWT_SECRET", DefaultJWTSecret),
		TokenExpiry:        getenvDuration("TOKEN_EXPIRY", 24*time.Hour),
		SaltRounds:         getenvInt("SALT_ROUNDS", 10),
		CookieName:         getenv("COOKIE_NAME", "session"),
		CSRFCookieName:     getenv("CSRF_COOKIE_NAME", "csrf_token"),
		EmailHMACKey:       getenv("EMAIL_HMAC_KEY", DefaultEmailHMACKey),
		EmailEncryptionKey: getenv("EMAIL_ENCRYPTION_KEY", DefaultEmailEncryptionKey),
		ResetTokenExpiry:   time.Duration(getenvInt("RESET_TOKEN_EXPIRY_MS", 3600000)) * time.Millisecond,
		AppName:            getenv("APP_NAME", "Finance Tracker"),
		AppBaseURL:         strings.TrimRight(getenv("APP_BASE_URL", "http://localhost:5173"), "/"),
		Email: EmailConfig{
			From:         getenv("EMAIL_FROM", "noreply@localhost"),
			ResendAPIKey: getenv("RESEND_API_KEY", ""),
			SMTPHost:     getenv("SMTP_HOST", ""),
			SMTPPort:     getenvInt("SMTP_PORT", 587),
			SMTPUser:     getenv("SMTP_USER", ""),
			SMTPPass:     getenv("SMTP_PASS", ""),
		},
		CORSAllowedOrigins: splitList(getenv("CORS_ALLOWED_ORIGINS", "http://localhost:5173")),
		RateLimitDisabled:  getenvBool("RATE_LIMIT_DISABLED", env == EnvTest),
		TrustProxyHeaders:  getenvBool("TRUST_PROXY_HEADERS", false),
		LogLevel:           getenv("LOG_LEVEL", "info"),
		LogFormat:          getenv("LOG_FORMAT", defaultLogFormat(env)),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.Env == EnvProduction
}

// Validate rejects malformed keys and development defaults in production.
func (c *Config) Validate() error {
	var errs []error

	key, err := hex.DecodeString(c.EmailEncryptionKey)
	if err != nil || len(key) != 32 {
		errs = append(errs, errors.New("EMAIL_ENCRYPTION_KEY must be 64 hex characters"))
	}
	if c.TokenExpiry <= 0 {
		errs = append(errs, errors.New("TOKEN_EXPIRY must be positive"))
	}
	if c.ResetTokenExpiry <= 0 {
		errs = append(errs, errors.New("RESET_TOKEN_EXPIRY_MS must be positive"))
	}
	if c.SaltRounds < 4 || c.SaltRounds > 31 {
		errs = append(errs, errors.New("SALT_ROUNDS must be between 4 and 31"))
	}

	if c.IsProduction() {
		if c.JWTSecret == DefaultJWTSecret {
			errs = append(errs, errors.New("JWT_SECRET must be set in production"))
		}
		if c.EmailHMACKey == DefaultEmailHMACKey {
			errs = append(errs, errors.New("EMAIL_HMAC_KEY must be set in production"))
		}
		if c.EmailEncryptionKey == DefaultEmailEncryptionKey {
			errs = append(errs, errors.New("EMAIL_ENCRYPTION_KEY must be set in production"))
		}
		if c.RateLimitDisabled {
			errs = append(errs, errors.New("RATE_LIMIT_DISABLED is not allowed in production"))
		}
	}

	return errors.Join(errs...)
}

func composeDatabaseURL() string {
	host := os.Getenv("POSTGRES_HOST")
	if host == "" {
		return ""
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		os.Getenv("POSTGRES_USER"),
		os.Getenv("POSTGRES_PASSWORD"),
		host,
		getenv("POSTGRES_PORT", "5432"),
		os.Getenv("POSTGRES_DB"),
	)
}

func defaultLogFormat(env string) string {
	if env == EnvProduction {
		return "json"
	}
	return "text"
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getenvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
