package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	stdhttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vncsmyrnk/fintrack/internal/adapters/email"
	"github.com/vncsmyrnk/fintrack/internal/adapters/encryption"
	"github.com/vncsmyrnk/fintrack/internal/adapters/handler/http"
	"github.com/vncsmyrnk/fintrack/internal/adapters/ratelimit"
	"github.com/vncsmyrnk/fintrack/internal/adapters/repository/postgres"
	"github.com/vncsmyrnk/fintrack/internal/config"
	"github.com/vncsmyrnk/fintrack/internal/core/services"
	"github.com/vncsmyrnk/fintrack/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	flag.StringVar(&cfg.Addr, "addr", "0.0.0.0:"+cfg.Port, "HTTP listen address")
	flag.StringVar(&cfg.DatabaseURL, "database-url", cfg.DatabaseURL, "Postgres connection string")
	flag.Parse()

	logger := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error(ctx, "server stopped", "error", err.Error())
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *logging.SlogLogger) error {
	if cfg.DatabaseURL == "" {
		return errors.New("DATABASE_URL or POSTGRES_HOST must be set")
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	if cfg.MigrateOnStart {
		if err := postgres.RunMigrations(ctx, db); err != nil {
			return err
		}
		logger.Info(ctx, "migrations applied")
	}

	cipher, err := encryption.NewEmailCipher(cfg.EmailEncryptionKey, cfg.EmailHMACKey)
	if err != nil {
		return err
	}

	mailer, err := email.NewMailer(cfg.Email, cfg.AppName)
	if err != nil {
		if cfg.IsProduction() {
			return err
		}
		logger.Warn(ctx, "password reset emails are disabled", "reason", err.Error())
		mailer = email.Disabled()
	}

	limiter, closeLimiter, err := newLimiter(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeLimiter()

	// Initialize Repositories
	userRepo := postgres.NewUserRepository(db)
	resetTokenRepo := postgres.NewResetTokenRepository(db)
	workspaceRepo := postgres.NewWorkspaceRepository(db)
	itemRepo := postgres.NewItemRepository(db)
	cycleRepo := postgres.NewCycleRepository(db)

	// Initialize Services
	tokens := services.NewJWTTokenManager(cfg.JWTSecret, cfg.TokenExpiry)
	authService, err := services.NewAuthService(userRepo, resetTokenRepo, tokens, cipher, mailer, logger, services.AuthConfig{
		SaltRounds:       cfg.SaltRounds,
		ResetTokenExpiry: cfg.ResetTokenExpiry,
		AppBaseURL:       cfg.AppBaseURL,
	})
	if err != nil {
		return err
	}
	cycleService := services.NewCycleService(workspaceRepo, cycleRepo, logger)

	handler := http.NewHandler(
		http.RouterConfig{
			Session: http.SessionCookie{
				Name:   cfg.CookieName,
				Secure: cfg.IsProduction(),
				MaxAge: cfg.TokenExpiry,
			},
			CSRFCookieName:    cfg.CSRFCookieName,
			AllowedOrigins:    cfg.CORSAllowedOrigins,
			TrustProxyHeaders: cfg.TrustProxyHeaders,
		},
		http.Services{
			Auth:       authService,
			Users:      services.NewUserService(userRepo, cipher),
			Workspaces: services.NewWorkspaceService(workspaceRepo, itemRepo, cycleRepo, userRepo, cycleService),
			Items:      services.NewItemService(workspaceRepo, itemRepo),
		},
		limiter,
		logger,
	)

	server := &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          slog.NewLogLogger(logger.Slog().Handler(), slog.LevelError),
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info(ctx, "server listening", "addr", server.Addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
	}

	logger.Info(context.Background(), "gracefully shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return server.Shutdown(shutdownCtx)
}

// newLimiter prefers Redis so limits hold across instances. The pass-through
// limiter is only reachable outside production, which config validation enforces.
func newLimiter(ctx context.Context, cfg *config.Config, logger logging.Logger) (ratelimit.Limiter, func(), error) {
	if cfg.RateLimitDisabled {
		logger.Warn(ctx, "rate limiting disabled")
		return ratelimit.NewNoop(), func() {}, nil
	}

	if cfg.RedisURL != "" {
		rdb, err := ratelimit.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		return ratelimit.NewRedisLimiter(rdb), func() { _ = rdb.Close() }, nil
	}

	limiter := ratelimit.NewMemoryLimiter()
	cleanupCtx, cancel := context.WithCancel(ctx)
	go limiter.Run(cleanupCtx, time.Hour)
	return limiter, cancel, nil
}
