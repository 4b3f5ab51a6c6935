package main

import (
	"context"
	"database/sql"
	"flag"
	"os"
	"time"

	"github.com/vncsmyrnk/fintrack/internal/adapters/repository/postgres"
	"github.com/vncsmyrnk/fintrack/internal/config"
	"github.com/vncsmyrnk/fintrack/internal/core/services"
	"github.com/vncsmyrnk/fintrack/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.New(os.Stderr, "info", "text").Error(context.Background(), "invalid configuration", "error", err.Error())
		os.Exit(1)
	}

	var dsn string
	var timeout time.Duration
	flag.StringVar(&dsn, "database-url", cfg.DatabaseURL, "Postgres connection string")
	flag.DurationVar(&timeout, "timeout", 5*time.Minute, "Maximum duration of the job")
	flag.Parse()

	logger := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat).With("job", "cyclearchiver")

	// Use a timeout for the job execution to prevent it from hanging indefinitely
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		logger.Error(ctx, "failed to open database", "error", err.Error())
		os.Exit(1)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		logger.Error(ctx, "failed to connect to database", "error", err.Error())
		os.Exit(1)
	}

	cycleService := services.NewCycleService(postgres.NewWorkspaceRepository(db), postgres.NewCycleRepository(db), logger)

	logger.Info(ctx, "starting cycle archival")

	archived, err := cycleService.ArchiveAll(ctx)
	if err != nil {
		logger.Error(ctx, "cycle archival finished with errors", "archived", archived, "error", err.Error())
		os.Exit(1)
	}

	logger.Info(ctx, "cycle archival completed", "archived", archived)
}
