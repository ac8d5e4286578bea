package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/saturnino-fabrica-de-software/facefind/internal/config"
	"github.com/saturnino-fabrica-de-software/facefind/internal/database"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Flags
	action := flag.String("action", "up", "Migration action: up, down, status, force")
	steps := flag.Int("steps", 1, "Migrations to roll back (down)")
	version := flag.Int("version", 0, "Version to record (force)")
	verbose := flag.Bool("verbose", false, "Log every migration step")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if !cfg.DatabaseEnabled() {
		return fmt.Errorf("DATABASE_URL is not set")
	}

	logger := config.NewLogger(cfg.Environment, cfg.LogLevel)

	// golang-migrate needs database/sql
	db, err := database.NewPool(database.DefaultPoolConfig(cfg.DatabaseURL))
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() { _ = db.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := database.HealthCheck(ctx, db); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}

	logger.Info("connected to database")

	migrator, err := database.NewMigrator(db, "facefind")
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	defer func() { _ = migrator.Close() }()
	migrator.SetLogger(logger, *verbose)

	// Execute action
	switch *action {
	case "up":
		logger.Info("running migrations")
		if err := migrator.Up(); err != nil {
			return fmt.Errorf("migration up failed: %w", err)
		}
		logger.Info("migrations completed")

	case "down":
		logger.Info("rolling back migrations", slog.Int("steps", *steps))
		if err := migrator.Down(*steps); err != nil {
			return fmt.Errorf("migration down failed: %w", err)
		}
		logger.Info("migrations rolled back")

	case "status", "version":
		status, err := migrator.Status()
		if err != nil {
			return fmt.Errorf("failed to read schema status: %w", err)
		}
		logger.Info("schema status",
			slog.Uint64("current", uint64(status.Current)),
			slog.Uint64("latest", uint64(status.Latest)),
			slog.Bool("dirty", status.Dirty),
			slog.Bool("pending", status.Pending()),
		)

	case "force":
		if *version <= 0 {
			return fmt.Errorf("version flag is required for force action")
		}
		logger.Info("forcing migration version", slog.Int("version", *version))
		if err := migrator.Force(*version); err != nil {
			return fmt.Errorf("force migration failed: %w", err)
		}
		logger.Info("migration version forced")

	default:
		return fmt.Errorf("invalid action: %s (use: up, down, status, force)", *action)
	}

	return nil
}
