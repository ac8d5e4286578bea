package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/saturnino-fabrica-de-software/facefind/internal/api"
	"github.com/saturnino-fabrica-de-software/facefind/internal/archive"
	"github.com/saturnino-fabrica-de-software/facefind/internal/config"
	"github.com/saturnino-fabrica-de-software/facefind/internal/database"
	"github.com/saturnino-fabrica-de-software/facefind/internal/domain"
	"github.com/saturnino-fabrica-de-software/facefind/internal/face"
	"github.com/saturnino-fabrica-de-software/facefind/internal/imageio"
	"github.com/saturnino-fabrica-de-software/facefind/internal/matcher"
	"github.com/saturnino-fabrica-de-software/facefind/internal/notify"
	"github.com/saturnino-fabrica-de-software/facefind/internal/repository"
	"github.com/saturnino-fabrica-de-software/facefind/internal/service"
	"github.com/saturnino-fabrica-de-software/facefind/internal/source"
	"github.com/saturnino-fabrica-de-software/facefind/internal/source/googledrive"
	"github.com/saturnino-fabrica-de-software/facefind/internal/source/s3bucket"
	"github.com/saturnino-fabrica-de-software/facefind/internal/store"
	"github.com/saturnino-fabrica-de-software/facefind/internal/ws"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize logger
	logger := config.NewLogger(cfg.Environment, cfg.LogLevel)
	slog.SetDefault(logger)

	logger.Info("starting Facefind API",
		slog.String("environment", cfg.Environment),
		slog.Int("port", cfg.Port),
		slog.String("face_provider", cfg.FaceProvider),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Face recognition
	faceProvider, err := face.NewFaceProvider(cfg)
	if err != nil {
		return fmt.Errorf("failed to create face provider: %w", err)
	}
	if c, ok := faceProvider.(io.Closer); ok {
		defer func() { _ = c.Close() }()
	}

	m := matcher.New(faceProvider,
		matcher.WithThreshold(cfg.MatchThreshold),
		matcher.WithLoader(imageio.Loader{MaxDimension: cfg.MaxDimension}),
		matcher.WithLogger(logger),
	)

	// Result store
	results, err := store.New(filepath.Join(cfg.WorkDir, "results"), cfg.ResultTTL, logger)
	if err != nil {
		return fmt.Errorf("failed to create result store: %w", err)
	}
	defer results.Close()

	hub := ws.NewHub()

	sessions := service.NewSessionService(service.SessionConfig{
		WorkDir: cfg.WorkDir,
		Limits: archive.Limits{
			MaxEntries: cfg.MaxArchiveEntries,
			MaxBytes:   cfg.MaxArchiveBytes,
		},
		Workers: cfg.DownloadWorkers,
		Timeout: cfg.DownloadTimeout,
	}, m, results, logger).WithEvents(hub)

	// Remote sources
	if cfg.DriveEnabled() {
		drv, err := googledrive.New(ctx, googledrive.Config{
			APIKey:   cfg.GoogleAPIKey,
			MaxFiles: cfg.DriveMaxFiles,
		})
		if err != nil {
			return fmt.Errorf("failed to create google drive client: %w", err)
		}
		sessions.WithSource(domain.MethodDrive, func(link string) (source.Source, error) {
			folder, err := drv.Folder(link)
			if err != nil {
				return nil, err
			}
			return folder, nil
		})
		logger.Info("google drive input enabled", slog.Int("max_files", cfg.DriveMaxFiles))
	}

	if cfg.S3Enabled {
		bucket, err := s3bucket.New(ctx, s3bucket.Config{
			Region:   cfg.S3Region,
			Endpoint: cfg.S3Endpoint,
			MaxFiles: cfg.S3MaxFiles,
		})
		if err != nil {
			return fmt.Errorf("failed to create s3 client: %w", err)
		}
		sessions.WithSource(domain.MethodS3, func(link string) (source.Source, error) {
			prefix, err := bucket.Prefix(link)
			if err != nil {
				return nil, err
			}
			return prefix, nil
		})
		logger.Info("s3 input enabled", slog.String("region", cfg.S3Region))
	}

	// Notifications
	notifier, closeNotifier, err := notify.FromConfig(cfg)
	if err != nil {
		return fmt.Errorf("failed to configure notifications: %w", err)
	}
	defer closeNotifier()

	async := notify.NewAsync(notifier, cfg.NotifyTimeout, logger)
	sessions.WithNotifier(async)

	// Optional session log
	deps := &api.Dependencies{Sessions: sessions, Hub: hub}
	if cfg.DatabaseEnabled() {
		pool, err := database.NewPgxPool(ctx, database.DefaultPoolConfig(cfg.DatabaseURL))
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer pool.Close()

		sessions.WithRecorder(repository.NewSessionRepository(pool))
		deps.DB = pool
		logger.Info("session log enabled")
	}

	// Setup router
	router := api.NewRouter(logger, deps, api.Options{
		CORSOrigins:     cfg.CORSOrigins,
		BodyLimit:       cfg.MaxUploadBytes,
		RateLimitMax:    cfg.RateLimitMax,
		RateLimitWindow: cfg.RateLimitWindow,
	})
	router.Setup()

	// Start server in goroutine
	errChan := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Port)
		logger.Info("server listening", slog.String("addr", addr))
		if err := router.Listen(addr); err != nil {
			errChan <- err
		}
	}()

	// Wait for shutdown signal or error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logger.Info("shutting down server...")
	if err := router.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", slog.Any("error", err))
	}

	async.Wait()
	logger.Info("server stopped")

	return nil
}
