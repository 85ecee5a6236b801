// Package cli holds the start-up steps shared by cmd/yoyaku and
// cmd/yoyaku-worker.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"yoyaku/internal/config"
	applog "yoyaku/internal/log"
	"yoyaku/internal/storage"
)

// SetupLogger creates the text logger on stdout at the given level and
// installs it as the slog default. The returned logger carries no component;
// packages add their own.
func SetupLogger(level string) *applog.Logger {
	logger := applog.New(applog.Config{
		Level:  applog.ParseLevel(level),
		Output: os.Stdout,
	})
	applog.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadConfig loads the environment configuration, sets up logging from it
// and checks it with validate. The process exits when validation fails.
func LoadConfig(validate func(*config.Config) error) (*config.Config, *applog.Logger) {
	cfg := config.Load()
	logger := SetupLogger(cfg.LogLevel)
	if err := validate(cfg); err != nil {
		logger.Error("Configuration validation failed", applog.FieldError, err)
		os.Exit(1)
	}
	return cfg, logger
}

// InitSQLite opens the SQLite repository at dbPath, applying migrations.
// Returns the repository or exits the process on failure.
func InitSQLite(logger *applog.Logger, dbPath string) *storage.SQLiteRepository {
	repo, err := storage.NewSQLiteRepository(dbPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", applog.FieldError, err, "path", dbPath)
		os.Exit(1)
	}
	return repo
}

// GracefulShutdown cancels the returned context on SIGINT, SIGTERM or a call
// to stop, then runs cleanup with at most timeout to finish. done is closed
// afterwards.
func GracefulShutdown(logger *applog.Logger, timeout time.Duration, cleanup func(ctx context.Context)) (ctx context.Context, stop func(), done <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	finishedAll := make(chan struct{})

	go func() {
		defer close(finishedAll)

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)

		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
		case <-ctx.Done():
		}
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		finished := make(chan struct{})
		go func() {
			if cleanup != nil {
				cleanup(shutdownCtx)
			}
			close(finished)
		}()

		select {
		case <-finished:
			logger.Info("Shutdown complete")
		case <-shutdownCtx.Done():
			logger.Warn("Shutdown timeout reached")
		}
	}()

	return ctx, cancel, finishedAll
}

// WaitForShutdown blocks until the shutdown started by GracefulShutdown has finished.
func WaitForShutdown(done <-chan struct{}) {
	<-done
}
