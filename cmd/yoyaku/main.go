package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"yoyaku/internal/backend"
	"yoyaku/internal/cli"
	"yoyaku/internal/config"
	apphttp "yoyaku/internal/http"
	applog "yoyaku/internal/log"
	"yoyaku/internal/services"
)

func main() {
	cli.LoadEnvFile()
	cfg, root := cli.LoadConfig((*config.Config).Validate)
	logger := root.WithComponent(applog.ComponentApp)

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", applog.FieldError, err)
		os.Exit(1)
	}

	startCtx, cancelStart := context.WithTimeout(context.Background(), 30*time.Second)
	result, err := backend.NewFactory(root.Slog()).CreateBackend(startCtx, backendCfg)
	if err != nil {
		cancelStart()
		logger.Error("Failed to create backend", applog.FieldError, err, applog.FieldBackend, cfg.DataBackend)
		os.Exit(1)
	}
	snapshots, closeCache := backend.NewSnapshotCache(startCtx, cfg.RedisURL, cfg.CacheTTL, root.Slog())
	cancelStart()

	opts := []services.Option{
		services.WithCache(snapshots),
		services.WithLogger(root.WithComponent(applog.ComponentReservation).Slog()),
	}
	if result.Publisher != nil {
		opts = append(opts, services.WithPublisher(result.Publisher))
	}
	svc := services.NewReservationService(result.Store, opts...)

	srv, err := apphttp.NewServer(":"+cfg.Port, svc, apphttp.Options{
		Logger: root,
		Ready:  result.Ready,
	})
	if err != nil {
		logger.Error("Failed to create HTTP server", applog.FieldError, err)
		os.Exit(1)
	}
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	_, stop, done := cli.GracefulShutdown(root, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err)
		}
		if err := closeCache(); err != nil {
			logger.Warn("Cache close error", applog.FieldError, err)
		}
		if result.Cleanup != nil {
			if err := result.Cleanup(); err != nil {
				logger.Warn("Backend cleanup error", applog.FieldError, err)
			}
		}
	})

	logger.Info("Starting yoyaku server", applog.FieldOperation, applog.OpStartup, "port", cfg.Port, applog.FieldBackend, cfg.DataBackend)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", applog.FieldError, err, "port", cfg.Port)
		stop()
		cli.WaitForShutdown(done)
		os.Exit(1)
	}

	cli.WaitForShutdown(done)
	logger.Info("Server stopped gracefully", applog.FieldOperation, applog.OpShutdown)
}
