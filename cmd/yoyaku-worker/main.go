package main

import (
	"context"
	"os"
	"time"

	"yoyaku/internal/amqp"
	"yoyaku/internal/cli"
	"yoyaku/internal/config"
	applog "yoyaku/internal/log"
	"yoyaku/internal/store/google"
	"yoyaku/internal/worker"
)

// yoyaku-worker mirrors the SQLite reservations into Google Sheets. It applies
// change events from the broker as they arrive and reconciles the whole table
// every SYNC_INTERVAL to repair anything a lost event left behind.
func main() {
	cli.LoadEnvFile()
	cfg, root := cli.LoadConfig((*config.Config).ValidateWorker)
	logger := root.WithComponent(applog.ComponentWorker)

	logger.Info("Starting yoyaku-worker", applog.FieldOperation, applog.OpStartup, "sync_interval", cfg.SyncInterval.String())

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	initCtx, cancelInit := context.WithTimeout(context.Background(), 30*time.Second)
	mirror, err := google.New(initCtx, google.Config{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		SheetName:       cfg.GoogleSheetName,
		CredentialsJSON: cfg.GoogleServiceAccountJSON,
		CredentialsFile: cfg.GoogleServiceAccountFile,
	})
	cancelInit()
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", applog.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Google Sheets mirror ready", "spreadsheet_id", cfg.GoogleSpreadsheetID, "sheet", cfg.GoogleSheetName)

	broker, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
		os.Exit(1)
	}
	defer broker.Close()

	syncer := worker.NewSyncWorker(repo, mirror, root.Slog())

	ctx, stop, done := cli.GracefulShutdown(root, 30*time.Second, nil)
	runErr := syncer.Run(ctx, broker, cfg.SyncInterval)
	stop()
	cli.WaitForShutdown(done)

	if runErr != nil {
		logger.Error("Worker stopped with error", applog.FieldError, runErr)
		os.Exit(1)
	}
	logger.Info("Worker shutdown complete", applog.FieldOperation, applog.OpShutdown)
}
