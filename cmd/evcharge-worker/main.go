package main

import (
	"context"
	"os"
	"time"

	"evcharge/internal/amqp"
	"evcharge/internal/cli"
	applog "evcharge/internal/log"
	gsheet "evcharge/internal/sheets/google"
	"evcharge/internal/storage"
	"evcharge/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	cfg, err := cli.LoadConfig("")
	if err == nil {
		err = cfg.ValidateMirror()
	}
	if err != nil {
		applog.New(applog.DefaultConfig()).Error("Configuration validation failed", applog.FieldError, err)
		os.Exit(1)
	}
	logger := cli.SetupLogger(cfg, applog.ComponentWorker, os.Stdout)
	logger.Info("Starting evcharge-worker")

	// The primary store is always the SQLite database the API writes to.
	source, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", applog.FieldError, err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer source.Close()

	mirror, err := gsheet.New(context.Background(), gsheet.Config{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		SheetName:       cfg.GoogleSheetName,
		CredentialsJSON: cfg.GoogleServiceAccountJSON,
		CredentialsFile: cfg.GoogleServiceAccountFile,
	})
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", applog.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)

	var consumer worker.Consumer
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
			os.Exit(1)
		}
		defer client.Close()
		consumer = client
	} else {
		logger.Info("AMQP disabled, mirroring on the periodic interval only", "interval", cfg.SyncInterval)
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	w := worker.NewMirrorWorker(source, mirror, cfg.SyncInterval)
	if err := w.Run(ctx, consumer); err != nil {
		logger.Error("Mirror worker stopped", applog.FieldError, err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker shutdown complete", "syncs", w.Syncs())
}
