package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"evcharge/internal/cli"
	apphttp "evcharge/internal/http"
	applog "evcharge/internal/log"
)

func main() {
	cli.LoadEnvFile()

	cfg, err := cli.LoadConfig("")
	if err != nil {
		applog.New(applog.DefaultConfig()).Error("Configuration validation failed", applog.FieldError, err)
		os.Exit(1)
	}
	logger := cli.SetupLogger(cfg, applog.ComponentApp, os.Stdout)

	app, err := cli.BuildApp(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize application", applog.FieldError, err, applog.FieldBackend, cfg.DataBackend)
		os.Exit(1)
	}
	logger.Info("Initialized backend", applog.FieldBackend, app.Backend.Type, applog.FieldCount, len(app.Service.Records()))

	srv := apphttp.NewServer(":"+cfg.Port, app.Service,
		apphttp.WithLogger(logger.WithComponent(applog.ComponentHTTP)),
		apphttp.WithReadinessChecker(app.Backend),
		apphttp.WithRateLimit(cfg.RateLimitPerMinute),
	)
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err)
		}
		if err := app.Close(); err != nil {
			logger.Error("Failed to close backend", applog.FieldError, err)
		}
	})

	logger.Info("Starting evcharge server", "port", cfg.Port, applog.FieldBackend, cfg.DataBackend)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", applog.FieldError, err, "port", cfg.Port)
		_ = app.Close()
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
