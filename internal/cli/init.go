// Package cli provides common initialization utilities shared by
// cmd/evcharge, cmd/evcharge-worker and cmd/evctl.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"evcharge/internal/amqp"
	"evcharge/internal/backend"
	"evcharge/internal/config"
	applog "evcharge/internal/log"
	"evcharge/internal/publisher"
	"evcharge/internal/services"
)

// SetupLogger builds the application logger from config and sets it as the
// default slog logger.
func SetupLogger(cfg *config.Config, component string, out io.Writer) *applog.Logger {
	level, err := applog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	logger := applog.New(applog.Config{
		Level:     level,
		Format:    cfg.LogFormat,
		Component: component,
		Output:    out,
	})
	applog.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadConfig loads and validates configuration from the given YAML path
// (empty means CONFIG_FILE) and the environment.
func LoadConfig(path string) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if path == "" {
		cfg, err = config.Load()
	} else {
		cfg, err = config.LoadFile(path)
	}
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// App bundles the charging service with the resources it owns.
type App struct {
	Service *services.ChargingService
	Backend *backend.BackendResult

	amqp *amqp.Client
	mqtt *publisher.Publisher
}

// BuildApp opens the configured backend, attaches the optional AMQP and
// MQTT publishers and loads the stored records.
func BuildApp(ctx context.Context, cfg *config.Config, logger *applog.Logger) (*App, error) {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	res, err := backend.NewFactory(logger.Logger).CreateBackend(ctx, bcfg)
	if err != nil {
		return nil, err
	}

	app := &App{Backend: res}
	var opts []services.Option

	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without change events",
				applog.FieldError, err)
		} else {
			app.amqp = client
			opts = append(opts, services.WithChangePublisher(client))
		}
	}

	pub, err := publisher.New(publisher.Config{
		Enabled:     cfg.MQTTEnabled,
		Broker:      cfg.MQTTBroker,
		TopicPrefix: cfg.MQTTTopicPrefix,
		ClientID:    cfg.MQTTClientID,
		Username:    cfg.MQTTUsername,
		Password:    cfg.MQTTPassword,
	})
	if err != nil {
		logger.Warn("Failed to initialize MQTT publisher, continuing without summary feed",
			applog.FieldError, err)
	} else if pub != nil {
		app.mqtt = pub
		opts = append(opts, services.WithSummaryPublisher(pub))
	}

	app.Service = services.NewChargingService(res.Repository, opts...)
	if err := app.Service.Load(ctx); err != nil {
		_ = app.Close()
		return nil, fmt.Errorf("load records from %s backend: %w", res.Type, err)
	}
	return app, nil
}

// Close releases publishers and the backend.
func (a *App) Close() error {
	if a.mqtt != nil {
		a.mqtt.Close()
	}
	if a.amqp != nil {
		if err := a.amqp.Close(); err != nil {
			slog.Warn("Failed to close AMQP client", "error", err)
		}
	}
	return a.Backend.Close()
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// Returns a context that will be cancelled on shutdown signals,
// and a channel that signals when shutdown is complete.
func GracefulShutdown(logger *applog.Logger, timeout time.Duration, cleanup func(context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		cancel()
		if cleanup != nil {
			cleanup(shutdownCtx)
		}

		if shutdownCtx.Err() != nil {
			logger.Warn("Shutdown timeout reached")
		} else {
			logger.Info("Shutdown complete")
		}
		close(done)
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
