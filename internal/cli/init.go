// Package cli provides the start-up steps shared by cmd/poreport and
// cmd/report-worker.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"purchasing/internal/analytics"
	"purchasing/internal/backend"
	"purchasing/internal/config"
	"purchasing/internal/log"
	"purchasing/internal/metrics"
	"purchasing/internal/naming"
	"purchasing/internal/services"
)

// SetupLogger builds the logger described by cfg and makes it the default.
func SetupLogger(cfg *config.Config, component string) *log.Logger {
	logger := cfg.Logger(component)
	log.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration from the environment and
// validates it.
func LoadAndValidateConfig() (*config.Config, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadNamer builds the identity normalizer from MAPPINGS_FILE, or from the
// embedded tables when none is configured.
func LoadNamer(cfg *config.Config, logger *log.Logger) (*naming.Normalizer, error) {
	if cfg.MappingsFile == "" {
		return naming.FromTables(naming.DefaultTables()), nil
	}
	tables, err := naming.LoadTables(cfg.MappingsFile)
	if err != nil {
		return nil, err
	}
	logger.Info("Loaded name mappings", log.FieldPath, cfg.MappingsFile, "entries", tables.Len())
	return naming.FromTables(tables), nil
}

// App is a fully wired report engine.
type App struct {
	Config  *config.Config
	Logger  *log.Logger
	Metrics *metrics.Metrics
	Backend *backend.BackendResult
	Reports *services.ReportService
}

// Close releases the backend.
func (a *App) Close() error {
	if a.Backend == nil {
		return nil
	}
	return a.Backend.Cleanup()
}

// NewApp creates the backend and the report service for cfg. Extra options
// (a publisher, for instance) are applied after the configured ones.
func NewApp(ctx context.Context, cfg *config.Config, logger *log.Logger, extra ...services.ReportOption) (*App, error) {
	namer, err := LoadNamer(cfg, logger)
	if err != nil {
		return nil, err
	}
	policy, err := analytics.GetRecurrencePolicy(cfg.RecurrencePolicy)
	if err != nil {
		return nil, err
	}
	since, err := cfg.HistorySinceDate()
	if err != nil {
		return nil, fmt.Errorf("history since: %w", err)
	}

	m := metrics.New()
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	res, err := backend.NewFactory(logger, m).CreateBackend(ctx, bcfg)
	if err != nil {
		return nil, err
	}

	opts := []services.ReportOption{
		services.WithLogger(logger),
		services.WithRecurrencePolicy(policy),
		services.WithMetrics(m),
		services.WithRunRecorder(res.Runs),
		services.WithWindows(cfg.ReceiptWindowDays, since),
	}
	if res.Delivery != nil {
		opts = append(opts, services.WithDeliveryWriter(res.Delivery))
	}
	opts = append(opts, extra...)

	return &App{
		Config:  cfg,
		Logger:  logger,
		Metrics: m,
		Backend: res,
		Reports: services.NewReportService(res.Source, res.Sink, namer, opts...),
	}, nil
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// Returns a context that will be cancelled on shutdown signals,
// and a channel that signals when shutdown is complete.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, cleanup func()) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		cancel()

		finished := make(chan struct{})
		go func() {
			if cleanup != nil {
				cleanup()
			}
			close(finished)
		}()

		select {
		case <-finished:
			logger.Info("Shutdown complete")
		case <-time.After(timeout):
			logger.Warn("Shutdown timeout reached")
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
