// Command report-worker runs purchasing reports on a schedule and on request
// from the AMQP queue.
package main

import (
	"context"
	"errors"
	"os"
	"time"

	"purchasing/internal/amqp"
	"purchasing/internal/cli"
	"purchasing/internal/core"
	ophttp "purchasing/internal/http"
	"purchasing/internal/log"
	"purchasing/internal/services"
	"purchasing/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		log.New(log.DefaultConfig()).Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	logger := cli.SetupLogger(cfg, log.ComponentWorker)
	logger.Info("Starting report-worker", log.FieldBackend, cfg.DataBackend)

	// AMQP is optional: without it the worker only runs the schedule.
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing with scheduled reports only", log.FieldError, err)
			amqpClient = nil
		} else {
			defer amqpClient.Close()
			logger.Info("AMQP client initialized", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	} else {
		logger.Info("AMQP disabled - only scheduled reports will run")
	}

	var extra []services.ReportOption
	if amqpClient != nil {
		extra = append(extra, services.WithPublisher(amqpClient))
	}
	app, err := cli.NewApp(context.Background(), cfg, logger, extra...)
	if err != nil {
		logger.Error("Failed to initialize report engine", log.FieldError, err)
		os.Exit(1)
	}
	defer app.Close()

	writeMetrics := func() {
		if err := app.Metrics.WriteTextfile(cfg.MetricsTextfile); err != nil {
			logger.Warn("Failed to write metrics textfile", log.FieldPath, cfg.MetricsTextfile, log.FieldError, err)
		}
	}

	reportWorker := worker.NewReportWorker(app.Reports, app.Backend.Runs, logger)

	schedCfg := services.DefaultSchedulerConfig()
	schedCfg.Interval = cfg.ReportInterval
	// The startup check below decides whether a catch-up run is needed.
	schedCfg.RunOnStart = false
	scheduler := services.NewScheduler(app.Reports, schedCfg, logger)
	scheduler.AfterRun = func(core.ReportRun) { writeMetrics() }
	if app.Backend.Cache != nil {
		scheduler.Sweep = func() { app.Backend.Cache.Sweep() }
	}

	var ops *ophttp.Server
	if cfg.OpsAddr != "" {
		ops = ophttp.NewServer(cfg.OpsAddr, app.Backend.Runs, app.Reports, app.Metrics.Registry(), logger)
		ops.Start()
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		defer cancel()
		if ops != nil {
			if err := ops.Shutdown(stopCtx); err != nil {
				logger.Warn("Ops server did not stop cleanly", log.FieldError, err)
			}
		}
		if err := scheduler.Stop(stopCtx); err != nil {
			logger.Warn("Scheduler did not stop cleanly", log.FieldError, err)
		}
	})

	logger.Info("Performing startup report check...")
	if ran, err := reportWorker.StartupCheck(ctx, core.KindAll, cfg.ReportInterval); err != nil {
		logger.Error("Startup report failed", log.FieldError, err)
	} else if ran {
		writeMetrics()
	}

	if err := scheduler.Start(ctx); err != nil {
		logger.Error("Failed to start report scheduler", log.FieldError, err)
		os.Exit(1)
	}

	if amqpClient != nil {
		go func() {
			handle := func(ctx context.Context, msg *amqp.ReportRequestMessage) error {
				err := reportWorker.HandleReportRequest(ctx, msg)
				writeMetrics()
				return err
			}
			if err := amqpClient.ConsumeReportRequests(ctx, handle); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Message consumption failed", log.FieldError, err)
			}
		}()
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Report-worker shutdown complete")
}
