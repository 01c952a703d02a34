package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"purchasing/internal/amqp"
	"purchasing/internal/cli"
	"purchasing/internal/config"
	"purchasing/internal/core"
	"purchasing/internal/log"
	"purchasing/internal/services"
)

var (
	backendFlag  string
	mappingsFlag string
	policyFlag   string
	todayFlag    string
	verbose      bool
)

var rootCmd = &cobra.Command{
	Use:   "poreport",
	Short: "Purchasing analytics over received and outstanding order lines",
	Long: `poreport reads the CAME IN, WAITING ON and LATEST 2 YEARS tabs from the
configured backend and writes the ITEM SUMMARY and TREND GRAPH reports back.

Configuration comes from the environment (or a .env file); the flags below
override the matching variables for one invocation.

Example Usage:
  poreport quick                         # summary and trend for today
  poreport summary --today 2024-06-01    # reproduce an earlier run
  poreport import-xlsx purchasing.xlsx   # load a workbook into SQLite
  poreport waiting                       # open lines with median delivery
  poreport runs                          # recent runs from the run log
  poreport sheets-auth                   # authorize the sheets backend as a user`,
	SilenceUsage:  true,
	SilenceErrors: true,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute runs the root command and exits non-zero on error.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&backendFlag, "backend", "", "data backend: memory, sheets, sqlite or xlsx (overrides DATA_BACKEND)")
	rootCmd.PersistentFlags().StringVar(&mappingsFlag, "mappings", "", "YAML name mappings file (overrides MAPPINGS_FILE)")
	rootCmd.PersistentFlags().StringVar(&policyFlag, "policy", "", "recurrence policy name (overrides RECURRENCE_POLICY)")
	rootCmd.PersistentFlags().StringVar(&todayFlag, "today", "", "reference date YYYY-MM-DD (default: current date)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// loadConfig reads the environment and applies flag overrides.
func loadConfig() (*config.Config, error) {
	cli.LoadEnvFile()
	cfg := config.Load()
	if backendFlag != "" {
		cfg.DataBackend = backendFlag
	}
	if mappingsFlag != "" {
		cfg.MappingsFile = mappingsFlag
	}
	if policyFlag != "" {
		cfg.RecurrencePolicy = policyFlag
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// today parses --today; zero means the service picks the current date.
func today() (core.Date, error) {
	if todayFlag == "" {
		return core.Date{}, nil
	}
	d, err := core.ParseISODate(todayFlag)
	if err != nil {
		return core.Date{}, fmt.Errorf("--today %q: %w", todayFlag, err)
	}
	return d, nil
}

// openApp wires the configured backend. When AMQP is configured finished
// runs are announced on the ready queue; a broker that cannot be reached
// only disables the announcement.
func openApp(ctx context.Context) (*cli.App, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	logger := cli.SetupLogger(cfg, log.ComponentApp)

	var extra []services.ReportOption
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without notifications", log.FieldError, err)
		} else {
			extra = append(extra, services.WithPublisher(amqpClient))
		}
	}

	app, err := cli.NewApp(ctx, cfg, logger, extra...)
	if err != nil {
		if amqpClient != nil {
			amqpClient.Close()
		}
		return nil, nil, err
	}
	closeAll := func() {
		if err := app.Close(); err != nil {
			logger.Warn("Failed to close backend", log.FieldError, err)
		}
		if amqpClient != nil {
			amqpClient.Close()
		}
	}
	return app, closeAll, nil
}
