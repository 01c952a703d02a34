package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"purchasing/internal/amqp"
	"purchasing/internal/cli"
	"purchasing/internal/core"
	"purchasing/internal/log"
)

var requestKind string

var requestCmd = &cobra.Command{
	Use:   "request",
	Short: "Queue a report request for report-worker",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		kind := core.ReportKind(requestKind)
		if !kind.IsValid() {
			return fmt.Errorf("invalid --kind %q: must be summary, trend or all", requestKind)
		}
		day, err := today()
		if err != nil {
			return err
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.AMQPURL == "" {
			return errors.New("AMQP_URL is not set")
		}
		logger := cli.SetupLogger(cfg, log.ComponentAMQP)

		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			return err
		}
		defer client.Close()

		msg := amqp.NewReportRequestMessage(kind, day)
		if err := client.PublishReportRequest(ctx, msg); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "queued %s report %s\n", kind, msg.RunID)
		return nil
	},
}

func init() {
	requestCmd.Flags().StringVar(&requestKind, "kind", string(core.KindAll), "report kind: summary, trend or all")
	rootCmd.AddCommand(requestCmd)
}
