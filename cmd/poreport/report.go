package main

import (
	"fmt"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"purchasing/internal/core"
	ports "purchasing/internal/sheets"
)

func reportCmd(use, short string, kind core.ReportKind) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			day, err := today()
			if err != nil {
				return err
			}
			app, closeAll, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer closeAll()

			run, err := app.Reports.Run(ctx, kind, day)
			if err != nil {
				return fmt.Errorf("report %s: %w", run.ID, err)
			}
			printRun(cmd, run)
			return nil
		},
	}
}

func printRun(cmd *cobra.Command, run core.ReportRun) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "run %s (%s) %s for %s\n", run.ID, run.Kind, run.Status, run.Today)
	if run.Kind.Includes(core.KindSummary) {
		fmt.Fprintf(out, "  summary: %d items\n", run.SummaryRows)
	}
	if run.Kind.Includes(core.KindTrend) {
		fmt.Fprintf(out, "  trend:   %d months\n", run.TrendRows)
	}
	fmt.Fprintf(out, "  took %s\n", run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond))
}

var waitingCmd = &cobra.Command{
	Use:   "waiting",
	Short: "Print the median delivery days for every summarized item",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		day, err := today()
		if err != nil {
			return err
		}
		app, closeAll, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer closeAll()

		index, err := app.Reports.WaitingOnDelivery(ctx, day)
		if err != nil {
			return err
		}
		pending, err := app.Backend.Source.ListPending(ctx)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "PO#\tITEM ID\tDESCRIPTION\tQTY\tMEDIAN DELIVERY (DAYS)")
		sort.SliceStable(pending, func(i, j int) bool { return pending[i].Date.Before(pending[j].Date.Time) })
		for _, e := range pending {
			days, ok := index[e.ItemID]
			if !ok {
				days = ports.NoDelivery
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", e.PONumber, e.ItemID, e.Description, e.Quantity, days)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(
		reportCmd("summary", "Write the ITEM SUMMARY report", core.KindSummary),
		reportCmd("trend", "Write the TREND GRAPH report", core.KindTrend),
		reportCmd("quick", "Write both the summary and the trend", core.KindAll),
		waitingCmd,
	)
}
