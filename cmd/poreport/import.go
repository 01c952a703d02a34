package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"purchasing/internal/cli"
	"purchasing/internal/log"
	"purchasing/internal/services"
	"purchasing/internal/sheets/xlsx"
	"purchasing/internal/storage"
)

var importCmd = &cobra.Command{
	Use:   "import-xlsx <workbook.xlsx>",
	Short: "Load the input tabs of a workbook into the SQLite ledger",
	Long: `import-xlsx appends the CAME IN and LATEST 2 YEARS rows of a workbook that
are not yet in the SQLite ledger at SQLITE_DB_PATH, and replaces the ledger's
WAITING ON snapshot with the workbook's. Running it twice adds nothing.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		day, err := today()
		if err != nil {
			return err
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger := cli.SetupLogger(cfg, log.ComponentImport)
		since, err := cfg.HistorySinceDate()
		if err != nil {
			return err
		}

		wb, err := xlsx.New(xlsx.Config{
			InputPath:     args[0],
			ReceivedSheet: cfg.SheetReceived,
			PendingSheet:  cfg.SheetPending,
			HistorySheet:  cfg.SheetHistory,
			Logger:        logger,
		})
		if err != nil {
			return err
		}
		repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath, logger)
		if err != nil {
			return fmt.Errorf("open ledger: %w", err)
		}
		defer repo.Close()

		svc := services.NewImportService(wb, repo, logger)
		svc.SetWindows(cfg.ReceiptWindowDays, since)
		res, err := svc.Import(ctx, day)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "imported %d receipts, %d pending lines, %d requisitions into %s\n",
			res.Receipts, res.Pending, res.History, cfg.SQLiteDBPath)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
}
