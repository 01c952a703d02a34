package backend

import (
	"context"
	"fmt"

	"purchasing/internal/cache"
	"purchasing/internal/log"
	"purchasing/internal/metrics"
	gsheet "purchasing/internal/sheets/google"
	"purchasing/internal/sheets/memory"
	"purchasing/internal/sheets/xlsx"
	"purchasing/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger  *log.Logger
	metrics *metrics.Metrics
}

// NewFactory creates a backend factory. m may be nil; when set it counts
// dropped rows and cache evictions.
func NewFactory(logger *log.Logger, m *metrics.Metrics) Factory {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &DefaultFactory{
		logger:  logger.WithComponent(log.ComponentBackend),
		metrics: m,
	}
}

func noCleanup() error { return nil }

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.OnDrop == nil && f.metrics != nil {
		config.OnDrop = f.metrics.RowsDropped
	}

	switch config.Type {
	case SQLiteBackend:
		return f.createSQLiteBackend(config)
	case SheetsBackend:
		return f.createSheetsBackend(ctx, config)
	case XLSXBackend:
		return f.createXLSXBackend(config)
	case MemoryBackend:
		return f.createMemoryBackend(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createSQLiteBackend(config Config) (*BackendResult, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath, f.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	f.logger.Info("Initialized SQLite backend",
		log.FieldPath, config.SQLiteDBPath,
		"schema_version", repo.SchemaVersion())

	return &BackendResult{
		Source:   repo,
		Sink:     repo,
		Ledger:   repo,
		Delivery: repo,
		Runs:     repo,
		Cleanup:  repo.Close,
	}, nil
}

func (f *DefaultFactory) createSheetsBackend(ctx context.Context, config Config) (*BackendResult, error) {
	cli, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:  config.GoogleSpreadsheetID,
		ReceivedSheet:  config.SheetReceived,
		PendingSheet:   config.SheetPending,
		HistorySheet:   config.SheetHistory,
		SummarySheet:   config.SheetSummary,
		TrendSheet:     config.SheetTrend,
		CredentialJSON: config.GoogleServiceAccountJSON,
		CredentialFile: config.GoogleServiceAccountFile,
		OAuth:          config.GoogleOAuth,
		CacheTTL:       config.CacheTTL,
		Classifier:     config.Classifier,
		OnDrop:         config.OnDrop,
		Logger:         f.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}

	var manager *cache.Manager
	if c := cli.Cache(); c != nil {
		var onSweep func(int)
		if f.metrics != nil {
			onSweep = f.metrics.CacheEvicted
		}
		manager = cache.NewManager(onSweep)
		manager.Register(c)
	}

	f.logger.Info("Initialized Google Sheets backend",
		"spreadsheet_id", config.GoogleSpreadsheetID,
		"cache_ttl", config.CacheTTL.String())

	return &BackendResult{
		Source:   cli,
		Sink:     cli,
		Ledger:   cli,
		Delivery: cli,
		Runs:     memory.New(nil, nil, nil),
		Cache:    manager,
		Cleanup: func() error {
			if manager != nil {
				manager.Stop()
			}
			return nil
		},
	}, nil
}

func (f *DefaultFactory) createXLSXBackend(config Config) (*BackendResult, error) {
	wb, err := xlsx.New(xlsx.Config{
		InputPath:     config.XLSXPath,
		OutputPath:    config.XLSXOutputPath,
		ReceivedSheet: config.SheetReceived,
		PendingSheet:  config.SheetPending,
		HistorySheet:  config.SheetHistory,
		SummarySheet:  config.SheetSummary,
		TrendSheet:    config.SheetTrend,
		Classifier:    config.Classifier,
		OnDrop:        config.OnDrop,
		Logger:        f.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize XLSX workbook: %w", err)
	}

	f.logger.Info("Initialized XLSX backend",
		log.FieldPath, config.XLSXPath,
		"output", config.XLSXOutputPath)

	return &BackendResult{
		Source:   wb,
		Sink:     wb,
		Ledger:   wb,
		Delivery: wb,
		Runs:     memory.New(nil, nil, nil),
		Cleanup:  noCleanup,
	}, nil
}

func (f *DefaultFactory) createMemoryBackend(config Config) (*BackendResult, error) {
	dataDir := config.DataDirectory
	if dataDir == "" {
		dataDir = "data"
	}

	store := memory.NewFromFiles(dataDir, config.Classifier, config.OnDrop)

	f.logger.Info("Initialized memory backend", "data_directory", dataDir)

	return &BackendResult{
		Source:   store,
		Sink:     store,
		Ledger:   store,
		Delivery: store,
		Runs:     store,
		Cleanup:  noCleanup,
	}, nil
}
