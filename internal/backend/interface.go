// Package backend builds the report engine's stores from configuration.
package backend

import (
	"context"
	"time"

	"purchasing/internal/analytics"
	"purchasing/internal/cache"
	"purchasing/internal/core"
	"purchasing/internal/sheets"
	gsheet "purchasing/internal/sheets/google"
)

// RunLog records report runs and looks them up again.
type RunLog interface {
	RecordRun(ctx context.Context, run core.ReportRun) error
	ListRuns(ctx context.Context, limit int) ([]core.ReportRun, error)
	GetRun(ctx context.Context, id string) (core.ReportRun, error)
}

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult holds every port a backend serves. Delivery and Cache may be
// nil; Cleanup is never nil.
type BackendResult struct {
	Source   sheets.Source
	Sink     sheets.Sink
	Ledger   sheets.Ledger
	Delivery sheets.DeliveryWriter
	Runs     RunLog

	// Cache is set when the backend keeps a read cache worth sweeping.
	Cache   *cache.Manager
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// SQLite specific
	SQLiteDBPath string

	// XLSX specific
	XLSXPath       string
	XLSXOutputPath string

	// Google Sheets specific
	GoogleSpreadsheetID      string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
	GoogleOAuth              gsheet.OAuthCredentials
	CacheTTL                 time.Duration

	// Tab names, shared by the sheets and xlsx backends
	SheetReceived string
	SheetPending  string
	SheetHistory  string
	SheetSummary  string
	SheetTrend    string

	// Memory backend specific
	DataDirectory string

	// Classifier marks requisition rows without an explicit flag.
	Classifier analytics.ExceptionClassifier
	// OnDrop hears about rows a reader skipped.
	OnDrop sheets.DropHook
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	SheetsBackend BackendType = "sheets"
	MemoryBackend BackendType = "memory"
	XLSXBackend   BackendType = "xlsx"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, SheetsBackend, MemoryBackend, XLSXBackend:
		return true
	default:
		return false
	}
}
