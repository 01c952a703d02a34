package sheets

import (
	"context"
	"time"

	"purchasing/internal/core"
)

// Ports for outbound adapters.
type (
	// ReceiptReader lists completed receipt lines (the CAME IN tab).
	ReceiptReader interface {
		ListReceipts(ctx context.Context) ([]core.Event, error)
	}

	// PendingReader lists outstanding order lines (the WAITING ON tab).
	PendingReader interface {
		ListPending(ctx context.Context) ([]core.Event, error)
	}

	// HistoryReader lists requisition totals (the LATEST 2 YEARS tab).
	HistoryReader interface {
		ListCostHistory(ctx context.Context) ([]core.CostEntry, error)
	}

	// SummaryWriter replaces the rendered item summary.
	SummaryWriter interface {
		WriteSummary(ctx context.Context, rows []core.SummaryRow, stamp time.Time) error
	}

	// TrendWriter replaces the rendered trend matrix.
	TrendWriter interface {
		WriteTrend(ctx context.Context, table core.TrendTable, stamp time.Time) error
	}

	// ReceiptWriter appends receipt lines not already recorded.
	ReceiptWriter interface {
		AppendReceipts(ctx context.Context, events []core.Event) (added int, err error)
	}

	// PendingWriter swaps the whole outstanding-order snapshot.
	PendingWriter interface {
		ReplacePending(ctx context.Context, events []core.Event) error
	}

	// HistoryWriter appends requisition totals not already recorded.
	HistoryWriter interface {
		AppendCostHistory(ctx context.Context, entries []core.CostEntry) (added int, err error)
	}

	// DeliveryWriter fills the median delivery column next to pending lines.
	DeliveryWriter interface {
		WriteDelivery(ctx context.Context, index map[string]string) error
	}

	// Source is everything a report run reads.
	Source interface {
		ReceiptReader
		PendingReader
		HistoryReader
	}

	// Sink is everything a report run writes.
	Sink interface {
		SummaryWriter
		TrendWriter
	}

	// Ledger accepts imported input rows.
	Ledger interface {
		ReceiptWriter
		PendingWriter
		HistoryWriter
	}
)

// DropHook is told how many rows a reader skipped, per source tab.
type DropHook func(source string, count int)

// Source names reported to a DropHook.
const (
	SourceReceipts = "receipts"
	SourcePending  = "pending"
	SourceHistory  = "history"
)
