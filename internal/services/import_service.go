package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"purchasing/internal/core"
	"purchasing/internal/log"
	ports "purchasing/internal/sheets"
)

// ImportResult counts what an import added.
type ImportResult struct {
	Receipts int
	Pending  int
	History  int
}

// ImportService copies the input tabs of one backend into the ledger of
// another, e.g. a downloaded workbook into the SQLite ledger.
type ImportService struct {
	from   ports.Source
	to     ports.Ledger
	logger *log.Logger

	receiptWindowDays int
	historySince      core.Date
	now               func() time.Time
}

func NewImportService(from ports.Source, to ports.Ledger, logger *log.Logger) *ImportService {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &ImportService{
		from:              from,
		to:                to,
		logger:            logger.WithComponent(log.ComponentImport),
		receiptWindowDays: DefaultReceiptWindowDays,
		historySince:      DefaultHistorySince,
		now:               time.Now,
	}
}

// SetWindows applies the same ingest windows the report service uses.
func (s *ImportService) SetWindows(receiptWindowDays int, since core.Date) {
	s.receiptWindowDays = receiptWindowDays
	s.historySince = since
}

// Import appends unseen receipts and requisitions and replaces the pending
// snapshot. A zero today means the current date.
func (s *ImportService) Import(ctx context.Context, today core.Date) (ImportResult, error) {
	if s.from == nil || s.to == nil {
		return ImportResult{}, errors.New("import service not properly initialized")
	}
	if today.IsZero() {
		today = core.DateOf(s.now())
	}

	var res ImportResult
	receipts, err := s.from.ListReceipts(ctx)
	if err != nil {
		return res, fmt.Errorf("read receipts: %w", err)
	}
	pending, err := s.from.ListPending(ctx)
	if err != nil {
		return res, fmt.Errorf("read pending: %w", err)
	}
	history, err := s.from.ListCostHistory(ctx)
	if err != nil {
		return res, fmt.Errorf("read cost history: %w", err)
	}

	if res.Receipts, err = s.to.AppendReceipts(ctx, receiptsWithin(receipts, today, s.receiptWindowDays)); err != nil {
		return res, fmt.Errorf("append receipts: %w", err)
	}
	if err := s.to.ReplacePending(ctx, pending); err != nil {
		return res, fmt.Errorf("replace pending: %w", err)
	}
	res.Pending = len(pending)
	if res.History, err = s.to.AppendCostHistory(ctx, historySince(history, s.historySince)); err != nil {
		return res, fmt.Errorf("append cost history: %w", err)
	}

	s.logger.InfoContext(ctx, "Import complete",
		log.FieldOperation, log.OpImport,
		"receipts_added", res.Receipts,
		"pending", res.Pending,
		"history_added", res.History)
	return res, nil
}
