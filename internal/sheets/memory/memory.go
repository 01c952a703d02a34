package memory

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"purchasing/internal/analytics"
	"purchasing/internal/core"
	ports "purchasing/internal/sheets"
)

// Store keeps every tab in process. It backs tests and dry runs.
type Store struct {
	mu       sync.Mutex
	receipts []core.Event
	pending  []core.Event
	history  []core.CostEntry

	summary      []core.SummaryRow
	trend        core.TrendTable
	summaryStamp time.Time
	trendStamp   time.Time
	delivery     map[string]string
	runs         []core.ReportRun
}

var ErrRunNotFound = core.ErrRunNotFound

var (
	_ ports.Source         = (*Store)(nil)
	_ ports.Sink           = (*Store)(nil)
	_ ports.Ledger         = (*Store)(nil)
	_ ports.DeliveryWriter = (*Store)(nil)
)

func New(receipts, pending []core.Event, history []core.CostEntry) *Store {
	return &Store{
		receipts: append([]core.Event(nil), receipts...),
		pending:  append([]core.Event(nil), pending...),
		history:  append([]core.CostEntry(nil), history...),
	}
}

// NewFromFiles seeds the store from tab-separated files in base laid out like
// the spreadsheet tabs: receipts.tsv, pending.tsv and history.tsv. Missing
// files leave the tab empty. Unparseable lines are skipped and counted to
// onDrop, which may be nil.
func NewFromFiles(base string, classify analytics.ExceptionClassifier, onDrop ports.DropHook) *Store {
	s := &Store{}
	dropped := map[string]int{}
	for _, cells := range readRows(filepath.Join(base, "receipts.tsv")) {
		if e, err := ports.ParseReceiptRow(cells); err == nil {
			s.receipts = append(s.receipts, e)
		} else {
			dropped[ports.SourceReceipts]++
		}
	}
	for _, cells := range readRows(filepath.Join(base, "pending.tsv")) {
		if e, err := ports.ParsePendingRow(cells); err == nil {
			s.pending = append(s.pending, e)
		} else {
			dropped[ports.SourcePending]++
		}
	}
	for _, cells := range readRows(filepath.Join(base, "history.tsv")) {
		if c, err := ports.ParseHistoryRow(cells, classify); err == nil {
			s.history = append(s.history, c)
		} else {
			dropped[ports.SourceHistory]++
		}
	}
	if onDrop != nil {
		for source, n := range dropped {
			onDrop(source, n)
		}
	}
	return s
}

func (s *Store) ListReceipts(_ context.Context) ([]core.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Event(nil), s.receipts...), nil
}

func (s *Store) ListPending(_ context.Context) ([]core.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Event(nil), s.pending...), nil
}

func (s *Store) ListCostHistory(_ context.Context) ([]core.CostEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.CostEntry(nil), s.history...), nil
}

func (s *Store) WriteSummary(_ context.Context, rows []core.SummaryRow, stamp time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summary = append([]core.SummaryRow(nil), rows...)
	s.summaryStamp = stamp
	return nil
}

func (s *Store) WriteTrend(_ context.Context, table core.TrendTable, stamp time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trend = table
	s.trendStamp = stamp
	return nil
}

// AppendReceipts stores receipts whose PO, item and order date are new.
func (s *Store) AppendReceipts(_ context.Context, events []core.Event) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[string]struct{}, len(s.receipts))
	for _, e := range s.receipts {
		seen[ports.ReceiptKey(e)] = struct{}{}
	}
	added := 0
	for _, e := range events {
		key := ports.ReceiptKey(e)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		s.receipts = append(s.receipts, e)
		added++
	}
	return added, nil
}

func (s *Store) ReplacePending(_ context.Context, events []core.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append([]core.Event(nil), events...)
	return nil
}

func (s *Store) AppendCostHistory(_ context.Context, entries []core.CostEntry) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[string]struct{}, len(s.history))
	for _, c := range s.history {
		seen[ports.HistoryKey(c)] = struct{}{}
	}
	added := 0
	for _, c := range entries {
		key := ports.HistoryKey(c)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		s.history = append(s.history, c)
		added++
	}
	return added, nil
}

func (s *Store) WriteDelivery(_ context.Context, index map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delivery = make(map[string]string, len(index))
	for k, v := range index {
		s.delivery[k] = v
	}
	return nil
}

// Delivery returns the median delivery column as last written for the
// pending tab, one value per pending line.
func (s *Store) Delivery() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.delivery == nil {
		return nil
	}
	out := make([]string, len(s.pending))
	for i, e := range s.pending {
		v, ok := s.delivery[e.ItemID]
		if !ok {
			v = ports.NoDelivery
		}
		out[i] = v
	}
	return out
}

// RecordRun stores run, replacing an earlier record with the same id.
func (s *Store) RecordRun(_ context.Context, run core.ReportRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.runs {
		if s.runs[i].ID == run.ID {
			s.runs[i] = run
			return nil
		}
	}
	s.runs = append(s.runs, run)
	return nil
}

// ListRuns returns up to limit runs, newest first.
func (s *Store) ListRuns(_ context.Context, limit int) ([]core.ReportRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit <= 0 {
		limit = 20
	}
	out := make([]core.ReportRun, 0, min(limit, len(s.runs)))
	for i := len(s.runs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.runs[i])
	}
	return out, nil
}

func (s *Store) GetRun(_ context.Context, id string) (core.ReportRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.runs {
		if r.ID == id {
			return r, nil
		}
	}
	return core.ReportRun{}, ErrRunNotFound
}

// Summary returns the last written summary and its stamp.
func (s *Store) Summary() ([]core.SummaryRow, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.SummaryRow(nil), s.summary...), s.summaryStamp
}

// Trend returns the last written trend table and its stamp.
func (s *Store) Trend() (core.TrendTable, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.trend, s.trendStamp
}

func readRows(path string) [][]any {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out [][]any
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		if strings.TrimSpace(line) == "" || strings.HasPrefix(strings.TrimSpace(line), "#") {
			continue
		}
		fields := strings.Split(line, "\t")
		cells := make([]any, len(fields))
		for i, f := range fields {
			cells[i] = strings.TrimSpace(f)
		}
		out = append(out, cells)
	}
	return out
}
