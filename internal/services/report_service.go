package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"purchasing/internal/analytics"
	"purchasing/internal/core"
	"purchasing/internal/log"
	"purchasing/internal/metrics"
	ports "purchasing/internal/sheets"
)

// Defaults for the ingest windows.
const (
	DefaultReceiptWindowDays = 730
)

// DefaultHistorySince is the earliest requisition date kept for trends.
var DefaultHistorySince = core.NewDate(2024, 1, 1)

var ErrInvalidKind = errors.New("invalid report kind")

// RunRecorder persists the outcome of each run.
type RunRecorder interface {
	RecordRun(ctx context.Context, run core.ReportRun) error
}

// ReadyPublisher announces finished runs.
type ReadyPublisher interface {
	PublishReportReady(ctx context.Context, run core.ReportRun) error
}

// ReportService reads the purchasing tabs, runs the aggregator and trend
// bucketer, and writes both outputs back.
type ReportService struct {
	source    ports.Source
	sink      ports.Sink
	delivery  ports.DeliveryWriter
	namer     analytics.Namer
	policy    analytics.RecurrencePolicy
	recorder  RunRecorder
	publisher ReadyPublisher
	metrics   *metrics.Metrics
	logger    *log.Logger
	runLog    *log.StructuredLogger

	receiptWindowDays int
	historySince      core.Date
	now               func() time.Time
}

// ReportOption configures a ReportService.
type ReportOption func(*ReportService)

func WithRecurrencePolicy(p analytics.RecurrencePolicy) ReportOption {
	return func(s *ReportService) { s.policy = p }
}

func WithRunRecorder(r RunRecorder) ReportOption {
	return func(s *ReportService) { s.recorder = r }
}

func WithPublisher(p ReadyPublisher) ReportOption {
	return func(s *ReportService) { s.publisher = p }
}

func WithMetrics(m *metrics.Metrics) ReportOption {
	return func(s *ReportService) { s.metrics = m }
}

// WithDeliveryWriter fills the pending tab's median delivery column after
// each summary.
func WithDeliveryWriter(w ports.DeliveryWriter) ReportOption {
	return func(s *ReportService) { s.delivery = w }
}

func WithLogger(l *log.Logger) ReportOption {
	return func(s *ReportService) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithWindows sets how far back receipts and requisitions are read. A
// non-positive window or a zero date disables that filter.
func WithWindows(receiptWindowDays int, historySince core.Date) ReportOption {
	return func(s *ReportService) {
		s.receiptWindowDays = receiptWindowDays
		s.historySince = historySince
	}
}

// WithClock replaces the wall clock, for tests.
func WithClock(now func() time.Time) ReportOption {
	return func(s *ReportService) { s.now = now }
}

func NewReportService(source ports.Source, sink ports.Sink, namer analytics.Namer, opts ...ReportOption) *ReportService {
	s := &ReportService{
		source:            source,
		sink:              sink,
		namer:             namer,
		policy:            analytics.DefaultRecurrencePolicy,
		logger:            log.New(log.DefaultConfig()),
		receiptWindowDays: DefaultReceiptWindowDays,
		historySince:      DefaultHistorySince,
		now:               time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithComponent(log.ComponentReport)
	s.runLog = log.NewStructuredLogger(s.logger)
	return s
}

// Run executes a report with a fresh run id. A zero today means the
// current date.
func (s *ReportService) Run(ctx context.Context, kind core.ReportKind, today core.Date) (core.ReportRun, error) {
	return s.RunWithID(ctx, uuid.NewString(), kind, today)
}

// RunWithID executes a report under a caller-chosen id, as requested over
// the queue. The run is recorded and announced whether or not it succeeds.
func (s *ReportService) RunWithID(ctx context.Context, runID string, kind core.ReportKind, today core.Date) (core.ReportRun, error) {
	if !kind.IsValid() {
		return core.ReportRun{}, fmt.Errorf("%w: %q", ErrInvalidKind, kind)
	}
	if s.source == nil || s.sink == nil {
		return core.ReportRun{}, errors.New("report service not properly initialized")
	}
	if today.IsZero() {
		today = core.DateOf(s.now())
	}

	run := core.ReportRun{
		ID:        runID,
		Kind:      kind,
		Today:     today,
		StartedAt: s.now(),
	}
	s.runLog.LogRunStart(ctx, run.ID, string(kind), today.String())

	err := s.execute(ctx, &run)
	run.FinishedAt = s.now()
	run.Status = core.RunSucceeded
	if err != nil {
		run.Status = core.RunFailed
		run.Error = err.Error()
	}
	s.runLog.LogRunEnd(ctx, run.ID, string(kind), run.SummaryRows, run.TrendRows, run.FinishedAt.Sub(run.StartedAt), err)
	s.finish(ctx, run)
	return run, err
}

type inputs struct {
	receipts []core.Event
	pending  []core.Event
	history  []core.CostEntry
}

func (s *ReportService) execute(ctx context.Context, run *core.ReportRun) error {
	in, err := s.read(ctx, run.Kind)
	if err != nil {
		return err
	}
	in.receipts = receiptsWithin(in.receipts, run.Today, s.receiptWindowDays)
	in.history = historySince(in.history, s.historySince)

	var (
		rows  []core.SummaryRow
		trend core.TrendTable
	)
	// The aggregator and the bucketer share no state.
	var g errgroup.Group
	if run.Kind.Includes(core.KindSummary) {
		g.Go(func() error {
			agg := analytics.NewAggregator(s.namer, analytics.WithPolicy(s.policy), analytics.WithToday(run.Today))
			rows = agg.Aggregate(in.receipts, in.pending)
			return nil
		})
	}
	if run.Kind.Includes(core.KindTrend) {
		g.Go(func() error {
			trend = analytics.BucketTrend(in.history)
			return nil
		})
	}
	g.Wait()

	stamp := s.now()
	if run.Kind.Includes(core.KindSummary) {
		if err := s.sink.WriteSummary(ctx, rows, stamp); err != nil {
			return fmt.Errorf("write summary: %w", err)
		}
		run.SummaryRows = len(rows)
		if s.delivery != nil {
			if err := s.delivery.WriteDelivery(ctx, analytics.DeliveryIndex(rows)); err != nil {
				return fmt.Errorf("write median delivery: %w", err)
			}
		}
	}
	if run.Kind.Includes(core.KindTrend) {
		if err := s.sink.WriteTrend(ctx, trend, stamp); err != nil {
			return fmt.Errorf("write trend: %w", err)
		}
		run.TrendRows = len(trend.Rows)
	}
	return nil
}

// read fetches only the tabs the kind needs, in parallel.
func (s *ReportService) read(ctx context.Context, kind core.ReportKind) (inputs, error) {
	var in inputs
	g, gctx := errgroup.WithContext(ctx)
	if kind.Includes(core.KindSummary) {
		g.Go(func() error {
			receipts, err := s.source.ListReceipts(gctx)
			if err != nil {
				return fmt.Errorf("read receipts: %w", err)
			}
			in.receipts = receipts
			return nil
		})
		g.Go(func() error {
			pending, err := s.source.ListPending(gctx)
			if err != nil {
				return fmt.Errorf("read pending: %w", err)
			}
			in.pending = pending
			return nil
		})
	}
	if kind.Includes(core.KindTrend) {
		g.Go(func() error {
			history, err := s.source.ListCostHistory(gctx)
			if err != nil {
				return fmt.Errorf("read cost history: %w", err)
			}
			in.history = history
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return inputs{}, err
	}
	return in, nil
}

// receiptsWithin drops receipts ordered more than days before today.
// Undated receipts are kept; they still count toward quantities.
func receiptsWithin(receipts []core.Event, today core.Date, days int) []core.Event {
	if days <= 0 {
		return receipts
	}
	cutoff := today.AddDays(-days)
	out := receipts[:0:0]
	for _, e := range receipts {
		if !e.Date.IsZero() && e.Date.Before(cutoff.Time) {
			continue
		}
		out = append(out, e)
	}
	return out
}

func historySince(history []core.CostEntry, since core.Date) []core.CostEntry {
	if since.IsZero() {
		return history
	}
	out := history[:0:0]
	for _, c := range history {
		if c.Date.Before(since.Time) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// finish records, measures and announces a run. None of these failures
// change the run's outcome.
func (s *ReportService) finish(ctx context.Context, run core.ReportRun) {
	if s.metrics != nil {
		s.metrics.ObserveRun(run)
	}
	if s.recorder != nil {
		if err := s.recorder.RecordRun(ctx, run); err != nil {
			s.logger.WarnContext(ctx, "Failed to record report run", log.FieldRunID, run.ID, log.FieldError, err)
		}
	}
	if s.publisher != nil {
		if err := s.publisher.PublishReportReady(ctx, run); err != nil {
			s.logger.WarnContext(ctx, "Failed to publish report ready", log.FieldRunID, run.ID, log.FieldError, err)
		}
	}
}

// WaitingOnDelivery maps each summarized item id to its median delivery
// days. Items never delivered are absent; writers render them as "NA".
func (s *ReportService) WaitingOnDelivery(ctx context.Context, today core.Date) (map[string]string, error) {
	if s.source == nil {
		return nil, errors.New("report service not properly initialized")
	}
	if today.IsZero() {
		today = core.DateOf(s.now())
	}
	in, err := s.read(ctx, core.KindSummary)
	if err != nil {
		return nil, err
	}
	agg := analytics.NewAggregator(s.namer, analytics.WithPolicy(s.policy), analytics.WithToday(today))
	rows := agg.Aggregate(receiptsWithin(in.receipts, today, s.receiptWindowDays), in.pending)
	return analytics.DeliveryIndex(rows), nil
}
