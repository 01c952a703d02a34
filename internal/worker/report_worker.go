// Package worker turns queued report requests into report runs.
package worker

import (
	"context"
	"fmt"
	"time"

	"purchasing/internal/amqp"
	"purchasing/internal/core"
	"purchasing/internal/log"
)

// Runner executes a report under a given run id.
type Runner interface {
	RunWithID(ctx context.Context, runID string, kind core.ReportKind, today core.Date) (core.ReportRun, error)
	Run(ctx context.Context, kind core.ReportKind, today core.Date) (core.ReportRun, error)
}

// RunLog looks up earlier runs.
type RunLog interface {
	GetRun(ctx context.Context, id string) (core.ReportRun, error)
	ListRuns(ctx context.Context, limit int) ([]core.ReportRun, error)
}

// ReportWorker handles report requests delivered over AMQP.
type ReportWorker struct {
	runner Runner
	runs   RunLog
	logger *log.Logger
	now    func() time.Time
}

// NewReportWorker creates a worker. runs may be nil, in which case every
// request runs even if its id was seen before.
func NewReportWorker(runner Runner, runs RunLog, logger *log.Logger) *ReportWorker {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &ReportWorker{
		runner: runner,
		runs:   runs,
		logger: logger.WithComponent(log.ComponentWorker),
		now:    time.Now,
	}
}

// HandleReportRequest runs one requested report. A run id that already
// succeeded is acknowledged without running again, so redelivered messages
// do not rewrite the sheets twice. A failed run returns its error and the
// message is requeued.
func (w *ReportWorker) HandleReportRequest(ctx context.Context, msg *amqp.ReportRequestMessage) error {
	if w.runs != nil {
		if prev, err := w.runs.GetRun(ctx, msg.RunID); err == nil && prev.Status == core.RunSucceeded {
			w.logger.InfoContext(ctx, "Report request already handled, skipping",
				log.FieldRunID, msg.RunID, log.FieldKind, msg.Kind)
			return nil
		}
	}

	today, _, err := msg.TodayDate()
	if err != nil {
		return fmt.Errorf("report request %s: %w", msg.RunID, err)
	}

	run, err := w.runner.RunWithID(ctx, msg.RunID, msg.Kind, today)
	if err != nil {
		return fmt.Errorf("run report %s: %w", msg.RunID, err)
	}
	w.logger.InfoContext(ctx, "Report request handled",
		log.FieldRunID, run.ID,
		log.FieldKind, run.Kind,
		"summary_rows", run.SummaryRows,
		"trend_rows", run.TrendRows,
		"queue_delay", w.now().Sub(msg.Timestamp).Round(time.Millisecond).String())
	return nil
}

// StartupCheck runs a catch-up report when the newest successful run is
// older than maxAge, or when none exists. It reports whether one ran.
func (w *ReportWorker) StartupCheck(ctx context.Context, kind core.ReportKind, maxAge time.Duration) (bool, error) {
	if w.runs != nil {
		recent, err := w.runs.ListRuns(ctx, 10)
		if err != nil {
			return false, fmt.Errorf("list recent runs: %w", err)
		}
		for _, r := range recent {
			if r.Status != core.RunSucceeded || !r.Kind.Includes(kind) {
				continue
			}
			if age := w.now().Sub(r.FinishedAt); age < maxAge {
				w.logger.InfoContext(ctx, "Reports are fresh, skipping startup run",
					log.FieldRunID, r.ID, "age", age.Round(time.Second).String())
				return false, nil
			}
			break
		}
	}

	w.logger.InfoContext(ctx, "Running startup report", log.FieldKind, kind)
	if _, err := w.runner.Run(ctx, kind, core.Date{}); err != nil {
		return true, fmt.Errorf("startup report: %w", err)
	}
	return true, nil
}
