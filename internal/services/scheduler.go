package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"purchasing/internal/core"
	"purchasing/internal/log"
)

// SchedulerConfig holds configuration for the report scheduler
type SchedulerConfig struct {
	// Interval is how often a report runs (default: 1h)
	Interval time.Duration

	// Kind is the report kind each tick produces (default: all)
	Kind core.ReportKind

	// RunOnStart runs a report immediately instead of waiting a full interval
	RunOnStart bool

	// SweepInterval is how often the Sweep hook runs (default: 5m)
	SweepInterval time.Duration
}

// DefaultSchedulerConfig returns sensible defaults
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Interval:      time.Hour,
		Kind:          core.KindAll,
		RunOnStart:    true,
		SweepInterval: 5 * time.Minute,
	}
}

// ReportRunner produces one report.
type ReportRunner interface {
	Run(ctx context.Context, kind core.ReportKind, today core.Date) (core.ReportRun, error)
}

// Scheduler runs reports on a fixed interval until stopped.
type Scheduler struct {
	runner ReportRunner
	config SchedulerConfig
	logger *log.Logger

	// Sweep, when set, runs every SweepInterval (cache cleanup).
	Sweep func()
	// AfterRun, when set, sees every finished run (metrics textfile).
	AfterRun func(core.ReportRun)

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewScheduler(runner ReportRunner, config SchedulerConfig, logger *log.Logger) *Scheduler {
	if config.Interval <= 0 {
		config.Interval = DefaultSchedulerConfig().Interval
	}
	if config.SweepInterval <= 0 {
		config.SweepInterval = DefaultSchedulerConfig().SweepInterval
	}
	if !config.Kind.IsValid() {
		config.Kind = core.KindAll
	}
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Scheduler{
		runner: runner,
		config: config,
		logger: logger.WithComponent(log.ComponentWorker),
	}
}

// Start begins the schedule loop. Returns an error if already running.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler is already running")
	}
	if s.runner == nil {
		s.mu.Unlock()
		return fmt.Errorf("scheduler has no report runner")
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	stopCh, doneCh := s.stopCh, s.doneCh
	s.mu.Unlock()

	go s.runLoop(ctx, stopCh, doneCh)

	s.logger.InfoContext(ctx, "Report scheduler started",
		"interval", s.config.Interval.String(),
		log.FieldKind, s.config.Kind)
	return nil
}

// Stop gracefully stops the scheduler and waits for an in-flight run.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	stopCh, doneCh := s.stopCh, s.doneCh
	s.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		s.logger.InfoContext(ctx, "Report scheduler stopped gracefully")
	case <-ctx.Done():
		s.logger.WarnContext(ctx, "Report scheduler stop timed out")
		return ctx.Err()
	}
	return nil
}

// IsRunning returns whether the scheduler loop is active
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// runLoop exits on Stop or when ctx is cancelled; either way the scheduler
// is marked stopped before doneCh closes.
func (s *Scheduler) runLoop(ctx context.Context, stopCh <-chan struct{}, doneCh chan struct{}) {
	defer func() {
		s.mu.Lock()
		if s.doneCh == doneCh {
			s.running = false
		}
		s.mu.Unlock()
		close(doneCh)
	}()

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()
	sweep := time.NewTicker(s.config.SweepInterval)
	defer sweep.Stop()

	if s.config.RunOnStart {
		s.runOnce(ctx)
	}

	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx)
		case <-sweep.C:
			if s.Sweep != nil {
				s.Sweep()
			}
		}
	}
}

// runOnce runs one scheduled report. Failures are logged by the runner and
// retried on the next tick.
func (s *Scheduler) runOnce(ctx context.Context) {
	run, err := s.runner.Run(ctx, s.config.Kind, core.Date{})
	if err != nil {
		s.logger.ErrorContext(ctx, "Scheduled report failed", log.FieldRunID, run.ID, log.FieldError, err)
	}
	if s.AfterRun != nil && run.ID != "" {
		s.AfterRun(run)
	}
}
