// Package http serves the report worker's operational endpoints: health,
// Prometheus metrics, the run log and an on-demand report trigger.
package http

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"purchasing/internal/core"
	"purchasing/internal/log"
)

// RunLog lists recorded report runs.
type RunLog interface {
	ListRuns(ctx context.Context, limit int) ([]core.ReportRun, error)
	GetRun(ctx context.Context, id string) (core.ReportRun, error)
}

// Runner executes a report under a given id.
type Runner interface {
	RunWithID(ctx context.Context, runID string, kind core.ReportKind, today core.Date) (core.ReportRun, error)
}

type Server struct {
	http.Server
	runs     RunLog
	runner   Runner
	gatherer prometheus.Gatherer
	logger   *log.Logger
	trace    *TraceMiddleware
	limit    *limiter

	// Triggered runs outlive their request; shutdown waits for them.
	runCtx    context.Context
	cancelRun context.CancelFunc
	inflight  sync.WaitGroup
	mu        sync.Mutex
	active    map[core.ReportKind]string
}

// NewServer wires the ops routes. gatherer may be nil to disable /metrics;
// runner may be nil to disable POST /reports.
func NewServer(addr string, runs RunLog, runner Runner, gatherer prometheus.Gatherer, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentHTTP)
	runCtx, cancel := context.WithCancel(context.Background())
	s := &Server{
		runs:      runs,
		runner:    runner,
		gatherer:  gatherer,
		logger:    logger,
		trace:     NewTraceMiddleware(logger),
		limit:     newLimiter(defaultTriggersPerMinute),
		runCtx:    runCtx,
		cancelRun: cancel,
		active:    make(map[core.ReportKind]string),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	if gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
	mux.HandleFunc("GET /runs", s.handleListRuns)
	mux.HandleFunc("GET /runs/{id}", s.handleGetRun)
	mux.HandleFunc("POST /reports/{kind}", s.rateLimited(s.handleTriggerReport))

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.trace.Wrap(apiHeaders(mux)),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Start serves in the background. A listener error other than a clean
// shutdown is logged.
func (s *Server) Start() {
	go func() {
		s.logger.Info("Ops server listening", "addr", s.Addr)
		if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Ops server failed", log.FieldError, err)
		}
	}()
}

// Shutdown stops accepting requests, then cancels triggered runs still in
// flight and waits for them or for ctx.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.Server.Shutdown(ctx)
	s.cancelRun()

	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn("Triggered reports still running at shutdown")
		if err == nil {
			err = ctx.Err()
		}
	}
	return err
}
