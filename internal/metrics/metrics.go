// Package metrics exposes report run counters in Prometheus format. Batch
// binaries write them to a node_exporter textfile after each run.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"purchasing/internal/core"
)

const namespace = "purchasing"

// Metrics holds the collectors for one process.
type Metrics struct {
	registry     *prometheus.Registry
	runs         *prometheus.CounterVec
	dropped      *prometheus.CounterVec
	cacheEvicted prometheus.Counter
	summaryItems prometheus.Gauge
	trendMonths  prometheus.Gauge
	lastRun      prometheus.Gauge
	runDuration  *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "report_runs_total",
			Help:      "Report runs by kind and outcome.",
		}, []string{"kind", "status"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_dropped_total",
			Help:      "Input rows skipped because they could not be parsed.",
		}, []string{"source"}),
		cacheEvicted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sheets_cache_evicted_total",
			Help:      "Expired spreadsheet range reads dropped from the cache.",
		}),
		summaryItems: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "summary_items",
			Help:      "Items in the last written summary.",
		}),
		trendMonths: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "trend_months",
			Help:      "Months in the last written trend matrix.",
		}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last successful run finished.",
		}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "report_run_duration_seconds",
			Help:      "Wall time of report runs.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		}, []string{"kind"}),
	}
	m.registry.MustRegister(m.runs, m.dropped, m.cacheEvicted, m.summaryItems, m.trendMonths, m.lastRun, m.runDuration)
	return m
}

// Registry exposes the underlying registry, e.g. for a /metrics handler.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveRun records a finished run. Gauges only move on success.
func (m *Metrics) ObserveRun(run core.ReportRun) {
	m.runs.WithLabelValues(string(run.Kind), run.Status).Inc()
	if !run.FinishedAt.IsZero() && !run.StartedAt.IsZero() {
		m.runDuration.WithLabelValues(string(run.Kind)).Observe(run.FinishedAt.Sub(run.StartedAt).Seconds())
	}
	if run.Status != core.RunSucceeded {
		return
	}
	if run.Kind.Includes(core.KindSummary) {
		m.summaryItems.Set(float64(run.SummaryRows))
	}
	if run.Kind.Includes(core.KindTrend) {
		m.trendMonths.Set(float64(run.TrendRows))
	}
	finished := run.FinishedAt
	if finished.IsZero() {
		finished = time.Now()
	}
	m.lastRun.Set(float64(finished.Unix()))
}

// RowsDropped matches the sheets drop hook signature.
func (m *Metrics) RowsDropped(source string, count int) {
	if count > 0 {
		m.dropped.WithLabelValues(source).Add(float64(count))
	}
}

// CacheEvicted matches the cache manager sweep hook.
func (m *Metrics) CacheEvicted(n int) {
	if n > 0 {
		m.cacheEvicted.Add(float64(n))
	}
}

// WriteTextfile writes every metric to path atomically. An empty path is a no-op.
func (m *Metrics) WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
