package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"purchasing/internal/core"
)

func TestObserveRun(t *testing.T) {
	m := New()
	started := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

	m.ObserveRun(core.ReportRun{Kind: core.KindAll, Status: core.RunSucceeded, SummaryRows: 12, TrendRows: 5, StartedAt: started, FinishedAt: started.Add(3 * time.Second)})
	m.ObserveRun(core.ReportRun{Kind: core.KindSummary, Status: core.RunFailed, SummaryRows: 0})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("all", core.RunSucceeded)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("summary", core.RunFailed)))
	assert.Equal(t, 12.0, testutil.ToFloat64(m.summaryItems), "failed runs leave gauges alone")
	assert.Equal(t, 5.0, testutil.ToFloat64(m.trendMonths))
	assert.Equal(t, float64(started.Add(3*time.Second).Unix()), testutil.ToFloat64(m.lastRun))
}

func TestObserveRun_TrendOnlyKeepsSummaryGauge(t *testing.T) {
	m := New()
	m.ObserveRun(core.ReportRun{Kind: core.KindSummary, Status: core.RunSucceeded, SummaryRows: 4})
	m.ObserveRun(core.ReportRun{Kind: core.KindTrend, Status: core.RunSucceeded, TrendRows: 7})

	assert.Equal(t, 4.0, testutil.ToFloat64(m.summaryItems))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.trendMonths))
}

func TestRowsDroppedAndCache(t *testing.T) {
	m := New()
	m.RowsDropped("receipts", 2)
	m.RowsDropped("receipts", 0)
	m.RowsDropped("history", 1)
	m.CacheEvicted(3)
	m.CacheEvicted(-1)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.dropped.WithLabelValues("receipts")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.dropped.WithLabelValues("history")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.cacheEvicted))
}

func TestWriteTextfile(t *testing.T) {
	m := New()
	m.RowsDropped("pending", 1)

	require.NoError(t, m.WriteTextfile(""))

	path := filepath.Join(t.TempDir(), "purchasing.prom")
	require.NoError(t, m.WriteTextfile(path))

	body, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(body)
	assert.True(t, strings.Contains(text, `purchasing_rows_dropped_total{source="pending"} 1`), text)
	assert.Contains(t, text, "# TYPE purchasing_summary_items gauge")
}
