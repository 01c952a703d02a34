package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"purchasing/internal/core"
	"purchasing/internal/log"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "data", "purchasing.db"), log.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func intPtr(n int) *int { return &n }

func TestNewSQLiteRepository_Migrates(t *testing.T) {
	repo := newTestRepo(t)
	assert.Equal(t, uint(2), repo.SchemaVersion())
}

func TestMigrations_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "again.db")
	first, err := NewSQLiteRepository(path, log.Discard())
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := NewSQLiteRepository(path, log.Discard())
	require.NoError(t, err)
	defer second.Close()
	assert.Equal(t, uint(2), second.SchemaVersion())
}

func TestAppendReceipts_DedupAndRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	price := decimal.RequireFromString("12.75")

	batch := []core.Event{
		{PONumber: "PO-1", ItemID: "A-1", Reference: "https://item/a", Description: "Gloves (Box)", Date: core.NewDate(2024, 1, 5), Quantity: 10, UnitPrice: &price, DeliveryDays: intPtr(5)},
		{PONumber: "PO-2", ItemID: "A-1", Description: "Gloves", Date: core.NewDate(2024, 2, 5), Quantity: 4},
		{PONumber: "PO-2", Description: "Mop head", Date: core.NewDate(2024, 2, 5), Quantity: 1},
	}
	added, err := repo.AppendReceipts(ctx, batch)
	require.NoError(t, err)
	assert.Equal(t, 3, added)

	added, err = repo.AppendReceipts(ctx, batch[:2])
	require.NoError(t, err)
	assert.Zero(t, added, "known PO/item/date lines are ignored")

	got, err := repo.ListReceipts(ctx)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, core.NewDate(2024, 1, 5), got[0].Date)
	require.NotNil(t, got[0].UnitPrice)
	assert.True(t, price.Equal(*got[0].UnitPrice))
	require.NotNil(t, got[0].DeliveryDays)
	assert.Equal(t, 5, *got[0].DeliveryDays)
	assert.Nil(t, got[1].UnitPrice)
	assert.Nil(t, got[1].DeliveryDays)
	assert.Equal(t, "Mop head", got[2].Description)
}

func TestReplacePendingAndDelivery(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.ReplacePending(ctx, []core.Event{
		{PONumber: "PO-8", ItemID: "X-1", Date: core.NewDate(2024, 3, 1), Quantity: 2},
	}))
	require.NoError(t, repo.ReplacePending(ctx, []core.Event{
		{PONumber: "PO-9", ItemID: "A-1", Date: core.NewDate(2024, 3, 1), Quantity: 4},
		{PONumber: "PO-9", ItemID: "B-2", Date: core.NewDate(2024, 3, 2), Quantity: 1},
		{PONumber: "PO-9", Date: core.NewDate(2024, 3, 2)},
	}))

	pending, err := repo.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2, "snapshot replaced and id-less line skipped")
	assert.Equal(t, "A-1", pending[0].ItemID)

	require.NoError(t, repo.WriteDelivery(ctx, map[string]string{"A-1": "6"}))
	delivery, err := repo.PendingDelivery(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"6", "NA"}, delivery)
}

func TestAppendCostHistory(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	entries := []core.CostEntry{
		{Reference: "REQ-2", Date: core.NewDate(2025, 1, 20), Cost: decimal.RequireFromString("30.50"), Exception: true},
		{Reference: "REQ-1", Date: core.NewDate(2025, 1, 3), Cost: decimal.NewFromInt(120)},
		{Reference: "REQ-0"},
	}
	added, err := repo.AppendCostHistory(ctx, entries)
	require.NoError(t, err)
	assert.Equal(t, 2, added)

	added, err = repo.AppendCostHistory(ctx, entries)
	require.NoError(t, err)
	assert.Zero(t, added)

	got, err := repo.ListCostHistory(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "REQ-1", got[0].Reference, "ordered by date")
	assert.False(t, got[0].Exception)
	assert.True(t, got[1].Exception)
	assert.Equal(t, "30.5", got[1].Cost.String())
}

func TestWriteSummaryAndTrend(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	stamp := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

	rows := []core.SummaryRow{
		{ItemID: "A-1", Name: "Gloves", Recurring: true, MonthlyCost: decimal.RequireFromString("40.5"), UnitPrice: decimal.NewFromInt(2), EventCount: 3},
		{ItemID: "B-2", Name: "Mop", DeliveryDays: "6"},
	}
	require.NoError(t, repo.WriteSummary(ctx, rows, stamp))
	require.NoError(t, repo.WriteSummary(ctx, rows[1:], stamp))

	got, err := repo.ReadSummary(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "B-2", got[0].ItemID)
	assert.Equal(t, "6", got[0].DeliveryDays)

	require.NoError(t, repo.WriteSummary(ctx, rows, stamp))
	got, err = repo.ReadSummary(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.True(t, got[0].Recurring)
	assert.Equal(t, "40.5", got[0].MonthlyCost.String())

	header := []string{"", "W1", "W2", "W3", "W4", "W5", "Exception"}
	table := core.TrendTable{Header: header, Rows: [][]string{
		{"January 2025", "120", "", "", "", "", "30"},
		{"February 2025", "", "10", "", "", "", ""},
	}}
	require.NoError(t, repo.WriteTrend(ctx, table, stamp))
	back, err := repo.ReadTrend(ctx, header)
	require.NoError(t, err)
	assert.Equal(t, table, back)
}

func TestRunLog(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	base := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

	for i, id := range []string{"run-a", "run-b", "run-c"} {
		require.NoError(t, repo.RecordRun(ctx, core.ReportRun{
			ID:        id,
			Kind:      core.KindAll,
			Status:    core.RunSucceeded,
			Today:     core.NewDate(2024, 6, 1),
			StartedAt: base.Add(time.Duration(i) * time.Hour),
		}))
	}
	require.NoError(t, repo.RecordRun(ctx, core.ReportRun{
		ID: "run-b", Kind: core.KindAll, Status: core.RunFailed, Error: "sheet down",
		Today: core.NewDate(2024, 6, 1), StartedAt: base.Add(time.Hour), FinishedAt: base.Add(2 * time.Hour),
	}))

	runs, err := repo.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-c", runs[0].ID)
	assert.Equal(t, "run-b", runs[1].ID)
	assert.Equal(t, core.RunFailed, runs[1].Status)
	assert.Equal(t, "sheet down", runs[1].Error)
	assert.True(t, base.Add(2*time.Hour).Equal(runs[1].FinishedAt))

	one, err := repo.GetRun(ctx, "run-a")
	require.NoError(t, err)
	assert.Equal(t, core.KindAll, one.Kind)
	assert.Equal(t, core.NewDate(2024, 6, 1), one.Today)

	_, err = repo.GetRun(ctx, "missing")
	assert.ErrorIs(t, err, ErrRunNotFound)
}
