package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"purchasing/internal/core"
	"purchasing/internal/log"
	"purchasing/internal/sheets/memory"
)

func TestImportService_Import(t *testing.T) {
	from := fixtureStore()
	to := memory.New(nil, []core.Event{{ItemID: "STALE", Date: core.NewDate(2023, 1, 1)}}, nil)
	svc := NewImportService(from, to, log.Discard())
	svc.now = func() time.Time { return fixedNow }

	res, err := svc.Import(context.Background(), core.Date{})
	require.NoError(t, err)
	assert.Equal(t, ImportResult{Receipts: 5, Pending: 2, History: 3}, res)

	pending, err := to.ListPending(context.Background())
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "A-1", pending[0].ItemID)

	again, err := svc.Import(context.Background(), core.Date{})
	require.NoError(t, err)
	assert.Zero(t, again.Receipts, "re-import adds nothing")
	assert.Zero(t, again.History)
}

func TestImportService_WindowsOff(t *testing.T) {
	to := memory.New(nil, nil, nil)
	svc := NewImportService(fixtureStore(), to, log.Discard())
	svc.SetWindows(0, core.Date{})

	res, err := svc.Import(context.Background(), core.NewDate(2024, 6, 1))
	require.NoError(t, err)
	assert.Equal(t, 6, res.Receipts)
	assert.Equal(t, 4, res.History)
}

func TestImportService_NotInitialized(t *testing.T) {
	svc := NewImportService(nil, nil, log.Discard())
	_, err := svc.Import(context.Background(), core.Date{})
	assert.Error(t, err)
}
