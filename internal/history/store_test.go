package history_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ribodb/internal/history"
	"ribodb/internal/ledger"
)

func openStore(t *testing.T) *history.Store {
	t.Helper()
	store, err := history.Open(context.Background(), filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestRecordRunRoundTrip(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	run := history.Run{
		ID:         uuid.New(),
		StartedAt:  start,
		FinishedAt: start.Add(90 * time.Second),
		Status:     ledger.StatusPass,
		Items:      2,
		Sequences:  7,
		ConfigPath: "/tmp/ribodb.toml",
	}
	entries := []ledger.Entry{
		{Item: "SRR1", Status: ledger.StatusPass, Stage: "assembly", Note: "contigs written"},
		{Item: "SRR2", Status: ledger.StatusFail, Stage: "reference", Note: "distance 0.3"},
		{Item: ledger.Global, Status: ledger.StatusPass, Stage: "aggregate", Note: "7 sequences from 1 items"},
	}
	require.NoError(t, store.RecordRun(ctx, run, entries))

	runs, err := store.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, run.ID, runs[0].ID)
	assert.True(t, runs[0].StartedAt.Equal(start))
	assert.Equal(t, 90*time.Second, runs[0].Duration())
	assert.Equal(t, ledger.StatusPass, runs[0].Status)
	assert.Equal(t, 7, runs[0].Sequences)
	assert.Equal(t, "/tmp/ribodb.toml", runs[0].ConfigPath)

	got, err := store.Entries(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, entries, got)
}

func TestListRunsNewestFirstWithLimit(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var ids []uuid.UUID
	for i := range 3 {
		id := uuid.New()
		ids = append(ids, id)
		started := base.Add(time.Duration(i) * time.Hour)
		require.NoError(t, store.RecordRun(ctx, history.Run{
			ID: id, StartedAt: started, FinishedAt: started, Status: ledger.StatusFail,
		}, nil))
	}

	runs, err := store.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, ids[2], runs[0].ID)
	assert.Equal(t, ids[1], runs[1].ID)
}

func TestItemHistoryAcrossRuns(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	first := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	second := first.Add(24 * time.Hour)
	runA, runB := uuid.New(), uuid.New()
	require.NoError(t, store.RecordRun(ctx, history.Run{ID: runA, StartedAt: first, FinishedAt: first, Status: ledger.StatusFail},
		[]ledger.Entry{{Item: "SRR9", Status: ledger.StatusError, Stage: "taxonomy", Note: "kraken2 failed"}}))
	require.NoError(t, store.RecordRun(ctx, history.Run{ID: runB, StartedAt: second, FinishedAt: second, Status: ledger.StatusPass},
		[]ledger.Entry{
			{Item: "SRR8", Status: ledger.StatusPass, Stage: "assembly"},
			{Item: "SRR9", Status: ledger.StatusPass, Stage: "assembly"},
		}))

	records, err := store.ItemHistory(ctx, "SRR9")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, runB, records[0].RunID)
	assert.Equal(t, ledger.StatusPass, records[0].Entry.Status)
	assert.Equal(t, runA, records[1].RunID)
	assert.Equal(t, "kraken2 failed", records[1].Entry.Note)

	_, err = store.ItemHistory(ctx, " ")
	assert.Error(t, err)
}

func TestRecordRunRequiresID(t *testing.T) {
	store := openStore(t)
	assert.Error(t, store.RecordRun(context.Background(), history.Run{}, nil))
}

func TestReopenKeepsRuns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	ctx := context.Background()
	store, err := history.Open(ctx, path)
	require.NoError(t, err)
	now := time.Now()
	require.NoError(t, store.RecordRun(ctx, history.Run{ID: uuid.New(), StartedAt: now, FinishedAt: now, Status: ledger.StatusPass}, nil))
	require.NoError(t, store.Close())

	reopened, err := history.Open(ctx, path)
	require.NoError(t, err)
	defer reopened.Close()
	runs, err := reopened.ListRuns(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}
