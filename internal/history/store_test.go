package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"nrega-scraper/internal/history/db"
	"nrega-scraper/internal/model"
	"nrega-scraper/lib/testutil"

	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) *Store {
	database := testutil.SetupDB(t, testutil.DBParams{})
	store, err := New(context.Background(), database)
	require.NoError(t, err)
	return store
}

func TestRecordAndRecent(t *testing.T) {
	ctx := context.Background()
	store := setup(t)
	base := time.Date(2025, 8, 26, 6, 0, 0, 0, time.UTC)

	for i, name := range []string{"tracking", "a1", "labour"} {
		err := store.RecordJob(ctx, "run-1", model.RunRecord{
			Timestamp: base.Add(time.Duration(i) * time.Second),
			JobName:   name,
			Status:    model.StatusOK,
			Duration:  1500 * time.Millisecond,
			Note:      name + " ok",
		}, 1)
		require.NoError(t, err)
	}

	entries, err := store.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "labour", entries[0].Record.JobName)
	require.Equal(t, "a1", entries[1].Record.JobName)
	require.Equal(t, "run-1", entries[0].RunID)
	require.Equal(t, model.StatusOK, entries[0].Record.Status)
	require.Equal(t, 1500*time.Millisecond, entries[0].Record.Duration)
	require.True(t, base.Add(2*time.Second).Equal(entries[0].Record.Timestamp))
}

func TestLast(t *testing.T) {
	ctx := context.Background()
	store := setup(t)

	_, ok, err := store.Last(ctx)
	require.NoError(t, err)
	require.False(t, ok)

	base := time.Date(2025, 8, 26, 6, 0, 0, 0, time.UTC)
	older := model.Summarize("run-1", base, base.Add(time.Minute), []model.JobOutcome{
		{Name: "a1", OK: true, Duration: time.Second},
	})
	newer := model.Summarize("run-2", base.Add(time.Hour), base.Add(time.Hour+time.Minute), []model.JobOutcome{
		{Name: "a1", OK: true, Duration: time.Second},
		{Name: "works", Duration: 2 * time.Second},
	})
	require.NoError(t, store.RecordSummary(ctx, newer))
	require.NoError(t, store.RecordSummary(ctx, older))

	last, ok, err := store.Last(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "run-2", last.RunID)
	require.Equal(t, model.BatchHasFail, last.Status)
	require.Equal(t, 1, last.Passed)
	require.Equal(t, 2, last.Total)
	require.Equal(t, 3*time.Second, last.Duration)
	require.NotZero(t, last.PID)

	batches, err := store.Batches(ctx, 10)
	require.NoError(t, err)
	require.Len(t, batches, 2)
	require.Equal(t, "run-1", batches[1].RunID)
}

func TestSchemaIsReapplicable(t *testing.T) {
	database := testutil.SetupDB(t, testutil.DBParams{Schema: db.Schema})
	_, err := New(context.Background(), database)
	require.NoError(t, err)
}

func TestConfig(t *testing.T) {
	require.False(t, Config{}.Enabled())
	require.True(t, Config{File: "<dev_state>/history.db"}.Enabled())

	_, err := Config{}.OpenDB()
	require.Error(t, err)
}

func TestOpenFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "history.db")

	store, err := Open(ctx, Config{File: path})
	require.NoError(t, err)
	require.NoError(t, store.RecordSummary(ctx, model.Summarize("run-1", time.Now(), time.Now(), nil)))
	require.NoError(t, store.Close())

	// reopening keeps what was recorded
	store, err = Open(ctx, Config{File: path})
	require.NoError(t, err)
	defer store.Close()
	_, ok, err := store.Last(ctx)
	require.NoError(t, err)
	require.True(t, ok)
}
