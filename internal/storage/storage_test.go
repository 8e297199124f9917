package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), ".ghost", "ghost.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestOpenCreatesDirectoryAndSchema(t *testing.T) {
	store := newTestStore(t)

	records, err := store.ListRecent(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestRecordLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	started := time.Now().Add(-time.Minute)
	require.NoError(t, store.RecordStart(ctx, &SessionRecord{
		ID:        "s-1",
		Path:      "/proj/app.py",
		Kind:      "MODIFIED",
		Outcome:   "PENDING",
		StartedAt: started,
	}))

	// Unfinished sessions list with a zero finish time.
	records, err := store.ListRecent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "PENDING", records[0].Outcome)
	assert.True(t, records[0].FinishedAt.IsZero())

	require.NoError(t, store.RecordFinish(ctx, &SessionRecord{
		ID:         "s-1",
		Outcome:    "PASSED",
		Attempts:   2,
		Diagnostic: "",
		FinishedAt: time.Now(),
	}))

	records, err = store.ListRecent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "PASSED", records[0].Outcome)
	assert.Equal(t, 2, records[0].Attempts)
	assert.Equal(t, "/proj/app.py", records[0].Path)
	assert.False(t, records[0].FinishedAt.IsZero())
}

func TestListRecentOrdersNewestFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	for i, id := range []string{"s-old", "s-mid", "s-new"} {
		require.NoError(t, store.RecordStart(ctx, &SessionRecord{
			ID:        id,
			Path:      "/proj/app.py",
			Kind:      "MODIFIED",
			Outcome:   "PENDING",
			StartedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	records, err := store.ListRecent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "s-new", records[0].ID)
	assert.Equal(t, "s-old", records[2].ID)

	// The limit truncates from the old end.
	records, err = store.ListRecent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "s-new", records[0].ID)
}

func TestRecordStartRejectsDuplicateID(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rec := &SessionRecord{
		ID:        "dup",
		Path:      "/proj/app.py",
		Kind:      "CREATED",
		Outcome:   "PENDING",
		StartedAt: time.Now(),
	}
	require.NoError(t, store.RecordStart(ctx, rec))
	assert.Error(t, store.RecordStart(ctx, rec))
}
