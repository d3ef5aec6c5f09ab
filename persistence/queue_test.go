package persistence

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestStore creates a database in a temporary directory
func setupTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := NewStore(filepath.Join(t.TempDir(), "state", DefaultDBName))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestQueueLoadEmpty(t *testing.T) {
	t.Parallel()

	q := NewQueue(setupTestStore(t), "", nil)

	rec, ok, err := q.Load(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, rec.Words)
}

func TestQueueSaveLoadAdvance(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	q := NewQueue(setupTestStore(t), "test", nil)

	require.NoError(t, q.Save(ctx, Record{Words: []string{"alpha", "beta"}}))

	rec, ok, err := q.Load(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, Record{Words: []string{"alpha", "beta"}, Cursor: 0}, rec)
	assert.Equal(t, 2, rec.Remaining())

	rec, err = q.Advance(ctx, rec)
	require.NoError(t, err)
	assert.Equal(t, 1, rec.Cursor)

	rec, err = q.Advance(ctx, rec)
	require.NoError(t, err)
	assert.True(t, rec.Exhausted())

	_, err = q.Advance(ctx, rec)
	assert.ErrorIs(t, err, ErrInvalidRecord)

	loaded, ok, err := q.Load(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2, loaded.Cursor)
	assert.True(t, loaded.Exhausted())
}

func TestQueueClear(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	q := NewQueue(setupTestStore(t), "", nil)

	require.NoError(t, q.Save(ctx, Record{Words: []string{"alpha"}, Cursor: 1}))
	require.NoError(t, q.Clear(ctx))

	_, ok, err := q.Load(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	// clearing an empty queue is fine
	require.NoError(t, q.Clear(ctx))
}

func TestQueueSaveRejectsOutOfRangeCursor(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	q := NewQueue(setupTestStore(t), "", nil)

	assert.ErrorIs(t, q.Save(ctx, Record{Words: []string{"a"}, Cursor: 2}), ErrInvalidRecord)
	assert.ErrorIs(t, q.Save(ctx, Record{Words: []string{"a"}, Cursor: -1}), ErrInvalidRecord)

	_, ok, err := q.Load(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestQueueNamespacesAreIsolated(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := setupTestStore(t)
	a := NewQueue(store, "a", nil)
	b := NewQueue(store, "b", nil)

	require.NoError(t, a.Save(ctx, Record{Words: []string{"one"}}))

	_, ok, err := b.Load(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestQueueLoadCorruptValues(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		values map[string]string
		wantOK bool
		want   Record
	}{
		{
			name:   "bad json",
			values: map[string]string{keyWords: "{not json", keyIndex: "0"},
		},
		{
			name:   "bad index",
			values: map[string]string{keyWords: `["a","b"]`, keyIndex: "two"},
		},
		{
			name:   "negative index",
			values: map[string]string{keyWords: `["a","b"]`, keyIndex: "-3"},
		},
		{
			name:   "missing index defaults to zero",
			values: map[string]string{keyWords: `["a","b"]`},
			wantOK: true,
			want:   Record{Words: []string{"a", "b"}, Cursor: 0},
		},
		{
			name:   "index beyond batch reads as exhausted",
			values: map[string]string{keyWords: `["a","b"]`, keyIndex: "9"},
			wantOK: true,
			want:   Record{Words: []string{"a", "b"}, Cursor: 2},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			store := setupTestStore(t)
			require.NoError(t, store.setValues(ctx, DefaultNamespace, tt.values))

			rec, ok, err := NewQueue(store, "", nil).Load(ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, rec)
			}
		})
	}
}

func TestQueueSurvivesReopen(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), DefaultDBName)

	store, err := NewStore(path)
	require.NoError(t, err)
	require.NoError(t, NewQueue(store, "", nil).Save(ctx, Record{Words: []string{"alpha", "beta"}, Cursor: 1}))
	require.NoError(t, store.Close())

	reopened, err := NewStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	rec, ok, err := NewQueue(reopened, "", nil).Load(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, Record{Words: []string{"alpha", "beta"}, Cursor: 1}, rec)
}

func TestQueueStorageUnavailable(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := setupTestStore(t)
	q := NewQueue(store, "", nil)
	require.NoError(t, store.Close())

	_, _, err := q.Load(ctx)
	assert.ErrorIs(t, err, ErrStorageUnavailable)
	assert.ErrorIs(t, q.Save(ctx, Record{Words: []string{"a"}}), ErrStorageUnavailable)
	assert.ErrorIs(t, q.Clear(ctx), ErrStorageUnavailable)
}

func TestDailyStats(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := setupTestStore(t)

	stats, err := store.TodayStats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.SearchesSubmitted)

	require.NoError(t, store.IncrementDailyStat(ctx, StatSearchesSubmitted))
	require.NoError(t, store.IncrementDailyStat(ctx, StatSearchesSubmitted))
	require.NoError(t, store.IncrementDailyStat(ctx, StatFetchFailures))
	assert.Error(t, store.IncrementDailyStat(ctx, "id"))

	stats, err = store.TodayStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.SearchesSubmitted)
	assert.Equal(t, 1, stats.FetchFailures)
	assert.Zero(t, stats.ResultsClicked)
}
