package storage

import (
	"strings"
	"testing"
	"time"

	"qvcs/internal/errors"
	"qvcs/internal/quantum"
	"qvcs/internal/storage"
	"qvcs/shared/types"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixed float64

func (f fixed) Float64() float64 { return float64(f) }

func setupTestDB(t *testing.T) *badger.DB {
	t.Helper()
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil // Disable logging for tests

	db, err := badger.Open(opts)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func change(path string, mappings ...shared.LineMapping) shared.FileChange {
	return shared.FileChange{
		Path:         path,
		Operation:    shared.Operation{Type: shared.Modify},
		ContentDelta: []byte(strings.Repeat(path, 10)),
		LineMappings: mappings,
	}
}

func populated(t *testing.T) *quantum.Repository {
	t.Helper()
	stamp := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	repo := quantum.New(
		quantum.WithDrawer(fixed(0.99)),
		quantum.WithClock(func() time.Time { return stamp }),
	)

	probs := map[string]float64{"main": 0.5, "dev": 0.5}
	a, err := repo.Register([]shared.FileChange{change("a.go", shared.LineMapping{Old: 1, New: 1})}, probs, quantum.WithMessage("first"))
	require.NoError(t, err)
	_, err = repo.Register([]shared.FileChange{change("a.go", shared.LineMapping{Old: 1, New: 1}), change("b.go")}, probs)
	require.NoError(t, err)
	_, err = repo.Register([]shared.FileChange{change("b.go")}, probs)
	require.NoError(t, err)

	require.NoError(t, repo.CollapseTo(a, "main"))
	return repo
}

func TestStoreRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	store, err := NewStore(db, 16)
	require.NoError(t, err)

	repo := populated(t)
	want := repo.Snapshot()
	require.NoError(t, store.Save(want))

	got, err := store.Load()
	require.NoError(t, err)

	restored, err := quantum.Restore(got)
	require.NoError(t, err)

	assert.Equal(t, want.Heads, got.Heads)
	assert.Equal(t, want.Edges, got.Edges)
	assert.ElementsMatch(t, want.Commits, restored.Snapshot().Commits)
	assert.Equal(t, repo.Heads(), restored.Heads())
	for _, c := range want.Commits {
		before, err := repo.Entanglements(c.ID)
		require.NoError(t, err)
		after, err := restored.Entanglements(c.ID)
		require.NoError(t, err)
		assert.Equal(t, before, after)
	}
}

func TestStoreSaveReplaces(t *testing.T) {
	db := setupTestDB(t)
	store, err := NewStore(db, 16)
	require.NoError(t, err)

	require.NoError(t, store.Save(populated(t).Snapshot()))
	require.NoError(t, store.Save(quantum.New().Snapshot()))

	got, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, got.Commits)
	assert.Empty(t, got.Heads)
	assert.Empty(t, got.Edges)
	assert.Empty(t, got.Index)
}

func TestStoreGetCommit(t *testing.T) {
	db := setupTestDB(t)
	store, err := NewStore(db, 2)
	require.NoError(t, err)

	snap := populated(t).Snapshot()
	require.NoError(t, store.Save(snap))

	first := snap.Commits[0]
	got, err := store.GetCommit(first.ID)
	require.NoError(t, err)
	assert.Equal(t, first, got)

	// Served from cache, still detached
	got.Message = "mutated"
	again, err := store.GetCommit(first.ID)
	require.NoError(t, err)
	assert.Equal(t, "first", again.Message)

	_, err = store.GetCommit(uuid.New())
	assert.True(t, errors.IsType(err, errors.ErrorTypeCommitNotFound))
}

func TestStoreCompressed(t *testing.T) {
	db := setupTestDB(t)
	codec, err := storage.NewCodec(storage.CompressionOptions{MinSize: 32, Level: 1})
	require.NoError(t, err)
	store, err := NewStore(db, 8, storage.WithCodec(codec))
	require.NoError(t, err)

	snap := populated(t).Snapshot()
	require.NoError(t, store.Save(snap))

	got, err := store.Load()
	require.NoError(t, err)
	assert.ElementsMatch(t, snap.Commits, got.Commits)
}
