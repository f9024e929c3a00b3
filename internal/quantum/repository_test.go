package quantum

import (
	"sync"
	"testing"
	"time"

	"qvcs/internal/errors"
	"qvcs/shared/types"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sequence replays fixed draws, cycling when it runs out
type sequence struct {
	draws []float64
	next  int
}

func (s *sequence) Float64() float64 {
	v := s.draws[s.next%len(s.draws)]
	s.next++
	return v
}

func draws(d ...float64) *sequence {
	return &sequence{draws: d}
}

func change(path string, mappings ...shared.LineMapping) shared.FileChange {
	return shared.FileChange{
		Path:         path,
		Operation:    shared.Operation{Type: shared.Modify},
		ContentDelta: []byte("delta for " + path),
		LineMappings: mappings,
	}
}

func lm(old, new int) shared.LineMapping {
	return shared.LineMapping{Old: old, New: new}
}

func mustRegister(t *testing.T, r *Repository, changes []shared.FileChange, probs map[string]float64) uuid.UUID {
	t.Helper()
	id, err := r.Register(changes, probs)
	require.NoError(t, err)
	return id
}

func TestRegisterValidatesDistribution(t *testing.T) {
	tests := []struct {
		name    string
		probs   map[string]float64
		wantErr bool
		total   float64
	}{
		{name: "exact", probs: map[string]float64{"main": 0.6, "dev": 0.4}},
		{name: "within tolerance low", probs: map[string]float64{"main": 0.9995}},
		{name: "within tolerance high", probs: map[string]float64{"main": 0.5, "dev": 0.5009}},
		{name: "too low", probs: map[string]float64{"main": 0.5}, wantErr: true, total: 0.5},
		{name: "too high", probs: map[string]float64{"main": 0.6, "dev": 0.402}, wantErr: true, total: 1.002},
		{name: "empty", probs: map[string]float64{}, wantErr: true, total: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New(WithDrawer(draws(0)))
			id, err := r.Register([]shared.FileChange{change("a.txt")}, tt.probs)

			if !tt.wantErr {
				require.NoError(t, err)
				assert.NotEqual(t, uuid.Nil, id)
				return
			}

			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrorTypeInvalidProbability))
			var qe *errors.Error
			require.ErrorAs(t, err, &qe)
			assert.InDelta(t, tt.total, qe.Details.(float64), 1e-9)

			// Rejected before any mutation
			assert.Empty(t, r.Commits())
			assert.Empty(t, r.Snapshot().Index)
			assert.Empty(t, r.Snapshot().Edges)
		})
	}
}

func TestRegisterAssignsUniqueIDs(t *testing.T) {
	r := New()
	seen := make(map[uuid.UUID]bool)
	for i := 0; i < 50; i++ {
		id := mustRegister(t, r, nil, map[string]float64{"main": 1})
		assert.False(t, seen[id], "id reused: %s", id)
		seen[id] = true
	}
	assert.Len(t, r.Commits(), 50)
}

func TestRegisterContentHashIsPure(t *testing.T) {
	r := New()
	changes := []shared.FileChange{change("a.txt", lm(1, 1)), change("b.txt")}

	a := mustRegister(t, r, changes, map[string]float64{"main": 1})
	b := mustRegister(t, r, changes, map[string]float64{"main": 0.3, "dev": 0.7})

	ca, err := r.Commit(a)
	require.NoError(t, err)
	cb, err := r.Commit(b)
	require.NoError(t, err)
	assert.Equal(t, ca.ContentHash, cb.ContentHash)
	assert.Len(t, ca.ContentHash, 64)
}

func TestRegisterStoresCommit(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	r := New(WithClock(func() time.Time { return now }))
	changes := []shared.FileChange{change("a.txt", lm(1, 1))}

	id, err := r.Register(changes, map[string]float64{"main": 0.6, "dev": 0.4},
		WithMessage("add a"), WithAuthor("dev@example.com"))
	require.NoError(t, err)

	// Caller's slice is not aliased
	changes[0].ContentDelta[0] = 'X'

	c, err := r.Commit(id)
	require.NoError(t, err)
	assert.Equal(t, id, c.ID)
	assert.Equal(t, uint64(1), c.Seq)
	assert.False(t, c.Collapsed)
	assert.Equal(t, now, c.Timestamp)
	assert.Equal(t, "add a", c.Message)
	assert.Equal(t, "dev@example.com", c.Author)
	assert.Equal(t, map[string]float64{"main": 0.6, "dev": 0.4}, c.SuperpositionStates)
	assert.Equal(t, "delta for a.txt", string(c.Changes[0].ContentDelta))
	assert.Equal(t, []uuid.UUID{id}, r.Superposed("a.txt"))
}

func TestCommitReturnsCopy(t *testing.T) {
	r := New()
	id := mustRegister(t, r, []shared.FileChange{change("a.txt")}, map[string]float64{"main": 1})

	c, err := r.Commit(id)
	require.NoError(t, err)
	c.SuperpositionStates["main"] = 0
	c.Changes[0].Path = "elsewhere"

	again, err := r.Commit(id)
	require.NoError(t, err)
	assert.Equal(t, 1.0, again.SuperpositionStates["main"])
	assert.Equal(t, "a.txt", again.Changes[0].Path)

	_, err = r.Commit(uuid.New())
	assert.True(t, errors.IsType(err, errors.ErrorTypeCommitNotFound))
}

func TestEntanglement(t *testing.T) {
	probs := map[string]float64{"main": 0.5, "dev": 0.5}

	t.Run("shared path links both ways", func(t *testing.T) {
		r := New()
		a := mustRegister(t, r, []shared.FileChange{change("a.txt", lm(1, 1), lm(2, 2))}, probs)
		b := mustRegister(t, r, []shared.FileChange{change("a.txt", lm(2, 2), lm(3, 3))}, probs)

		cb, err := r.Commit(b)
		require.NoError(t, err)
		assert.Equal(t, []uuid.UUID{a}, cb.EntangledCommits)

		fromA, err := r.Entanglements(a)
		require.NoError(t, err)
		require.Len(t, fromA, 1)
		assert.Equal(t, b, fromA[0].Commit)
		assert.InDelta(t, 1.0/3.0, fromA[0].Strength, 1e-9)

		fromB, err := r.Entanglements(b)
		require.NoError(t, err)
		require.Len(t, fromB, 1)
		assert.Equal(t, a, fromB[0].Commit)
		assert.GreaterOrEqual(t, fromB[0].Strength, 0.0)
		assert.LessOrEqual(t, fromB[0].Strength, 1.0)
	})

	t.Run("disjoint paths stay unlinked", func(t *testing.T) {
		r := New()
		mustRegister(t, r, []shared.FileChange{change("a.txt", lm(1, 1))}, probs)
		c := mustRegister(t, r, []shared.FileChange{change("b.txt", lm(1, 1))}, probs)

		cc, err := r.Commit(c)
		require.NoError(t, err)
		assert.Empty(t, cc.EntangledCommits)
		edges, err := r.Entanglements(c)
		require.NoError(t, err)
		assert.Empty(t, edges)
	})

	t.Run("empty mappings give zero strength", func(t *testing.T) {
		r := New()
		a := mustRegister(t, r, []shared.FileChange{change("a.txt")}, probs)
		mustRegister(t, r, []shared.FileChange{change("a.txt")}, probs)

		edges, err := r.Entanglements(a)
		require.NoError(t, err)
		require.Len(t, edges, 1)
		assert.Equal(t, 0.0, edges[0].Strength)
	})

	t.Run("strength sums paths and divides by change count", func(t *testing.T) {
		r := New()
		a := mustRegister(t, r, []shared.FileChange{
			change("a.txt", lm(1, 1)),
			change("b.txt", lm(1, 1)),
		}, probs)
		mustRegister(t, r, []shared.FileChange{
			change("a.txt", lm(1, 1)),
			change("b.txt", lm(5, 5)),
			change("c.txt"),
			change("d.txt"),
		}, probs)

		edges, err := r.Entanglements(a)
		require.NoError(t, err)
		require.Len(t, edges, 1)
		assert.InDelta(t, 0.25, edges[0].Strength, 1e-9)
	})

	t.Run("strength capped at one", func(t *testing.T) {
		r := New()
		a := mustRegister(t, r, []shared.FileChange{
			change("a.txt", lm(1, 1)),
			change("a.txt", lm(1, 1)),
		}, probs)
		mustRegister(t, r, []shared.FileChange{change("a.txt", lm(1, 1))}, probs)

		edges, err := r.Entanglements(a)
		require.NoError(t, err)
		require.Len(t, edges, 1)
		assert.Equal(t, 1.0, edges[0].Strength)
	})

	t.Run("collapsed commits are not candidates", func(t *testing.T) {
		r := New(WithDrawer(draws(0)))
		a := mustRegister(t, r, []shared.FileChange{change("a.txt", lm(1, 1))}, map[string]float64{"main": 1})
		_, err := r.Observe("main")
		require.NoError(t, err)

		b := mustRegister(t, r, []shared.FileChange{change("a.txt", lm(1, 1))}, probs)
		cb, err := r.Commit(b)
		require.NoError(t, err)
		assert.Empty(t, cb.EntangledCommits)

		// Collapsed ids stay in the raw index; readers filter them
		assert.Equal(t, []uuid.UUID{a, b}, r.Snapshot().Index["a.txt"])
		assert.Equal(t, []uuid.UUID{b}, r.Superposed("a.txt"))
	})

	t.Run("empty change list registers without edges", func(t *testing.T) {
		r := New()
		mustRegister(t, r, []shared.FileChange{change("a.txt")}, probs)
		id := mustRegister(t, r, nil, probs)

		edges, err := r.Entanglements(id)
		require.NoError(t, err)
		assert.Empty(t, edges)
	})
}

func TestRegisterIsSerialized(t *testing.T) {
	r := New()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.Register([]shared.FileChange{change("shared.txt", lm(1, 1))}, map[string]float64{"main": 1})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	commits := r.Commits()
	require.Len(t, commits, 20)
	for i, c := range commits {
		assert.Equal(t, uint64(i+1), c.Seq)
		assert.Len(t, c.EntangledCommits, i)
	}
	// Every pair is linked exactly once: n(n-1)/2 edges
	assert.Len(t, r.Snapshot().Edges, 190)
}

func TestLastChangeAndBranchCommits(t *testing.T) {
	r := New(WithDrawer(draws(0)))
	first := change("a.txt")
	first.ContentDelta = []byte("v1")
	second := change("a.txt")
	second.ContentDelta = []byte("v2")

	a := mustRegister(t, r, []shared.FileChange{first}, map[string]float64{"main": 1})
	mustRegister(t, r, []shared.FileChange{second, change("b.txt")}, map[string]float64{"dev": 1})

	last, ok := r.LastChange("a.txt")
	require.True(t, ok)
	assert.Equal(t, "v2", string(last.ContentDelta))
	_, ok = r.LastChange("missing.txt")
	assert.False(t, ok)

	_, err := r.Observe("main")
	require.NoError(t, err)

	onMain := r.BranchCommits("main")
	require.Len(t, onMain, 1)
	assert.Equal(t, a, onMain[0].ID)
	assert.Empty(t, r.BranchCommits("dev"))
}
