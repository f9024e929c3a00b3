package quantum

import (
	"testing"

	"qvcs/internal/errors"
	"qvcs/shared/types"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	r := New(WithDrawer(draws(0.1, 0.9)))
	a := mustRegister(t, r, []shared.FileChange{change("f", lm(1, 1))}, map[string]float64{"main": 0.6, "dev": 0.4})
	b := mustRegister(t, r, []shared.FileChange{change("f", lm(1, 1), lm(2, 2))}, map[string]float64{"main": 0.5, "dev": 0.5})
	_, err := r.Observe("main")
	require.NoError(t, err)

	snap := r.Snapshot()
	restored, err := Restore(snap, WithDrawer(draws(0)))
	require.NoError(t, err)

	assert.Equal(t, snap, restored.Snapshot())

	head, ok := restored.Head("main")
	require.True(t, ok)
	assert.Equal(t, a, head)

	edges, err := restored.Entanglements(b)
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, a, edges[0].Commit)
	assert.InDelta(t, 0.5, edges[0].Strength, 1e-12)

	// The restored graph keeps working: a new commit on f links to b only
	c := mustRegister(t, restored, []shared.FileChange{change("f")}, map[string]float64{"dev": 1})
	cc, err := restored.Commit(c)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{b}, cc.EntangledCommits)
	assert.Equal(t, uint64(3), cc.Seq)
}

func TestSnapshotIsDetached(t *testing.T) {
	r := New()
	id := mustRegister(t, r, []shared.FileChange{change("f")}, map[string]float64{"main": 1})

	snap := r.Snapshot()
	snap.Commits[0].SuperpositionStates["main"] = 0
	snap.Index["f"][0] = uuid.Nil

	assert.Equal(t, 1.0, states(t, r, id)["main"])
	assert.Equal(t, []uuid.UUID{id}, r.Superposed("f"))
}

func TestRestoreRejectsDanglingReferences(t *testing.T) {
	known := &Commit{ID: uuid.New(), Seq: 1, SuperpositionStates: map[string]float64{"main": 1}}
	missing := uuid.New()

	tests := []struct {
		name string
		snap Snapshot
	}{
		{"edge", Snapshot{Commits: []*Commit{known}, Edges: []Edge{{From: known.ID, To: missing}}}},
		{"head", Snapshot{Commits: []*Commit{known}, Heads: map[string]uuid.UUID{"main": missing}}},
		{"index", Snapshot{Commits: []*Commit{known}, Index: map[string][]uuid.UUID{"f": {missing}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Restore(tt.snap)
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrorTypeCommitNotFound))
		})
	}
}

func TestRestoreRejectsDuplicateCommits(t *testing.T) {
	c := &Commit{ID: uuid.New(), Seq: 1}
	_, err := Restore(Snapshot{Commits: []*Commit{c, c}})
	assert.Error(t, err)
}
