package quantum

import (
	"cmp"
	"fmt"
	"slices"

	"qvcs/internal/entangle"
	"qvcs/internal/errors"

	"github.com/google/uuid"
)

// Edge is a graph edge addressed by commit id rather than node index
type Edge struct {
	From   uuid.UUID `json:"from"`
	To     uuid.UUID `json:"to"`
	Weight float64   `json:"weight"`
}

// Snapshot is a detached copy of the whole aggregate. Commits are in
// registration order and edges in insertion order, so Restore rebuilds an
// identical graph.
type Snapshot struct {
	Commits []*Commit              `json:"commits"`
	Heads   map[string]uuid.UUID   `json:"heads"`
	Edges   []Edge                 `json:"edges"`
	Index   map[string][]uuid.UUID `json:"index"`
}

func (r *Repository) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := Snapshot{
		Commits: make([]*Commit, 0, len(r.order)),
		Heads:   make(map[string]uuid.UUID, len(r.heads)),
		Index:   make(map[string][]uuid.UUID, len(r.index)),
	}
	for _, id := range r.order {
		snap.Commits = append(snap.Commits, r.commits[id].Clone())
	}
	for b, id := range r.heads {
		snap.Heads[b] = id
	}
	for _, e := range r.graph.Edges() {
		snap.Edges = append(snap.Edges, Edge{
			From:   r.graph.Commit(e.A),
			To:     r.graph.Commit(e.B),
			Weight: e.Weight,
		})
	}
	for path, ids := range r.index {
		snap.Index[path] = append([]uuid.UUID(nil), ids...)
	}
	return snap
}

// Restore rebuilds a repository from a snapshot. Commits are ordered by Seq;
// any edge, head or index entry naming an unknown commit is rejected.
func Restore(snap Snapshot, opts ...Option) (*Repository, error) {
	r := New(opts...)

	commits := slices.Clone(snap.Commits)
	slices.SortFunc(commits, func(a, b *Commit) int { return cmp.Compare(a.Seq, b.Seq) })
	for _, c := range commits {
		if _, dup := r.commits[c.ID]; dup {
			return nil, fmt.Errorf("restoring snapshot: duplicate commit %s", c.ID)
		}
		c = c.Clone()
		c.Seq = uint64(len(r.order)) + 1
		r.commits[c.ID] = c
		r.order = append(r.order, c.ID)
		r.graph.AddNode(c.ID)
	}

	nodeOf := func(id uuid.UUID) (entangle.NodeIndex, error) {
		n, ok := r.graph.Node(id)
		if !ok {
			return 0, fmt.Errorf("restoring snapshot: %w", errors.CommitNotFound(id.String()))
		}
		return n, nil
	}
	for _, e := range snap.Edges {
		from, err := nodeOf(e.From)
		if err != nil {
			return nil, err
		}
		to, err := nodeOf(e.To)
		if err != nil {
			return nil, err
		}
		r.graph.AddEdge(from, to, e.Weight)
	}

	for b, id := range snap.Heads {
		if _, err := nodeOf(id); err != nil {
			return nil, err
		}
		r.heads[b] = id
	}
	for path, ids := range snap.Index {
		for _, id := range ids {
			if _, err := nodeOf(id); err != nil {
				return nil, err
			}
		}
		r.index[path] = append([]uuid.UUID(nil), ids...)
	}
	return r, nil
}
