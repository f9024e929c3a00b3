package quantum

import (
	"cmp"
	"math"
	"slices"
	"sync"
	"time"

	"qvcs/internal/entangle"
	"qvcs/internal/errors"
	"qvcs/shared/types"
	"qvcs/shared/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Repository is the single-writer aggregate. Every exported method takes the
// same lock, so registration, observation and reads never interleave.
type Repository struct {
	mu sync.Mutex

	commits map[uuid.UUID]*Commit
	order   []uuid.UUID // registration order, index == Seq-1
	heads   map[string]uuid.UUID
	graph   *entangle.Graph
	index   map[string][]uuid.UUID // path -> every commit that touched it while superposed

	drawer Drawer
	now    func() time.Time
	hash   utils.Hasher
	logger *zap.Logger
}

func New(opts ...Option) *Repository {
	r := &Repository{
		commits: make(map[uuid.UUID]*Commit),
		heads:   make(map[string]uuid.UUID),
		graph:   entangle.NewGraph(),
		index:   make(map[string][]uuid.UUID),
		now:     time.Now,
		hash:    utils.Hash,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.drawer == nil {
		r.drawer = NewSeededDrawer(0)
	}
	return r
}

// Register creates a commit superposed across the given branches. The
// distribution must sum to 1.0 within ProbabilityTolerance. Every uncollapsed
// commit sharing a path with changes becomes entangled with the new one.
func (r *Repository) Register(changes []shared.FileChange, probabilities map[string]float64, opts ...CommitOption) (uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var total float64
	for _, b := range utils.SortedKeys(probabilities) {
		total += probabilities[b]
	}
	if math.IsNaN(total) || math.Abs(total-1.0) > ProbabilityTolerance {
		return uuid.Nil, errors.InvalidProbabilityDistribution(total)
	}

	id := uuid.New()
	for r.commits[id] != nil {
		id = uuid.New()
	}

	// Everything that can fail happens before the aggregate is touched
	candidates := r.entanglementCandidates(changes)
	strengths := make([]float64, len(candidates))
	for i, other := range candidates {
		s, err := r.entanglementStrength(changes, other)
		if err != nil {
			return uuid.Nil, err
		}
		strengths[i] = s
	}

	commit := &Commit{
		ID:                  id,
		Seq:                 uint64(len(r.order)) + 1,
		ContentHash:         utils.ContentHash(r.hash, changes),
		SuperpositionStates: make(map[string]float64, len(probabilities)),
		EntangledCommits:    candidates,
		Timestamp:           r.now(),
		Changes:             shared.CloneChanges(changes),
	}
	for b, p := range probabilities {
		commit.SuperpositionStates[b] = p
	}
	for _, opt := range opts {
		opt(commit)
	}

	node := r.graph.AddNode(id)
	for i, other := range candidates {
		otherNode, _ := r.graph.Node(other)
		r.graph.AddEdge(node, otherNode, strengths[i])
	}
	for _, path := range commit.Paths() {
		r.index[path] = append(r.index[path], id)
	}
	r.commits[id] = commit
	r.order = append(r.order, id)

	recordRegister(len(candidates))
	r.logger.Debug("registered superposed commit",
		zap.String("commit", id.String()),
		zap.Strings("branches", utils.SortedKeys(probabilities)),
		zap.Int("changes", len(changes)),
		zap.Int("entangled", len(candidates)),
	)
	return id, nil
}

// entanglementCandidates returns uncollapsed commits that touched any of the
// paths in changes, ordered by registration
func (r *Repository) entanglementCandidates(changes []shared.FileChange) []uuid.UUID {
	seen := make(map[uuid.UUID]bool)
	var out []uuid.UUID
	for _, ch := range changes {
		for _, id := range r.index[ch.Path] {
			if seen[id] {
				continue
			}
			seen[id] = true
			if c, ok := r.commits[id]; ok && !c.Collapsed {
				out = append(out, id)
			}
		}
	}
	slices.SortFunc(out, func(a, b uuid.UUID) int {
		return cmp.Compare(r.commits[a].Seq, r.commits[b].Seq)
	})
	return out
}

// entanglementStrength sums the line-mapping Jaccard similarity of every pair
// of changes sharing a path, divided by the new commit's change count, capped at 1
func (r *Repository) entanglementStrength(changes []shared.FileChange, other uuid.UUID) (float64, error) {
	otherCommit, ok := r.commits[other]
	if !ok {
		return 0, errors.CommitNotFound(other.String())
	}
	if len(changes) == 0 {
		return 0, nil
	}

	var overlap float64
	for _, ch := range changes {
		for _, oc := range otherCommit.Changes {
			if ch.Path == oc.Path {
				overlap += lineOverlap(ch.LineMappings, oc.LineMappings)
			}
		}
	}
	return math.Min(overlap/float64(len(changes)), 1.0), nil
}

// lineOverlap is the Jaccard index of two mapping sets; 0 when both are empty
func lineOverlap(a, b []shared.LineMapping) float64 {
	setA := make(map[shared.LineMapping]struct{}, len(a))
	for _, m := range a {
		setA[m] = struct{}{}
	}
	setB := make(map[shared.LineMapping]struct{}, len(b))
	for _, m := range b {
		setB[m] = struct{}{}
	}

	var intersection int
	for m := range setA {
		if _, ok := setB[m]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// Commit returns a copy of the commit
func (r *Repository) Commit(id uuid.UUID) (*Commit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.commits[id]
	if !ok {
		return nil, errors.CommitNotFound(id.String())
	}
	return c.Clone(), nil
}

// Commits returns copies of every commit in registration order
func (r *Repository) Commits() []*Commit {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*Commit, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.commits[id].Clone())
	}
	return out
}

func (r *Repository) Head(branch string) (uuid.UUID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.heads[branch]
	return id, ok
}

// Heads returns a copy of the branch -> head map
func (r *Repository) Heads() map[string]uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]uuid.UUID, len(r.heads))
	for b, id := range r.heads {
		out[b] = id
	}
	return out
}

// Superposed returns the commits on path that are still uncollapsed. The raw
// index keeps collapsed ids too; this applies the filter.
func (r *Repository) Superposed(path string) []uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []uuid.UUID
	for _, id := range r.index[path] {
		if c, ok := r.commits[id]; ok && !c.Collapsed {
			out = append(out, id)
		}
	}
	return out
}

// Entanglements lists every edge touching the commit, parallel edges included
func (r *Repository) Entanglements(id uuid.UUID) ([]Entanglement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	node, ok := r.graph.Node(id)
	if !ok {
		return nil, errors.CommitNotFound(id.String())
	}
	edges := r.graph.EdgesOf(node)
	out := make([]Entanglement, 0, len(edges))
	for _, e := range edges {
		other := e.A
		if other == node {
			other = e.B
		}
		out = append(out, Entanglement{Commit: r.graph.Commit(other), Strength: e.Weight})
	}
	return out, nil
}

// BranchCommits returns copies of the commits collapsed onto branch, in
// registration order
func (r *Repository) BranchCommits(branch string) []*Commit {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*Commit
	for _, id := range r.order {
		c := r.commits[id]
		if b, ok := c.Branch(); ok && b == branch {
			out = append(out, c.Clone())
		}
	}
	return out
}

// LastChange returns the most recently registered change to path
func (r *Repository) LastChange(path string) (shared.FileChange, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := len(r.order) - 1; i >= 0; i-- {
		changes := r.commits[r.order[i]].Changes
		for j := len(changes) - 1; j >= 0; j-- {
			if changes[j].Path == path {
				return changes[j].Clone(), true
			}
		}
	}
	return shared.FileChange{}, false
}
