// Package quantum owns the repository aggregate: commits held in superposition
// across branches, the per-file superposition index, the entanglement graph and
// the branch heads. Commits are registered with a probability per branch and
// later collapsed onto one branch by an observation.
package quantum

import (
	"maps"
	"math/rand/v2"
	"time"

	"qvcs/shared/types"
	"qvcs/shared/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// ProbabilityTolerance is how far a distribution may drift from 1.0
	ProbabilityTolerance = 0.001

	// Dampening is applied to every probability of an uncollapsed commit each
	// time a commit it is entangled with collapses
	Dampening = 0.8
)

// Commit is one change set that may exist on several branches at once
type Commit struct {
	ID                  uuid.UUID           `json:"id"`
	Seq                 uint64              `json:"seq"`
	ContentHash         string              `json:"content_hash"`
	SuperpositionStates map[string]float64  `json:"superposition_states"`
	EntangledCommits    []uuid.UUID         `json:"entangled_commits"`
	Collapsed           bool                `json:"collapsed"`
	Timestamp           time.Time           `json:"timestamp"`
	Changes             []shared.FileChange `json:"changes"`
	Message             string              `json:"message,omitempty"`
	Author              string              `json:"author,omitempty"`
}

// Clone returns a deep copy
func (c *Commit) Clone() *Commit {
	out := *c
	out.SuperpositionStates = maps.Clone(c.SuperpositionStates)
	out.EntangledCommits = append([]uuid.UUID(nil), c.EntangledCommits...)
	out.Changes = shared.CloneChanges(c.Changes)
	return &out
}

// Branch returns the branch a collapsed commit is bound to
func (c *Commit) Branch() (string, bool) {
	if !c.Collapsed {
		return "", false
	}
	for b := range c.SuperpositionStates {
		return b, true
	}
	return "", false
}

// Paths returns the distinct paths touched, in change order
func (c *Commit) Paths() []string {
	seen := make(map[string]bool, len(c.Changes))
	var out []string
	for _, ch := range c.Changes {
		if !seen[ch.Path] {
			seen[ch.Path] = true
			out = append(out, ch.Path)
		}
	}
	return out
}

// Drawer supplies uniform draws in [0, 1). *rand.Rand satisfies it.
type Drawer interface {
	Float64() float64
}

// NewSeededDrawer returns a PCG-backed drawer. A zero seed uses the clock.
func NewSeededDrawer(seed uint64) Drawer {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Option configures a Repository
type Option func(*Repository)

func WithDrawer(d Drawer) Option {
	return func(r *Repository) { r.drawer = d }
}

func WithClock(now func() time.Time) Option {
	return func(r *Repository) { r.now = now }
}

func WithHasher(h utils.Hasher) Option {
	return func(r *Repository) { r.hash = h }
}

func WithLogger(logger *zap.Logger) Option {
	return func(r *Repository) { r.logger = logger }
}

// CommitOption sets commit metadata at registration
type CommitOption func(*Commit)

func WithMessage(msg string) CommitOption {
	return func(c *Commit) { c.Message = msg }
}

func WithAuthor(author string) CommitOption {
	return func(c *Commit) { c.Author = author }
}

// Entanglement is one graph edge as seen from a commit
type Entanglement struct {
	Commit   uuid.UUID `json:"commit"`
	Strength float64   `json:"strength"`
}
