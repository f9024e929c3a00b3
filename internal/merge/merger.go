// Package merge resolves the changes of several commits into one change per
// file, choosing a winner for every path with a configurable strategy.
package merge

import (
	"bytes"
	"context"
	"slices"
	"sync"

	"qvcs/internal/errors"
	"qvcs/internal/quantum"
	"qvcs/shared/types"
	"qvcs/shared/utils"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// SemanticResolver is an external service that merges conflicting changes
// by meaning rather than position
type SemanticResolver interface {
	Resolve(path string, changes []shared.FileChange) (shared.FileChange, error)
}

// Merger applies a Policy to a set of commits
type Merger struct {
	policy   Policy
	semantic SemanticResolver
	logger   *zap.Logger
}

type Option func(*Merger)

// WithSemanticResolver wires the external service used by SemanticMerge.
// Without one, SemanticMerge concatenates payloads and unions line mappings.
func WithSemanticResolver(s SemanticResolver) Option {
	return func(m *Merger) { m.semantic = s }
}

func WithLogger(logger *zap.Logger) Option {
	return func(m *Merger) { m.logger = logger }
}

func NewMerger(policy Policy, opts ...Option) *Merger {
	m := &Merger{policy: policy, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Merge resolves the commits' changes onto targetBranch, one change per path,
// sorted by path. Changes are grouped in commit order, then stored change
// order. A ManualReview path aborts the whole merge.
func (m *Merger) Merge(commits []*quantum.Commit, targetBranch string) ([]shared.FileChange, error) {
	byPath := make(map[string][]shared.FileChange)
	for _, c := range commits {
		for _, ch := range c.Changes {
			byPath[ch.Path] = append(byPath[ch.Path], ch)
		}
	}

	logger := m.logger.With(zap.String("branch", targetBranch))
	merged := make([]shared.FileChange, 0, len(byPath))
	for _, path := range utils.SortedKeys(byPath) {
		strategy := m.policy.For(path)
		resolved, err := m.resolve(path, byPath[path], strategy)
		if err != nil {
			logger.Warn("merge aborted", zap.String("path", path), zap.Error(err))
			return nil, err
		}
		recordResolution(strategy)
		logger.Debug("resolved path",
			zap.String("path", path),
			zap.Stringer("strategy", strategy),
			zap.Int("changes", len(byPath[path])),
		)
		merged = append(merged, resolved)
	}
	return merged, nil
}

// Merge is a one-shot helper for callers without a long-lived Merger
func Merge(commits []*quantum.Commit, targetBranch string, policy Policy) ([]shared.FileChange, error) {
	return NewMerger(policy).Merge(commits, targetBranch)
}

func (m *Merger) resolve(path string, changes []shared.FileChange, strategy Strategy) (shared.FileChange, error) {
	switch strategy {
	case ProbabilityWeighted:
		// Placeholder: the first change stands in for the most probable one
		return changes[0].Clone(), nil
	case ManualReview:
		return shared.FileChange{}, errors.ManualReviewRequired(path)
	case SemanticMerge:
		if m.semantic != nil {
			resolved, err := m.semantic.Resolve(path, shared.CloneChanges(changes))
			if err != nil {
				return shared.FileChange{}, errors.SemanticMergeFailed(path, err)
			}
			return resolved, nil
		}
		return concatenate(changes), nil
	default:
		// TimeWeighted: position in scan order stands in for recency
		return changes[len(changes)-1].Clone(), nil
	}
}

// concatenate joins payloads in order and unions line mappings, sorted and
// deduplicated. Path and operation come from the first change.
func concatenate(changes []shared.FileChange) shared.FileChange {
	var delta bytes.Buffer
	for _, ch := range changes {
		delta.Write(ch.ContentDelta)
	}
	return shared.FileChange{
		Path:         changes[0].Path,
		Operation:    changes[0].Operation,
		ContentDelta: delta.Bytes(),
		LineMappings: MergeLineMappings(changes),
	}
}

// MergeLineMappings unions every change's mappings, sorted ascending with
// exact duplicates removed
func MergeLineMappings(changes []shared.FileChange) []shared.LineMapping {
	var out []shared.LineMapping
	for _, ch := range changes {
		out = append(out, ch.LineMappings...)
	}
	slices.SortFunc(out, shared.CompareLineMappings)
	return slices.Compact(out)
}

var (
	resolvedTotal metric.Int64Counter
	metricsOnce   sync.Once
	metricsErr    error
)

func recordResolution(s Strategy) {
	metricsOnce.Do(func() {
		resolvedTotal, metricsErr = otel.Meter("qvcs.merge").Int64Counter(
			"merge_paths_resolved_total",
			metric.WithDescription("Paths resolved by the temporal merger"),
		)
	})
	if metricsErr != nil {
		return
	}
	resolvedTotal.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("strategy", s.String())))
}
