package merge

import (
	"fmt"
	"maps"
)

// Strategy picks one winning change per path
type Strategy int

const (
	TimeWeighted Strategy = iota
	ProbabilityWeighted
	ManualReview
	SemanticMerge
)

var strategyNames = map[Strategy]string{
	TimeWeighted:        "time-weighted",
	ProbabilityWeighted: "probability-weighted",
	ManualReview:        "manual-review",
	SemanticMerge:       "semantic-merge",
}

func (s Strategy) String() string {
	if name, ok := strategyNames[s]; ok {
		return name
	}
	return fmt.Sprintf("strategy(%d)", int(s))
}

// ParseStrategy accepts the names produced by String
func ParseStrategy(name string) (Strategy, error) {
	for s, n := range strategyNames {
		if n == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown merge strategy %q", name)
}

// Policy is the per-path strategy table. The zero value resolves every path
// with TimeWeighted.
type Policy struct {
	Default   Strategy
	Overrides map[string]Strategy
}

// For returns the override for path, or the default
func (p Policy) For(path string) Strategy {
	if s, ok := p.Overrides[path]; ok {
		return s
	}
	return p.Default
}

// With returns a copy of the policy with one more override
func (p Policy) With(path string, s Strategy) Policy {
	out := Policy{Default: p.Default, Overrides: maps.Clone(p.Overrides)}
	if out.Overrides == nil {
		out.Overrides = make(map[string]Strategy)
	}
	out.Overrides[path] = s
	return out
}

// ParsePolicy builds a Policy from strategy names, as found in config files
func ParsePolicy(defaultName string, overrides map[string]string) (Policy, error) {
	var p Policy
	if defaultName != "" {
		s, err := ParseStrategy(defaultName)
		if err != nil {
			return Policy{}, fmt.Errorf("default strategy: %w", err)
		}
		p.Default = s
	}
	for path, name := range overrides {
		s, err := ParseStrategy(name)
		if err != nil {
			return Policy{}, fmt.Errorf("strategy for %s: %w", path, err)
		}
		p = p.With(path, s)
	}
	return p, nil
}
