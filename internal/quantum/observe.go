package quantum

import (
	"qvcs/internal/errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Observe collapses the commits superposed on branch. Each candidate, in
// registration order, draws once; a draw below its branch probability binds it
// to branch and makes it the head, so the last collapse wins the head. Every
// collapse then dampens all uncollapsed commits reachable from it.
//
// When the branch ends without a head, NoCollapse is returned if there were
// candidates and BranchNotFound otherwise.
func (r *Repository) Observe(branch string) (uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	logger := r.logger.With(zap.String("branch", branch))

	var candidates []*Commit
	for _, id := range r.order {
		c := r.commits[id]
		if _, ok := c.SuperpositionStates[branch]; ok && !c.Collapsed {
			candidates = append(candidates, c)
		}
	}

	var collapsed []uuid.UUID
	for _, c := range candidates {
		draw := r.drawer.Float64()
		p := c.SuperpositionStates[branch]
		if draw >= p {
			logger.Debug("commit stayed superposed",
				zap.String("commit", c.ID.String()),
				zap.Float64("draw", draw),
				zap.Float64("probability", p),
			)
			continue
		}
		r.collapse(c, branch)
		collapsed = append(collapsed, c.ID)
		logger.Debug("commit collapsed",
			zap.String("commit", c.ID.String()),
			zap.Float64("draw", draw),
			zap.Float64("probability", p),
		)
	}

	r.cascade(collapsed)

	head, ok := r.heads[branch]
	logger.Info("observed branch",
		zap.Int("candidates", len(candidates)),
		zap.Int("collapsed", len(collapsed)),
		zap.Bool("has_head", ok),
	)
	if ok {
		return head, nil
	}
	if len(candidates) > 0 {
		return uuid.Nil, errors.NoCollapse(branch, len(candidates))
	}
	return uuid.Nil, errors.BranchNotFound(branch)
}

// CollapseTo binds one commit to branch without a draw, makes it the head and
// runs the same cascade as Observe. Re-collapsing onto the same branch only
// moves the head.
func (r *Repository) CollapseTo(id uuid.UUID, branch string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.commits[id]
	if !ok {
		return errors.CommitNotFound(id.String())
	}
	if c.Collapsed {
		if bound, _ := c.Branch(); bound != branch {
			return errors.AlreadyCollapsed(id.String(), bound)
		}
		r.heads[branch] = id
		return nil
	}
	if _, ok := c.SuperpositionStates[branch]; !ok {
		return errors.BranchNotFound(branch)
	}

	r.collapse(c, branch)
	r.cascade([]uuid.UUID{id})
	r.logger.Info("collapsed commit explicitly",
		zap.String("commit", id.String()),
		zap.String("branch", branch),
	)
	return nil
}

// collapse drops every other branch, keeps the surviving probability as is
// and points the branch head at the commit
func (r *Repository) collapse(c *Commit, branch string) {
	for b := range c.SuperpositionStates {
		if b != branch {
			delete(c.SuperpositionStates, b)
		}
	}
	c.Collapsed = true
	r.heads[branch] = c.ID
	recordCollapse(branch)
}

// cascade multiplies every probability of each uncollapsed commit reachable
// from a collapsed one by Dampening, once per collapsed source
func (r *Repository) cascade(collapsed []uuid.UUID) {
	for _, id := range collapsed {
		node, ok := r.graph.Node(id)
		if !ok {
			continue
		}
		var dampened int
		for _, reached := range r.graph.Reachable(node) {
			c, ok := r.commits[r.graph.Commit(reached)]
			if !ok || c.Collapsed {
				continue
			}
			for b := range c.SuperpositionStates {
				c.SuperpositionStates[b] *= Dampening
			}
			dampened++
		}
		recordDampening(dampened)
		if dampened > 0 {
			r.logger.Debug("interference dampened entangled commits",
				zap.String("source", id.String()),
				zap.Int("dampened", dampened),
			)
		}
	}
}
