// Package sampler implements the per-turn procedure that advances a single
// hypergame consistently with the player's action and observed percepts,
// biasing opponent-move selection by the Likelihood Tree and backtracking
// through the bad-move/in-use registries when a candidate turns out
// inconsistent.
package sampler

import (
	"github.com/rs/zerolog"

	"hyperplay/internal/rng"
	"hyperplay/internal/rollout"
	"hyperplay/likelihood"
	"hyperplay/model"
	"hyperplay/rules"
)

// Sampler advances models through the joint-move space, sharing a single
// Likelihood Tree and Registries across every hypergame in the population:
// both are scoped to the agent, not to any one model.
type Sampler struct {
	Engine rules.RulesEngine
	Agent  rules.Role
	Tree   *likelihood.Tree
	Reg    *Registries

	NumOPProbes int // opponent-rollout probes run per unexpanded candidate

	rnd          *rng.Source
	log          zerolog.Logger
	forwardCalls int
}

// Option configures a Sampler at construction.
type Option func(*Sampler)

// WithLogger injects a structured logger for backtrack events. Defaults to
// zerolog.Nop().
func WithLogger(log zerolog.Logger) Option {
	return func(s *Sampler) { s.log = log }
}

// New builds a Sampler sharing tree and reg across the whole population.
func New(engine rules.RulesEngine, agent rules.Role, tree *likelihood.Tree, reg *Registries, numOPProbes int, rnd *rng.Source, options ...Option) *Sampler {
	s := &Sampler{
		Engine:      engine,
		Agent:       agent,
		Tree:        tree,
		Reg:         reg,
		NumOPProbes: numOPProbes,
		rnd:         rnd,
		log:         zerolog.Nop(),
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// jointMoves enumerates every joint move at state consistent with the
// agent's role playing agentMove, as the cross product of every other role's
// legal moves.
func (s *Sampler) jointMoves(state rules.State, agentMove rules.Move) []rules.JointMove {
	roles := s.Engine.OrderedRoles()
	perRole := make([][]rules.Move, len(roles))
	for i, r := range roles {
		if r == s.Agent {
			perRole[i] = []rules.Move{agentMove}
			continue
		}
		perRole[i] = s.Engine.LegalMoves(state, r)
	}

	var out []rules.JointMove
	var build func(i int, acc rules.JointMove)
	build = func(i int, acc rules.JointMove) {
		if i == len(roles) {
			copied := make(rules.JointMove, len(acc))
			for k, v := range acc {
				copied[k] = v
			}
			out = append(out, copied)
			return
		}
		for _, m := range perRole[i] {
			acc[roles[i]] = m
			build(i+1, acc)
		}
	}
	build(0, rules.JointMove{})
	return out
}

// childHash mirrors model.Model's own path-hash mixing so the tree can be
// probed for a candidate's node id before the model commits to pushing it.
func childHash(parentHash uint64, jm rules.JointMove) uint64 {
	h := parentHash
	h ^= jm.Hash()
	h *= 1099511628211
	return h
}

// Forward runs one single-step forward: it enumerates joint moves consistent
// with the agent's actual move at step-1, biases the candidate set by the
// Likelihood Tree (expanding it with opponent-rollout probes the first time
// this node is visited), weighted-samples a surviving candidate, and
// validates it against the observed percepts and (for replay steps) the
// blacklist/whitelist. It returns the step the model ends up at: step+1 on
// success, step-1 on exhaustion (the model backtracked), or step again when
// a retry at the same level is warranted.
func (s *Sampler) Forward(m *model.Model, step int, agentMove rules.Move, observedPercepts rules.Percept, currentGameStep int) int {
	s.forwardCalls++
	state := m.CurrentState()
	nodeHash := m.ActionPathHash()
	nodeIdx := s.Tree.Node(m.HashPath())

	candidates := s.jointMoves(state, agentMove)
	survivors := s.filterSurvivors(candidates, nodeHash)

	if !s.Tree.IsExpanded(nodeIdx) && len(survivors) > 0 {
		s.expandNode(nodeIdx, nodeHash, state, survivors)
	}

	jm := s.selectWeighted(nodeIdx, nodeHash, survivors)
	if jm == nil {
		return s.popOnExhaustion(m, candidates, nodeHash)
	}

	if err := m.Update(step, nil, jm, state, len(candidates)); err != nil {
		// Sampler invariant violation (duplicate push); treat as exhaustion
		// of this candidate rather than propagating a model bug upward.
		s.Reg.MarkBad(nodeHash, jm)
		return step
	}

	if !m.LatestPercepts().Equal(observedPercepts) {
		s.rejectPushed(m, nodeIdx, jm, nodeHash)
		return step
	}

	if step < currentGameStep {
		if violation := s.violatesReplayConstraints(m, step); violation {
			s.rejectPushed(m, nodeIdx, jm, nodeHash)
			return step
		}
	}

	// jm's InUseMoves claim at nodeHash, set by selectWeighted, is left in
	// place: the model now occupies this edge. Only rejectPushed releases a
	// claim (for the frame it just rejected); popOnExhaustion re-records the
	// popped edge as in-use or bad rather than releasing it.
	return step + 1
}

// filterSurvivors drops every candidate already proven bad or currently
// claimed by another live hypergame at node.
func (s *Sampler) filterSurvivors(candidates []rules.JointMove, node uint64) []rules.JointMove {
	survivors := make([]rules.JointMove, 0, len(candidates))
	for _, jm := range candidates {
		if s.Reg.IsBad(node, jm) || s.Reg.IsInUse(node, jm) {
			continue
		}
		survivors = append(survivors, jm)
	}
	return survivors
}

// expandNode runs NumOPProbes opponent-rollout probes per surviving
// candidate and inserts the resulting children into the Likelihood Tree,
// normalizing their relative likelihoods.
func (s *Sampler) expandNode(nodeIdx int, nodeHash uint64, state rules.State, survivors []rules.JointMove) {
	hashes := make([]uint64, len(survivors))
	values := make([]float64, len(survivors))
	for i, jm := range survivors {
		hashes[i] = childHash(nodeHash, jm)
		values[i] = rollout.AggregateOpponentValue(s.Engine, state, jm, s.Agent, s.NumOPProbes, s.rnd)
	}
	s.Tree.Expand(nodeIdx, hashes, values)
}

// selectWeighted draws one survivor proportionally to its Likelihood Tree
// relative likelihood, skipping anything already in-use by another
// hypergame at node. While any pooled candidate has a positive relative
// likelihood, zero-likelihood candidates are not drawn. When every pooled
// weight is zero, the draw falls back to uniform over the whole pool rather
// than returning nil, since an empty survivor set means no candidate exists
// at all, not that the likelihood bias happened to favor another branch.
// Returns nil only when every survivor is already in-use.
func (s *Sampler) selectWeighted(nodeIdx int, nodeHash uint64, survivors []rules.JointMove) rules.JointMove {
	if len(survivors) == 0 {
		return nil
	}

	type weighted struct {
		jm     rules.JointMove
		weight float64
	}
	pool := make([]weighted, 0, len(survivors))
	total := 0.0
	for _, jm := range survivors {
		if s.Reg.IsInUse(nodeHash, jm) {
			continue
		}
		h := childHash(nodeHash, jm)
		w := 0.0
		for _, c := range s.Tree.Children(nodeIdx) {
			if s.Tree.NodeAt(c).Hash == h {
				w = s.Tree.NodeAt(c).RelLikelihood
				break
			}
		}
		pool = append(pool, weighted{jm: jm, weight: w})
		total += w
	}
	if len(pool) == 0 {
		return nil
	}
	if total <= 0 {
		chosen := pool[s.rnd.Intn(len(pool))].jm
		s.Reg.MarkInUse(nodeHash, chosen)
		return chosen
	}

	draw := s.rnd.Float64() * total
	for _, w := range pool {
		draw -= w.weight
		if draw <= 0 {
			s.Reg.MarkInUse(nodeHash, w.jm)
			return w.jm
		}
	}
	last := pool[len(pool)-1]
	s.Reg.MarkInUse(nodeHash, last.jm)
	return last.jm
}

// popOnExhaustion backtracks m by one frame when no candidate survives
// selection: the popped move is recorded as bad at the parent node if every
// enumerated candidate (unfiltered) is already bad at this node; otherwise
// it is merely occupied elsewhere and recorded as in-use.
func (s *Sampler) popOnExhaustion(m *model.Model, candidates []rules.JointMove, node uint64) int {
	allBad := len(candidates) > 0
	for _, jm := range candidates {
		if !s.Reg.IsBad(node, jm) {
			allBad = false
			break
		}
	}

	poppedAction := m.LastAction()
	parentHash := m.PreviousActionPathHash()
	step := m.Step()
	m.Backtrack()
	s.log.Debug().Int("step", step).Bool("allBad", allBad).Msg("sampler: backtracked on candidate exhaustion")

	if poppedAction == nil {
		// Already at the root; nothing to record, nowhere further to pop.
		return step - 1
	}
	if allBad {
		s.Reg.MarkBad(parentHash, poppedAction)
	} else {
		s.Reg.MarkInUse(parentHash, poppedAction)
	}
	return step - 1
}

// rejectPushed undoes a just-pushed frame that failed percept or replay
// validation, zeroing its Likelihood Tree node and marking it bad at the
// parent so it is never retried.
func (s *Sampler) rejectPushed(m *model.Model, parentIdx int, jm rules.JointMove, parentHash uint64) {
	h := childHash(parentHash, jm)
	for _, c := range s.Tree.Children(parentIdx) {
		if s.Tree.NodeAt(c).Hash == h {
			s.Tree.SetValue(c, 0)
			s.Tree.UpdateRelLikelihood(parentIdx)
			break
		}
	}
	s.Reg.ReleaseInUse(parentHash, jm)
	s.Reg.MarkBad(parentHash, jm)
	step := m.Step()
	m.Backtrack()
	s.log.Debug().Int("step", step).Msg("sampler: backtracked on percept or replay rejection")
}

// violatesReplayConstraints checks the agent's own recorded legal-move set
// at the new top frame against the step's blacklist/whitelist, used only
// while step is behind the live game.
func (s *Sampler) violatesReplayConstraints(m *model.Model, step int) bool {
	legal := m.ComputeLegalMoves()
	if bad := s.Reg.Blacklisted(step); bad != nil {
		for _, mv := range legal {
			if mv.String() == bad.String() {
				return true
			}
		}
	}
	if want := s.Reg.Whitelisted(step); want != nil {
		found := false
		for _, mv := range legal {
			if mv.String() == want.String() {
				found = true
				break
			}
		}
		if !found {
			return true
		}
	}
	return false
}

// ForwardCalls returns the number of Forward calls made since the last
// ResetForwardCalls, for the turn's forward_calls telemetry column.
func (s *Sampler) ForwardCalls() int {
	return s.forwardCalls
}

// ResetForwardCalls zeroes the Forward call counter, called once per turn
// before the population update so ForwardCalls reports this turn's count.
func (s *Sampler) ResetForwardCalls() {
	s.forwardCalls = 0
}
