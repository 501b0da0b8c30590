// Package evaluator implements the anytime weighted Monte-Carlo move
// evaluator: for each legal move, it rolls out one random playout per
// hypergame in the population (weighted by posterior probability raised to
// a configurable power), running a mean per move until the play clock or a
// depth cap is exhausted.
package evaluator

import (
	"math"
	"time"

	"hyperplay/internal/clock"
	"hyperplay/internal/rng"
	"hyperplay/internal/rollout"
	"hyperplay/model"
	"hyperplay/rules"
)

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithMaxDepths bounds the number of outer anytime-loop iterations.
func WithMaxDepths(n int) Option {
	return func(e *Evaluator) {
		if n > 0 {
			e.maxDepths = n
		}
	}
}

// WithLikelihoodPowerFactor sets the exponent applied to each hypergame's
// posterior probability when weighting its rollout contribution.
func WithLikelihoodPowerFactor(p float64) Option {
	return func(e *Evaluator) { e.likelihoodPowerFactor = p }
}

// WithIncludeZeroPosterior controls whether zero-posterior hypergames still
// contribute a (zero-weighted) rollout. Defaults to false (excluded).
func WithIncludeZeroPosterior(include bool) Option {
	return func(e *Evaluator) { e.includeZeroPosterior = include }
}

// WithClock injects a clock, letting tests drive the anytime loop with a
// clock.Fake instead of wall time.
func WithClock(c clock.Clock) Option {
	return func(e *Evaluator) {
		if c != nil {
			e.clock = c
		}
	}
}

// Evaluator is the anytime weighted Monte-Carlo move evaluator.
type Evaluator struct {
	engine rules.RulesEngine
	agent  rules.Role
	rnd    *rng.Source
	clock  clock.Clock

	maxDepths             int
	likelihoodPowerFactor float64
	includeZeroPosterior  bool
}

// New builds an Evaluator with defaults (maxDepths=16,
// likelihoodPowerFactor=1.0), applying options afterward.
func New(engine rules.RulesEngine, agent rules.Role, rnd *rng.Source, options ...Option) *Evaluator {
	e := &Evaluator{
		engine:                engine,
		agent:                 agent,
		rnd:                   rnd,
		clock:                 clock.Real{},
		maxDepths:             16,
		likelihoodPowerFactor: 1.0,
		includeZeroPosterior:  false,
	}
	for _, opt := range options {
		opt(e)
	}
	return e
}

// Hypergame is one population member paired with the posterior probability
// computed for it.
type Hypergame struct {
	Model     *model.Model
	Posterior float64
}

// Stats reports anytime-loop metrics for one Select call, threaded through
// to the per-move telemetry row.
type Stats struct {
	DepthsRun      int
	SimulationsRun int
}

// Select runs the anytime evaluation loop over candidates until deadline
// elapses or maxDepths outer iterations complete, and returns the candidate
// with the greatest running mean. If the deadline elapses before a single
// depth completes, the first candidate is returned unscored rather than
// ranking on a zero-sample mean.
func (e *Evaluator) Select(candidates []rules.Move, population []Hypergame, currentStep int, deadline time.Time) (rules.Move, Stats) {
	if len(candidates) == 0 {
		return nil, Stats{}
	}

	means := make([]runningMean, len(candidates))
	stats := Stats{}

	for stats.DepthsRun < e.maxDepths && e.clock.Now().Before(deadline) {
		for i, mv := range candidates {
			contribution, sims := e.contributionFor(mv, population, currentStep)
			means[i].add(contribution)
			stats.SimulationsRun += sims
		}
		stats.DepthsRun++
	}

	if stats.DepthsRun == 0 {
		return candidates[0], stats
	}

	best := 0
	for i := 1; i < len(means); i++ {
		if means[i].value() > means[best].value() {
			best = i
		}
	}
	return candidates[best], stats
}

// contributionFor runs one rollout per hypergame for move mv and returns the
// posterior-weighted sum of goal values across the whole population, plus
// the number of rollouts actually run. The sum is never normalized by the
// total weight of the hypergames mv happens to be legal under: doing so
// would cancel out the posterior weighting itself, letting a move legal
// only in one low-posterior hypergame outscore one legal in a
// high-posterior hypergame with a far larger payoff. A hypergame in which
// mv is illegal (or, by default, one with zero posterior) contributes 0,
// rather than being excluded from the population this depth is summed over.
func (e *Evaluator) contributionFor(mv rules.Move, population []Hypergame, currentStep int) (float64, int) {
	var sum float64
	sims := 0
	for _, hg := range population {
		if hg.Posterior <= 0 && !e.includeZeroPosterior {
			continue
		}
		legal := hg.Model.LegalMovesAt(currentStep)
		if !containsMove(legal, mv) {
			continue
		}

		joint := e.jointMoveFor(hg.Model.CurrentState(), mv)
		final := rollout.PlayUntilTerminal(e.engine, e.engine.Successor(hg.Model.CurrentState(), joint), e.rnd)
		goalValue := e.engine.GoalValue(final, e.agent)
		sims++

		weight := weightedPosterior(hg.Posterior, e.likelihoodPowerFactor)
		sum += goalValue * weight
	}
	return sum, sims
}

// jointMoveFor picks a uniformly random joint move whose agent component is
// mv, filling in every other role's move uniformly from its legal set.
func (e *Evaluator) jointMoveFor(state rules.State, mv rules.Move) rules.JointMove {
	joint := rules.JointMove{e.agent: mv}
	for _, role := range e.engine.OrderedRoles() {
		if role == e.agent {
			continue
		}
		moves := e.engine.LegalMoves(state, role)
		if len(moves) == 0 {
			continue
		}
		joint[role] = moves[e.rnd.Intn(len(moves))]
	}
	return joint
}

func weightedPosterior(posterior, power float64) float64 {
	if posterior <= 0 {
		return 0
	}
	if power == 1.0 {
		return posterior
	}
	return math.Pow(posterior, power)
}

func containsMove(moves []rules.Move, target rules.Move) bool {
	for _, m := range moves {
		if m.String() == target.String() {
			return true
		}
	}
	return false
}

// runningMean accumulates the per-depth posterior-weighted contribution sum
// and divides by the number of depths run. This is a mean over depths, not
// a normalization over population weight (see contributionFor). Dividing
// by depth count rather than leaving the raw sum does not change which move
// has the greatest value, since every candidate is run the same number of
// depths.
type runningMean struct {
	sum    float64
	depths int
}

func (r *runningMean) add(contribution float64) {
	r.sum += contribution
	r.depths++
}

func (r *runningMean) value() float64 {
	if r.depths <= 0 {
		return 0
	}
	return r.sum / float64(r.depths)
}
