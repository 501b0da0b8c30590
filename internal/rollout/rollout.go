// Package rollout provides the uniformly-random game-playout primitives
// shared by the sampler's opponent-likelihood estimation and the move
// evaluator's Monte-Carlo rollouts.
package rollout

import (
	"hyperplay/internal/rng"
	"hyperplay/rules"
)

// RandomJointMove draws one legal move per role uniformly at random.
func RandomJointMove(engine rules.RulesEngine, state rules.State, src *rng.Source) rules.JointMove {
	joint := make(rules.JointMove)
	for _, role := range engine.OrderedRoles() {
		moves := engine.LegalMoves(state, role)
		if len(moves) == 0 {
			continue
		}
		joint[role] = moves[src.Intn(len(moves))]
	}
	return joint
}

// PlayUntilTerminal advances state with uniformly random joint moves until
// the Rules Engine reports terminality, returning the final state.
func PlayUntilTerminal(engine rules.RulesEngine, state rules.State, src *rng.Source) rules.State {
	for !engine.IsTerminal(state) {
		joint := RandomJointMove(engine, state, src)
		if len(joint) == 0 {
			break
		}
		state = engine.Successor(state, joint)
	}
	return state
}

// AggregateOpponentValue runs numProbes rollouts, each applying joint as the
// first step and then playing randomly to terminal, and returns the average
// goal value across every role other than agent, treating every opponent
// role as a single aggregated effective opponent.
func AggregateOpponentValue(engine rules.RulesEngine, state rules.State, joint rules.JointMove, agent rules.Role, numProbes int, src *rng.Source) float64 {
	if numProbes <= 0 {
		numProbes = 1
	}
	opponents := make([]rules.Role, 0, len(engine.OrderedRoles())-1)
	for _, r := range engine.OrderedRoles() {
		if r != agent {
			opponents = append(opponents, r)
		}
	}
	if len(opponents) == 0 {
		return 0
	}

	total := 0.0
	for i := 0; i < numProbes; i++ {
		next := engine.Successor(state, joint)
		final := PlayUntilTerminal(engine, next, src)
		roundValue := 0.0
		for _, r := range opponents {
			roundValue += engine.GoalValue(final, r)
		}
		total += roundValue / float64(len(opponents))
	}
	return total / float64(numProbes)
}
