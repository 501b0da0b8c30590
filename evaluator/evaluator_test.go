package evaluator

import (
	"testing"
	"time"

	"hyperplay/internal/clock"
	"hyperplay/internal/rng"
	"hyperplay/model"
	"hyperplay/rules"

	"github.com/stretchr/testify/require"
)

// payoffMove/payoffState/payoffEngine is a one-shot game whose goal value is
// always 0 for every role; the payoff map only supplies the agent's legal
// moves.
type payoffMove string

func (m payoffMove) String() string { return string(m) }

type payoffState struct{ terminal bool }

func (s payoffState) Fluents() []rules.Fluent { return nil }

type payoffEngine struct {
	payoff map[string]float64
}

func (e payoffEngine) InitialState() rules.State  { return payoffState{} }
func (e payoffEngine) OrderedRoles() []rules.Role { return []rules.Role{"agent", "opp"} }
func (e payoffEngine) LegalMoves(state rules.State, role rules.Role) []rules.Move {
	if state.(payoffState).terminal {
		return nil
	}
	if role == "opp" {
		return []rules.Move{payoffMove("x"), payoffMove("y")}
	}
	moves := make([]rules.Move, 0, len(e.payoff))
	for mv := range e.payoff {
		moves = append(moves, payoffMove(mv))
	}
	return moves
}
func (e payoffEngine) Successor(state rules.State, joint rules.JointMove) rules.State {
	return payoffState{terminal: true}
}
func (e payoffEngine) SeesTerms(rules.State, rules.Role, rules.JointMove) rules.Percept {
	return rules.Percept{}
}
func (e payoffEngine) IsTerminal(state rules.State) bool { return state.(payoffState).terminal }
func (e payoffEngine) GoalValue(state rules.State, role rules.Role) float64 {
	return 0
}

var _ rules.RulesEngine = payoffEngine{}

func newPopulation(t *testing.T, eng rules.RulesEngine, legal []rules.Move) []Hypergame {
	t.Helper()
	m := model.New(eng, "agent", eng.InitialState(), rules.Percept{"agent": nil})
	m.RecordLegalMoves(0, legal)
	return []Hypergame{{Model: m, Posterior: 1.0}}
}

// gradedEngine wraps payoffEngine's structure but grades goal value by the
// agent's actual move string, read off the final state.
type gradedState struct {
	terminal bool
	agentMove string
}

func (s gradedState) Fluents() []rules.Fluent { return nil }

type gradedEngine struct{ payoff map[string]float64 }

func (e gradedEngine) InitialState() rules.State  { return gradedState{} }
func (e gradedEngine) OrderedRoles() []rules.Role { return []rules.Role{"agent", "opp"} }
func (e gradedEngine) LegalMoves(state rules.State, role rules.Role) []rules.Move {
	if state.(gradedState).terminal {
		return nil
	}
	if role == "opp" {
		return []rules.Move{payoffMove("x"), payoffMove("y")}
	}
	moves := make([]rules.Move, 0, len(e.payoff))
	for mv := range e.payoff {
		moves = append(moves, payoffMove(mv))
	}
	return moves
}
func (e gradedEngine) Successor(state rules.State, joint rules.JointMove) rules.State {
	return gradedState{terminal: true, agentMove: joint.Move("agent").String()}
}
func (e gradedEngine) SeesTerms(rules.State, rules.Role, rules.JointMove) rules.Percept {
	return rules.Percept{}
}
func (e gradedEngine) IsTerminal(state rules.State) bool { return state.(gradedState).terminal }
func (e gradedEngine) GoalValue(state rules.State, role rules.Role) float64 {
	s := state.(gradedState)
	if role != "agent" {
		return 0
	}
	return e.payoff[s.agentMove]
}

var _ rules.RulesEngine = gradedEngine{}

func TestSelectPrefersHigherPayoffMove(t *testing.T) {
	eng := gradedEngine{payoff: map[string]float64{"good": 100, "bad": 0}}
	population := newPopulation(t, eng, []rules.Move{payoffMove("good"), payoffMove("bad")})

	e := New(eng, "agent", rng.NewSeeded(1), WithMaxDepths(8))
	chosen, stats := e.Select([]rules.Move{payoffMove("good"), payoffMove("bad")}, population, 0, time.Now().Add(time.Hour))

	require.Equal(t, payoffMove("good"), chosen)
	require.Equal(t, 8, stats.DepthsRun)
	require.Greater(t, stats.SimulationsRun, 0)
}

func TestSelectFallsBackToFirstCandidateWhenDeadlineAlreadyPassed(t *testing.T) {
	eng := gradedEngine{payoff: map[string]float64{"good": 100, "bad": 0}}
	population := newPopulation(t, eng, []rules.Move{payoffMove("good"), payoffMove("bad")})

	fake := clock.NewFake(time.Unix(1000, 0))
	e := New(eng, "agent", rng.NewSeeded(1), WithMaxDepths(8), WithClock(fake))
	chosen, stats := e.Select([]rules.Move{payoffMove("bad"), payoffMove("good")}, population, 0, time.Unix(999, 0))

	require.Equal(t, payoffMove("bad"), chosen, "deadline already elapsed: anytime fallback returns the first candidate")
	require.Equal(t, 0, stats.DepthsRun)
}

func TestSelectSkipsHypergamesWhereMoveIsNotLegal(t *testing.T) {
	eng := gradedEngine{payoff: map[string]float64{"good": 100, "bad": 0}}
	// Only "bad" is in this hypergame's recorded legal-move set at step 0,
	// so it must contribute nothing toward "good"'s running mean.
	population := newPopulation(t, eng, []rules.Move{payoffMove("bad")})

	e := New(eng, "agent", rng.NewSeeded(2), WithMaxDepths(4))
	contribution, sims := e.contributionFor(payoffMove("good"), population, 0)

	require.Equal(t, 0.0, contribution)
	require.Equal(t, 0, sims)
}

func TestSelectWeighsByPosteriorSumNotByMeanOverLegalPopulation(t *testing.T) {
	// m1 is legal only under a high-posterior hypergame (p=0.9, goal 50);
	// m2 is legal only under a low-posterior hypergame (p=0.1, goal 100).
	// Posterior-weighted sum picks m1 (45 > 10); normalizing by the total
	// weight of hypergames each move is legal under would instead pick m2
	// (45/0.9 = 50 < 10/0.1 = 100), inverting the posterior weighting.
	eng := gradedEngine{payoff: map[string]float64{"m1": 50, "m2": 100}}

	high := model.New(eng, "agent", eng.InitialState(), rules.Percept{"agent": nil})
	high.RecordLegalMoves(0, []rules.Move{payoffMove("m1")})
	low := model.New(eng, "agent", eng.InitialState(), rules.Percept{"agent": nil})
	low.RecordLegalMoves(0, []rules.Move{payoffMove("m2")})

	population := []Hypergame{
		{Model: high, Posterior: 0.9},
		{Model: low, Posterior: 0.1},
	}

	e := New(eng, "agent", rng.NewSeeded(4), WithMaxDepths(8))
	chosen, _ := e.Select([]rules.Move{payoffMove("m1"), payoffMove("m2")}, population, 0, time.Now().Add(time.Hour))

	require.Equal(t, payoffMove("m1"), chosen)
}

func TestSelectReturnsNilForEmptyCandidates(t *testing.T) {
	e := New(payoffEngine{}, "agent", rng.NewSeeded(3))
	chosen, stats := e.Select(nil, nil, 0, time.Now().Add(time.Second))
	require.Nil(t, chosen)
	require.Equal(t, 0, stats.DepthsRun)
}
