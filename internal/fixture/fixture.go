// Package fixture provides tiny, hand-written Rules Engine implementations
// used across this module's tests: a single-joint-move degenerate game and
// a two-role imperfect-information game with percepts.
package fixture

import (
	"fmt"

	"hyperplay/rules"
)

// Move is a trivial named move.
type Move string

func (m Move) String() string { return string(m) }

// State is a trivial state keyed by an opaque label, carrying a fixed set
// of fluents derived from the label so the population manager's diversity
// filter has something to diff.
type State struct {
	Label    string
	Terminal bool
	Goals    map[rules.Role]float64
}

func (s State) Fluents() []rules.Fluent {
	return []rules.Fluent{rules.Fluent("at:" + s.Label)}
}

// Degenerate is a one-joint-move-total game: there is exactly one legal
// move for every role in the initial state, and its successor is terminal
// with no legal moves.
type Degenerate struct {
	RoleA, RoleB rules.Role
}

func (d Degenerate) InitialState() rules.State { return State{Label: "s0"} }
func (d Degenerate) OrderedRoles() []rules.Role { return []rules.Role{d.RoleA, d.RoleB} }

func (d Degenerate) LegalMoves(state rules.State, role rules.Role) []rules.Move {
	s := state.(State)
	if s.Terminal {
		return nil
	}
	return []rules.Move{Move("only")}
}

func (d Degenerate) Successor(state rules.State, joint rules.JointMove) rules.State {
	return State{Label: "s1", Terminal: true, Goals: map[rules.Role]float64{d.RoleA: 100, d.RoleB: 0}}
}

func (d Degenerate) SeesTerms(state rules.State, role rules.Role, joint rules.JointMove) rules.Percept {
	return rules.Percept{role: {rules.Term("moved")}}
}

func (d Degenerate) IsTerminal(state rules.State) bool { return state.(State).Terminal }

func (d Degenerate) GoalValue(state rules.State, role rules.Role) float64 {
	s := state.(State)
	if s.Goals == nil {
		return 0
	}
	return s.Goals[role]
}

// MatchingPennies is a two-role imperfect-information game: each role picks
// Heads or Tails simultaneously; the agent role only observes "match" or
// "mismatch" afterward, not the opponent's actual move. Combined with the
// agent's own move, that percept still leaves exactly one opponent move
// consistent at each step. Runs for a fixed
// number of rounds then terminates, scoring the agent 100 for more matches
// than mismatches, 0 otherwise.
type MatchingPennies struct {
	Agent, Opponent rules.Role
	Rounds          int
}

type penniesState struct {
	round   int
	matches int
	label   string
}

func (s penniesState) Fluents() []rules.Fluent {
	return []rules.Fluent{rules.Fluent(fmt.Sprintf("round:%d", s.round)), rules.Fluent(fmt.Sprintf("matches:%d", s.matches))}
}

func (g MatchingPennies) InitialState() rules.State {
	return penniesState{round: 0, label: "init"}
}

func (g MatchingPennies) OrderedRoles() []rules.Role { return []rules.Role{g.Agent, g.Opponent} }

func (g MatchingPennies) LegalMoves(state rules.State, role rules.Role) []rules.Move {
	s := state.(penniesState)
	if s.round >= g.Rounds {
		return nil
	}
	return []rules.Move{Move("heads"), Move("tails")}
}

func (g MatchingPennies) Successor(state rules.State, joint rules.JointMove) rules.State {
	s := state.(penniesState)
	match := joint[g.Agent].String() == joint[g.Opponent].String()
	matches := s.matches
	if match {
		matches++
	}
	return penniesState{round: s.round + 1, matches: matches}
}

func (g MatchingPennies) SeesTerms(state rules.State, role rules.Role, joint rules.JointMove) rules.Percept {
	match := joint[g.Agent].String() == joint[g.Opponent].String()
	term := rules.Term("mismatch")
	if match {
		term = rules.Term("match")
	}
	return rules.Percept{role: {term}}
}

func (g MatchingPennies) IsTerminal(state rules.State) bool {
	return state.(penniesState).round >= g.Rounds
}

func (g MatchingPennies) GoalValue(state rules.State, role rules.Role) float64 {
	s := state.(penniesState)
	if role == g.Agent {
		if s.matches*2 > g.Rounds {
			return 100
		}
		return 0
	}
	if (g.Rounds-s.matches)*2 > g.Rounds {
		return 100
	}
	return 0
}

var _ rules.RulesEngine = Degenerate{}
var _ rules.RulesEngine = MatchingPennies{}
