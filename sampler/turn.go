package sampler

import (
	"hyperplay/model"
	"hyperplay/rules"
)

// Advance drives m forward with repeated Forward calls until it reaches
// targetStep, discarding it if it backtracks below (starting step −
// backtrackingDepth) or to the root. Returns false when m should be
// discarded from the population.
func (s *Sampler) Advance(m *model.Model, targetStep, backtrackingDepth int, actionTracker map[int]rules.Move, percepts map[int]rules.Percept, currentGameStep int) bool {
	floor := m.Step() - backtrackingDepth

	for m.Step() <= targetStep {
		step := m.Step()
		agentMove := actionTracker[step-1]
		next := s.Forward(m, step, agentMove, percepts[step], currentGameStep)

		if next < step {
			if next < floor || m.Step() <= 1 {
				return false
			}
		}
	}
	return true
}

// RetroactiveConsistency runs when the player's actual move at step-1
// differs from what the agent previously expected: the blacklist is set and
// every hypergame whose recorded legal-move set at step-1 is now
// inconsistent with the blacklist/whitelist is dropped from population.
func (s *Sampler) RetroactiveConsistency(population []*model.Model, step int, expectedMove, actualMove rules.Move) []*model.Model {
	if expectedMove == nil || actualMove == nil || expectedMove.String() == actualMove.String() {
		return population
	}
	s.Reg.SetBlacklist(step-1, expectedMove)

	survivors := population[:0]
	for _, m := range population {
		legal := m.LegalMovesAt(step - 1)
		if containsMove(legal, expectedMove) {
			continue
		}
		if want := s.Reg.Whitelisted(step - 1); want != nil && !containsMove(legal, want) {
			continue
		}
		survivors = append(survivors, m)
	}
	return survivors
}

func containsMove(moves []rules.Move, target rules.Move) bool {
	for _, m := range moves {
		if m.String() == target.String() {
			return true
		}
	}
	return false
}

// RootBlocked reports whether the root node admits no non-bad, non-in-use
// joint move for step 1, a stop condition for SeedSearch.
func (s *Sampler) RootBlocked(initialState rules.State, agentFirstMove rules.Move, rootHash uint64) bool {
	candidates := s.jointMoves(initialState, agentFirstMove)
	return len(s.filterSurvivors(candidates, rootHash)) == 0
}

// SeedSearch seeds fresh models from the root while population is below
// 2×cap and moreTime reports the state-update time budget is not yet
// exhausted, advancing each to targetStep and keeping it only if it
// survives. Stops early if the root is blocked.
func (s *Sampler) SeedSearch(population []*model.Model, engine rules.RulesEngine, role rules.Role, initialState rules.State, initialPercepts rules.Percept, rootHash uint64, targetStep, cap, backtrackingDepth int, actionTracker map[int]rules.Move, percepts map[int]rules.Percept, currentGameStep int, moreTime func() bool) []*model.Model {
	for len(population) < 2*cap && moreTime() {
		if s.RootBlocked(initialState, actionTracker[0], rootHash) {
			break
		}
		m := model.New(engine, role, initialState, initialPercepts)
		if s.Advance(m, targetStep, backtrackingDepth, actionTracker, percepts, currentGameStep) {
			population = append(population, m)
		}
	}
	return population
}
