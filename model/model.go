// Package model implements a single hypergame: the stack of joint moves
// taken, per-step state, per-step expected percepts for the player, and
// per-step branching counts.
package model

import (
	"errors"
	"fmt"

	"hyperplay/rules"
)

// ErrDuplicateFrame is returned by Update when the model's stacks already
// hold a frame at the requested step. This indicates a caller bug; callers
// recover by ignoring the redundant push.
var ErrDuplicateFrame = errors.New("model: duplicate frame")

// frame is one pushed step of a Model.
type frame struct {
	action    rules.JointMove // nil for the root frame
	state     rules.State
	percepts  rules.Percept
	branching int
	legal     []rules.Move // this model's role's legal moves at this step, if recorded
}

// Model is one candidate perfect-information trajectory consistent with
// the player's observations so far.
type Model struct {
	role   rules.Role
	engine rules.RulesEngine
	frames []frame

	// hashPath[i] is the action-path hash after frames[0..i] are applied;
	// hashPath[0] is the hash of the root (null-action) frame.
	hashPath []uint64
}

// New creates the root model anchored at the initial state, pushing the
// step-0 frame with the player's initial percepts.
func New(engine rules.RulesEngine, role rules.Role, state rules.State, initialPercepts rules.Percept) *Model {
	m := &Model{role: role, engine: engine}
	// Root frame always succeeds; ignore the impossible duplicate error.
	_ = m.Update(0, initialPercepts, nil, state, 1)
	return m
}

// Update pushes one frame. If joint is nil (step 0), the frame's state is
// state directly and its percepts are initialPercepts.
// Otherwise the frame's state is engine.Successor(state, joint) and its
// percepts are engine.SeesTerms(state, role, joint). branching records the
// number of legal joint moves considered at this frame, before any
// bad-move/in-use filtering.
func (m *Model) Update(step int, initialPercepts rules.Percept, joint rules.JointMove, state rules.State, branching int) error {
	if len(m.frames) > step {
		return fmt.Errorf("%w: step %d already has %d frames", ErrDuplicateFrame, step, len(m.frames))
	}

	var newState rules.State
	var percepts rules.Percept
	if joint == nil {
		newState = state
		percepts = initialPercepts
	} else {
		newState = m.engine.Successor(state, joint)
		percepts = m.engine.SeesTerms(state, m.role, joint)
	}

	f := frame{action: joint, state: newState, percepts: percepts, branching: branching}
	m.frames = append(m.frames, f)
	m.hashPath = append(m.hashPath, m.computeHash(len(m.frames)-1))
	return nil
}

// computeHash folds the hash of frame i with the hash of frame i-1 so that
// the path hash depends on the entire prefix, not just the latest joint
// move.
func (m *Model) computeHash(i int) uint64 {
	var actionHash uint64
	if m.frames[i].action != nil {
		actionHash = m.frames[i].action.Hash()
	}
	if i == 0 {
		return actionHash
	}
	// Combine with FNV-style mixing using the previous path hash as seed.
	h := m.hashPath[i-1]
	h ^= actionHash
	h *= 1099511628211
	return h
}

// Backtrack pops the top frame when length > 1; the root is never removed.
func (m *Model) Backtrack() {
	if len(m.frames) <= 1 {
		return
	}
	m.frames = m.frames[:len(m.frames)-1]
	m.hashPath = m.hashPath[:len(m.hashPath)-1]
}

// Step returns the number of frames currently on the stack (i.e. the
// model's current step index + 1).
func (m *Model) Step() int {
	return len(m.frames)
}

// CurrentState returns the state at the top frame.
func (m *Model) CurrentState() rules.State {
	return m.frames[len(m.frames)-1].state
}

// LatestPercepts returns the expected percepts recorded at the top frame.
func (m *Model) LatestPercepts() rules.Percept {
	return m.frames[len(m.frames)-1].percepts
}

// PerceptAt returns the expected percepts recorded at step i.
func (m *Model) PerceptAt(i int) rules.Percept {
	return m.frames[i].percepts
}

// LastAction returns the joint move that produced the top frame, or nil at
// the root.
func (m *Model) LastAction() rules.JointMove {
	return m.frames[len(m.frames)-1].action
}

// ActionAt returns the joint move that produced the frame at step i.
func (m *Model) ActionAt(i int) rules.JointMove {
	return m.frames[i].action
}

// ActionPathHash returns the node id of the top frame.
func (m *Model) ActionPathHash() uint64 {
	return m.hashPath[len(m.hashPath)-1]
}

// PreviousActionPathHash returns the node id of the frame below the top, or
// the top's own hash if the model only has the root frame.
func (m *Model) PreviousActionPathHash() uint64 {
	if len(m.hashPath) < 2 {
		return m.hashPath[0]
	}
	return m.hashPath[len(m.hashPath)-2]
}

// HashPath returns the full sequence of prefix hashes from the root to the
// current frame, used to navigate the Likelihood Tree.
func (m *Model) HashPath() []uint64 {
	out := make([]uint64, len(m.hashPath))
	copy(out, m.hashPath)
	return out
}

// BranchingProduct returns the product of per-step branching counts: the
// uniform-opponent choice factor for this model's trajectory.
func (m *Model) BranchingProduct() int {
	product := 1
	for _, f := range m.frames {
		if f.branching > 0 {
			product *= f.branching
		}
	}
	return product
}

// RecordLegalMoves stores the player's legal-move set observed at step.
func (m *Model) RecordLegalMoves(step int, moves []rules.Move) {
	m.frames[step].legal = moves
}

// LegalMovesAt returns the player's legal-move set recorded at step, or nil
// if never recorded.
func (m *Model) LegalMovesAt(step int) []rules.Move {
	return m.frames[step].legal
}

// ComputeLegalMoves proxies the Rules Engine for the model's current state.
func (m *Model) ComputeLegalMoves() []rules.Move {
	return m.engine.LegalMoves(m.CurrentState(), m.role)
}

// Role returns the role this model tracks percepts and legal moves for.
func (m *Model) Role() rules.Role {
	return m.role
}

// Clone deep-copies all stacks so the clone can be mutated independently
// of the original.
func (m *Model) Clone() *Model {
	clone := &Model{
		role:     m.role,
		engine:   m.engine,
		frames:   make([]frame, len(m.frames)),
		hashPath: make([]uint64, len(m.hashPath)),
	}
	copy(clone.hashPath, m.hashPath)
	for i, f := range m.frames {
		cf := f
		if f.legal != nil {
			cf.legal = append([]rules.Move(nil), f.legal...)
		}
		clone.frames[i] = cf
	}
	return clone
}
