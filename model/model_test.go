package model

import (
	"testing"

	"hyperplay/internal/fixture"
	"hyperplay/rules"

	"github.com/stretchr/testify/require"
)

func TestNewModelAnchorsAtInitialState(t *testing.T) {
	eng := fixture.Degenerate{RoleA: "a", RoleB: "b"}
	initial := eng.InitialState()
	percepts := rules.Percept{"a": {"start"}}

	m := New(eng, "a", initial, percepts)

	require.Equal(t, 1, m.Step())
	require.Equal(t, initial, m.CurrentState())
	require.Equal(t, percepts, m.LatestPercepts())
	require.Nil(t, m.LastAction())
}

func TestUpdateThenBacktrackRestoresHash(t *testing.T) {
	eng := fixture.Degenerate{RoleA: "a", RoleB: "b"}
	m := New(eng, "a", eng.InitialState(), rules.Percept{"a": {"start"}})

	originalHash := m.ActionPathHash()
	originalStep := m.Step()

	joint := rules.JointMove{"a": fixture.Move("only"), "b": fixture.Move("only")}
	err := m.Update(1, nil, joint, m.CurrentState(), 1)
	require.NoError(t, err)
	require.NotEqual(t, originalHash, m.ActionPathHash())

	m.Backtrack()

	require.Equal(t, originalHash, m.ActionPathHash())
	require.Equal(t, originalStep, m.Step())
}

func TestUpdateDuplicateFrameReturnsError(t *testing.T) {
	eng := fixture.Degenerate{RoleA: "a", RoleB: "b"}
	m := New(eng, "a", eng.InitialState(), rules.Percept{"a": {"start"}})

	joint := rules.JointMove{"a": fixture.Move("only"), "b": fixture.Move("only")}
	require.NoError(t, m.Update(1, nil, joint, m.CurrentState(), 1))

	// Re-pushing at the same step (without backtracking first) is a
	// duplicate frame.
	err := m.Update(1, nil, joint, m.CurrentState(), 1)
	require.ErrorIs(t, err, ErrDuplicateFrame)
}

func TestBacktrackNeverEmptiesRoot(t *testing.T) {
	eng := fixture.Degenerate{RoleA: "a", RoleB: "b"}
	m := New(eng, "a", eng.InitialState(), rules.Percept{"a": {"start"}})

	m.Backtrack()
	m.Backtrack()

	require.Equal(t, 1, m.Step())
}

func TestCloneIsIndependentlyMutable(t *testing.T) {
	eng := fixture.Degenerate{RoleA: "a", RoleB: "b"}
	m := New(eng, "a", eng.InitialState(), rules.Percept{"a": {"start"}})
	m.RecordLegalMoves(0, []rules.Move{fixture.Move("only")})

	clone := m.Clone()
	require.Equal(t, m.ActionPathHash(), clone.ActionPathHash())
	require.Equal(t, m.LegalMovesAt(0), clone.LegalMovesAt(0))

	joint := rules.JointMove{"a": fixture.Move("only"), "b": fixture.Move("only")}
	require.NoError(t, clone.Update(1, nil, joint, clone.CurrentState(), 1))

	require.Equal(t, 1, m.Step(), "original model must be unaffected by clone mutation")
	require.Equal(t, 2, clone.Step())
}

func TestBranchingProductIsUniformChoiceFactor(t *testing.T) {
	eng := fixture.Degenerate{RoleA: "a", RoleB: "b"}
	m := New(eng, "a", eng.InitialState(), rules.Percept{"a": {"start"}})
	joint := rules.JointMove{"a": fixture.Move("only"), "b": fixture.Move("only")}
	require.NoError(t, m.Update(1, nil, joint, m.CurrentState(), 4))

	require.Equal(t, 4, m.BranchingProduct())
}
