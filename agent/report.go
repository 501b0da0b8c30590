package agent

import (
	"errors"

	"github.com/hashicorp/go-multierror"
)

// ErrConsistencyExhausted marks a turn where the population became and
// stayed empty after every replenishment attempt within the update budget.
var ErrConsistencyExhausted = errors.New("agent: population exhausted, no consistent hypergame found")

// ErrHypergameRetired notes one hypergame dropped out of the population
// this turn; it never crosses the Controller boundary as a failure, only as
// a TurnReport note.
var ErrHypergameRetired = errors.New("agent: hypergame retired")

// TurnReport carries the non-fatal diagnostics accumulated during one turn:
// a turn can combine a ConsistencyExhausted note with several retirement
// notes, so they are collected with go-multierror rather than short-circuit
// error returns.
type TurnReport struct {
	Notes                *multierror.Error
	PopulationSize       int
	SeededThisTurn       int
	RetiredThisTurn      int
	BranchedThisTurn     int
	WasIllegalLastTurn   bool
	ConsistencyExhausted bool
}

// Note appends err to the report's accumulated diagnostics.
func (r *TurnReport) Note(err error) {
	r.Notes = multierror.Append(r.Notes, err)
}
