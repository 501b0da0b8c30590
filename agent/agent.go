// Package agent implements the Agent Controller: the per-turn loop that
// ties the Sampler, Population Manager, and Move Evaluator together over
// one agent instance's lifetime, plus the per-hypergame Alive/Retired state
// machine that governs population turnover. The Rules Engine and the game
// controller that drives this turn loop remain external to this package.
package agent

import (
	"time"

	"github.com/rs/zerolog"

	"hyperplay/config"
	"hyperplay/evaluator"
	"hyperplay/internal/clock"
	"hyperplay/internal/rng"
	"hyperplay/likelihood"
	"hyperplay/model"
	"hyperplay/population"
	"hyperplay/rules"
	"hyperplay/sampler"
	"hyperplay/telemetry"
)

// Controller is one agent instance playing one role across one match.
// Likelihood Tree, BadMoves, and InUseMoves are owned here and shared by
// every hypergame in the population, mutated only by this single-threaded
// turn loop.
type Controller struct {
	engine rules.RulesEngine
	role   rules.Role
	cfg    config.Agent
	log    zerolog.Logger
	clock  clock.Clock

	rnd       *rng.Source
	tree      *likelihood.Tree
	reg       *sampler.Registries
	smp       *sampler.Sampler
	evl       *evaluator.Evaluator
	telemetry *telemetry.Writer
	gameName  string

	population []*model.Model

	actionTracker         map[int]rules.Move
	expectedActionTracker map[int]rules.Move
	perceptTracker        map[int]rules.Percept

	step             int
	timedOutLastTurn bool
	lastKnownLegal   []rules.Move
}

// Option configures a Controller at construction.
type Option func(*Controller)

// WithLogger injects a structured logger; unset, the Controller is silent
// (zerolog.Nop()).
func WithLogger(log zerolog.Logger) Option {
	return func(c *Controller) { c.log = log }
}

// WithClock injects a clock for deterministic anytime-loop tests.
func WithClock(cl clock.Clock) Option {
	return func(c *Controller) {
		if cl != nil {
			c.clock = cl
		}
	}
}

// WithTelemetry attaches a CSV writer; each Turn appends one row to it.
func WithTelemetry(w *telemetry.Writer, gameName string) Option {
	return func(c *Controller) {
		c.telemetry = w
		c.gameName = gameName
	}
}

// WithRNG overrides the default freshly-seeded rng.Source, for reproducible
// tests.
func WithRNG(r *rng.Source) Option {
	return func(c *Controller) {
		if r != nil {
			c.rnd = r
		}
	}
}

// New constructs a Controller anchored at the Rules Engine's initial state,
// with role's first percept recorded as the root model's observation.
func New(engine rules.RulesEngine, role rules.Role, cfg config.Agent, initialPercept rules.Percept, options ...Option) *Controller {
	c := &Controller{
		engine: engine,
		role:   role,
		cfg:    cfg,
		log:    zerolog.Nop(),
		clock:  clock.Real{},

		actionTracker:         make(map[int]rules.Move),
		expectedActionTracker: make(map[int]rules.Move),
		perceptTracker:        map[int]rules.Percept{0: initialPercept},
	}
	c.rnd = rng.New()

	for _, opt := range options {
		opt(c)
	}

	c.tree = likelihood.New(0)
	c.reg = sampler.NewRegistries()
	c.smp = sampler.New(engine, role, c.tree, c.reg, cfg.NumOPProbes, c.rnd, sampler.WithLogger(c.log))
	c.evl = evaluator.New(engine, role, c.rnd, evaluator.WithMaxDepths(cfg.MaxNumProbes), evaluator.WithLikelihoodPowerFactor(cfg.LikelihoodPowerFactor))

	root := model.New(engine, role, engine.InitialState(), initialPercept)
	root.RecordLegalMoves(0, engine.LegalMoves(engine.InitialState(), role))
	c.population = []*model.Model{root}
	c.lastKnownLegal = engine.LegalMoves(engine.InitialState(), role)

	return c
}

// Turn runs one complete turn and returns the chosen move alongside a
// non-fatal diagnostics report. priorMove is the move the Controller
// reports the agent actually played at step-1 (may differ from what was
// submitted if ruled illegal); percept is this step's observation.
func (c *Controller) Turn(priorMove rules.Move, percept rules.Percept, deadline time.Time) (rules.Move, *TurnReport) {
	report := &TurnReport{}
	step := c.step
	c.perceptTracker[step] = percept
	c.smp.ResetForwardCalls()
	updateStart := c.clock.Now()

	if c.timedOutLastTurn {
		c.log.Info().Int("step", step).Msg("agent: recovered from previous turn's timeout, in-use claims cleared")
		c.reg.ClearInUse()
		delete(c.expectedActionTracker, step-1)
		c.timedOutLastTurn = false
	}

	if step > 0 {
		c.actionTracker[step-1] = priorMove
		c.reg.SetWhitelist(step-1, priorMove)
		if expected := c.expectedActionTracker[step-1]; expected != nil && priorMove != nil {
			report.WasIllegalLastTurn = priorMove.String() != expected.String()
		}
	}

	if step > 0 {
		expected := c.expectedActionTracker[step-1]
		c.population = c.smp.RetroactiveConsistency(c.population, step, expected, priorMove)
	}

	c.advancePopulation(step, report)
	c.retireZeroPosterior(report)

	updateDeadline := c.clock.Now().Add(deadline.Sub(c.clock.Now()) / time.Duration(maxInt(c.cfg.InvPlaytimeFactor, 1)))
	c.seedIfNeeded(step, updateDeadline, report)

	if len(c.population) > c.cfg.NumHyperGames {
		c.population = population.FilterByVariance(c.population, c.tree, c.cfg.NumHyperGames)
	}
	updateMillis := c.clock.Now().Sub(updateStart).Milliseconds()

	selectStart := c.clock.Now()
	chosen, stats := c.selectMove(step, deadline, report)
	selectMillis := c.clock.Now().Sub(selectStart).Milliseconds()

	c.expectedActionTracker[step] = chosen
	c.step++

	if c.telemetry != nil {
		_ = c.telemetry.Append(telemetry.Row{
			GameName:           c.gameName,
			Step:               step,
			Role:               string(c.role),
			PopulationSize:     len(c.population),
			RolloutDepth:       stats.DepthsRun,
			UpdateMillis:       updateMillis,
			SelectMillis:       selectMillis,
			ChosenMove:         chosen.String(),
			WasIllegalLastTurn: report.WasIllegalLastTurn,
			SimulationsRun:     stats.SimulationsRun,
			ForwardCalls:       c.smp.ForwardCalls(),
		})
	}

	return chosen, report
}

// advancePopulation drives every hypergame forward to step, retiring any
// that backtrack below (step − backtrackingDepth) or to the root.
func (c *Controller) advancePopulation(step int, report *TurnReport) {
	if step == 0 {
		return
	}

	// Clone every surviving model before it advances, while it still sits at
	// the pre-step decision point each clone is meant to explore an
	// alternative from.
	var clones []*model.Model
	if c.cfg.ShouldBranch && c.cfg.NumHyperBranches > 0 {
		for _, m := range c.population {
			for i := 0; i < c.cfg.NumHyperBranches; i++ {
				clones = append(clones, m.Clone())
			}
		}
	}

	alive := c.population[:0]
	for _, m := range c.population {
		if c.smp.Advance(m, step, c.cfg.BacktrackingDepth, c.actionTracker, c.perceptTracker, step) {
			alive = append(alive, m)
		} else {
			c.log.Debug().Int("step", step).Msg("agent: hypergame retired, could not advance consistently")
			report.RetiredThisTurn++
			report.Note(ErrHypergameRetired)
		}
	}
	c.population = alive

	// Advancing clones only after every original has claimed its choice
	// means the shared InUseMoves registry steers each clone's weighted
	// selection toward a joint move its original (or an earlier sibling
	// clone) did not take.
	for _, clone := range clones {
		if c.smp.Advance(clone, step, c.cfg.BacktrackingDepth, c.actionTracker, c.perceptTracker, step) {
			c.population = append(c.population, clone)
			report.BranchedThisTurn++
		}
	}
}

// retireZeroPosterior drops zero-posterior hypergames when more than one
// Alive peer remains.
func (c *Controller) retireZeroPosterior(report *TurnReport) {
	if len(c.population) <= 1 {
		return
	}
	posteriors := population.Posteriors(c.population, c.tree)
	survivors := c.population[:0]
	for i, m := range c.population {
		if posteriors[i] <= 0 {
			c.log.Debug().Int("index", i).Msg("agent: hypergame retired, posterior fell to zero")
			report.RetiredThisTurn++
			report.Note(ErrHypergameRetired)
			continue
		}
		survivors = append(survivors, m)
	}
	if len(survivors) == 0 {
		// Never retire every last hypergame via this rule alone.
		survivors = append(survivors, c.population[0])
	}
	c.population = survivors
}

// seedIfNeeded runs the Sampler's seed search when the population is empty
// or below cap, then records ConsistencyExhausted if nothing survives at
// all.
func (c *Controller) seedIfNeeded(step int, updateDeadline time.Time, report *TurnReport) {
	if len(c.population) >= c.cfg.NumHyperGames && len(c.population) > 0 {
		return
	}
	before := len(c.population)
	rootHash := uint64(0)
	c.population = c.smp.SeedSearch(
		c.population, c.engine, c.role, c.engine.InitialState(), c.perceptTracker[0],
		rootHash, step, c.cfg.NumHyperGames, c.cfg.BacktrackingDepth,
		c.actionTracker, c.perceptTracker, step,
		func() bool { return c.clock.Now().Before(updateDeadline) },
	)
	report.SeededThisTurn = len(c.population) - before

	if len(c.population) == 0 {
		c.log.Warn().Int("step", step).Msg("agent: consistency exhausted, no hypergame survived seeding")
		report.ConsistencyExhausted = true
		report.Note(ErrConsistencyExhausted)
	}
}

// selectMove runs the Move Evaluator over the surviving population, or
// falls back to the most recently known legal move (or the prior move
// repeated as a last resort) when the population is empty.
func (c *Controller) selectMove(step int, deadline time.Time, report *TurnReport) (rules.Move, evaluator.Stats) {
	report.PopulationSize = len(c.population)

	if len(c.population) == 0 {
		if len(c.lastKnownLegal) > 0 {
			return c.lastKnownLegal[0], evaluator.Stats{}
		}
		legal := c.engine.LegalMoves(c.engine.InitialState(), c.role)
		if len(legal) > 0 {
			return legal[0], evaluator.Stats{}
		}
		return c.actionTracker[step-1], evaluator.Stats{}
	}

	posteriors := population.Posteriors(c.population, c.tree)
	hypergames := make([]evaluator.Hypergame, len(c.population))
	seen := make(map[string]struct{})
	var candidates []rules.Move
	for i, m := range c.population {
		legal := c.engine.LegalMoves(m.CurrentState(), c.role)
		m.RecordLegalMoves(step, legal)
		hypergames[i] = evaluator.Hypergame{Model: m, Posterior: posteriors[i]}
		for _, mv := range legal {
			if _, ok := seen[mv.String()]; !ok {
				seen[mv.String()] = struct{}{}
				candidates = append(candidates, mv)
			}
		}
	}
	if len(candidates) == 0 {
		candidates = c.lastKnownLegal
	}
	c.lastKnownLegal = candidates

	return c.evl.Select(candidates, hypergames, step, deadline)
}

// NotifyTimeout marks that the previous turn timed out before returning,
// so the next Turn clears currentlyInUseMoves and re-aligns.
func (c *Controller) NotifyTimeout() {
	c.log.Warn().Int("step", c.step).Msg("agent: turn timed out")
	c.timedOutLastTurn = true
}

// PopulationSize reports the current number of Alive hypergames.
func (c *Controller) PopulationSize() int {
	return len(c.population)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
