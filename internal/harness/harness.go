package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sort"

	"github.com/roach88/phasetrack/internal/engine"
	"github.com/roach88/phasetrack/internal/event"
	"github.com/roach88/phasetrack/internal/ir"
	"github.com/roach88/phasetrack/internal/states"
	"github.com/roach88/phasetrack/internal/store"
	"github.com/roach88/phasetrack/internal/testutil"
	"github.com/roach88/phasetrack/internal/world"
)

// flagNames maps scenario flag names to engine flags.
var flagNames = map[string]engine.Flag{
	"did_port": states.FlagDidPort,
}

// primitiveErrors maps expect_error names to the errors primitives return.
var primitiveErrors = map[string]error{
	"chunk_denied":      world.ErrChunkRequestDenied,
	"insufficient_fuel": world.ErrInsufficientFuel,
	"entity_exists":     world.ErrEntityExists,
}

// Options tunes a scenario run.
type Options struct {
	// TrackerOptions are applied after the deterministic clock and ids.
	TrackerOptions []engine.TrackerOption

	// Logger receives step-level logs. Defaults to a discarding logger.
	Logger *slog.Logger

	// Journal, when set, also records the run's events in a persistent
	// store under RunID.
	Journal *store.Store
	RunID   string
}

// Harness executes one scenario against a fresh tracker.
type Harness struct {
	fixture  *testutil.Fixture
	store    *store.Store
	journal  *store.Journal
	entities map[string]ir.Entity
	logger   *slog.Logger
}

// Run executes a scenario with default options and returns the result.
func Run(scenario *Scenario) (*Result, error) {
	return RunWithOptions(scenario, Options{})
}

// RunWithOptions executes a scenario and returns the result.
//
// Each scenario runs against a fresh tracker, world and in-memory journal.
// Deterministic ids and seqs make traces reproducible.
//
// Execution flow:
// 1. Create fresh in-memory journal and fixture
// 2. Seed the world, subscribe listeners, register hooks
// 3. Execute steps, checking completion expectations
// 4. Evaluate assertions against trace, world and journal
//
// The returned error covers harness failures only (bad entity references,
// journal errors). Behavioral mismatches are reported through Result.
func RunWithOptions(scenario *Scenario, opts Options) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	ctx := context.Background()
	journal, err := store.NewJournal(ctx, st, testutil.FormatID(0), scenario.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to start journal: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil)) // Suppress logs in tests
	}

	h := &Harness{
		fixture:  testutil.NewFixture(opts.TrackerOptions...),
		store:    st,
		journal:  journal,
		entities: make(map[string]ir.Entity),
		logger:   logger,
	}

	if err := h.seed(scenario); err != nil {
		return nil, fmt.Errorf("failed to seed world: %w", err)
	}
	h.subscribe(scenario.Listeners)
	h.fixture.Bus.Subscribe(journal, event.OrderLast)

	var persistent *store.Journal
	if opts.Journal != nil {
		if opts.RunID == "" {
			return nil, fmt.Errorf("journal requires a run id")
		}
		persistent, err = store.NewJournal(ctx, opts.Journal, opts.RunID, scenario.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to start persistent journal: %w", err)
		}
		h.fixture.Bus.Subscribe(persistent, event.OrderLast)
	}
	h.registerHooks(scenario.Hooks)

	result := NewResult()
	for i, step := range scenario.Steps {
		if err := h.execute(i, step, result); err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
	}

	if err := journal.Err(); err != nil {
		return nil, fmt.Errorf("journal: %w", err)
	}
	if persistent != nil {
		if err := persistent.Err(); err != nil {
			return nil, fmt.Errorf("persistent journal: %w", err)
		}
		logger.Info("run journaled", "run", opts.RunID, "events", persistent.Written())
	}

	result.Trace = h.fixture.Records()
	result.World = h.fixture.World.Snapshot()
	result.Depth = h.fixture.Tracker.Depth()

	actx := &AssertionContext{
		Store: st,
		Ctx:   ctx,
		World: h.fixture.World,
	}
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(errMsg)
	}
	return result, nil
}

// seed applies the world setup directly, bypassing phase tracking.
func (h *Harness) seed(s *Scenario) error {
	w := h.fixture.World
	for _, b := range s.World.Blocks {
		w.SetBlock(b.Pos.BlockPos(), ir.BlockState(b.State))
	}
	for _, spec := range s.World.Entities {
		e := spec.Entity()
		if err := w.AddEntity(e); err != nil {
			return err
		}
		h.entities[spec.ID] = e
	}
	for _, f := range s.World.Fuel {
		w.SetFuel(f.Pos.BlockPos(), f.Amount)
	}
	return nil
}

func (h *Harness) subscribe(listeners []Listener) {
	for _, l := range listeners {
		match, cancel := l.Cancel, true
		if l.Uncancel != nil {
			match, cancel = l.Uncancel, false
		}
		m := *match
		h.fixture.Bus.Subscribe(event.ListenerFunc(func(ev event.Event) {
			if m.Matches(ev) {
				ev.Header().SetCancelled(cancel)
			}
		}), event.OrderDefault)
	}
}

// registerHooks runs hook mutations through the primitives when the world
// applies a change at the hook position.
func (h *Harness) registerHooks(hooks []Hook) {
	for i, hook := range hooks {
		at := hook.At.BlockPos()
		h.fixture.World.OnBlockChange(func(c ir.BlockChange) {
			if c.Pos != at {
				return
			}
			var err error
			switch {
			case hook.Spawn != nil:
				_, err = h.fixture.Prims.SpawnEntity(hook.Spawn.Entity())
			case hook.Place != nil:
				_, err = h.fixture.Prims.PlaceBlock(hook.Place.Pos.BlockPos(), ir.BlockState(hook.Place.State))
			case hook.Drop != nil:
				_, err = h.fixture.Prims.CreateItemDrop(hook.Drop.Drop())
			}
			if err != nil {
				h.logger.Warn("hook mutation failed", "hook", i, "pos", at.String(), "error", err)
			}
		})
	}
}

func (h *Harness) execute(i int, step Step, result *Result) error {
	tr := h.fixture.Tracker
	prims := h.fixture.Prims
	name, _ := step.action()

	var err error
	switch name {
	case "switch":
		return h.switchTo(step)

	case "complete":
		state, _ := states.Default.Lookup(step.Complete)
		comp := tr.CompletePhase(state)
		trace := completionTrace(step.Complete, comp)
		result.Completions = append(result.Completions, trace)
		for _, msg := range checkCompletion(i, trace, step.Expect) {
			result.AddError(msg)
		}
		h.logger.Info("phase completed",
			"step", i,
			"state", step.Complete,
			"posted", trace.Posted,
			"cancelled", trace.Cancelled,
		)
		return nil

	case "spawn":
		e := step.Spawn.Entity()
		h.entities[step.Spawn.ID] = e
		_, err = prims.SpawnEntity(e)
	case "place":
		_, err = prims.PlaceBlock(step.Place.Pos.BlockPos(), ir.BlockState(step.Place.State))
	case "drop":
		_, err = prims.CreateItemDrop(step.Drop.Drop())
	case "consume_fuel":
		err = prims.ConsumeFuel(step.ConsumeFuel.Pos.BlockPos(), step.ConsumeFuel.Amount)
	case "request_chunk":
		err = prims.RequestChunk(step.RequestChunk.BlockPos())
	case "flag":
		_, c := tr.Current()
		c.SetFlag(flagNames[step.Flag])
		return nil
	}

	checkPrimitiveError(i, name, step.ExpectError, err, result)
	return nil
}

func (h *Harness) switchTo(step Step) error {
	state, _ := states.Default.Lookup(step.Switch)
	c := h.fixture.Tracker.SwitchTo(state)

	if src := step.Source; src != nil {
		if src.Block != nil {
			c.WithSource(src.Block.BlockPos())
		} else {
			e, ok := h.entities[src.Entity]
			if !ok {
				return fmt.Errorf("unknown source entity %q", src.Entity)
			}
			c.WithSource(e)
		}
	}
	if step.Notifier != "" {
		e, ok := h.entities[step.Notifier]
		if !ok {
			return fmt.Errorf("unknown notifier entity %q", step.Notifier)
		}
		c.WithNotifier(e)
	}
	if step.Owner != "" {
		e, ok := h.entities[step.Owner]
		if !ok {
			return fmt.Errorf("unknown owner entity %q", step.Owner)
		}
		c.WithOwner(e)
	}
	return nil
}

func checkPrimitiveError(i int, action, expected string, err error, result *Result) {
	if expected == "" {
		if err != nil {
			result.AddError(fmt.Sprintf("steps[%d] %s: unexpected error: %v", i, action, err))
		}
		return
	}
	if !errors.Is(err, primitiveErrors[expected]) {
		result.AddError(fmt.Sprintf("steps[%d] %s: expected error %s, got %v", i, action, expected, err))
	}
}

func completionTrace(requested string, comp engine.Completion) CompletionTrace {
	ct := CompletionTrace{
		State:       requested,
		Posted:      comp.Posted,
		Cancelled:   comp.Cancelled,
		ForcePopped: comp.ForcePopped,
	}
	for name, f := range flagNames {
		if comp.Has(f) {
			ct.Flags = append(ct.Flags, name)
		}
	}
	sort.Strings(ct.Flags)

	var pe *engine.PhaseError
	if errors.As(comp.Err, &pe) {
		ct.Error = string(pe.Code)
	} else if comp.Err != nil {
		ct.Error = comp.Err.Error()
	}
	return ct
}

func checkCompletion(i int, got CompletionTrace, want *CompletionExpect) []string {
	if want == nil {
		return nil
	}
	var errs []string
	mismatch := func(field string, expected, actual any) {
		errs = append(errs, fmt.Sprintf("steps[%d] complete %s: %s = %v, expected %v",
			i, got.State, field, actual, expected))
	}
	if want.Posted != nil && *want.Posted != got.Posted {
		mismatch("posted", *want.Posted, got.Posted)
	}
	if want.Cancelled != nil && *want.Cancelled != got.Cancelled {
		mismatch("cancelled", *want.Cancelled, got.Cancelled)
	}
	if want.ForcePopped != nil && *want.ForcePopped != got.ForcePopped {
		mismatch("force_popped", *want.ForcePopped, got.ForcePopped)
	}
	if want.Error != got.Error {
		mismatch("error", want.Error, got.Error)
	}
	if want.Flags != nil {
		expected := slices.Clone(want.Flags)
		sort.Strings(expected)
		if !slices.Equal(expected, got.Flags) {
			mismatch("flags", expected, got.Flags)
		}
	}
	return errs
}
