package engine

import (
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/roach88/phasetrack/internal/cause"
	"github.com/roach88/phasetrack/internal/event"
	"github.com/roach88/phasetrack/internal/ir"
)

// CauseStack is the cause stack the tracker pushes frames and causes onto.
// *cause.Stack is the default implementation.
type CauseStack interface {
	PushCauseFrame() cause.Frame
	PopCauseFrame(f cause.Frame) error
	PushCause(v any)
	PopCause() any
	AddContext(k cause.Key, v any)
	CurrentCause() cause.Cause
}

// World applies accepted mutations. Implementations must not route these
// calls back through capture.
type World interface {
	ApplySpawn(e ir.Entity) error
	ApplyDrop(d ir.ItemDrop) error
	ApplyBlock(c ir.BlockChange) error
	Block(pos ir.BlockPos) ir.BlockState
}

type entry struct {
	state *State
	ctx   *Context
}

// Completion reports what happened when a phase completed.
type Completion struct {
	// State is the completed state, or nil if nothing was popped.
	State *State

	// Flags holds the one-shot flags set during the phase.
	Flags Flag

	// Posted and Cancelled count the events the unwind dispatched.
	Posted    int
	Cancelled int

	// ForcePopped counts entries discarded above the completed one.
	ForcePopped int

	// Err is the unwind error, or a stack imbalance error if the state was
	// not active.
	Err error
}

// Has reports whether flag f was set during the phase.
func (c Completion) Has(f Flag) bool { return c.Flags.Has(f) }

// Tracker is the phase tracker for one simulation goroutine.
//
// ARCHITECTURE:
//
// The stack always holds a root Idle entry. SwitchTo pushes a state with a
// fresh pooled context and opens a cause frame; CompletePhase pops it,
// replays captures through the state's unwind, closes the frame and returns
// the context to the pool. Unwinds may open nested phases on the same
// tracker.
//
// A Tracker is not safe for concurrent use. Every mutating call checks that
// it runs on the goroutine that created the tracker and panics with
// *OwnershipError otherwise.
type Tracker struct {
	stack      []entry
	pool       *pool
	causes     CauseStack
	dispatcher event.Dispatcher
	world      World

	clock      *Clock
	ids        IDGenerator
	reentrance *ReentranceDetector
	guard      *DepthGuard

	owner      uint64
	checkOwner bool
}

// TrackerOption configures a Tracker.
type TrackerOption func(*Tracker)

// WithClock sets the logical clock used to stamp events.
func WithClock(c *Clock) TrackerOption {
	return func(t *Tracker) { t.clock = c }
}

// WithIDGenerator sets the event id generator.
func WithIDGenerator(g IDGenerator) TrackerOption {
	return func(t *Tracker) { t.ids = g }
}

// WithMaxDepth sets the depth past which a runaway warning is logged.
func WithMaxDepth(n int) TrackerOption {
	return func(t *Tracker) { t.guard = NewDepthGuard(n) }
}

// WithPoolCapacity preallocates n pooled contexts.
func WithPoolCapacity(n int) TrackerOption {
	return func(t *Tracker) { t.pool = newPool(t, n) }
}

// WithOwnerCheck toggles the owning-goroutine assertion.
func WithOwnerCheck(enabled bool) TrackerOption {
	return func(t *Tracker) { t.checkOwner = enabled }
}

// New creates a tracker owned by the calling goroutine.
func New(causes CauseStack, dispatcher event.Dispatcher, world World, opts ...TrackerOption) *Tracker {
	t := &Tracker{
		causes:     causes,
		dispatcher: dispatcher,
		world:      world,
		reentrance: NewReentranceDetector(),
		guard:      NewDepthGuard(DefaultMaxDepth),
		owner:      goroutineID(),
		checkOwner: true,
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.pool == nil {
		t.pool = newPool(t, 8)
	}
	if t.clock == nil {
		t.clock = NewClock()
	}
	if t.ids == nil {
		t.ids = UUIDv7Generator{}
	}
	if t.causes == nil {
		t.causes = cause.NewStack()
	}
	if t.dispatcher == nil {
		t.dispatcher = event.NewBus()
	}

	root := t.pool.acquire(t)
	root.activate(Idle, 0)
	t.stack = append(t.stack, entry{state: Idle, ctx: root})
	return t
}

// Causes returns the cause stack.
func (t *Tracker) Causes() CauseStack { return t.causes }

// World returns the world mutations are applied to.
func (t *Tracker) World() World { return t.world }

// Clock returns the logical clock.
func (t *Tracker) Clock() *Clock { return t.clock }

// Reentrance returns the re-entrance detector.
func (t *Tracker) Reentrance() *ReentranceDetector { return t.reentrance }

// DepthGuard returns the tracker's runaway depth guard.
func (t *Tracker) DepthGuard() *DepthGuard { return t.guard }

// SwitchTo pushes state with a fresh context and runs its entry sequence.
// The caller sets attribution on the returned context, runs domain logic,
// then calls CompletePhase(state).
func (t *Tracker) SwitchTo(state *State) *Context {
	t.assertOwner("SwitchTo")
	if state == nil {
		panic("engine: SwitchTo(nil)")
	}

	if t.reentrance.wouldReenter(t.stack, state) {
		t.reentrance.Record(state, t.Snapshot())
	}

	ctx := t.pool.acquire(t)
	ctx.activate(state, len(t.stack))
	ctx.frame = t.causes.PushCauseFrame()
	t.causes.AddContext(cause.KeyPhase, state.name)
	t.stack = append(t.stack, entry{state: state, ctx: ctx})

	for _, fn := range state.enter {
		fn(ctx, t.causes)
	}

	if err := t.guard.Check(len(t.stack)); err != nil {
		if re, ok := err.(*RunawayError); ok {
			t.guard.Report(re, t.Snapshot())
		}
	}

	slog.Debug("phase entered",
		"state", state.name,
		"depth", ctx.depth,
		"captures", state.captures.String(),
	)
	return ctx
}

// Current returns the top entry.
func (t *Tracker) Current() (*State, *Context) {
	top := t.stack[len(t.stack)-1]
	return top.state, top.ctx
}

// CurrentState returns the top state.
func (t *Tracker) CurrentState() *State {
	return t.stack[len(t.stack)-1].state
}

// Depth returns the number of entries, including the root Idle entry.
func (t *Tracker) Depth() int {
	return len(t.stack)
}

// CompletePhase completes the most recent activation of state.
//
// When state is on top, its context is unwound, its cause frame popped, and
// the context released. When entries sit above it, each is discarded
// without unwinding and logged as a stack imbalance before state completes
// normally. Phases the unwind opened and left open are discarded the same
// way once it returns. When state is not on the stack nothing is popped.
func (t *Tracker) CompletePhase(state *State) Completion {
	t.assertOwner("CompletePhase")

	idx := t.indexOf(state)
	if idx < 0 {
		err := &PhaseError{
			Code:    ErrCodeStackImbalance,
			Message: "completed phase is not active",
			State:   stateName(state),
			Depth:   -1,
		}
		slog.Error("phase stack imbalance",
			"state", stateName(state),
			"top", t.CurrentState().name,
			"stack", renderSnapshot(t.Snapshot()),
			"error", err,
		)
		return Completion{Err: err}
	}

	forced := 0
	for len(t.stack)-1 > idx {
		t.forcePop(state)
		forced++
	}

	e := t.stack[idx]
	t.stack = t.stack[:idx]
	ctx := e.ctx

	err := t.unwind(ctx)

	// An unwind that failed part way may leave its own nested phases open.
	for len(t.stack) > idx {
		t.forcePop(state)
		forced++
	}

	if ferr := t.causes.PopCauseFrame(ctx.frame); ferr != nil {
		slog.Warn("cause frame imbalance after unwind",
			"state", state.name,
			"error", ferr,
		)
	}

	if n := ctx.undrainedCount(); n > 0 {
		slog.Warn("captures left undrained at completion",
			"state", state.name,
			"count", n,
			"undrained", ctx.undrained(),
		)
	}

	ctx.completed = true
	comp := Completion{
		State:       state,
		Flags:       ctx.flags,
		Posted:      ctx.posted,
		Cancelled:   ctx.cancelled,
		ForcePopped: forced,
		Err:         err,
	}
	t.pool.release(ctx)
	t.guard.Check(len(t.stack))

	slog.Debug("phase completed",
		"state", state.name,
		"depth", idx,
		"posted", comp.Posted,
		"cancelled", comp.Cancelled,
	)
	return comp
}

func (t *Tracker) indexOf(state *State) int {
	if state == nil {
		return -1
	}
	// The root entry is never completed.
	for i := len(t.stack) - 1; i >= 1; i-- {
		if t.stack[i].state == state {
			return i
		}
	}
	return -1
}

// forcePop discards the top entry without unwinding it.
func (t *Tracker) forcePop(expected *State) {
	top := t.stack[len(t.stack)-1]
	t.stack = t.stack[:len(t.stack)-1]
	ctx := top.ctx

	err := NewStackImbalanceError(top.state.name, expected.name, ctx.depth)
	attrs := []any{
		"state", top.state.name,
		"expected", expected.name,
		"depth", ctx.depth,
	}
	attrs = append(attrs, ctx.attributionAttrs()...)
	undrained := ctx.undrained()
	for _, kind := range sortedKinds(undrained) {
		attrs = append(attrs, "undrained_"+kind, undrained[kind])
	}
	attrs = append(attrs, "error", err)
	slog.Error("phase discarded without unwinding", attrs...)

	if ferr := t.causes.PopCauseFrame(ctx.frame); ferr != nil {
		slog.Warn("cause frame imbalance while discarding phase",
			"state", top.state.name,
			"error", ferr,
		)
	}
	ctx.completed = true
	t.pool.release(ctx)
}

// unwind runs the state's unwind procedure, containing panics.
func (t *Tracker) unwind(ctx *Context) (err error) {
	state := ctx.state
	if state.unwind == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = &PhaseError{
				Code:    ErrCodeUnwindPanic,
				Message: fmt.Sprint(r),
				State:   state.name,
				Depth:   ctx.depth,
			}
			slog.Error("phase unwind panicked",
				"state", state.name,
				"panic", fmt.Sprint(r),
				"trace", string(debug.Stack()),
			)
		}
	}()
	if err = state.unwind(t, ctx); err != nil {
		slog.Error("phase unwind failed",
			"state", state.name,
			"error", err,
		)
	}
	return err
}

// Run enters state, applies setup to the context, runs fn, and always
// completes the phase, even when fn panics. A panic in fn is returned as a
// DOMAIN_PANIC error.
func (t *Tracker) Run(state *State, setup func(*Context), fn func(*Context) error) (comp Completion, err error) {
	ctx := t.SwitchTo(state)
	defer func() {
		if r := recover(); r != nil {
			err = &PhaseError{
				Code:    ErrCodeDomainPanic,
				Message: fmt.Sprint(r),
				State:   state.name,
				Depth:   ctx.depth,
			}
			slog.Error("domain logic panicked inside phase",
				"state", state.name,
				"panic", fmt.Sprint(r),
			)
		}
		comp = t.CompletePhase(state)
	}()
	if setup != nil {
		setup(ctx)
	}
	if fn != nil {
		err = fn(ctx)
	}
	return comp, err
}

// IsInPhase reports whether any entry, top first, satisfies pred.
func (t *Tracker) IsInPhase(pred func(*State, *Context) bool) bool {
	for i := len(t.stack) - 1; i >= 0; i-- {
		if pred(t.stack[i].state, t.stack[i].ctx) {
			return true
		}
	}
	return false
}

// AnyActive reports whether any active state has policy p.
func (t *Tracker) AnyActive(p Policy) bool {
	return t.IsInPhase(func(s *State, _ *Context) bool { return s.Has(p) })
}

// Active reports whether state is anywhere on the stack.
func (t *Tracker) Active(state *State) bool {
	return t.indexOf(state) >= 0
}

// Resolve returns the context behind h, or a STALE_HANDLE error if the
// context was released.
func (t *Tracker) Resolve(h Handle) (*Context, error) {
	return t.pool.resolve(h)
}

// PoolStats reports context pool usage. InUse includes the root entry.
func (t *Tracker) PoolStats() PoolStats {
	return PoolStats{
		Capacity: len(t.pool.slots),
		InUse:    t.pool.inUse(),
		Acquired: t.pool.acquired,
		Released: t.pool.released,
	}
}

// Stamp fills ev's header: a fresh id, the next clock value, the building
// state, and a snapshot of the current cause. Lazily supplied notifier and
// owner are resolved here and added to the cause context.
func (t *Tracker) Stamp(c *Context, ev event.Event) {
	h := ev.Header()
	h.ID = t.ids.Generate()
	h.Seq = t.clock.Next()
	h.State = c.state.name

	cs := t.causes.CurrentCause()
	if n, ok := c.Notifier(); ok {
		if _, set := cs.Context(cause.KeyNotifier); !set {
			cs = cs.WithContext(cause.KeyNotifier, n)
		}
	}
	if o, ok := c.Owner(); ok {
		if _, set := cs.Context(cause.KeyOwner); !set {
			cs = cs.WithContext(cause.KeyOwner, o)
		}
	}
	h.Cause = cs
}

// Post dispatches a stamped event and returns whether it was cancelled.
func (t *Tracker) Post(c *Context, ev event.Event) bool {
	cancelled := t.dispatcher.Post(ev)
	c.posted++
	if cancelled {
		c.cancelled++
	}
	slog.Debug("event posted",
		"kind", ev.Kind(),
		"id", ev.Header().ID,
		"state", c.state.name,
		"cancelled", cancelled,
	)
	return cancelled
}

func stateName(s *State) string {
	if s == nil {
		return "<nil>"
	}
	return s.name
}
