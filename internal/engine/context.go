package engine

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/roach88/phasetrack/internal/capture"
	"github.com/roach88/phasetrack/internal/cause"
	"github.com/roach88/phasetrack/internal/ir"
)

// Flag is a one-shot marker set during a phase and read from its Completion.
type Flag uint32

// Has reports whether every flag in g is set.
func (f Flag) Has(g Flag) bool { return f&g == g }

// EntitySupplier resolves an attribution entity on first use.
type EntitySupplier func() (ir.Entity, bool)

type lazyEntity struct {
	value    ir.Entity
	supplier EntitySupplier
	resolved bool
	present  bool
}

func (l *lazyEntity) set(e ir.Entity) {
	*l = lazyEntity{value: e, resolved: true, present: true}
}

func (l *lazyEntity) setFunc(fn EntitySupplier) {
	*l = lazyEntity{supplier: fn}
}

func (l *lazyEntity) get() (ir.Entity, bool) {
	if !l.resolved {
		l.resolved = true
		if l.supplier != nil {
			l.value, l.present = l.supplier()
		}
		l.supplier = nil
	}
	return l.value, l.present
}

// UndoKey selects the undo hooks run when an event built from one capture
// group is cancelled.
type UndoKey struct {
	Kind  capture.Kind
	Owner ir.OwnerID
}

// Context is the mutable per-activation record of a phase. Contexts are
// pooled: a *Context is only valid until its phase completes. Keep a Handle
// to detect reuse.
type Context struct {
	tracker *Tracker
	state   *State
	slot    int32
	gen     uint32
	depth   int
	frame   cause.Frame

	source    any
	hasSource bool
	notifier  lazyEntity
	owner     lazyEntity

	spawns *capture.Buffer[ir.Entity]
	drops  *capture.Grouped[ir.OwnerID, ir.ItemDrop]
	blocks *capture.Buffer[ir.BlockChange]

	undo      map[UndoKey][]func()
	undoOrder []UndoKey
	flags     Flag
	posted    int
	cancelled int
	completed bool
}

func newContext(t *Tracker, slot int32) *Context {
	c := &Context{tracker: t, slot: slot, completed: true}
	c.spawns = capture.NewBuffer[ir.Entity](capture.KindSpawns, c)
	c.drops = capture.NewGrouped[ir.OwnerID, ir.ItemDrop](capture.KindDrops, c)
	c.blocks = capture.NewBuffer[ir.BlockChange](capture.KindBlocks, c)
	return c
}

// activate prepares a pooled context for a new phase of state.
func (c *Context) activate(state *State, depth int) {
	c.state = state
	c.depth = depth
	c.completed = false
	for _, k := range state.captures.Kinds() {
		switch k {
		case capture.KindSpawns:
			c.spawns.Enable()
		case capture.KindDrops:
			c.drops.Enable()
		case capture.KindBlocks:
			c.blocks.Enable()
		}
	}
}

// reset clears everything the previous phase left behind. The context stays
// completed until activated again.
func (c *Context) reset() {
	c.state = nil
	c.depth = 0
	c.frame = cause.Frame{}
	c.source, c.hasSource = nil, false
	c.notifier = lazyEntity{}
	c.owner = lazyEntity{}
	c.spawns.Reset()
	c.drops.Reset()
	c.blocks.Reset()
	clear(c.undo)
	c.undoOrder = c.undoOrder[:0]
	c.flags = 0
	c.posted, c.cancelled = 0, 0
	c.completed = true
}

// rejectIfCompleted logs attribution set on a finished context.
func (c *Context) rejectIfCompleted(field string) bool {
	if !c.completed {
		return false
	}
	slog.Error("attribution set on completed phase",
		"field", field,
		"context", c.Describe(),
		"event", "capture_after_completion",
	)
	return true
}

// WithSource sets the proximate cause and pushes it onto the cause stack
// inside this phase's frame.
func (c *Context) WithSource(source any) *Context {
	if c.rejectIfCompleted("source") || source == nil {
		return c
	}
	c.source, c.hasSource = source, true
	c.tracker.causes.PushCause(source)
	c.tracker.causes.AddContext(cause.KeySource, source)
	return c
}

// WithNotifier sets the notifier.
func (c *Context) WithNotifier(e ir.Entity) *Context {
	if c.rejectIfCompleted("notifier") {
		return c
	}
	c.notifier.set(e)
	c.tracker.causes.AddContext(cause.KeyNotifier, e)
	return c
}

// WithNotifierFunc sets a notifier resolved on first use.
func (c *Context) WithNotifierFunc(fn EntitySupplier) *Context {
	if !c.rejectIfCompleted("notifier") {
		c.notifier.setFunc(fn)
	}
	return c
}

// WithOwner sets the owner.
func (c *Context) WithOwner(e ir.Entity) *Context {
	if c.rejectIfCompleted("owner") {
		return c
	}
	c.owner.set(e)
	c.tracker.causes.AddContext(cause.KeyOwner, e)
	return c
}

// WithOwnerFunc sets an owner resolved on first use.
func (c *Context) WithOwnerFunc(fn EntitySupplier) *Context {
	if !c.rejectIfCompleted("owner") {
		c.owner.setFunc(fn)
	}
	return c
}

// Source returns the proximate cause.
func (c *Context) Source() (any, bool) { return c.source, c.hasSource }

// SourceEntity returns the source if it is an entity.
func (c *Context) SourceEntity() (ir.Entity, bool) {
	e, ok := c.source.(ir.Entity)
	return e, ok
}

// Notifier resolves and returns the notifier.
func (c *Context) Notifier() (ir.Entity, bool) { return c.notifier.get() }

// Owner resolves and returns the owner.
func (c *Context) Owner() (ir.Entity, bool) { return c.owner.get() }

// State returns the phase state.
func (c *Context) State() *State { return c.state }

// Tracker returns the tracker that created the context.
func (c *Context) Tracker() *Tracker { return c.tracker }

// Depth returns the stack index of this context.
func (c *Context) Depth() int { return c.depth }

// Handle returns a generation-checked reference to this context.
func (c *Context) Handle() Handle { return Handle{slot: c.slot, gen: c.gen} }

// Completed implements capture.Owner.
func (c *Context) Completed() bool { return c.completed }

// Describe implements capture.Owner.
func (c *Context) Describe() string {
	name := "<released>"
	if c.state != nil {
		name = c.state.name
	}
	return fmt.Sprintf("%s@%d#%d", name, c.slot, c.gen)
}

// Captures reports whether this context captures kind.
func (c *Context) Captures(kind capture.Kind) bool {
	return c.state != nil && c.state.Captures(kind)
}

// Spawns returns the spawn capture buffer.
func (c *Context) Spawns() *capture.Buffer[ir.Entity] { return c.spawns }

// Drops returns the per-owner drop capture buffer.
func (c *Context) Drops() *capture.Grouped[ir.OwnerID, ir.ItemDrop] { return c.drops }

// Blocks returns the block change capture buffer.
func (c *Context) Blocks() *capture.Buffer[ir.BlockChange] { return c.blocks }

// OnCancel registers fn to run if the event replaying key's captures is
// cancelled. Hooks for one key run in reverse registration order.
func (c *Context) OnCancel(key UndoKey, fn func()) {
	if c.rejectIfCompleted("undo") {
		return
	}
	if c.undo == nil {
		c.undo = make(map[UndoKey][]func())
	}
	if _, seen := c.undo[key]; !seen {
		c.undoOrder = append(c.undoOrder, key)
	}
	c.undo[key] = append(c.undo[key], fn)
}

// RunUndo runs and forgets the hooks registered for key. Returns how many ran.
func (c *Context) RunUndo(key UndoKey) int {
	hooks := c.undo[key]
	delete(c.undo, key)
	for i := len(hooks) - 1; i >= 0; i-- {
		hooks[i]()
	}
	return len(hooks)
}

// PendingUndo lists keys with registered hooks, in registration order.
func (c *Context) PendingUndo() []UndoKey {
	var out []UndoKey
	for _, k := range c.undoOrder {
		if len(c.undo[k]) > 0 {
			out = append(out, k)
		}
	}
	return out
}

// SetFlag marks f on this phase.
func (c *Context) SetFlag(f Flag) { c.flags |= f }

// HasFlag reports whether f was set.
func (c *Context) HasFlag(f Flag) bool { return c.flags.Has(f) }

// undrained renders every capture still waiting to be replayed.
func (c *Context) undrained() map[string][]string {
	out := make(map[string][]string)
	if d := c.spawns.Diagnostics(); len(d) > 0 {
		out[capture.KindSpawns.String()] = d
	}
	if d := c.drops.Diagnostics(); len(d) > 0 {
		out[capture.KindDrops.String()] = d
	}
	if d := c.blocks.Diagnostics(); len(d) > 0 {
		out[capture.KindBlocks.String()] = d
	}
	return out
}

func (c *Context) undrainedCount() int {
	return c.spawns.Len() + c.drops.Len() + c.blocks.Len()
}

// attributionAttrs renders attribution for diagnostics without resolving
// lazy suppliers.
func (c *Context) attributionAttrs() []any {
	attrs := []any{"source", describeValue(c.source)}
	if c.notifier.resolved && c.notifier.present {
		attrs = append(attrs, "notifier", c.notifier.value.String())
	}
	if c.owner.resolved && c.owner.present {
		attrs = append(attrs, "owner", c.owner.value.String())
	}
	return attrs
}

func describeValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "<none>"
	case string:
		return val
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprintf("%T", v)
	}
}

// sortedKinds is used by diagnostics to render undrained output stably.
func sortedKinds(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
