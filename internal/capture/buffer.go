package capture

import (
	"errors"
	"fmt"
	"log/slog"
)

// ErrCaptureAfterCompletion is reported when an item is added to a buffer
// whose owning context has already completed or been drained.
var ErrCaptureAfterCompletion = errors.New("capture after completion")

// Owner is the phase context a buffer belongs to.
type Owner interface {
	// Completed reports whether the owner has left the active state.
	Completed() bool

	// Describe returns a short identity used in diagnostics.
	Describe() string
}

// gate holds the lifecycle shared by every buffer shape.
type gate struct {
	kind    Kind
	owner   Owner
	enabled bool
	drained bool
}

// admit decides what Add should do with an item.
// Returns (store, handled): store means append; handled=false means the
// caller must apply the mutation itself.
//
// A completed owner is checked before enablement: releasing a context
// disables its buffers, and a late Add must still be rejected rather than
// applied.
func (g *gate) admit() (store bool, handled bool) {
	completed := g.owner != nil && g.owner.Completed()
	if !g.enabled && !completed {
		return false, false
	}
	if g.drained || completed {
		owner := "<none>"
		if g.owner != nil {
			owner = g.owner.Describe()
		}
		slog.Error("capture rejected",
			"kind", g.kind.String(),
			"owner", owner,
			"drained", g.drained,
			"error", ErrCaptureAfterCompletion,
			"event", "capture_after_completion",
		)
		return false, true
	}
	return true, true
}

func (g *gate) reset() {
	g.enabled = false
	g.drained = false
}

// Buffer is an insertion-ordered capture buffer.
type Buffer[T any] struct {
	gate
	items []T
}

// NewBuffer creates a disabled buffer of the given kind.
func NewBuffer[T any](kind Kind, owner Owner) *Buffer[T] {
	return &Buffer[T]{gate: gate{kind: kind, owner: owner}}
}

// Kind returns the buffer kind.
func (b *Buffer[T]) Kind() Kind { return b.kind }

// Enable turns capture on for the current owner lifetime.
func (b *Buffer[T]) Enable() { b.enabled = true }

// Enabled reports whether Add captures.
func (b *Buffer[T]) Enabled() bool { return b.enabled }

// Add appends item if capture is enabled.
//
// Returns false when the buffer is disabled and its owner is live: the
// caller must apply the mutation immediately. Returns true when the item
// was captured, or when it was discarded because the owner already
// completed or drained (logged as a logic error); in both cases the caller
// must not apply it.
func (b *Buffer[T]) Add(item T) bool {
	store, handled := b.admit()
	if store {
		b.items = append(b.items, item)
	}
	return handled
}

// IsEmpty reports whether there is nothing left to drain.
func (b *Buffer[T]) IsEmpty() bool {
	return b.drained || len(b.items) == 0
}

// Len returns the number of undrained items.
func (b *Buffer[T]) Len() int {
	if b.drained {
		return 0
	}
	return len(b.items)
}

// DrainIfNotEmpty hands the captured items to fn exactly once.
// It is a no-op when the buffer is empty or was already drained, so a
// defensive second unwind never replays anything.
// Returns whether fn ran.
func (b *Buffer[T]) DrainIfNotEmpty(fn func(items []T)) bool {
	if b.drained {
		return false
	}
	b.drained = true
	if len(b.items) == 0 {
		return false
	}
	items := b.items
	b.items = nil
	fn(items)
	return true
}

// Diagnostics renders undrained items for error logs. It never consumes the
// buffer.
func (b *Buffer[T]) Diagnostics() []string {
	if b.drained {
		return nil
	}
	out := make([]string, len(b.items))
	for i, item := range b.items {
		out[i] = fmt.Sprint(item)
	}
	return out
}

// Reset clears the buffer for reuse by a new owner lifetime.
func (b *Buffer[T]) Reset() {
	b.gate.reset()
	clear(b.items)
	b.items = b.items[:0]
}

// Grouped is a capture buffer that partitions items by key, remembering the
// order in which keys were first seen. Item order inside a group is
// insertion order.
type Grouped[K comparable, T any] struct {
	gate
	order  []K
	groups map[K][]T
}

// NewGrouped creates a disabled grouped buffer of the given kind.
func NewGrouped[K comparable, T any](kind Kind, owner Owner) *Grouped[K, T] {
	return &Grouped[K, T]{
		gate:   gate{kind: kind, owner: owner},
		groups: make(map[K][]T),
	}
}

// Kind returns the buffer kind.
func (g *Grouped[K, T]) Kind() Kind { return g.kind }

// Enable turns capture on for the current owner lifetime.
func (g *Grouped[K, T]) Enable() { g.enabled = true }

// Enabled reports whether Add captures.
func (g *Grouped[K, T]) Enabled() bool { return g.enabled }

// Add appends item to key's group. Return value as for Buffer.Add.
func (g *Grouped[K, T]) Add(key K, item T) bool {
	store, handled := g.admit()
	if !store {
		return handled
	}
	if _, seen := g.groups[key]; !seen {
		g.order = append(g.order, key)
	}
	g.groups[key] = append(g.groups[key], item)
	return true
}

// IsEmpty reports whether there is nothing left to drain.
func (g *Grouped[K, T]) IsEmpty() bool {
	return g.drained || len(g.order) == 0
}

// Len returns the number of undrained items across groups.
func (g *Grouped[K, T]) Len() int {
	if g.drained {
		return 0
	}
	n := 0
	for _, items := range g.groups {
		n += len(items)
	}
	return n
}

// DrainIfNotEmpty calls fn once per group, in first-seen key order. The
// whole buffer drains at most once.
func (g *Grouped[K, T]) DrainIfNotEmpty(fn func(key K, items []T)) bool {
	if g.drained {
		return false
	}
	g.drained = true
	if len(g.order) == 0 {
		return false
	}
	order, groups := g.order, g.groups
	g.order = nil
	g.groups = make(map[K][]T)
	for _, key := range order {
		fn(key, groups[key])
	}
	return true
}

// Diagnostics renders undrained items for error logs.
func (g *Grouped[K, T]) Diagnostics() []string {
	if g.drained {
		return nil
	}
	var out []string
	for _, key := range g.order {
		for _, item := range g.groups[key] {
			out = append(out, fmt.Sprintf("%v: %v", key, item))
		}
	}
	return out
}

// Reset clears the buffer for reuse by a new owner lifetime.
func (g *Grouped[K, T]) Reset() {
	g.gate.reset()
	g.order = g.order[:0]
	clear(g.groups)
}
