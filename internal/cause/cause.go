package cause

import (
	"fmt"
	"slices"

	"github.com/roach88/phasetrack/internal/ir"
)

// Cause is an immutable snapshot of the cause stack.
type Cause struct {
	entries []any
	context map[Key]any
}

// Of builds a cause directly from entries, most recent first. Used by tests
// and by dispatchers that post events outside a tracker.
func Of(entries ...any) Cause {
	return Cause{entries: slices.Clone(entries), context: map[Key]any{}}
}

// WithContext returns a copy of c with k set to v.
func (c Cause) WithContext(k Key, v any) Cause {
	ctx := make(map[Key]any, len(c.context)+1)
	for key, val := range c.context {
		ctx[key] = val
	}
	ctx[k] = v
	return Cause{entries: c.entries, context: ctx}
}

// Len returns the number of entries.
func (c Cause) Len() int {
	return len(c.entries)
}

// Entries returns a copy of the entries, most recent first.
func (c Cause) Entries() []any {
	return slices.Clone(c.entries)
}

// Root returns the proximate cause, or nil for an empty cause.
func (c Cause) Root() any {
	if len(c.entries) == 0 {
		return nil
	}
	return c.entries[0]
}

// Contains reports whether any entry satisfies pred.
func (c Cause) Contains(pred func(any) bool) bool {
	return slices.ContainsFunc(c.entries, pred)
}

// Context returns a context value.
func (c Cause) Context(k Key) (any, bool) {
	v, ok := c.context[k]
	return v, ok
}

// ContextKeys returns the context keys in sorted order.
func (c Cause) ContextKeys() []Key {
	keys := make([]Key, 0, len(c.context))
	for k := range c.context {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// First returns the first entry of type T.
func First[T any](c Cause) (T, bool) {
	for _, e := range c.entries {
		if v, ok := e.(T); ok {
			return v, true
		}
	}
	var zero T
	return zero, false
}

// Describe renders each entry for logs and payloads.
func (c Cause) Describe() []string {
	out := make([]string, len(c.entries))
	for i, e := range c.entries {
		out[i] = describe(e)
	}
	return out
}

// Value converts the cause into a payload object.
func (c Cause) Value() ir.IRObject {
	entries := make(ir.IRArray, len(c.entries))
	for i, e := range c.entries {
		entries[i] = ir.IRString(describe(e))
	}
	ctx := make(ir.IRObject, len(c.context))
	for k, v := range c.context {
		ctx[string(k)] = ir.IRString(describe(v))
	}
	return ir.IRObject{
		"entries": entries,
		"context": ctx,
	}
}

func describe(v any) string {
	switch val := v.(type) {
	case nil:
		return "<nil>"
	case string:
		return val
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprintf("%T", v)
	}
}
