// Package engine implements the phase tracker.
//
// A phase is an active unit of simulation work (an entity tick, a block
// update, a command, world generation). While a phase is active, world
// mutations it causes are captured into its context instead of being
// applied. When the phase completes, its state's unwind procedure turns
// the captures into cancellable events, dispatches them, and applies
// whatever listeners did not cancel.
//
// ARCHITECTURE:
//
// Stack of (state, context):
// The tracker keeps a stack whose bottom entry is always Idle. Phases nest:
// an unwind may itself enter and complete phases on the same tracker, and
// mutations performed there are captured by the nested phase, never by the
// one being unwound.
//
// States and categories:
// A State is a static descriptor resolved once at startup from its
// Category and its own options. It decides which capture kinds are enabled,
// which policies apply, and how captures are replayed.
//
// Contexts:
// Contexts are pooled per tracker. A context holds attribution (source,
// notifier, owner), capture buffers, undo hooks, and one-shot flags. Use a
// Handle to refer to a context across phase boundaries; stale handles are
// detected by slot generation.
//
// Cause frames:
// Every context owns a cause frame opened at SwitchTo and closed at
// completion, after the unwind has built its events.
//
// CRITICAL PATTERNS:
//
// Single goroutine:
// A tracker belongs to the goroutine that created it. Mutating calls from
// any other goroutine panic with *OwnershipError.
//
// Log and continue:
// Stack imbalance, missing attribution and capture-after-completion are
// logged with full diagnostics and never abort the caller. Entries above a
// mismatched completion are discarded without replay.
//
// Logical clock:
// Events are stamped with a monotonic seq from Clock.Next().
package engine
