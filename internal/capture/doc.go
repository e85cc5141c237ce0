// Package capture implements the per-context capture buffers.
//
// A buffer is enabled (or not) once, when its owning phase context is
// created. While enabled, Add appends the item and the caller must not apply
// the mutation; while disabled, Add returns false and the caller applies the
// mutation immediately. Callers never need to know which phase is active.
//
// Buffer contents are observable only through DrainIfNotEmpty, which runs
// its consumer at most once per context lifetime. Insertion order is causal
// order, and it is the order mutations are later applied in.
package capture
