// Package world holds the mutation primitives domain code calls, and an
// in-memory world they apply to.
//
// Primitives never apply a mutation unconditionally: they ask the tracker
// for the current phase and capture the mutation if that phase's context
// has the matching buffer enabled. Under the root Idle phase nothing is
// captured.
package world
