package engine

import (
	"fmt"
	"log/slog"
)

// DefaultMaxDepth is the stack depth past which a runaway warning is logged.
const DefaultMaxDepth = 64

// DepthGuard watches stack depth for runaway nesting.
//
// Unbounded nesting happens when an unwind keeps triggering behavior that
// opens the same phase again (neighbor notifications cascading through a
// circuit, for instance). The guard never refuses an entry. It logs once
// per excursion above the limit, with the full stack, and re-arms when the
// depth drops back.
type DepthGuard struct {
	maxDepth int
	tripped  bool
	trips    int
}

// NewDepthGuard creates a guard with the given limit. A limit <= 0 disables it.
func NewDepthGuard(maxDepth int) *DepthGuard {
	return &DepthGuard{maxDepth: maxDepth}
}

// Check validates depth against the limit.
//
// Returns a *RunawayError the first time depth exceeds the limit during an
// excursion, nil otherwise.
func (g *DepthGuard) Check(depth int) error {
	if g.maxDepth <= 0 {
		return nil
	}
	if depth <= g.maxDepth {
		g.tripped = false
		return nil
	}
	if g.tripped {
		return nil
	}
	g.tripped = true
	g.trips++
	return &RunawayError{Depth: depth, Limit: g.maxDepth}
}

// Report logs err with a stack snapshot.
func (g *DepthGuard) Report(err *RunawayError, snapshot []FrameInfo) {
	slog.Warn("phase stack exceeded max depth",
		"depth", err.Depth,
		"limit", err.Limit,
		"stack", renderSnapshot(snapshot),
		"event", "runaway_phase",
	)
}

// MaxDepth returns the limit.
func (g *DepthGuard) MaxDepth() int { return g.maxDepth }

// Trips returns how many excursions were reported.
func (g *DepthGuard) Trips() int { return g.trips }

// RunawayError describes a stack that grew past the configured limit.
type RunawayError struct {
	Depth int
	Limit int
}

// Error implements the error interface.
func (e *RunawayError) Error() string {
	return fmt.Sprintf("%s: phase stack depth %d > %d limit", ErrCodeRunawayPhase, e.Depth, e.Limit)
}
