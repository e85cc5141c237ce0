package testutil

import (
	"fmt"
	"sync"
)

// DeterministicIDs generates UUID-shaped event ids from a counter.
//
// Unlike engine.SequentialGenerator, DeterministicIDs can be reset for test
// reuse, so the same scenario run twice yields byte-identical traces.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type DeterministicIDs struct {
	mu sync.Mutex
	n  int64
}

// NewDeterministicIDs creates a generator whose first id ends in 1.
func NewDeterministicIDs() *DeterministicIDs {
	return &DeterministicIDs{}
}

// Generate implements engine.IDGenerator.
func (g *DeterministicIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return FormatID(g.n)
}

// Current returns how many ids have been generated.
func (g *DeterministicIDs) Current() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.n
}

// Reset restarts numbering. The next id ends in 1.
func (g *DeterministicIDs) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n = 0
}

// FormatID renders the n-th deterministic id.
func FormatID(n int64) string {
	return fmt.Sprintf("00000000-0000-7000-8000-%012d", n)
}
