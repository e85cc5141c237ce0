package engine

import "sync/atomic"

// Clock is the tracker's logical clock. Every event built by an unwind is
// stamped with a strictly increasing seq from it, so the event journal and
// golden traces order events by construction, never by wall time.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations), but
// a tracker only calls Next from its owning goroutine.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock starting at a specific sequence number.
// Used to continue numbering after the last event in an existing journal.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number and increments the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
