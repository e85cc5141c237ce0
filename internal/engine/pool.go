package engine

import "fmt"

// Handle is a generation-checked reference to a pooled context. It goes
// stale as soon as the context is released back to the pool.
type Handle struct {
	slot int32
	gen  uint32
}

// IsZero reports whether h was never issued.
func (h Handle) IsZero() bool { return h == Handle{} }

func (h Handle) String() string {
	return fmt.Sprintf("ctx@%d#%d", h.slot, h.gen)
}

// pool recycles contexts. Each slot carries a generation that is bumped on
// release, so handles to a previous activation never resolve to the next.
type pool struct {
	slots    []*Context
	free     []int32
	acquired int
	released int
}

func newPool(t *Tracker, capacity int) *pool {
	p := &pool{
		slots: make([]*Context, 0, capacity),
		free:  make([]int32, 0, capacity),
	}
	for i := 0; i < capacity; i++ {
		p.grow(t)
	}
	return p
}

func (p *pool) grow(t *Tracker) {
	slot := int32(len(p.slots))
	c := newContext(t, slot)
	c.gen = 1
	p.slots = append(p.slots, c)
	p.free = append(p.free, slot)
}

func (p *pool) acquire(t *Tracker) *Context {
	if len(p.free) == 0 {
		p.grow(t)
	}
	slot := p.free[len(p.free)-1]
	p.free = p.free[:len(p.free)-1]
	p.acquired++
	return p.slots[slot]
}

func (p *pool) release(c *Context) {
	c.reset()
	c.gen++
	p.free = append(p.free, c.slot)
	p.released++
}

func (p *pool) resolve(h Handle) (*Context, error) {
	if h.slot < 0 || int(h.slot) >= len(p.slots) {
		return nil, &PhaseError{
			Code:    ErrCodeStaleHandle,
			Message: fmt.Sprintf("handle %s does not name a pool slot", h),
			Depth:   -1,
		}
	}
	c := p.slots[h.slot]
	if c.gen != h.gen || c.completed {
		return nil, &PhaseError{
			Code:    ErrCodeStaleHandle,
			Message: fmt.Sprintf("handle %s is stale (slot generation %d)", h, c.gen),
			Depth:   -1,
		}
	}
	return c, nil
}

// inUse returns the number of contexts currently handed out.
func (p *pool) inUse() int {
	return p.acquired - p.released
}

// PoolStats reports context pool usage.
type PoolStats struct {
	Capacity int
	InUse    int
	Acquired int
	Released int
}
