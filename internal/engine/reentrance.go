package engine

import "log/slog"

// ReentranceDetector reports states marked PolicyNotReentrant that are
// entered while already on the stack.
//
// Re-entering such a state usually means a world generator triggered
// itself, for example a populator loading the chunk it is populating.
// The entry is still allowed: refusing it would leave the domain call with
// no phase to capture into. Each state is reported once per tracker so a
// feedback loop does not flood the log.
type ReentranceDetector struct {
	warned map[StateID]bool
	counts map[StateID]int
}

// NewReentranceDetector creates a detector with no history.
func NewReentranceDetector() *ReentranceDetector {
	return &ReentranceDetector{
		warned: make(map[StateID]bool),
		counts: make(map[StateID]int),
	}
}

// wouldReenter reports whether entering state on top of stack re-enters it.
func (d *ReentranceDetector) wouldReenter(stack []entry, state *State) bool {
	if !state.Has(PolicyNotReentrant) {
		return false
	}
	for _, e := range stack {
		if e.state == state {
			return true
		}
	}
	return false
}

// Record counts a re-entry and logs it the first time per state.
func (d *ReentranceDetector) Record(state *State, snapshot []FrameInfo) {
	d.counts[state.id]++
	if d.warned[state.id] {
		return
	}
	d.warned[state.id] = true
	slog.Warn("non-reentrant phase entered while active",
		"state", state.name,
		"stack", renderSnapshot(snapshot),
		"event", "phase_reentered",
	)
}

// Count returns how many re-entries of state were recorded.
func (d *ReentranceDetector) Count(state *State) int {
	return d.counts[state.id]
}

// Clear forgets history so the next re-entry is logged again.
func (d *ReentranceDetector) Clear() {
	clear(d.warned)
	clear(d.counts)
}
