package engine

import (
	"fmt"
	"strings"
)

// FrameInfo describes one stack entry for logs and tooling.
type FrameInfo struct {
	Depth     int    `json:"depth"`
	State     string `json:"state"`
	Category  string `json:"category"`
	Source    string `json:"source"`
	Captures  string `json:"captures"`
	Undrained int    `json:"undrained"`
}

func (f FrameInfo) String() string {
	return fmt.Sprintf("#%d %s[%s] source=%s undrained=%d",
		f.Depth, f.State, f.Category, f.Source, f.Undrained)
}

// Snapshot returns the stack from the root up.
func (t *Tracker) Snapshot() []FrameInfo {
	out := make([]FrameInfo, len(t.stack))
	for i, e := range t.stack {
		out[i] = FrameInfo{
			Depth:     i,
			State:     e.state.name,
			Category:  e.state.category.name,
			Source:    describeValue(e.ctx.source),
			Captures:  e.state.captures.String(),
			Undrained: e.ctx.undrainedCount(),
		}
	}
	return out
}

func renderSnapshot(frames []FrameInfo) string {
	parts := make([]string, len(frames))
	for i, f := range frames {
		parts[i] = f.String()
	}
	return strings.Join(parts, " > ")
}
