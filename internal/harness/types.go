package harness

import (
	"github.com/roach88/phasetrack/internal/event"
	"github.com/roach88/phasetrack/internal/world"
)

// CompletionTrace records one scenario-level CompletePhase call.
// Nested phases completed by unwinds are not listed.
type CompletionTrace struct {
	State       string   `json:"state"`
	Posted      int      `json:"posted"`
	Cancelled   int      `json:"cancelled"`
	ForcePopped int      `json:"force_popped"`
	Flags       []string `json:"flags,omitempty"`
	Error       string   `json:"error,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall success.
	// True if every step expectation and assertion matched.
	Pass bool `json:"pass"`

	// Trace contains every dispatched event in dispatch order, with the
	// final cancellation decision.
	Trace []event.Record `json:"trace"`

	// Completions lists the scenario's CompletePhase results in order.
	Completions []CompletionTrace `json:"completions"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// World is the final world snapshot.
	World world.Snapshot `json:"world"`

	// Depth is the tracker depth after the last step.
	Depth int `json:"depth"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:        true,
		Trace:       []event.Record{},
		Completions: []CompletionTrace{},
		Errors:      []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
