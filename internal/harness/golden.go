package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/phasetrack/internal/ir"
)

// TraceSnapshot captures the events and completions of a scenario run.
// All fields use canonical JSON serialization for deterministic comparison.
type TraceSnapshot struct {
	ScenarioName string
	Result       *Result
}

// toCanonicalMap converts a TraceSnapshot to a map[string]any for canonical JSON serialization.
// This is required because ir.MarshalCanonical only handles IR types and primitives.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	trace := make([]any, len(s.Result.Trace))
	for i, rec := range s.Result.Trace {
		trace[i] = map[string]any{
			"id":        rec.ID,
			"seq":       rec.Seq,
			"kind":      string(rec.Kind),
			"state":     rec.State,
			"cancelled": rec.Cancelled,
			"cause":     rec.Cause,
			"payload":   rec.Payload,
		}
	}

	completions := make([]any, len(s.Result.Completions))
	for i, c := range s.Result.Completions {
		m := map[string]any{
			"state":        c.State,
			"posted":       c.Posted,
			"cancelled":    c.Cancelled,
			"force_popped": c.ForcePopped,
		}
		if len(c.Flags) > 0 {
			flags := make([]any, len(c.Flags))
			for j, f := range c.Flags {
				flags[j] = f
			}
			m["flags"] = flags
		}
		if c.Error != "" {
			m["error"] = c.Error
		}
		completions[i] = m
	}

	return map[string]any{
		"scenario":    s.ScenarioName,
		"trace":       trace,
		"completions": completions,
	}
}

// MarshalTrace renders the canonical trace of a result.
func MarshalTrace(scenarioName string, result *Result) ([]byte, error) {
	snapshot := TraceSnapshot{ScenarioName: scenarioName, Result: result}
	return ir.MarshalCanonical(snapshot.toCanonicalMap())
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if trace doesn't match golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares the given result's trace against a golden file
// without re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	traceJSON, err := MarshalTrace(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, traceJSON)
	return nil
}
