package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/phasetrack/internal/engine"
	"github.com/roach88/phasetrack/internal/event"
)

func mustParse(t *testing.T, yaml string) *Scenario {
	t.Helper()
	s, err := ParseScenario([]byte(yaml))
	require.NoError(t, err)
	return s
}

func TestRun_MinimalScenario(t *testing.T) {
	scenario := mustParse(t, `
name: minimal
description: one spawn in a block tick
steps:
  - switch: block_tick
    source:
      block: [1, 64, 1]
  - spawn:
      id: bee-1
      kind: mob
  - complete: block_tick
assertions:
  - type: trace_contains
    kind: spawn_entity
`)

	result, err := Run(scenario)
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Empty(t, result.Errors)

	require.Len(t, result.Trace, 1)
	assert.Equal(t, event.KindSpawnEntity, result.Trace[0].Kind)
	assert.Equal(t, "block_tick", result.Trace[0].State)
	assert.Equal(t, int64(1), result.Trace[0].Seq)

	require.Len(t, result.Completions, 1)
	assert.Equal(t, CompletionTrace{State: "block_tick", Posted: 1}, result.Completions[0])
	assert.Equal(t, 1, result.Depth)
}

func TestRun_IdleAppliesImmediately(t *testing.T) {
	scenario := mustParse(t, `
name: idle
description: mutations outside any phase
steps:
  - spawn:
      id: cow-1
      kind: mob
  - place:
      pos: [0, 0, 0]
      state: stone
assertions:
  - type: trace_count
    count: 0
  - type: world_state
    entity: cow-1
  - type: world_state
    block:
      pos: [0, 0, 0]
      state: stone
`)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Empty(t, result.Trace)
	assert.Len(t, result.World.Entities, 1)
}

func TestRun_ListenerOrder(t *testing.T) {
	scenario := mustParse(t, `
name: listener_order
description: a later listener reverses an earlier cancellation
world:
  entities:
    - id: z-1
      kind: mob
listeners:
  - cancel:
      kind: drop_item
  - uncancel:
      kind: drop_item
      owner: z-1
steps:
  - switch: entity_death
    source:
      entity: z-1
  - drop:
      owner: z-1
      item: bone
      quantity: 1
  - complete: entity_death
    expect:
      posted: 1
      cancelled: 0
assertions:
  - type: trace_contains
    kind: drop_item
    cancelled: false
  - type: world_state
    items: 1
`)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_CompletionMismatchFails(t *testing.T) {
	scenario := mustParse(t, `
name: completion_mismatch
description: expectation on posted count does not hold
steps:
  - switch: block_tick
  - complete: block_tick
    expect:
      posted: 3
assertions:
  - type: final_depth
    depth: 1
`)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "posted = 0, expected 3")
}

func TestRun_UnexpectedPrimitiveError(t *testing.T) {
	scenario := mustParse(t, `
name: unexpected_error
description: a denied chunk request without expect_error
steps:
  - switch: chunk_population
  - request_chunk: [0, 0, 0]
  - complete: chunk_population
assertions:
  - type: final_depth
    depth: 1
`)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "unexpected error")
}

func TestRun_ExpectedErrorMissing(t *testing.T) {
	scenario := mustParse(t, `
name: expected_error_missing
description: chunk request succeeds outside generation
steps:
  - request_chunk: [0, 0, 0]
    expect_error: chunk_denied
assertions:
  - type: final_depth
    depth: 1
`)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "expected error chunk_denied")
}

func TestRun_UnknownSourceEntity(t *testing.T) {
	scenario := mustParse(t, `
name: unknown_source
description: source refers to an entity that was never created
steps:
  - switch: entity_death
    source:
      entity: ghost
  - complete: entity_death
assertions:
  - type: final_depth
    depth: 1
`)

	_, err := Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown source entity "ghost"`)
}

func TestRun_NotifierAndOwner(t *testing.T) {
	scenario := mustParse(t, `
name: notifier_owner
description: notifier and owner land in the cause context
world:
  entities:
    - id: p-1
      kind: player
steps:
  - switch: block_tick
    source:
      block: [2, 64, 2]
    notifier: p-1
    owner: p-1
  - spawn:
      id: bee-1
      kind: mob
  - complete: block_tick
assertions:
  - type: trace_contains
    kind: spawn_entity
    cause:
      notifier: "entity[player/p-1]"
      owner: "entity[player/p-1]"
`)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_Deterministic(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/entity_death_keeps_orbs.yaml")
	require.NoError(t, err)

	result1, err := Run(scenario)
	require.NoError(t, err)
	result2, err := Run(scenario)
	require.NoError(t, err)

	assert.True(t, result1.Pass, "errors: %v", result1.Errors)
	assert.True(t, result2.Pass, "errors: %v", result2.Errors)

	trace1, err := MarshalTrace(scenario.Name, result1)
	require.NoError(t, err)
	trace2, err := MarshalTrace(scenario.Name, result2)
	require.NoError(t, err)
	assert.Equal(t, string(trace1), string(trace2))
}

func TestRun_FreshStatePerRun(t *testing.T) {
	first := mustParse(t, `
name: first
description: spawns an entity
steps:
  - spawn:
      id: cow-1
      kind: mob
assertions:
  - type: world_state
    entity: cow-1
`)
	second := mustParse(t, `
name: second
description: sees an empty world
steps:
  - request_chunk: [0, 0, 0]
assertions:
  - type: world_state
    entity: cow-1
    present: false
`)

	result, err := Run(first)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)

	result, err = Run(second)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRunWithOptions_TrackerOptions(t *testing.T) {
	scenario := mustParse(t, `
name: options
description: tracker options are applied
steps:
  - switch: block_tick
  - complete: block_tick
assertions:
  - type: final_depth
    depth: 1
`)

	result, err := RunWithOptions(scenario, Options{
		TrackerOptions: []engine.TrackerOption{engine.WithPoolCapacity(2), engine.WithMaxDepth(4)},
	})
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_MultipleAssertionFailures(t *testing.T) {
	scenario := mustParse(t, `
name: multiple_failures
description: every assertion fails
steps:
  - switch: block_tick
  - complete: block_tick
assertions:
  - type: trace_contains
    kind: spawn_entity
  - type: final_depth
    depth: 2
  - type: world_state
    entity: nobody
`)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Len(t, result.Errors, 3)
}
