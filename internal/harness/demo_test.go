package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestScenarios runs every scenario under testdata/scenarios.
func TestScenarios(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			scenario, err := LoadScenario(path)
			require.NoError(t, err)

			result, err := Run(scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "scenario %s failed:\n%v", scenario.Name, result.Errors)
		})
	}
}

func TestScenario_EntityDeathTrace(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/entity_death_keeps_orbs.yaml")
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)
	require.True(t, result.Pass, "errors: %v", result.Errors)

	require.Len(t, result.Trace, 2)
	assert.False(t, result.Trace[0].Cancelled)
	assert.True(t, result.Trace[1].Cancelled)
	assert.Less(t, result.Trace[0].Seq, result.Trace[1].Seq)
	assert.Len(t, result.World.Entities, 2, "the dying zombie and the orb")
	assert.Empty(t, result.World.Items)
}

func TestScenario_StackImbalance(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/stack_imbalance.yaml")
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)
	require.True(t, result.Pass, "errors: %v", result.Errors)

	require.Len(t, result.Completions, 2)
	assert.Equal(t, 3, result.Completions[0].ForcePopped)
	assert.Equal(t, "STACK_IMBALANCE", result.Completions[1].Error)
}
