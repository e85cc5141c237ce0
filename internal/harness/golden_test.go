package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/phasetrack/internal/ir"
)

func TestRunWithGolden_BlockTickSpawn(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/block_tick_spawn.yaml")
	require.NoError(t, err)

	// Regenerate with:
	//   go test ./internal/harness -run TestRunWithGolden_BlockTickSpawn -update
	result, err := RunWithGolden(t, scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestMarshalTrace_Canonical(t *testing.T) {
	result := NewResult()
	result.Completions = append(result.Completions, CompletionTrace{
		State:  "portal_teleport",
		Flags:  []string{"did_port"},
		Error:  "STACK_IMBALANCE",
		Posted: 0,
	})

	got, err := MarshalTrace("flags", result)
	require.NoError(t, err)
	assert.Equal(t,
		`{"completions":[{"cancelled":0,"error":"STACK_IMBALANCE","flags":["did_port"],"force_popped":0,"posted":0,"state":"portal_teleport"}],"scenario":"flags","trace":[]}`,
		string(got))
}

func TestMarshalTrace_EventFields(t *testing.T) {
	result := NewResult()
	result.Trace = sampleTrace()[2:]

	got, err := MarshalTrace("one_event", result)
	require.NoError(t, err)

	parsed, err := ir.UnmarshalIRObject(got)
	require.NoError(t, err)
	trace, ok := parsed["trace"].(ir.IRArray)
	require.True(t, ok)
	require.Len(t, trace, 1)

	ev := trace[0].(ir.IRObject)
	assert.Equal(t, ir.IRString("e3"), ev["id"])
	assert.Equal(t, ir.IRInt(3), ev["seq"])
	assert.Equal(t, ir.IRString("drop_item"), ev["kind"])
	assert.Equal(t, ir.IRBool(true), ev["cancelled"])
	assert.Equal(t, ir.IRString("block@(0,64,0)"), ev["payload"].(ir.IRObject)["owner"])
}
