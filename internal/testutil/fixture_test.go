package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/phasetrack/internal/event"
	"github.com/roach88/phasetrack/internal/ir"
	"github.com/roach88/phasetrack/internal/states"
)

func TestFixture_DeterministicStamps(t *testing.T) {
	run := func() []event.Record {
		f := NewFixture()
		pos := ir.BlockPos{X: 2, Y: 64, Z: 2}
		f.Tracker.SwitchTo(states.BlockTick).WithSource(pos)
		_, err := f.Prims.SpawnEntity(ir.Entity{ID: "bee-1", Kind: ir.EntityKindMob, Pos: pos})
		require.NoError(t, err)
		f.Tracker.CompletePhase(states.BlockTick)
		return f.Records()
	}

	first := run()
	require.Len(t, first, 1)
	assert.Equal(t, FormatID(1), first[0].ID)
	assert.Equal(t, int64(1), first[0].Seq)
	assert.Equal(t, first, run())
}
