package harness

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/phasetrack/internal/event"
	"github.com/roach88/phasetrack/internal/ir"
	"github.com/roach88/phasetrack/internal/store"
	"github.com/roach88/phasetrack/internal/world"
)

func boolPtr(b bool) *bool { return &b }
func intPtr(n int) *int    { return &n }

func sampleTrace() []event.Record {
	return []event.Record{
		{
			ID:    "e1",
			Seq:   1,
			Kind:  event.KindChangeBlock,
			State: "block_tick",
			Cause: ir.IRObject{
				"entries": ir.IRArray{ir.IRString("(0,64,0)")},
				"context": ir.IRObject{"phase": ir.IRString("block_tick"), "source": ir.IRString("(0,64,0)")},
			},
			Payload: ir.IRObject{"changes": ir.IRArray{}},
		},
		{
			ID:    "e2",
			Seq:   2,
			Kind:  event.KindSpawnEntity,
			State: "neighbor_notify",
			Cause: ir.IRObject{
				"entries": ir.IRArray{},
				"context": ir.IRObject{"phase": ir.IRString("neighbor_notify")},
			},
			Payload: ir.IRObject{
				"spawn_type": ir.IRString("block_spawning"),
				"entities": ir.IRArray{ir.IRObject{
					"id":   ir.IRString("item-1"),
					"kind": ir.IRString("item"),
					"pos":  ir.IRObject{"x": ir.IRInt(0), "y": ir.IRInt(65), "z": ir.IRInt(0)},
				}},
			},
		},
		{
			ID:        "e3",
			Seq:       3,
			Kind:      event.KindDropItem,
			State:     "block_tick",
			Cancelled: true,
			Cause:     ir.IRObject{"entries": ir.IRArray{}, "context": ir.IRObject{}},
			Payload:   ir.IRObject{"owner": ir.IRString("block@(0,64,0)"), "drops": ir.IRArray{}},
		},
	}
}

func TestAssertTraceContains(t *testing.T) {
	trace := sampleTrace()

	tests := []struct {
		name  string
		a     Assertion
		match bool
	}{
		{"kind only", Assertion{Kind: "drop_item"}, true},
		{"kind and state", Assertion{Kind: "spawn_entity", State: "neighbor_notify"}, true},
		{"wrong state", Assertion{Kind: "spawn_entity", State: "block_tick"}, false},
		{"cancelled", Assertion{Kind: "drop_item", Cancelled: boolPtr(true)}, true},
		{"not cancelled", Assertion{Kind: "drop_item", Cancelled: boolPtr(false)}, false},
		{"payload scalar", Assertion{Kind: "spawn_entity", Payload: map[string]any{"spawn_type": "block_spawning"}}, true},
		{"payload mismatch", Assertion{Kind: "spawn_entity", Payload: map[string]any{"spawn_type": "plugin"}}, false},
		{"payload missing key", Assertion{Kind: "drop_item", Payload: map[string]any{"spawn_type": "plugin"}}, false},
		{"cause context", Assertion{Kind: "change_block", Cause: map[string]any{"source": "(0,64,0)"}}, true},
		{"cause context mismatch", Assertion{Kind: "change_block", Cause: map[string]any{"source": "(9,9,9)"}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.a.Type = AssertTraceContains
			err := assertTraceContains(trace, tt.a)
			if tt.match {
				assert.NoError(t, err)
				return
			}
			var ae *AssertionError
			require.ErrorAs(t, err, &ae)
			assert.Equal(t, AssertTraceContains, ae.Type)
			assert.Len(t, ae.Trace, len(trace))
		})
	}
}

func TestAssertTraceOrder(t *testing.T) {
	trace := sampleTrace()

	err := assertTraceOrder(trace, Assertion{Events: []string{"change_block/block_tick", "drop_item/block_tick"}})
	assert.NoError(t, err, "gaps between events are allowed")

	err = assertTraceOrder(trace, Assertion{Events: []string{"drop_item/block_tick", "change_block/block_tick"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "first missing change_block/block_tick")
	assert.Contains(t, err.Error(), "[3] drop_item/block_tick cancelled=true")
}

func TestAssertTraceCount(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceCount(trace, Assertion{Count: 3}))
	assert.NoError(t, assertTraceCount(trace, Assertion{State: "block_tick", Count: 2}))
	assert.NoError(t, assertTraceCount(trace, Assertion{Cancelled: boolPtr(true), Count: 1}))

	err := assertTraceCount(trace, Assertion{Kind: "spawn_entity", Count: 2})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Actual: 1 events")
}

func TestAssertWorldState(t *testing.T) {
	w := world.NewMemory()
	pos := ir.BlockPos{X: 1, Y: 2, Z: 3}
	w.SetBlock(pos, "stone")
	w.SetFuel(pos, 7)
	require.NoError(t, w.AddEntity(ir.Entity{ID: "cow-1", Kind: ir.EntityKindMob}))
	require.NoError(t, w.ApplyDrop(ir.ItemDrop{Owner: "cow-1", Item: ir.ItemStack{Type: "leather", Quantity: 1}}))

	assert.NoError(t, assertWorldState(w, Assertion{Block: &BlockSpec{Pos: Pos{1, 2, 3}, State: "stone"}}))
	assert.NoError(t, assertWorldState(w, Assertion{Block: &BlockSpec{Pos: Pos{0, 0, 0}, State: "air"}}))
	assert.NoError(t, assertWorldState(w, Assertion{Entity: "cow-1"}))
	assert.NoError(t, assertWorldState(w, Assertion{Entity: "pig-1", Present: boolPtr(false)}))
	assert.NoError(t, assertWorldState(w, Assertion{Items: intPtr(1)}))
	assert.NoError(t, assertWorldState(w, Assertion{Fuel: &FuelSpec{Pos: Pos{1, 2, 3}, Amount: 7}}))

	err := assertWorldState(w, Assertion{Fuel: &FuelSpec{Pos: Pos{1, 2, 3}, Amount: 9}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fuel at (1,2,3) = 9")

	assert.Error(t, assertWorldState(w, Assertion{Entity: "cow-1", Present: boolPtr(false)}))
}

func TestAssertFinalDepth(t *testing.T) {
	assert.NoError(t, assertFinalDepth(1, Assertion{Depth: 1}))
	err := assertFinalDepth(3, Assertion{Depth: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Actual: depth 3")
}

func TestAssertFinalState(t *testing.T) {
	ctx := context.Background()
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	require.NoError(t, st.BeginRun(ctx, "run-1", "demo"))
	for _, rec := range sampleTrace() {
		require.NoError(t, st.WriteEvent(ctx, "run-1", rec))
	}

	t.Run("single row", func(t *testing.T) {
		err := assertFinalState(ctx, st, Assertion{
			Table:  "events",
			Where:  map[string]any{"kind": "drop_item"},
			Expect: map[string]any{"cancelled": true, "seq": 3, "state": "block_tick"},
		})
		assert.NoError(t, err)
	})

	t.Run("value mismatch", func(t *testing.T) {
		err := assertFinalState(ctx, st, Assertion{
			Table:  "events",
			Where:  map[string]any{"id": "e1"},
			Expect: map[string]any{"cancelled": true},
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), `field "cancelled"`)
	})

	t.Run("ambiguous", func(t *testing.T) {
		err := assertFinalState(ctx, st, Assertion{
			Table:  "events",
			Where:  map[string]any{"state": "block_tick"},
			Expect: map[string]any{"run_id": "run-1"},
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "multiple rows matched")
	})

	t.Run("no row", func(t *testing.T) {
		err := assertFinalState(ctx, st, Assertion{
			Table:  "events",
			Where:  map[string]any{"kind": "nothing"},
			Expect: map[string]any{"seq": 1},
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "row not found")
	})

	t.Run("missing column", func(t *testing.T) {
		err := assertFinalState(ctx, st, Assertion{
			Table:  "runs",
			Where:  map[string]any{"id": "run-1"},
			Expect: map[string]any{"flavour": "x"},
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), `field "flavour" to exist`)
	})

	t.Run("rejects bad identifiers", func(t *testing.T) {
		err := assertFinalState(ctx, st, Assertion{Table: "events; DROP TABLE runs", Expect: map[string]any{"id": "x"}})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid table name")

		err = assertFinalState(ctx, st, Assertion{
			Table:  "events",
			Where:  map[string]any{"kind OR 1=1": "x"},
			Expect: map[string]any{"id": "x"},
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid column name")
	})
}

func TestStateValuesEqual(t *testing.T) {
	assert.True(t, stateValuesEqual("a", "a"))
	assert.True(t, stateValuesEqual("a", []byte("a")))
	assert.True(t, stateValuesEqual(3, int64(3)))
	assert.True(t, stateValuesEqual(true, int64(1)))
	assert.True(t, stateValuesEqual(false, int64(0)))
	assert.True(t, stateValuesEqual(nil, nil))

	assert.False(t, stateValuesEqual("a", "b"))
	assert.False(t, stateValuesEqual(3, "3"))
	assert.False(t, stateValuesEqual(true, int64(0)))
	assert.False(t, stateValuesEqual(nil, "a"))
}

func TestSubsetOf(t *testing.T) {
	actual := ir.IRObject{
		"owner": ir.IRString("z-1"),
		"pos":   ir.IRObject{"x": ir.IRInt(1), "y": ir.IRInt(2), "z": ir.IRInt(3)},
		"tags":  ir.IRArray{ir.IRString("a"), ir.IRString("b")},
	}

	assert.True(t, subsetOf(actual, ir.IRObject{}))
	assert.True(t, subsetOf(actual, ir.IRObject{"pos": ir.IRObject{"y": ir.IRInt(2)}}), "nested objects match by subset")
	assert.True(t, subsetOf(actual, ir.IRObject{"tags": ir.IRArray{ir.IRString("a"), ir.IRString("b")}}))
	assert.False(t, subsetOf(actual, ir.IRObject{"tags": ir.IRArray{ir.IRString("a")}}), "arrays match exactly")
	assert.False(t, subsetOf(actual, ir.IRObject{"pos": ir.IRInt(1)}))
	assert.False(t, subsetOf(actual, ir.IRObject{"missing": ir.IRString("x")}))
}

func TestEvaluateAssertions_MissingContext(t *testing.T) {
	result := NewResult()
	errs := EvaluateAssertions(result, []Assertion{
		{Type: AssertWorldState, Entity: "x"},
		{Type: AssertFinalState, Table: "runs", Expect: map[string]any{"id": "x"}},
		{Type: "bogus"},
	}, nil)

	require.Len(t, errs, 3)
	assert.Contains(t, errs[0], "world_state requires a world")
	assert.Contains(t, errs[1], "final_state requires database context")
	assert.Contains(t, errs[2], `unknown assertion type "bogus"`)
}
