package testutil

import (
	"github.com/roach88/phasetrack/internal/cause"
	"github.com/roach88/phasetrack/internal/engine"
	"github.com/roach88/phasetrack/internal/event"
	"github.com/roach88/phasetrack/internal/world"
)

// Fixture wires a tracker to an in-memory world, the default cause stack
// and an event bus with a recorder subscribed last.
//
// Ids and seqs are deterministic: a fresh Fixture always stamps its first
// event with FormatID(1) and seq 1.
type Fixture struct {
	World    *world.Memory
	Causes   *cause.Stack
	Bus      *event.Bus
	Recorder *event.Recorder
	IDs      *DeterministicIDs
	Clock    *engine.Clock
	Tracker  *engine.Tracker
	Prims    *world.Primitives
}

// NewFixture builds a fixture owned by the calling goroutine. Extra options
// are applied after the deterministic clock and id generator.
func NewFixture(opts ...engine.TrackerOption) *Fixture {
	f := &Fixture{
		World:    world.NewMemory(),
		Causes:   cause.NewStack(),
		Bus:      event.NewBus(),
		Recorder: &event.Recorder{},
		IDs:      NewDeterministicIDs(),
		Clock:    engine.NewClock(),
	}
	f.Bus.Subscribe(f.Recorder, event.OrderLast)

	all := append([]engine.TrackerOption{
		engine.WithClock(f.Clock),
		engine.WithIDGenerator(f.IDs),
	}, opts...)
	f.Tracker = engine.New(f.Causes, f.Bus, f.World, all...)
	f.Prims = world.NewPrimitives(f.Tracker, f.World)
	return f
}

// Records flattens every recorded event in dispatch order.
func (f *Fixture) Records() []event.Record {
	out := make([]event.Record, len(f.Recorder.Events))
	for i, ev := range f.Recorder.Events {
		out[i] = event.ToRecord(ev)
	}
	return out
}
