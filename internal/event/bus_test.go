package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/phasetrack/internal/cause"
	"github.com/roach88/phasetrack/internal/ir"
)

func newSpawn() *SpawnEntity {
	return &SpawnEntity{
		Base:      Base{ID: "ev-1", Seq: 1, State: "entity_death", Cause: cause.Of("z-1")},
		SpawnType: ir.SpawnTypeExperience,
		Entities:  []ir.Entity{{ID: "orb-1", Kind: ir.EntityKindExperienceOrb}},
	}
}

func TestBus_OrderAndFinalDecision(t *testing.T) {
	bus := NewBus()
	var calls []string

	bus.Subscribe(ListenerFunc(func(ev Event) {
		calls = append(calls, "late")
		ev.Header().SetCancelled(false)
	}), OrderLate)
	bus.Subscribe(ListenerFunc(func(ev Event) {
		calls = append(calls, "early")
		ev.Header().SetCancelled(true)
	}), OrderEarly)
	bus.Subscribe(ListenerFunc(func(ev Event) {
		calls = append(calls, "default")
	}), OrderDefault)

	cancelled := bus.Post(newSpawn())

	assert.Equal(t, []string{"early", "default", "late"}, calls)
	assert.False(t, cancelled, "the last listener's decision wins")
}

func TestBus_EqualOrderKeepsSubscriptionOrder(t *testing.T) {
	bus := NewBus()
	var calls []int
	for i := 0; i < 3; i++ {
		bus.Subscribe(ListenerFunc(func(Event) { calls = append(calls, i) }), OrderDefault)
	}

	bus.Post(newSpawn())
	assert.Equal(t, []int{0, 1, 2}, calls)
}

func TestBus_KindFilter(t *testing.T) {
	bus := NewBus()
	bus.Subscribe(CancelIf(func(Event) bool { return true }), OrderDefault, KindDropItem)

	assert.False(t, bus.Post(newSpawn()))
	assert.True(t, bus.Post(&DropItem{Owner: "z-1"}))
}

func TestBus_PanickingListenerIsContained(t *testing.T) {
	bus := NewBus()
	rec := &Recorder{}
	bus.Subscribe(ListenerFunc(func(Event) { panic("boom") }), OrderFirst)
	bus.Subscribe(rec, OrderLast)

	require.NotPanics(t, func() { bus.Post(newSpawn()) })
	assert.Len(t, rec.Events, 1)
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(CancelIf(func(Event) bool { return true }), OrderDefault)
	assert.Equal(t, 1, bus.NumListeners())

	assert.True(t, bus.Unsubscribe(sub))
	assert.False(t, bus.Unsubscribe(sub))
	assert.False(t, bus.Post(newSpawn()))
}

func TestRecorder_OfKind(t *testing.T) {
	rec := &Recorder{}
	rec.Handle(newSpawn())
	rec.Handle(&ChangeBlock{})

	assert.Len(t, rec.OfKind(KindSpawnEntity), 1)
	assert.Len(t, rec.OfKind(KindChangeBlock), 1)
	rec.Reset()
	assert.Empty(t, rec.Events)
}

func TestToRecord(t *testing.T) {
	ev := newSpawn()
	ev.SetCancelled(true)

	rec := ToRecord(ev)
	assert.Equal(t, "ev-1", rec.ID)
	assert.Equal(t, KindSpawnEntity, rec.Kind)
	assert.True(t, rec.Cancelled)
	assert.Equal(t, ir.IRString("experience"), rec.Payload["spawn_type"])
	assert.Equal(t, ir.IRArray{ir.IRString("z-1")}, rec.Cause["entries"])
}
