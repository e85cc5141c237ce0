package event

import (
	"github.com/roach88/phasetrack/internal/cause"
	"github.com/roach88/phasetrack/internal/ir"
)

// Kind distinguishes event types.
type Kind string

const (
	// KindSpawnEntity is posted for a group of captured entity spawns.
	KindSpawnEntity Kind = "spawn_entity"
	// KindDropItem is posted for the item drops of one owner.
	KindDropItem Kind = "drop_item"
	// KindChangeBlock is posted for captured block changes.
	KindChangeBlock Kind = "change_block"
)

// Event is a populated, cancellable event.
type Event interface {
	// Header returns the fields shared by all events.
	Header() *Base

	// Kind returns the event type.
	Kind() Kind

	// Payload returns the event-specific content as a payload object.
	Payload() ir.IRObject
}

// Base holds the fields shared by every event.
type Base struct {
	// ID is a unique event id (UUIDv7 in production).
	ID string

	// Seq is the tracker's logical clock value when the event was built.
	Seq int64

	// State names the phase state whose unwind built the event.
	State string

	// Cause is the cause stack snapshot taken when the event was built.
	Cause cause.Cause

	cancelled bool
}

// Header implements Event.
func (b *Base) Header() *Base { return b }

// Cancelled reports the current cancellation decision.
func (b *Base) Cancelled() bool { return b.cancelled }

// SetCancelled sets the cancellation decision. Later listeners may reverse
// it; the dispatcher returns the final value.
func (b *Base) SetCancelled(cancelled bool) { b.cancelled = cancelled }

// SpawnEntity announces a group of entities about to be spawned.
type SpawnEntity struct {
	Base
	SpawnType ir.SpawnType
	Entities  []ir.Entity
}

// Kind implements Event.
func (e *SpawnEntity) Kind() Kind { return KindSpawnEntity }

// Payload implements Event.
func (e *SpawnEntity) Payload() ir.IRObject {
	entities := make(ir.IRArray, len(e.Entities))
	for i, ent := range e.Entities {
		entities[i] = ent.Value()
	}
	return ir.IRObject{
		"spawn_type": ir.IRString(e.SpawnType),
		"entities":   entities,
	}
}

// DropItem announces the item drops contributed by one owner.
type DropItem struct {
	Base
	Owner ir.OwnerID
	Drops []ir.ItemDrop
}

// Kind implements Event.
func (e *DropItem) Kind() Kind { return KindDropItem }

// Payload implements Event.
func (e *DropItem) Payload() ir.IRObject {
	drops := make(ir.IRArray, len(e.Drops))
	for i, d := range e.Drops {
		drops[i] = d.Value()
	}
	return ir.IRObject{
		"owner": ir.IRString(e.Owner),
		"drops": drops,
	}
}

// ChangeBlock announces a group of block transactions.
type ChangeBlock struct {
	Base
	Changes []ir.BlockChange
}

// Kind implements Event.
func (e *ChangeBlock) Kind() Kind { return KindChangeBlock }

// Payload implements Event.
func (e *ChangeBlock) Payload() ir.IRObject {
	changes := make(ir.IRArray, len(e.Changes))
	for i, c := range e.Changes {
		changes[i] = c.Value()
	}
	return ir.IRObject{"changes": changes}
}

// Record is the flattened, serializable form of a dispatched event.
type Record struct {
	ID        string      `json:"id"`
	Seq       int64       `json:"seq"`
	Kind      Kind        `json:"kind"`
	State     string      `json:"state"`
	Cancelled bool        `json:"cancelled"`
	Cause     ir.IRObject `json:"cause"`
	Payload   ir.IRObject `json:"payload"`
}

// ToRecord flattens ev.
func ToRecord(ev Event) Record {
	h := ev.Header()
	return Record{
		ID:        h.ID,
		Seq:       h.Seq,
		Kind:      ev.Kind(),
		State:     h.State,
		Cancelled: h.Cancelled(),
		Cause:     h.Cause.Value(),
		Payload:   ev.Payload(),
	}
}
