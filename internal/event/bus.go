package event

import (
	"fmt"
	"log/slog"
	"slices"
)

// Dispatcher accepts a populated event and returns whether it ended up
// cancelled. Implementations must be synchronous.
type Dispatcher interface {
	Post(ev Event) (cancelled bool)
}

// Listener reacts to posted events.
type Listener interface {
	Handle(ev Event)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(ev Event)

// Handle implements Listener.
func (f ListenerFunc) Handle(ev Event) { f(ev) }

// Order positions a listener in the dispatch chain. Lower runs first;
// listeners with equal order run in subscription order.
type Order int

const (
	OrderFirst   Order = -200
	OrderEarly   Order = -100
	OrderDefault Order = 0
	OrderLate    Order = 100
	OrderLast    Order = 200
)

// Subscription identifies a registered listener.
type Subscription struct {
	id uint64
}

type registration struct {
	id       uint64
	order    Order
	kinds    []Kind
	listener Listener
}

func (r registration) accepts(k Kind) bool {
	return len(r.kinds) == 0 || slices.Contains(r.kinds, k)
}

// Bus is the default Dispatcher: an ordered listener chain.
//
// A listener that panics is logged and skipped; the remaining listeners
// still run and the decision so far stands.
type Bus struct {
	listeners []registration
	nextID    uint64
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers l at order. If kinds is non-empty, l only receives
// events of those kinds.
func (b *Bus) Subscribe(l Listener, order Order, kinds ...Kind) Subscription {
	b.nextID++
	reg := registration{id: b.nextID, order: order, kinds: kinds, listener: l}

	idx := len(b.listeners)
	for i, existing := range b.listeners {
		if existing.order > order {
			idx = i
			break
		}
	}
	b.listeners = slices.Insert(b.listeners, idx, reg)
	return Subscription{id: reg.id}
}

// Unsubscribe removes a listener. Returns false if it was not registered.
func (b *Bus) Unsubscribe(s Subscription) bool {
	for i, reg := range b.listeners {
		if reg.id == s.id {
			b.listeners = slices.Delete(b.listeners, i, i+1)
			return true
		}
	}
	return false
}

// NumListeners returns the number of registered listeners.
func (b *Bus) NumListeners() int {
	return len(b.listeners)
}

// Post implements Dispatcher.
func (b *Bus) Post(ev Event) bool {
	// Listeners may subscribe or unsubscribe while handling; iterate over the
	// chain as it was when the post began.
	chain := slices.Clone(b.listeners)
	for _, reg := range chain {
		if !reg.accepts(ev.Kind()) {
			continue
		}
		b.invoke(reg, ev)
	}
	return ev.Header().Cancelled()
}

func (b *Bus) invoke(reg registration, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("event listener panicked",
				"listener", reg.id,
				"kind", ev.Kind(),
				"event_id", ev.Header().ID,
				"panic", fmt.Sprint(r),
			)
		}
	}()
	reg.listener.Handle(ev)
}

// CancelIf returns a listener that cancels events matching pred.
func CancelIf(pred func(ev Event) bool) Listener {
	return ListenerFunc(func(ev Event) {
		if pred(ev) {
			ev.Header().SetCancelled(true)
		}
	})
}

// Recorder is a listener that keeps every event it sees. Registered at
// OrderLast it observes final cancellation decisions.
type Recorder struct {
	Events []Event
}

// Handle implements Listener.
func (r *Recorder) Handle(ev Event) {
	r.Events = append(r.Events, ev)
}

// OfKind returns recorded events of kind k.
func (r *Recorder) OfKind(k Kind) []Event {
	var out []Event
	for _, ev := range r.Events {
		if ev.Kind() == k {
			out = append(out, ev)
		}
	}
	return out
}

// Reset forgets recorded events.
func (r *Recorder) Reset() {
	r.Events = nil
}
