package cause

import (
	"errors"
	"fmt"
	"log/slog"
)

// Key names a context value attached to the current cause.
type Key string

// Well-known context keys.
const (
	KeyPhase       Key = "phase"
	KeySource      Key = "source"
	KeyNotifier    Key = "notifier"
	KeyOwner       Key = "owner"
	KeySpawnType   Key = "spawn_type"
	KeyDyingEntity Key = "dying_entity"
	KeyDropOwner   Key = "drop_owner"
	KeyPlugin      Key = "plugin"
)

// ErrFrameMismatch is returned when a frame is popped out of order.
var ErrFrameMismatch = errors.New("cause frame popped out of order")

// ErrUnknownFrame is returned when a frame is not on the stack.
var ErrUnknownFrame = errors.New("cause frame not on stack")

// Frame is an opaque handle to a pushed frame.
type Frame struct {
	id uint64
}

// IsZero reports whether the frame was never pushed.
func (f Frame) IsZero() bool {
	return f.id == 0
}

type savedValue struct {
	value   any
	present bool
}

type frameRecord struct {
	id         uint64
	causeDepth int
	saved      map[Key]savedValue
}

// Stack is the default cause stack manager. It is not safe for concurrent
// use; like the tracker, it belongs to one simulation goroutine.
type Stack struct {
	causes  []any
	frames  []frameRecord
	context map[Key]any
	nextID  uint64
	cached  *Cause
}

// NewStack creates an empty cause stack.
func NewStack() *Stack {
	return &Stack{context: make(map[Key]any)}
}

// PushCause pushes a cause object. Nil causes are ignored.
func (s *Stack) PushCause(v any) {
	if v == nil {
		slog.Warn("ignoring nil cause push")
		return
	}
	s.causes = append(s.causes, v)
	s.cached = nil
}

// PopCause removes and returns the most recent cause. Causes owned by an
// open frame cannot be popped individually; nil is returned instead.
func (s *Stack) PopCause() any {
	floor := 0
	if n := len(s.frames); n > 0 {
		floor = s.frames[n-1].causeDepth
	}
	if len(s.causes) <= floor {
		slog.Warn("cause pop below frame boundary", "depth", len(s.causes), "floor", floor)
		return nil
	}
	last := s.causes[len(s.causes)-1]
	s.causes[len(s.causes)-1] = nil
	s.causes = s.causes[:len(s.causes)-1]
	s.cached = nil
	return last
}

// PeekCause returns the most recent cause without removing it.
func (s *Stack) PeekCause() any {
	if len(s.causes) == 0 {
		return nil
	}
	return s.causes[len(s.causes)-1]
}

// PushCauseFrame opens a frame. Causes and context added until the matching
// PopCauseFrame are undone by it.
func (s *Stack) PushCauseFrame() Frame {
	s.nextID++
	s.frames = append(s.frames, frameRecord{
		id:         s.nextID,
		causeDepth: len(s.causes),
	})
	return Frame{id: s.nextID}
}

// PopCauseFrame closes f. If frames opened after f are still open they are
// closed first and ErrFrameMismatch is returned; the stack is still left in
// the state it had before f was pushed.
func (s *Stack) PopCauseFrame(f Frame) error {
	idx := -1
	for i := len(s.frames) - 1; i >= 0; i-- {
		if s.frames[i].id == f.id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("%w: frame %d", ErrUnknownFrame, f.id)
	}

	var err error
	if extra := len(s.frames) - 1 - idx; extra > 0 {
		slog.Warn("closing unbalanced cause frames",
			"frame", f.id,
			"extra_frames", extra,
		)
		err = fmt.Errorf("%w: frame %d had %d frames above it", ErrFrameMismatch, f.id, extra)
	}
	for len(s.frames) > idx {
		s.popTopFrame()
	}
	return err
}

func (s *Stack) popTopFrame() {
	top := s.frames[len(s.frames)-1]
	s.frames = s.frames[:len(s.frames)-1]

	clear(s.causes[top.causeDepth:])
	s.causes = s.causes[:top.causeDepth]

	for k, prev := range top.saved {
		if prev.present {
			s.context[k] = prev.value
		} else {
			delete(s.context, k)
		}
	}
	s.cached = nil
}

// AddContext sets a context value. Inside a frame, the previous value is
// restored when the frame is popped.
func (s *Stack) AddContext(k Key, v any) {
	if n := len(s.frames); n > 0 {
		top := &s.frames[n-1]
		if top.saved == nil {
			top.saved = make(map[Key]savedValue)
		}
		if _, recorded := top.saved[k]; !recorded {
			prev, present := s.context[k]
			top.saved[k] = savedValue{value: prev, present: present}
		}
	}
	s.context[k] = v
	s.cached = nil
}

// RemoveContext deletes a context value and returns what was stored.
func (s *Stack) RemoveContext(k Key) (any, bool) {
	v, ok := s.context[k]
	if !ok {
		return nil, false
	}
	if n := len(s.frames); n > 0 {
		top := &s.frames[n-1]
		if top.saved == nil {
			top.saved = make(map[Key]savedValue)
		}
		if _, recorded := top.saved[k]; !recorded {
			top.saved[k] = savedValue{value: v, present: true}
		}
	}
	delete(s.context, k)
	s.cached = nil
	return v, true
}

// Context returns a context value.
func (s *Stack) Context(k Key) (any, bool) {
	v, ok := s.context[k]
	return v, ok
}

// CurrentCause returns a snapshot of the stack. Snapshots are cached until
// the stack changes.
func (s *Stack) CurrentCause() Cause {
	if s.cached != nil {
		return *s.cached
	}
	entries := make([]any, len(s.causes))
	for i, c := range s.causes {
		entries[len(s.causes)-1-i] = c
	}
	ctx := make(map[Key]any, len(s.context))
	for k, v := range s.context {
		ctx[k] = v
	}
	c := Cause{entries: entries, context: ctx}
	s.cached = &c
	return c
}

// Depth returns the number of causes on the stack.
func (s *Stack) Depth() int {
	return len(s.causes)
}

// FrameDepth returns the number of open frames.
func (s *Stack) FrameDepth() int {
	return len(s.frames)
}
