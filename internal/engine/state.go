package engine

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/phasetrack/internal/capture"
	"github.com/roach88/phasetrack/internal/ir"
)

// Policy is a bitset of boolean behaviors a state can opt into.
type Policy uint32

const (
	// PolicyTracksBlockDrops groups drops under the block position that
	// produced them instead of the acting entity.
	PolicyTracksBlockDrops Policy = 1 << iota

	// PolicyDeniesChunkRequests refuses chunk loads while the state is on
	// the stack.
	PolicyDeniesChunkRequests

	// PolicyNotReentrant marks states that must not appear twice on the
	// stack. Violations are reported, never refused.
	PolicyNotReentrant
)

var policyNames = []struct {
	p    Policy
	name string
}{
	{PolicyTracksBlockDrops, "tracks_block_drops"},
	{PolicyDeniesChunkRequests, "denies_chunk_requests"},
	{PolicyNotReentrant, "not_reentrant"},
}

// Has reports whether every policy in q is set.
func (p Policy) Has(q Policy) bool {
	return p&q == q
}

func (p Policy) String() string {
	if p == 0 {
		return "none"
	}
	var names []string
	for _, pn := range policyNames {
		if p.Has(pn.p) {
			names = append(names, pn.name)
		}
	}
	return strings.Join(names, "|")
}

// StateID identifies a registered state.
type StateID uint16

// EnterFunc runs right after a context's cause frame is opened. Anything it
// pushes onto causes is undone when the frame closes.
type EnterFunc func(c *Context, causes CauseStack)

// UnwindFunc replays a context's captures. It may open nested phases on the
// same tracker. A returned error is logged and surfaced on the Completion;
// the phase still completes.
type UnwindFunc func(t *Tracker, c *Context) error

// strategy is the resolved behavior of a category or state.
type strategy struct {
	captures  capture.Set
	policies  Policy
	spawnType ir.SpawnType
	enter     []EnterFunc
	unwind    UnwindFunc
}

func (s strategy) clone() strategy {
	s.enter = slices.Clone(s.enter)
	return s
}

// Option customizes a category or state. Options apply on top of whatever
// the parent category resolved to.
type Option func(*strategy)

// Captures turns capture on for kinds.
func Captures(kinds ...capture.Kind) Option {
	return func(s *strategy) { s.captures = s.captures.With(kinds...) }
}

// Without turns capture off for kinds.
func Without(kinds ...capture.Kind) Option {
	return func(s *strategy) { s.captures = s.captures.Without(kinds...) }
}

// WithPolicy sets policies.
func WithPolicy(p Policy) Option {
	return func(s *strategy) { s.policies |= p }
}

// WithoutPolicy clears policies.
func WithoutPolicy(p Policy) Option {
	return func(s *strategy) { s.policies &^= p }
}

// SpawnTag sets the spawn type used when replaying captured spawns.
func SpawnTag(t ir.SpawnType) Option {
	return func(s *strategy) { s.spawnType = t }
}

// OnEnter appends an entry step. Category steps run before state steps.
func OnEnter(fn EnterFunc) Option {
	return func(s *strategy) { s.enter = append(s.enter, fn) }
}

// OnUnwind replaces the unwind procedure.
func OnUnwind(fn UnwindFunc) Option {
	return func(s *strategy) { s.unwind = fn }
}

// Category groups states that share a default strategy. A category's
// strategy is its parent's with the category's options applied.
type Category struct {
	name   string
	parent *Category
	strategy
}

// NewCategory creates a category. parent may be nil.
func NewCategory(name string, parent *Category, opts ...Option) *Category {
	c := &Category{name: name, parent: parent}
	if parent != nil {
		c.strategy = parent.strategy.clone()
	}
	for _, opt := range opts {
		opt(&c.strategy)
	}
	return c
}

// Name returns the category name.
func (c *Category) Name() string { return c.name }

// Parent returns the parent category, or nil.
func (c *Category) Parent() *Category { return c.parent }

// Is reports whether c is other or descends from it.
func (c *Category) Is(other *Category) bool {
	for cur := c; cur != nil; cur = cur.parent {
		if cur == other {
			return true
		}
	}
	return false
}

func (c *Category) String() string { return c.name }

// State is a static phase descriptor. States are created once at startup
// and shared by every tracker.
type State struct {
	id       StateID
	name     string
	category *Category
	strategy
}

// NewState creates a state in category. The state starts from the
// category's strategy; opts override it.
func NewState(id StateID, name string, category *Category, opts ...Option) *State {
	if category == nil {
		panic(fmt.Sprintf("engine: state %q has no category", name))
	}
	s := &State{id: id, name: name, category: category, strategy: category.strategy.clone()}
	for _, opt := range opts {
		opt(&s.strategy)
	}
	return s
}

// ID returns the state id.
func (s *State) ID() StateID { return s.id }

// Name returns the state name.
func (s *State) Name() string { return s.name }

// Category returns the state's category.
func (s *State) Category() *Category { return s.category }

// Captures reports whether contexts of this state capture kind. A state
// that does not capture spawns applies them immediately.
func (s *State) Captures(kind capture.Kind) bool { return s.captures.Has(kind) }

// CaptureSet returns every captured kind.
func (s *State) CaptureSet() capture.Set { return s.captures }

// Has reports whether policy p is set.
func (s *State) Has(p Policy) bool { return s.policies.Has(p) }

// Policies returns the state's policies.
func (s *State) Policies() Policy { return s.policies }

// SpawnType returns the tag for replayed spawns.
func (s *State) SpawnType() ir.SpawnType { return s.spawnType }

// HasUnwind reports whether the state replays anything.
func (s *State) HasUnwind() bool { return s.unwind != nil }

func (s *State) String() string { return s.name }

// Root category and state shared by every tracker.
var (
	// General is the root category: nothing captured, nothing replayed.
	General = NewCategory("general", nil)

	// Idle is the permanent root entry of every stack.
	Idle = NewState(0, "idle", General)
)
