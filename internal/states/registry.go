package states

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/phasetrack/internal/engine"
)

// Registry is the closed set of states, indexed by id and name.
type Registry struct {
	ordered []*engine.State
	byID    map[engine.StateID]*engine.State
	byName  map[string]*engine.State
}

// NewRegistry indexes states. Duplicate ids or names panic: registration
// happens once at startup and a collision is a programming error.
func NewRegistry(states ...*engine.State) *Registry {
	r := &Registry{
		byID:   make(map[engine.StateID]*engine.State, len(states)),
		byName: make(map[string]*engine.State, len(states)),
	}
	for _, s := range states {
		if prev, dup := r.byID[s.ID()]; dup {
			panic(fmt.Sprintf("states: id %d registered twice (%s, %s)", s.ID(), prev.Name(), s.Name()))
		}
		if _, dup := r.byName[s.Name()]; dup {
			panic(fmt.Sprintf("states: name %q registered twice", s.Name()))
		}
		r.byID[s.ID()] = s
		r.byName[s.Name()] = s
		r.ordered = append(r.ordered, s)
	}
	slices.SortFunc(r.ordered, func(a, b *engine.State) int {
		return int(a.ID()) - int(b.ID())
	})
	return r
}

// Lookup finds a state by name.
func (r *Registry) Lookup(name string) (*engine.State, bool) {
	s, ok := r.byName[name]
	return s, ok
}

// MustLookup is Lookup that returns an error naming the known states.
func (r *Registry) MustLookup(name string) (*engine.State, error) {
	if s, ok := r.byName[name]; ok {
		return s, nil
	}
	return nil, fmt.Errorf("unknown state %q (known: %s)", name, strings.Join(r.Names(), ", "))
}

// ByID finds a state by id.
func (r *Registry) ByID(id engine.StateID) (*engine.State, bool) {
	s, ok := r.byID[id]
	return s, ok
}

// All returns every state in id order.
func (r *Registry) All() []*engine.State {
	return slices.Clone(r.ordered)
}

// Names returns every state name in id order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.ordered))
	for i, s := range r.ordered {
		names[i] = s.Name()
	}
	return names
}

// Default holds every built-in state.
var Default = NewRegistry(
	Idle,
	PluginCommand,
	NeighborNotify,
	EntityTick,
	BlockTick,
	TileEntityTick,
	EntityDeath,
	EntityDeathDrops,
	EntityCollision,
	BlockCollision,
	PortalTeleport,
	TerrainGeneration,
	ChunkPopulation,
)
