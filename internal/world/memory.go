package world

import (
	"cmp"
	"errors"
	"fmt"
	"slices"

	"github.com/roach88/phasetrack/internal/ir"
)

// ErrEntityExists is returned when a spawn reuses a live entity id.
var ErrEntityExists = errors.New("entity already exists")

// ErrInsufficientFuel is returned when a fuel slot cannot cover a burn.
var ErrInsufficientFuel = errors.New("insufficient fuel")

// ChunkPos is a 16x16 column coordinate.
type ChunkPos struct {
	X int64 `json:"x" yaml:"x"`
	Z int64 `json:"z" yaml:"z"`
}

// ChunkOf returns the chunk containing pos.
func ChunkOf(pos ir.BlockPos) ChunkPos {
	return ChunkPos{X: floorDiv(pos.X, 16), Z: floorDiv(pos.Z, 16)}
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func (c ChunkPos) String() string {
	return fmt.Sprintf("chunk(%d,%d)", c.X, c.Z)
}

// BlockHook observes a block change after it has been applied. Hooks model
// world reactions (neighbor updates, items popping off) and usually call
// back into Primitives.
type BlockHook func(change ir.BlockChange)

// Memory is an in-memory world. It is the default engine.World.
type Memory struct {
	entities map[ir.EntityID]ir.Entity
	order    []ir.EntityID
	blocks   map[ir.BlockPos]ir.BlockState
	items    []ir.ItemDrop
	fuel     map[ir.BlockPos]int64
	chunks   map[ChunkPos]bool
	hooks    []BlockHook
}

// NewMemory creates an empty world.
func NewMemory() *Memory {
	return &Memory{
		entities: make(map[ir.EntityID]ir.Entity),
		blocks:   make(map[ir.BlockPos]ir.BlockState),
		fuel:     make(map[ir.BlockPos]int64),
		chunks:   make(map[ChunkPos]bool),
	}
}

// OnBlockChange registers a hook run after every applied block change.
func (m *Memory) OnBlockChange(h BlockHook) {
	m.hooks = append(m.hooks, h)
}

// ApplySpawn implements engine.World.
func (m *Memory) ApplySpawn(e ir.Entity) error {
	if _, exists := m.entities[e.ID]; exists {
		return fmt.Errorf("%w: %s", ErrEntityExists, e.ID)
	}
	m.entities[e.ID] = e
	m.order = append(m.order, e.ID)
	return nil
}

// ApplyDrop implements engine.World. The drop becomes a ground item.
func (m *Memory) ApplyDrop(d ir.ItemDrop) error {
	m.items = append(m.items, d)
	return nil
}

// ApplyBlock implements engine.World. Hooks run after the block is set.
func (m *Memory) ApplyBlock(c ir.BlockChange) error {
	m.setBlock(c.Pos, c.Final)
	for _, h := range m.hooks {
		h(c)
	}
	return nil
}

func (m *Memory) setBlock(pos ir.BlockPos, s ir.BlockState) {
	if s == ir.BlockAir || s == "" {
		delete(m.blocks, pos)
		return
	}
	m.blocks[pos] = s
}

// Block implements engine.World.
func (m *Memory) Block(pos ir.BlockPos) ir.BlockState {
	if s, ok := m.blocks[pos]; ok {
		return s
	}
	return ir.BlockAir
}

// SetBlock places a block directly, bypassing hooks. Used to build fixtures.
func (m *Memory) SetBlock(pos ir.BlockPos, s ir.BlockState) {
	m.setBlock(pos, s)
}

// AddEntity places an entity directly. Used to build fixtures.
func (m *Memory) AddEntity(e ir.Entity) error {
	return m.ApplySpawn(e)
}

// RemoveEntity deletes an entity. Returns false if it did not exist.
func (m *Memory) RemoveEntity(id ir.EntityID) bool {
	if _, ok := m.entities[id]; !ok {
		return false
	}
	delete(m.entities, id)
	m.order = slices.DeleteFunc(m.order, func(e ir.EntityID) bool { return e == id })
	return true
}

// Entity returns a live entity.
func (m *Memory) Entity(id ir.EntityID) (ir.Entity, bool) {
	e, ok := m.entities[id]
	return e, ok
}

// Entities returns live entities in spawn order.
func (m *Memory) Entities() []ir.Entity {
	out := make([]ir.Entity, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.entities[id])
	}
	return out
}

// Items returns ground items in drop order.
func (m *Memory) Items() []ir.ItemDrop {
	return slices.Clone(m.items)
}

// SetFuel sets the fuel at pos.
func (m *Memory) SetFuel(pos ir.BlockPos, amount int64) {
	m.fuel[pos] = amount
}

// Fuel returns the fuel at pos.
func (m *Memory) Fuel(pos ir.BlockPos) int64 {
	return m.fuel[pos]
}

// ConsumeFuel burns amount at pos.
func (m *Memory) ConsumeFuel(pos ir.BlockPos, amount int64) error {
	if m.fuel[pos] < amount {
		return fmt.Errorf("%w at %s: have %d, need %d", ErrInsufficientFuel, pos, m.fuel[pos], amount)
	}
	m.fuel[pos] -= amount
	return nil
}

// RestoreFuel returns amount to pos.
func (m *Memory) RestoreFuel(pos ir.BlockPos, amount int64) {
	m.fuel[pos] += amount
}

// LoadChunk marks a chunk loaded.
func (m *Memory) LoadChunk(c ChunkPos) {
	m.chunks[c] = true
}

// ChunkLoaded reports whether a chunk was loaded.
func (m *Memory) ChunkLoaded(c ChunkPos) bool {
	return m.chunks[c]
}

// Snapshot is a stable, comparable view of the world.
type Snapshot struct {
	Entities []ir.Entity      `json:"entities"`
	Blocks   []ir.BlockChange `json:"blocks"`
	Items    []ir.ItemDrop    `json:"items"`
	Fuel     map[string]int64 `json:"fuel"`
	Chunks   []ChunkPos       `json:"chunks"`
}

// Snapshot captures the world. Blocks are reported as changes from air,
// sorted by position.
func (m *Memory) Snapshot() Snapshot {
	s := Snapshot{
		Entities: m.Entities(),
		Items:    m.Items(),
		Fuel:     make(map[string]int64, len(m.fuel)),
	}
	for pos, state := range m.blocks {
		s.Blocks = append(s.Blocks, ir.BlockChange{Pos: pos, Original: ir.BlockAir, Final: state})
	}
	slices.SortFunc(s.Blocks, func(a, b ir.BlockChange) int { return comparePos(a.Pos, b.Pos) })
	for pos, amount := range m.fuel {
		s.Fuel[pos.String()] = amount
	}
	for c := range m.chunks {
		s.Chunks = append(s.Chunks, c)
	}
	slices.SortFunc(s.Chunks, func(a, b ChunkPos) int {
		if a.X != b.X {
			return cmp.Compare(a.X, b.X)
		}
		return cmp.Compare(a.Z, b.Z)
	})
	return s
}

// String renders the snapshot for test failure messages.
func (s Snapshot) String() string {
	return fmt.Sprintf("entities=%v blocks=%v items=%v fuel=%v", s.Entities, s.Blocks, s.Items, s.Fuel)
}

func comparePos(a, b ir.BlockPos) int {
	if a.X != b.X {
		return cmp.Compare(a.X, b.X)
	}
	if a.Y != b.Y {
		return cmp.Compare(a.Y, b.Y)
	}
	return cmp.Compare(a.Z, b.Z)
}

