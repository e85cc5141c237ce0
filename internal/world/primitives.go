package world

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/phasetrack/internal/capture"
	"github.com/roach88/phasetrack/internal/engine"
	"github.com/roach88/phasetrack/internal/ir"
)

// ErrChunkRequestDenied is returned by RequestChunk while an active phase
// denies chunk requests.
var ErrChunkRequestDenied = errors.New("chunk request denied during generation")

// Backend is the world state the primitives mutate.
type Backend interface {
	engine.World
	ConsumeFuel(pos ir.BlockPos, amount int64) error
	RestoreFuel(pos ir.BlockPos, amount int64)
	LoadChunk(c ChunkPos)
}

// Outcome says what a primitive did with a mutation.
type Outcome int

const (
	// Applied means the world was changed immediately.
	Applied Outcome = iota
	// Captured means the mutation waits for the current phase's unwind.
	Captured
)

func (o Outcome) String() string {
	if o == Captured {
		return "captured"
	}
	return "applied"
}

// Primitives are the only entry points domain logic should use to mutate
// the world. Each one asks the tracker for the current phase and either
// captures the mutation into that phase's context or applies it.
type Primitives struct {
	tracker *engine.Tracker
	world   Backend
}

// NewPrimitives binds primitives to a tracker and a world.
func NewPrimitives(t *engine.Tracker, w Backend) *Primitives {
	return &Primitives{tracker: t, world: w}
}

// SpawnEntity spawns e, or captures it if the current phase captures spawns.
func (p *Primitives) SpawnEntity(e ir.Entity) (Outcome, error) {
	_, ctx := p.tracker.Current()
	if ctx.Spawns().Add(e) {
		return Captured, nil
	}
	return Applied, p.world.ApplySpawn(e)
}

// PlaceBlock sets pos to state. The original state is read from the world
// when the change is captured.
func (p *Primitives) PlaceBlock(pos ir.BlockPos, state ir.BlockState) (Outcome, error) {
	change := ir.BlockChange{Pos: pos, Original: p.world.Block(pos), Final: state}
	_, ctx := p.tracker.Current()
	if ctx.Blocks().Add(change) {
		return Captured, nil
	}
	return Applied, p.world.ApplyBlock(change)
}

// CreateItemDrop drops an item. In states that track block drops the drop
// is grouped under the block position that produced it; otherwise under
// d.Owner.
func (p *Primitives) CreateItemDrop(d ir.ItemDrop) (Outcome, error) {
	state, ctx := p.tracker.Current()
	key := d.Owner
	if state.Has(engine.PolicyTracksBlockDrops) {
		key = d.Pos.Owner()
	}
	if ctx.Drops().Add(key, d) {
		return Captured, nil
	}
	return Applied, p.world.ApplyDrop(d)
}

// RequestChunk loads the chunk containing pos unless an active phase denies
// chunk requests.
func (p *Primitives) RequestChunk(pos ir.BlockPos) error {
	chunk := ChunkOf(pos)
	if p.tracker.AnyActive(engine.PolicyDeniesChunkRequests) {
		slog.Debug("chunk request denied",
			"chunk", chunk.String(),
			"state", p.tracker.CurrentState().Name(),
		)
		return fmt.Errorf("%w: %s", ErrChunkRequestDenied, chunk)
	}
	p.world.LoadChunk(chunk)
	return nil
}

// ConsumeFuel burns fuel at pos immediately. When the current phase groups
// its captured drops by block position, the burn is undone if the drops
// produced at pos are cancelled. Other phases have no drop group keyed by
// pos, so the burn is final there.
func (p *Primitives) ConsumeFuel(pos ir.BlockPos, amount int64) error {
	if err := p.world.ConsumeFuel(pos, amount); err != nil {
		return err
	}
	state, ctx := p.tracker.Current()
	if ctx.Captures(capture.KindDrops) && state.Has(engine.PolicyTracksBlockDrops) {
		ctx.OnCancel(engine.UndoKey{Kind: capture.KindDrops, Owner: pos.Owner()}, func() {
			p.world.RestoreFuel(pos, amount)
		})
	}
	return nil
}
