package states

import (
	"log/slog"

	"github.com/roach88/phasetrack/internal/capture"
	"github.com/roach88/phasetrack/internal/engine"
	"github.com/roach88/phasetrack/internal/event"
	"github.com/roach88/phasetrack/internal/ir"
)

// blockReaction is the state each accepted block change is applied in.
// NeighborNotify's unwind reaches applyBlocks, so referencing it from a
// package-level initializer would form an initialization cycle.
var blockReaction *engine.State

func init() {
	blockReaction = NeighborNotify
}

// unwindGeneral replays block changes, then spawns, then drops. Spawns are
// posted as a single event tagged with the state's spawn type; drops as one
// event per owner.
func unwindGeneral(t *engine.Tracker, c *engine.Context) error {
	replayBlocks(t, c)
	replaySpawns(t, c, c.State().SpawnType())
	replayDrops(t, c)
	return nil
}

// replayBlocks posts captured block changes as one ChangeBlock event. Block
// application is deferred, so a cancelled event leaves every original
// state in place.
//
// Replay applies what the event holds after dispatch, not what was
// captured: a listener that edits the changes, spawns or drops of an event
// it leaves uncancelled changes what reaches the world.
func replayBlocks(t *engine.Tracker, c *engine.Context) {
	c.Blocks().DrainIfNotEmpty(func(changes []ir.BlockChange) {
		ev := &event.ChangeBlock{Changes: changes}
		t.Stamp(c, ev)
		if t.Post(c, ev) {
			c.RunUndo(engine.UndoKey{Kind: capture.KindBlocks})
			return
		}
		applyBlocks(t, c, ev.Changes)
	})
}

// applyBlocks applies accepted changes in capture order. Each change is
// applied inside its own NeighborNotify phase, so anything the world does in
// reaction (neighbor updates, falling blocks, popped items) is captured and
// replayed as that phase's events rather than leaking into c.
func applyBlocks(t *engine.Tracker, c *engine.Context, changes []ir.BlockChange) {
	notifier, hasNotifier := c.Notifier()
	for _, change := range changes {
		nested := t.SwitchTo(blockReaction).WithSource(change.Pos)
		if hasNotifier {
			nested.WithNotifier(notifier)
		}
		if err := t.World().ApplyBlock(change); err != nil {
			slog.Error("applying block change failed",
				"state", c.State().Name(),
				"change", change.String(),
				"error", err,
			)
		}
		t.CompletePhase(blockReaction)
	}
}

// replaySpawns posts captured spawns as one SpawnEntity event.
func replaySpawns(t *engine.Tracker, c *engine.Context, spawnType ir.SpawnType) {
	c.Spawns().DrainIfNotEmpty(func(entities []ir.Entity) {
		postSpawns(t, c, spawnType, entities)
	})
}

func postSpawns(t *engine.Tracker, c *engine.Context, spawnType ir.SpawnType, entities []ir.Entity) {
	ev := &event.SpawnEntity{SpawnType: spawnType, Entities: entities}
	t.Stamp(c, ev)
	if t.Post(c, ev) {
		c.RunUndo(engine.UndoKey{Kind: capture.KindSpawns})
		return
	}
	applySpawns(t, c, ev.Entities)
}

func applySpawns(t *engine.Tracker, c *engine.Context, entities []ir.Entity) {
	for _, e := range entities {
		if err := t.World().ApplySpawn(e); err != nil {
			slog.Error("applying spawn failed",
				"state", c.State().Name(),
				"entity", e.String(),
				"error", err,
			)
		}
	}
}

// replayDrops posts one DropItem event per owner group, in the order owners
// first contributed.
func replayDrops(t *engine.Tracker, c *engine.Context) {
	c.Drops().DrainIfNotEmpty(func(owner ir.OwnerID, drops []ir.ItemDrop) {
		ev := &event.DropItem{Owner: owner, Drops: drops}
		t.Stamp(c, ev)
		settleDrops(t, c, ev)
	})
}

// settleDrops dispatches a stamped DropItem event and applies or undoes it.
func settleDrops(t *engine.Tracker, c *engine.Context, ev *event.DropItem) {
	if t.Post(c, ev) {
		if n := c.RunUndo(engine.UndoKey{Kind: capture.KindDrops, Owner: ev.Owner}); n > 0 {
			slog.Debug("undid side effects of cancelled drops",
				"state", c.State().Name(),
				"owner", ev.Owner,
				"hooks", n,
			)
		}
		return
	}
	for _, d := range ev.Drops {
		if err := t.World().ApplyDrop(d); err != nil {
			slog.Error("applying drop failed",
				"state", c.State().Name(),
				"drop", d.String(),
				"error", err,
			)
		}
	}
}

// discardAll drains every buffer without replaying it.
func discardAll(c *engine.Context) int {
	n := c.Spawns().Len() + c.Drops().Len() + c.Blocks().Len()
	c.Spawns().DrainIfNotEmpty(func([]ir.Entity) {})
	c.Drops().DrainIfNotEmpty(func(ir.OwnerID, []ir.ItemDrop) {})
	c.Blocks().DrainIfNotEmpty(func([]ir.BlockChange) {})
	return n
}
