// Package states defines the built-in phase states and how each one
// replays its captures.
//
// States are grouped into categories (tick, entity death, collision,
// teleport, generation). A state inherits its category's capture kinds,
// policies and unwind procedure and overrides only what differs:
//
//	BlockTick = engine.NewState(IDBlockTick, "block_tick", Tick,
//		engine.WithPolicy(engine.PolicyTracksBlockDrops),
//		engine.SpawnTag(ir.SpawnTypeBlockSpawning),
//	)
//
// Replay order in the general unwind is block changes, then spawns, then
// drops. Accepted block changes are applied one at a time inside a nested
// NeighborNotify phase.
package states
