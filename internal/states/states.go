package states

import (
	"github.com/roach88/phasetrack/internal/capture"
	"github.com/roach88/phasetrack/internal/cause"
	"github.com/roach88/phasetrack/internal/engine"
	"github.com/roach88/phasetrack/internal/ir"
)

// State ids. Ids are stable across releases: the event journal and golden
// traces refer to states by name, tooling by id.
const (
	IDIdle engine.StateID = iota
	IDPluginCommand
	IDNeighborNotify
	IDEntityTick
	IDBlockTick
	IDTileEntityTick
	IDEntityDeath
	IDEntityDeathDrops
	IDEntityCollision
	IDBlockCollision
	IDPortalTeleport
	IDTerrainGeneration
	IDChunkPopulation
)

// FlagDidPort is set on a PortalTeleport context once the entity has
// actually moved through the portal.
const FlagDidPort engine.Flag = 1 << 0

var allCaptures = engine.Captures(capture.KindSpawns, capture.KindDrops, capture.KindBlocks)

// Categories.
var (
	General = engine.General

	Tick = engine.NewCategory("tick", General,
		allCaptures,
		engine.OnUnwind(unwindGeneral),
	)

	EntityDeathCategory = engine.NewCategory("entity_death", General,
		engine.Captures(capture.KindSpawns, capture.KindDrops),
		engine.OnUnwind(unwindEntityDeath),
	)

	Collision = engine.NewCategory("collision", General,
		engine.Captures(capture.KindSpawns),
		engine.SpawnTag(ir.SpawnTypePassive),
		engine.OnUnwind(unwindGeneral),
	)

	Teleport = engine.NewCategory("teleport", General,
		engine.Captures(capture.KindBlocks),
		engine.OnUnwind(unwindGeneral),
	)

	Generation = engine.NewCategory("generation", General,
		engine.WithPolicy(engine.PolicyDeniesChunkRequests),
		engine.SpawnTag(ir.SpawnTypeWorldSpawner),
		engine.OnUnwind(unwindGeneral),
	)
)

// States.
var (
	Idle = engine.Idle

	PluginCommand = engine.NewState(IDPluginCommand, "plugin_command", General,
		allCaptures,
		engine.SpawnTag(ir.SpawnTypePlugin),
		engine.OnUnwind(unwindGeneral),
	)

	NeighborNotify = engine.NewState(IDNeighborNotify, "neighbor_notify", General,
		allCaptures,
		engine.SpawnTag(ir.SpawnTypeBlockSpawning),
		engine.OnUnwind(unwindGeneral),
	)

	EntityTick = engine.NewState(IDEntityTick, "entity_tick", Tick,
		engine.SpawnTag(ir.SpawnTypeCustom),
	)

	BlockTick = engine.NewState(IDBlockTick, "block_tick", Tick,
		engine.WithPolicy(engine.PolicyTracksBlockDrops),
		engine.SpawnTag(ir.SpawnTypeBlockSpawning),
	)

	TileEntityTick = engine.NewState(IDTileEntityTick, "tile_entity_tick", Tick,
		engine.WithPolicy(engine.PolicyTracksBlockDrops),
		engine.SpawnTag(ir.SpawnTypeBlockSpawning),
	)

	EntityDeath = engine.NewState(IDEntityDeath, "entity_death", EntityDeathCategory,
		engine.SpawnTag(ir.SpawnTypeDropped),
	)

	EntityDeathDrops = engine.NewState(IDEntityDeathDrops, "entity_death_drops", EntityDeathCategory,
		engine.SpawnTag(ir.SpawnTypeDropped),
	)

	EntityCollision = engine.NewState(IDEntityCollision, "entity_collision", Collision)

	BlockCollision = engine.NewState(IDBlockCollision, "block_collision", Collision)

	PortalTeleport = engine.NewState(IDPortalTeleport, "portal_teleport", Teleport)

	TerrainGeneration = engine.NewState(IDTerrainGeneration, "terrain_generation", Generation,
		engine.WithPolicy(engine.PolicyNotReentrant),
	)

	ChunkPopulation = engine.NewState(IDChunkPopulation, "chunk_population", Generation,
		engine.Captures(capture.KindSpawns, capture.KindBlocks),
		engine.OnEnter(func(_ *engine.Context, causes engine.CauseStack) {
			causes.AddContext(cause.KeySpawnType, ir.SpawnTypeWorldSpawner)
		}),
	)
)
