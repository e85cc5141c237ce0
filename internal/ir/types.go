package ir

import "fmt"

// EntityID identifies an entity in the simulated world.
type EntityID string

// OwnerID identifies the contributor of captured item drops. Entity owners
// use their EntityID verbatim; blocks use BlockPos.Owner.
type OwnerID string

func (o OwnerID) String() string { return string(o) }

// EntityKind names an entity type. The engine only distinguishes
// experience orbs from everything else.
type EntityKind string

const (
	EntityKindExperienceOrb EntityKind = "experience_orb"
	EntityKindItem          EntityKind = "item"
	EntityKindMob           EntityKind = "mob"
	EntityKindPlayer        EntityKind = "player"
	EntityKindProjectile    EntityKind = "projectile"
)

// Entity is a world object that can be spawned or act as a cause.
type Entity struct {
	ID   EntityID   `json:"id"`
	Kind EntityKind `json:"kind"`
	Pos  BlockPos   `json:"pos"`
}

// Owner returns the drop owner id for this entity.
func (e Entity) Owner() OwnerID {
	return OwnerID(e.ID)
}

// IsExperience reports whether the entity is an experience orb.
func (e Entity) IsExperience() bool {
	return e.Kind == EntityKindExperienceOrb
}

func (e Entity) String() string {
	return fmt.Sprintf("entity[%s/%s]", e.Kind, e.ID)
}

// Value converts the entity into a payload object.
func (e Entity) Value() IRObject {
	return IRObject{
		"id":   IRString(e.ID),
		"kind": IRString(e.Kind),
		"pos":  e.Pos.Value(),
	}
}

// BlockPos is an integer block coordinate.
type BlockPos struct {
	X int64 `json:"x" yaml:"x"`
	Y int64 `json:"y" yaml:"y"`
	Z int64 `json:"z" yaml:"z"`
}

func (p BlockPos) String() string {
	return fmt.Sprintf("(%d,%d,%d)", p.X, p.Y, p.Z)
}

// Owner returns the drop owner id for block-specific drops at this position.
func (p BlockPos) Owner() OwnerID {
	return OwnerID("block@" + p.String())
}

// Value converts the position into a payload object.
func (p BlockPos) Value() IRObject {
	return IRObject{"x": IRInt(p.X), "y": IRInt(p.Y), "z": IRInt(p.Z)}
}

// BlockState names the state of a single block. The empty state is air.
type BlockState string

// BlockAir is the state of an unset position.
const BlockAir BlockState = "air"

// BlockChange is a captured block transaction: the state observed when the
// change was captured and the state it will be set to if accepted.
type BlockChange struct {
	Pos      BlockPos   `json:"pos"`
	Original BlockState `json:"original"`
	Final    BlockState `json:"final"`
}

func (c BlockChange) String() string {
	return fmt.Sprintf("block%s %s->%s", c.Pos, c.Original, c.Final)
}

// Value converts the change into a payload object.
func (c BlockChange) Value() IRObject {
	return IRObject{
		"pos":      c.Pos.Value(),
		"original": IRString(c.Original),
		"final":    IRString(c.Final),
	}
}

// ItemStack is a quantity of a single item type.
type ItemStack struct {
	Type     string `json:"type" yaml:"type"`
	Quantity int64  `json:"quantity" yaml:"quantity"`
}

func (s ItemStack) String() string {
	return fmt.Sprintf("%dx%s", s.Quantity, s.Type)
}

// ItemDrop is an item entity about to be created in the world on behalf of
// an owner.
type ItemDrop struct {
	Owner OwnerID   `json:"owner"`
	Item  ItemStack `json:"item"`
	Pos   BlockPos  `json:"pos"`
}

func (d ItemDrop) String() string {
	return fmt.Sprintf("drop[%s by %s at %s]", d.Item, d.Owner, d.Pos)
}

// Value converts the drop into a payload object.
func (d ItemDrop) Value() IRObject {
	return IRObject{
		"owner":    IRString(d.Owner),
		"item":     IRString(d.Item.Type),
		"quantity": IRInt(d.Item.Quantity),
		"pos":      d.Pos.Value(),
	}
}

// SpawnType is the semantic tag carried by spawn events.
type SpawnType string

func (t SpawnType) String() string { return string(t) }

const (
	SpawnTypeExperience    SpawnType = "experience"
	SpawnTypeDropped       SpawnType = "dropped_item"
	SpawnTypePassive       SpawnType = "passive"
	SpawnTypeBlockSpawning SpawnType = "block_spawning"
	SpawnTypePlugin        SpawnType = "plugin"
	SpawnTypeWorldSpawner  SpawnType = "world_spawner"
	SpawnTypeCustom        SpawnType = "custom"
)
