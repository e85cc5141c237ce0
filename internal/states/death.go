package states

import (
	"log/slog"

	"github.com/roach88/phasetrack/internal/cause"
	"github.com/roach88/phasetrack/internal/engine"
	"github.com/roach88/phasetrack/internal/event"
	"github.com/roach88/phasetrack/internal/ir"
)

// unwindEntityDeath replays what a dying entity left behind.
//
// Spawns are split into experience orbs and everything else, each posted
// as its own SpawnEntity event. Drops are posted per owner. The dying
// entity's own drops are built under the phase's cause; drops contributed
// by any other owner are built inside a temporary frame that carries that
// owner as the proximate cause, and the frame is closed as soon as the
// event is built, before it is posted.
func unwindEntityDeath(t *engine.Tracker, c *engine.Context) error {
	dying, ok := c.SourceEntity()
	if !ok {
		dropped := discardAll(c)
		err := engine.NewMissingAttributionError(c.State().Name(), "dying entity")
		slog.Error("entity death without a dying entity",
			"state", c.State().Name(),
			"dropped", dropped,
			"error", err,
		)
		return err
	}

	causes := t.Causes()
	causes.AddContext(cause.KeyDyingEntity, dying)

	c.Spawns().DrainIfNotEmpty(func(entities []ir.Entity) {
		var experience, other []ir.Entity
		for _, e := range entities {
			if e.IsExperience() {
				experience = append(experience, e)
			} else {
				other = append(other, e)
			}
		}
		if len(experience) > 0 {
			postSpawns(t, c, ir.SpawnTypeExperience, experience)
		}
		if len(other) > 0 {
			postSpawns(t, c, c.State().SpawnType(), other)
		}
	})

	c.Drops().DrainIfNotEmpty(func(owner ir.OwnerID, drops []ir.ItemDrop) {
		ev := &event.DropItem{Owner: owner, Drops: drops}
		if owner == dying.Owner() {
			t.Stamp(c, ev)
		} else {
			frame := causes.PushCauseFrame()
			causes.PushCause(owner)
			causes.AddContext(cause.KeyDropOwner, owner)
			t.Stamp(c, ev)
			if err := causes.PopCauseFrame(frame); err != nil {
				slog.Warn("drop owner frame imbalance",
					"owner", owner,
					"error", err,
				)
			}
		}
		settleDrops(t, c, ev)
	})
	return nil
}
