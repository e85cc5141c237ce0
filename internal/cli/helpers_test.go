package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/roach88/phasetrack/internal/event"
	"github.com/roach88/phasetrack/internal/ir"
	"github.com/roach88/phasetrack/internal/store"
)

const deathScenario = `name: zombie_death
description: a zombie drops a bone that a listener cancels
world:
  entities:
    - id: z-1
      kind: mob
listeners:
  - cancel:
      kind: drop_item
steps:
  - switch: entity_death
    source:
      entity: z-1
  - spawn:
      id: xp-1
      kind: experience_orb
  - drop:
      owner: z-1
      item: bone
      quantity: 2
  - complete: entity_death
assertions:
  - type: trace_count
    count: 2
`

const failingScenario = `name: always_fails
description: expects an event that never happens
steps:
  - switch: block_tick
  - complete: block_tick
assertions:
  - type: trace_contains
    kind: spawn_entity
`

// writeFile writes content under dir and returns the path.
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// execute runs cmd with args and returns stdout and the error.
func execute(cmd *cobra.Command, args ...string) (string, error) {
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

// seedJournal creates a journal with one run holding an accepted spawn and
// a cancelled drop.
func seedJournal(t *testing.T, runID string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "journal.db")
	st, err := store.Open(path)
	require.NoError(t, err)
	defer st.Close()

	ctx := context.Background()
	require.NoError(t, st.BeginRun(ctx, runID, "seeded"))
	for _, rec := range []event.Record{
		{
			ID:    "ev-1",
			Seq:   1,
			Kind:  event.KindSpawnEntity,
			State: "entity_death",
			Cause: ir.IRObject{
				"entries": ir.IRArray{ir.IRString("entity[mob/z-1]")},
				"context": ir.IRObject{"phase": ir.IRString("entity_death")},
			},
			Payload: ir.IRObject{"spawn_type": ir.IRString("experience"), "entities": ir.IRArray{}},
		},
		{
			ID:        "ev-2",
			Seq:       2,
			Kind:      event.KindDropItem,
			State:     "entity_death",
			Cancelled: true,
			Cause: ir.IRObject{
				"entries": ir.IRArray{ir.IRString("entity[mob/z-1]")},
				"context": ir.IRObject{"phase": ir.IRString("entity_death")},
			},
			Payload: ir.IRObject{"owner": ir.IRString("z-1"), "drops": ir.IRArray{}},
		},
	} {
		require.NoError(t, st.WriteEvent(ctx, runID, rec))
	}
	return path
}
