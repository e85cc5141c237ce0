package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/phasetrack/internal/ir"
	"github.com/roach88/phasetrack/internal/query"
	"github.com/roach88/phasetrack/internal/store"
)

func TestTraceMissingDatabaseFlag(t *testing.T) {
	_, err := execute(NewTraceCommand(&RootOptions{Format: "text"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
	assert.Contains(t, err.Error(), "db")
}

func TestTraceNonExistentDatabase(t *testing.T) {
	_, err := execute(NewTraceCommand(&RootOptions{Format: "text"}), "--db", "/nonexistent/dir/journal.db")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to open database")
}

func TestTraceListRunsEmpty(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "empty.db")
	out, err := execute(NewTraceCommand(&RootOptions{Format: "text"}), "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "No runs found.")
}

func TestTraceListRuns(t *testing.T) {
	dbPath := seedJournal(t, "run-1")

	out, err := execute(NewTraceCommand(&RootOptions{Format: "text"}), "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Runs (1):")
	assert.Contains(t, out, "run-1")
	assert.Contains(t, out, "2 events")
}

func TestTraceWithRun(t *testing.T) {
	dbPath := seedJournal(t, "run-1")

	out, err := execute(NewTraceCommand(&RootOptions{Format: "text"}), "--db", dbPath, "--run", "run-1")
	require.NoError(t, err)
	assert.Contains(t, out, "Run: run-1 (seeded)")
	assert.Contains(t, out, "[1]   spawn_entity")
	assert.Contains(t, out, "[2] x drop_item")
	assert.Contains(t, out, "cause: entity[mob/z-1]")
	assert.Contains(t, out, "events: 2, cancelled: 1, last seq: 2")
}

func TestTraceWithRunJSON(t *testing.T) {
	dbPath := seedJournal(t, "run-1")

	out, err := execute(NewTraceCommand(&RootOptions{Format: "json"}), "--db", dbPath, "--run", "run-1")
	require.NoError(t, err)

	var resp struct {
		Status string      `json:"status"`
		Data   TraceResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "run-1", resp.Data.Run.ID)
	require.Len(t, resp.Data.Timeline, 2)
	assert.Equal(t, "ev-1", resp.Data.Timeline[0].ID)
	assert.True(t, resp.Data.Timeline[1].Cancelled)
	assert.NotEmpty(t, resp.Data.Timeline[0].Digest)
	assert.Equal(t, TraceStats{TotalEvents: 2, Cancelled: 1, LastSeq: 2}, resp.Data.Stats)
}

func TestTraceWithKindFilter(t *testing.T) {
	dbPath := seedJournal(t, "run-1")

	out, err := execute(NewTraceCommand(&RootOptions{Format: "json"}), "--db", dbPath, "--run", "run-1", "--kind", "drop_item")
	require.NoError(t, err)

	var resp struct {
		Data TraceResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data.Timeline, 1)
	assert.Equal(t, "drop_item", resp.Data.Timeline[0].Kind)
	assert.Len(t, resp.Data.Summary, 2, "summary covers the whole run")
}

func TestTraceUnknownRun(t *testing.T) {
	dbPath := seedJournal(t, "run-1")

	out, err := execute(NewTraceCommand(&RootOptions{Format: "text"}), "--db", dbPath, "--run", "run-9")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, ErrCodeUnknownRun)
}

func TestTraceStateAndCancelledFilters(t *testing.T) {
	dbPath := seedJournal(t, "run-1")

	out, err := execute(NewTraceCommand(&RootOptions{Format: "json"}),
		"--db", dbPath, "--run", "run-1", "--state", "entity_death", "--cancelled")
	require.NoError(t, err)

	var resp struct {
		Data TraceResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data.Timeline, 1)
	assert.Equal(t, "ev-2", resp.Data.Timeline[0].ID)

	out, err = execute(NewTraceCommand(&RootOptions{Format: "text"}),
		"--db", dbPath, "--run", "run-1", "--state", "block_tick")
	require.NoError(t, err)
	assert.Contains(t, out, "(no events)")
}

func TestTraceFilter(t *testing.T) {
	assert.Nil(t, traceFilter(&TraceOptions{}))

	p := traceFilter(&TraceOptions{Kind: "drop_item", Cancelled: true})
	assert.Equal(t, "kind=drop_item AND cancelled=true", query.Describe(p))
}

func TestBuildTimeline(t *testing.T) {
	entries := []store.Entry{
		{Digest: "d1"},
		{Digest: "d2"},
	}
	entries[0].ID, entries[0].Seq, entries[0].Kind = "a", 1, "spawn_entity"
	entries[1].ID, entries[1].Seq, entries[1].Kind = "b", 2, "drop_item"

	timeline := buildTimeline(entries)
	require.Len(t, timeline, 2)
	assert.Equal(t, "a", timeline[0].ID)
	assert.Equal(t, "d2", timeline[1].Digest)
	assert.Equal(t, "-", timeline[0].Cause)

	assert.NotNil(t, buildTimeline(nil))
}

func TestDescribeCause(t *testing.T) {
	cause := ir.IRObject{
		"entries": ir.IRArray{ir.IRString("(1,64,1)"), ir.IRString("entity[player/p-1]")},
		"context": ir.IRObject{},
	}
	assert.Equal(t, "(1,64,1) <- entity[player/p-1]", describeCause(cause))
	assert.Equal(t, "-", describeCause(nil))
}
