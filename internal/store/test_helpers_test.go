package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/phasetrack/internal/event"
	"github.com/roach88/phasetrack/internal/ir"
)

// createTestStore creates a new temporary store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestRun registers a run so events can reference it.
func createTestRun(t *testing.T, s *Store, id string) {
	t.Helper()
	if err := s.BeginRun(context.Background(), id, "test"); err != nil {
		t.Fatalf("BeginRun() failed: %v", err)
	}
}

// createTestRecord creates a drop_item record with minimal required fields.
func createTestRecord(id string, seq int64, cancelled bool) event.Record {
	return event.Record{
		ID:        id,
		Seq:       seq,
		Kind:      event.KindDropItem,
		State:     "block_tick",
		Cancelled: cancelled,
		Cause: ir.IRObject{
			"entries": ir.IRArray{ir.IRString("block(1,2,3)")},
			"context": ir.IRObject{},
		},
		Payload: ir.IRObject{
			"owner": ir.IRString("block(1,2,3)"),
			"drops": ir.IRArray{},
		},
	}
}
