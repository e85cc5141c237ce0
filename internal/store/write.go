package store

import (
	"context"
	"fmt"

	"github.com/roach88/phasetrack/internal/event"
	"github.com/roach88/phasetrack/internal/ir"
)

// BeginRun records a new journal run. Every event written afterwards with
// the returned id belongs to that run.
func (s *Store) BeginRun(ctx context.Context, id, label string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, label, engine_version, payload_version)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, id, label, ir.EngineVersion, ir.PayloadVersion)
	if err != nil {
		return fmt.Errorf("begin run: %w", err)
	}
	return nil
}

// WriteEvent inserts a dispatched event into the journal.
// Uses ON CONFLICT(id) DO NOTHING for idempotency - duplicate IDs are silently ignored.
//
// Cause and payload are serialized to canonical JSON per RFC 8785, and the
// row carries the event's content digest.
//
// Note: The run referenced by runID must exist (foreign key constraint).
func (s *Store) WriteEvent(ctx context.Context, runID string, rec event.Record) error {
	causeJSON, err := marshalObject(rec.Cause)
	if err != nil {
		return fmt.Errorf("write event: cause: %w", err)
	}
	payloadJSON, err := marshalObject(rec.Payload)
	if err != nil {
		return fmt.Errorf("write event: payload: %w", err)
	}
	digest, err := ir.EventDigest(string(rec.Kind), rec.State, rec.Payload, rec.Seq)
	if err != nil {
		return fmt.Errorf("write event: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO events
		(id, run_id, seq, kind, state, cancelled, cause, payload, digest)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		rec.ID,
		runID,
		rec.Seq,
		string(rec.Kind),
		rec.State,
		boolToInt(rec.Cancelled),
		causeJSON,
		payloadJSON,
		digest,
	)
	if err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	return nil
}

// marshalObject serializes obj to canonical JSON. A nil object is stored as {}.
func marshalObject(obj ir.IRObject) (string, error) {
	if obj == nil {
		obj = ir.IRObject{}
	}
	b, err := ir.MarshalCanonical(obj)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
