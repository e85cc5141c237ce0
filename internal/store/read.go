package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/phasetrack/internal/event"
	"github.com/roach88/phasetrack/internal/ir"
	"github.com/roach88/phasetrack/internal/query"
)

// Run describes one journal run.
type Run struct {
	ID             string `json:"id"`
	Label          string `json:"label"`
	EngineVersion  string `json:"engine_version"`
	PayloadVersion string `json:"payload_version"`
	Events         int    `json:"events"`
}

// KindSummary counts the events of one kind in a run.
type KindSummary struct {
	Kind      event.Kind `json:"kind"`
	Total     int        `json:"total"`
	Cancelled int        `json:"cancelled"`
}

// Entry is a journaled event together with its stored digest.
type Entry struct {
	event.Record
	Digest string `json:"digest"`
}

// entryColumns are the events columns scanEntry expects, in order.
var entryColumns = []string{"id", "seq", "kind", "state", "cancelled", "cause", "payload", "digest"}

// ReadEvents returns every event of a run.
// Results are ordered deterministically: ORDER BY seq ASC, id COLLATE BINARY ASC.
//
// Returns an empty slice (not nil) if the run has no events.
func (s *Store) ReadEvents(ctx context.Context, runID string) ([]Entry, error) {
	return s.FindEvents(ctx, runID, nil)
}

// FindEvents returns the events of a run that match filter, in the same
// order as ReadEvents. A nil filter matches every event.
func (s *Store) FindEvents(ctx context.Context, runID string, filter query.Predicate) ([]Entry, error) {
	sqlText, params, err := query.Compile(query.Select{
		From:    "events",
		Columns: entryColumns,
		Filter: query.And{Predicates: []query.Predicate{
			query.Equals{Field: "run_id", Value: ir.IRString(runID)},
			filter,
		}},
		OrderBy: []string{"seq"},
	})
	if err != nil {
		return nil, fmt.Errorf("find events: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, sqlText, params...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return entries, nil
}

// ReadEvent retrieves a single event by ID.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadEvent(ctx context.Context, id string) (Entry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, seq, kind, state, cancelled, cause, payload, digest
		FROM events
		WHERE id = ?
	`, id)
	return scanEntry(row)
}

// ListRuns returns all runs with their event counts, ordered by id.
func (s *Store) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.label, r.engine_version, r.payload_version, COUNT(e.id)
		FROM runs r
		LEFT JOIN events e ON e.run_id = r.id
		GROUP BY r.id
		ORDER BY r.id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.Label, &r.EngineVersion, &r.PayloadVersion, &r.Events); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// Summarize counts a run's events per kind, ordered by kind.
func (s *Store) Summarize(ctx context.Context, runID string) ([]KindSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, COUNT(*), SUM(cancelled)
		FROM events
		WHERE run_id = ?
		GROUP BY kind
		ORDER BY kind COLLATE BINARY ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query summary: %w", err)
	}
	defer rows.Close()

	out := []KindSummary{}
	for rows.Next() {
		var ks KindSummary
		var kind string
		if err := rows.Scan(&kind, &ks.Total, &ks.Cancelled); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		ks.Kind = event.Kind(kind)
		out = append(out, ks)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate summary: %w", err)
	}
	return out, nil
}

// GetLastSeq returns the highest seq written for a run, or 0 if it has none.
func (s *Store) GetLastSeq(ctx context.Context, runID string) (int64, error) {
	var seq sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT MAX(seq) FROM events WHERE run_id = ?
	`, runID).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("get last seq: %w", err)
	}
	return seq.Int64, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (Entry, error) {
	var (
		e           Entry
		kind        string
		cancelled   int
		causeJSON   string
		payloadJSON string
	)
	if err := row.Scan(&e.ID, &e.Seq, &kind, &e.State, &cancelled, &causeJSON, &payloadJSON, &e.Digest); err != nil {
		if err == sql.ErrNoRows {
			return Entry{}, err
		}
		return Entry{}, fmt.Errorf("scan event: %w", err)
	}
	e.Kind = event.Kind(kind)
	e.Cancelled = cancelled != 0

	var err error
	if e.Cause, err = ir.UnmarshalIRObject([]byte(causeJSON)); err != nil {
		return Entry{}, fmt.Errorf("unmarshal cause: %w", err)
	}
	if e.Payload, err = ir.UnmarshalIRObject([]byte(payloadJSON)); err != nil {
		return Entry{}, fmt.Errorf("unmarshal payload: %w", err)
	}
	return e, nil
}
