package store

import (
	"context"
	"log/slog"

	"github.com/roach88/phasetrack/internal/event"
)

// Journal is an event listener that records every dispatched event in the
// store. Subscribe it with event.OrderLast so the recorded cancellation
// flag is the chain's final decision.
//
// Journal never cancels or modifies events. Write failures are logged and
// the first one is kept for Err; dispatch continues.
type Journal struct {
	store   *Store
	runID   string
	ctx     context.Context
	written int
	err     error
}

// NewJournal starts a run with the given id and label and returns a
// listener that writes into it.
func NewJournal(ctx context.Context, s *Store, runID, label string) (*Journal, error) {
	if err := s.BeginRun(ctx, runID, label); err != nil {
		return nil, err
	}
	return &Journal{store: s, runID: runID, ctx: ctx}, nil
}

// Handle implements event.Listener.
func (j *Journal) Handle(ev event.Event) {
	rec := event.ToRecord(ev)
	if err := j.store.WriteEvent(j.ctx, j.runID, rec); err != nil {
		slog.Error("journal write failed",
			"run", j.runID,
			"event_id", rec.ID,
			"kind", rec.Kind,
			"error", err,
		)
		if j.err == nil {
			j.err = err
		}
		return
	}
	j.written++
}

// RunID returns the run this journal writes into.
func (j *Journal) RunID() string { return j.runID }

// Written returns how many events were recorded.
func (j *Journal) Written() int { return j.written }

// Err returns the first write failure, if any.
func (j *Journal) Err() error { return j.err }
