package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/phasetrack/internal/ir"
	"github.com/roach88/phasetrack/internal/query"
	"github.com/roach88/phasetrack/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	RunID    string // optional - without it runs are listed
	Kind      string // optional - filter to one event kind
	State     string // optional - filter to one phase state
	Cancelled bool   // only events the listener chain cancelled
}

// TraceEvent is one journaled event in the timeline.
type TraceEvent struct {
	Seq       int64  `json:"seq"`
	ID        string `json:"id"`
	Kind      string `json:"kind"`
	State     string `json:"state"`
	Cancelled bool   `json:"cancelled"`
	Cause     string `json:"cause"`
	Digest    string `json:"digest"`
}

// TraceResult holds the trace of one run.
type TraceResult struct {
	Run      store.Run           `json:"run"`
	Timeline []TraceEvent        `json:"timeline"`
	Summary  []store.KindSummary `json:"summary"`
	Stats    TraceStats          `json:"stats"`
}

// TraceStats holds summary statistics for the run.
type TraceStats struct {
	TotalEvents int   `json:"total_events"`
	Cancelled   int   `json:"cancelled"`
	LastSeq     int64 `json:"last_seq"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Inspect the event journal",
		Long: `Inspect runs recorded in an event journal.

Without --run, lists every run with its event count. With --run, shows the
run's events in seq order with their cause and final cancellation, followed
by per-kind totals.

Examples:
  phasetrack trace --db ./journal.db
  phasetrack trace --db ./journal.db --run 0190c0de-...
  phasetrack trace --db ./journal.db --run 0190c0de-... --kind drop_item
  phasetrack trace --db ./journal.db --run 0190c0de-... --state entity_death --cancelled
  phasetrack trace --db ./journal.db --run 0190c0de-... --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "run id to trace")
	cmd.Flags().StringVar(&opts.Kind, "kind", "", "filter to one event kind")
	cmd.Flags().StringVar(&opts.State, "state", "", "filter to events posted by one phase state")
	cmd.Flags().BoolVar(&opts.Cancelled, "cancelled", false, "show only cancelled events")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	runs, err := st.ListRuns(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list runs", err)
	}

	if opts.RunID == "" {
		if opts.Format == "json" {
			return formatter.Success(runs)
		}
		printRuns(cmd.OutOrStdout(), runs)
		return nil
	}

	var run *store.Run
	for i := range runs {
		if runs[i].ID == opts.RunID {
			run = &runs[i]
			break
		}
	}
	if run == nil {
		msg := fmt.Sprintf("run not found: %s", opts.RunID)
		_ = formatter.Error(ErrCodeUnknownRun, msg, nil)
		return NewExitError(ExitCommandError, msg)
	}

	entries, err := st.FindEvents(ctx, run.ID, traceFilter(opts))
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read events", err)
	}
	summary, err := st.Summarize(ctx, run.ID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to summarize run", err)
	}
	lastSeq, err := st.GetLastSeq(ctx, run.ID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read last seq", err)
	}

	result := TraceResult{
		Run:      *run,
		Timeline: buildTimeline(entries),
		Summary:  summary,
		Stats:    TraceStats{LastSeq: lastSeq},
	}
	for _, ks := range summary {
		result.Stats.TotalEvents += ks.Total
		result.Stats.Cancelled += ks.Cancelled
	}

	if opts.Format == "json" {
		return formatter.Success(result)
	}
	printTrace(cmd.OutOrStdout(), result)
	return nil
}

// traceFilter turns the filter flags into a journal predicate.
func traceFilter(opts *TraceOptions) query.Predicate {
	var preds []query.Predicate
	if opts.Kind != "" {
		preds = append(preds, query.Equals{Field: "kind", Value: ir.IRString(opts.Kind)})
	}
	if opts.State != "" {
		preds = append(preds, query.Equals{Field: "state", Value: ir.IRString(opts.State)})
	}
	if opts.Cancelled {
		preds = append(preds, query.Equals{Field: "cancelled", Value: ir.IRBool(true)})
	}
	if len(preds) == 0 {
		return nil
	}
	return query.And{Predicates: preds}
}

// buildTimeline converts journal entries to timeline events.
func buildTimeline(entries []store.Entry) []TraceEvent {
	timeline := []TraceEvent{}
	for _, e := range entries {
		timeline = append(timeline, TraceEvent{
			Seq:       e.Seq,
			ID:        e.ID,
			Kind:      string(e.Kind),
			State:     e.State,
			Cancelled: e.Cancelled,
			Cause:     describeCause(e.Cause),
			Digest:    e.Digest,
		})
	}
	return timeline
}

// describeCause joins the cause entries with " <- ".
func describeCause(cause ir.IRObject) string {
	entries, _ := cause["entries"].(ir.IRArray)
	parts := make([]string, 0, len(entries))
	for _, v := range entries {
		if s, ok := v.(ir.IRString); ok {
			parts = append(parts, string(s))
		}
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, " <- ")
}

func printRuns(w io.Writer, runs []store.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs found.")
		return
	}
	fmt.Fprintf(w, "Runs (%d):\n", len(runs))
	for _, r := range runs {
		fmt.Fprintf(w, "  %s  %-24s %d events (engine %s)\n", r.ID, r.Label, r.Events, r.EngineVersion)
	}
}

func printTrace(w io.Writer, result TraceResult) {
	fmt.Fprintf(w, "Run: %s (%s)\n", result.Run.ID, result.Run.Label)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Timeline:")
	if len(result.Timeline) == 0 {
		fmt.Fprintln(w, "  (no events)")
	}
	for _, e := range result.Timeline {
		mark := " "
		if e.Cancelled {
			mark = "x"
		}
		fmt.Fprintf(w, "  [%d] %s %-13s %-18s cause: %s\n", e.Seq, mark, e.Kind, e.State, e.Cause)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Summary:")
	for _, ks := range result.Summary {
		fmt.Fprintf(w, "  %-13s %d total, %d cancelled\n", ks.Kind, ks.Total, ks.Cancelled)
	}
	fmt.Fprintf(w, "  events: %d, cancelled: %d, last seq: %d\n",
		result.Stats.TotalEvents, result.Stats.Cancelled, result.Stats.LastSeq)
}
