package cli

import (
	"context"
	"fmt"
	"reflect"

	"github.com/spf13/cobra"

	"github.com/roach88/phasetrack/internal/ir"
	"github.com/roach88/phasetrack/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	RunID    string // optional - specific run only
}

// DigestMismatch names a journaled event whose stored digest differs from
// the one recomputed from its row.
type DigestMismatch struct {
	EventID  string `json:"event_id"`
	Seq      int64  `json:"seq"`
	Stored   string `json:"stored"`
	Computed string `json:"computed"`
}

// ReplayRunResult holds the replay result for a single run.
type ReplayRunResult struct {
	RunID         string           `json:"run_id"`
	Label         string           `json:"label"`
	Events        int              `json:"events"`
	Cancelled     int              `json:"cancelled"`
	Deterministic bool             `json:"deterministic"`
	Mismatches    []DigestMismatch `json:"mismatches,omitempty"`
}

// OK reports whether the run replayed cleanly.
func (r ReplayRunResult) OK() bool {
	return r.Deterministic && len(r.Mismatches) == 0
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Runs      []ReplayRunResult `json:"runs"`
	TotalRuns int               `json:"total_runs"`
	AllValid  bool              `json:"all_valid"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Re-read the journal and verify event digests",
		Long: `Re-read every journaled run and verify it.

Each run is read twice and the two reads must agree, which checks that the
journal's ordering is deterministic. Every event's digest is recomputed from
its kind, state, payload and seq and compared with the stored one.

Exit codes:
  0 - All runs verified
  1 - Verification failed (non-deterministic order or digest mismatch)
  2 - Command error (database not found, etc.)

Examples:
  phasetrack replay --db ./journal.db
  phasetrack replay --db ./journal.db --run 0190c0de-...
  phasetrack replay --db ./journal.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "replay specific run only")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
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
	if opts.RunID != "" {
		var selected []store.Run
		for _, r := range runs {
			if r.ID == opts.RunID {
				selected = append(selected, r)
			}
		}
		if len(selected) == 0 {
			msg := fmt.Sprintf("run not found: %s", opts.RunID)
			_ = formatter.Error(ErrCodeUnknownRun, msg, nil)
			return NewExitError(ExitCommandError, msg)
		}
		runs = selected
	}

	result := ReplayResult{
		Runs:      make([]ReplayRunResult, 0, len(runs)),
		TotalRuns: len(runs),
		AllValid:  true,
	}

	for _, run := range runs {
		formatter.VerboseLog("Replaying run %s (%d events)", run.ID, run.Events)
		runResult, err := replayAndVerifyRun(ctx, st, run)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to replay run %s", run.ID), err)
		}
		result.Runs = append(result.Runs, runResult)
		if !runResult.OK() {
			result.AllValid = false
		}
	}

	var failure error
	if !result.AllValid {
		// Verification failure = exit code 1
		failure = NewExitError(ExitFailure, "journal verification failed")
	}

	if opts.Format == "json" {
		code, msg := "", ""
		if failure != nil {
			code, msg = ErrCodeDigest, failure.Error()
		}
		if err := formatter.Respond(result, code, msg); err != nil {
			return err
		}
		return failure
	}

	outputReplayText(cmd, result, opts.Verbose)
	return failure
}

// replayAndVerifyRun reads a run twice and recomputes every digest.
func replayAndVerifyRun(ctx context.Context, st *store.Store, run store.Run) (ReplayRunResult, error) {
	first, err := st.ReadEvents(ctx, run.ID)
	if err != nil {
		return ReplayRunResult{}, fmt.Errorf("first read failed: %w", err)
	}
	second, err := st.ReadEvents(ctx, run.ID)
	if err != nil {
		return ReplayRunResult{}, fmt.Errorf("second read failed: %w", err)
	}

	result := ReplayRunResult{
		RunID:         run.ID,
		Label:         run.Label,
		Events:        len(first),
		Deterministic: reflect.DeepEqual(first, second),
	}

	for _, e := range first {
		if e.Cancelled {
			result.Cancelled++
		}
		computed, err := ir.EventDigest(string(e.Kind), e.State, e.Payload, e.Seq)
		if err != nil {
			return ReplayRunResult{}, fmt.Errorf("digest %s: %w", e.ID, err)
		}
		if computed != e.Digest {
			result.Mismatches = append(result.Mismatches, DigestMismatch{
				EventID:  e.ID,
				Seq:      e.Seq,
				Stored:   e.Digest,
				Computed: computed,
			})
		}
	}
	return result, nil
}

// outputReplayText outputs the replay result as text.
func outputReplayText(cmd *cobra.Command, result ReplayResult, verbose bool) {
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "Replay Summary: %d run(s)\n", result.TotalRuns)
	fmt.Fprintln(w)

	for _, run := range result.Runs {
		status := "✓"
		if !run.OK() {
			status = "✗"
		}

		fmt.Fprintf(w, "%s Run: %s (%s)\n", status, run.RunID, run.Label)
		fmt.Fprintf(w, "  Events: %d, cancelled: %d\n", run.Events, run.Cancelled)

		if !run.Deterministic {
			fmt.Fprintln(w, "  Warning: Non-deterministic read order detected!")
		}
		for _, m := range run.Mismatches {
			fmt.Fprintf(w, "  Digest mismatch at seq %d (%s)\n", m.Seq, m.EventID)
			if verbose {
				fmt.Fprintf(w, "    stored:   %s\n", m.Stored)
				fmt.Fprintf(w, "    computed: %s\n", m.Computed)
			}
		}
		fmt.Fprintln(w)
	}

	if result.AllValid {
		fmt.Fprintln(w, "✓ All runs verified")
		return
	}
	fmt.Fprintln(w, "✗ Journal verification failed")
}
