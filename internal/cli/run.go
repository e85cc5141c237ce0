package cli

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/roach88/phasetrack/internal/event"
	"github.com/roach88/phasetrack/internal/harness"
	"github.com/roach88/phasetrack/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Journal string

	// RunID overrides the generated run id (for testing).
	RunID string
}

// RunResult is the output of the run command.
type RunResult struct {
	Scenario    string                    `json:"scenario"`
	Pass        bool                      `json:"pass"`
	RunID       string                    `json:"run_id,omitempty"`
	Events      []event.Record            `json:"events"`
	Completions []harness.CompletionTrace `json:"completions"`
	Errors      []string                  `json:"errors,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenario>",
		Short: "Run one scenario and print its trace",
		Long: `Run a scenario file against a fresh tracker and print every dispatched
event with its final cancellation decision.

With --journal (or journal.path in the config) the events are also written
to a SQLite journal under a new run id.

Exit codes:
  0 - Scenario passed
  1 - Scenario failed
  2 - Command error (invalid paths, etc.)

Examples:
  phasetrack run ./scenarios/entity_death.yaml
  phasetrack run ./scenarios/entity_death.yaml --journal ./journal.db
  phasetrack run ./scenarios/entity_death.yaml --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarioFile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Journal, "journal", "", "path to SQLite journal (overrides journal.path)")

	return cmd
}

func runScenarioFile(opts *RunOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	scenario, err := harness.LoadScenario(path)
	if err != nil {
		_ = formatter.Error(ErrCodeInvalid, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load scenario", err)
	}

	runOpts := harness.Options{
		TrackerOptions: opts.config().TrackerOptions(),
		Logger:         slog.Default(),
	}

	journalPath := opts.Journal
	if journalPath == "" {
		journalPath = opts.config().Journal.Path
	}
	if journalPath != "" {
		st, err := store.Open(journalPath)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open journal", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				slog.Error("error closing journal", "error", closeErr)
			}
		}()

		runID := opts.RunID
		if runID == "" {
			id, err := uuid.NewV7()
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to generate run id", err)
			}
			runID = id.String()
		}
		runOpts.Journal = st
		runOpts.RunID = runID
		formatter.VerboseLog("Journaling to %s as run %s", journalPath, runID)
	}

	result, err := harness.RunWithOptions(scenario, runOpts)
	if err != nil {
		return WrapExitError(ExitCommandError, "scenario execution failed", err)
	}

	out := RunResult{
		Scenario:    scenario.Name,
		Pass:        result.Pass,
		RunID:       runOpts.RunID,
		Events:      result.Trace,
		Completions: result.Completions,
		Errors:      result.Errors,
	}

	if opts.Format == "json" {
		code, msg := "", ""
		if !result.Pass {
			code, msg = ErrCodeTestFailed, fmt.Sprintf("scenario %s failed", scenario.Name)
		}
		if err := formatter.Respond(out, code, msg); err != nil {
			return err
		}
	} else {
		printRunText(cmd, out)
	}

	if !result.Pass {
		return NewExitError(ExitFailure, fmt.Sprintf("scenario %s failed", scenario.Name))
	}
	return nil
}

func printRunText(cmd *cobra.Command, out RunResult) {
	w := cmd.OutOrStdout()

	for _, rec := range out.Events {
		mark := "accepted"
		if rec.Cancelled {
			mark = "cancelled"
		}
		fmt.Fprintf(w, "[%d] %-13s %-18s %s\n", rec.Seq, rec.Kind, rec.State, mark)
	}
	for _, c := range out.Completions {
		fmt.Fprintf(w, "complete %s: posted=%d cancelled=%d force_popped=%d", c.State, c.Posted, c.Cancelled, c.ForcePopped)
		if len(c.Flags) > 0 {
			fmt.Fprintf(w, " flags=%v", c.Flags)
		}
		if c.Error != "" {
			fmt.Fprintf(w, " error=%s", c.Error)
		}
		fmt.Fprintln(w)
	}
	if out.RunID != "" {
		fmt.Fprintf(w, "journal run: %s\n", out.RunID)
	}

	if out.Pass {
		fmt.Fprintf(w, "✓ %s\n", out.Scenario)
		return
	}
	fmt.Fprintf(w, "✗ %s\n", out.Scenario)
	for _, e := range out.Errors {
		fmt.Fprintf(w, "  %s\n", e)
	}
}
