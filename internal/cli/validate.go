package cli

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/phasetrack/internal/config"
	"github.com/roach88/phasetrack/internal/harness"
)

// ValidationError describes one file that failed validation.
type ValidationError struct {
	Path    string `json:"path"`
	Kind    string `json:"kind"` // "scenario" or "config"
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid   bool              `json:"valid"`
	Checked int               `json:"checked"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <file>...",
		Short: "Validate scenario and config files without running them",
		Long: `Validate scenario files (.yaml, .yml) and configuration files (.cue).

Scenarios are parsed strictly: unknown fields, unknown state names and
malformed steps or assertions are reported. Config files are unified with
the built-in schema, with PHASETRACK_* environment overrides applied.

Examples:
  phasetrack validate ./scenarios/entity_death.yaml
  phasetrack validate ./phasetrack.cue ./scenarios/*.yaml --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, paths []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	result := ValidationResult{Valid: true}
	for _, path := range paths {
		formatter.VerboseLog("Validating %s", path)
		if verr := validateFile(path); verr != nil {
			result.Valid = false
			result.Errors = append(result.Errors, *verr)
		}
		result.Checked++
	}

	if opts.Format == "json" {
		code, msg := "", ""
		if !result.Valid {
			code, msg = ErrCodeInvalid, fmt.Sprintf("%d of %d file(s) invalid", len(result.Errors), result.Checked)
		}
		if err := formatter.Respond(result, code, msg); err != nil {
			return err
		}
	} else {
		w := cmd.OutOrStdout()
		for _, e := range result.Errors {
			fmt.Fprintf(w, "✗ %s (%s)\n  %s\n", e.Path, e.Kind, e.Message)
		}
		if result.Valid {
			fmt.Fprintf(w, "✓ %d file(s) valid\n", result.Checked)
		}
	}

	if !result.Valid {
		return NewExitError(ExitFailure, fmt.Sprintf("%d file(s) invalid", len(result.Errors)))
	}
	return nil
}

// validateFile checks one file by extension. Returns nil when it is valid.
func validateFile(path string) *ValidationError {
	switch filepath.Ext(path) {
	case ".cue":
		if _, err := config.Load(path); err != nil {
			code := ErrCodeGeneric
			var cerr *config.Error
			if errors.As(err, &cerr) {
				code = ErrCodeConfig
			}
			return &ValidationError{Path: path, Kind: "config", Code: code, Message: err.Error()}
		}
		return nil
	case ".yaml", ".yml":
		if _, err := harness.LoadScenario(path); err != nil {
			return &ValidationError{Path: path, Kind: "scenario", Code: ErrCodeInvalid, Message: err.Error()}
		}
		return nil
	default:
		return &ValidationError{
			Path:    path,
			Kind:    "unknown",
			Code:    ErrCodeInvalid,
			Message: "unsupported file type: expected .yaml, .yml or .cue",
		}
	}
}
