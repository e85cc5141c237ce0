package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/phasetrack/internal/states"
)

// StateInfo describes one registered state.
type StateInfo struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	Category  string `json:"category"`
	Captures  string `json:"captures"`
	Policies  string `json:"policies"`
	SpawnType string `json:"spawn_type,omitempty"`
	Unwinds   bool   `json:"unwinds"`
}

// NewStatesCommand creates the states command.
func NewStatesCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "states",
		Short: "List the registered phase states",
		Long: `List every built-in phase state with its category, capture set,
policies and spawn type. Scenario files refer to states by these names.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStates(rootOpts, cmd)
		},
	}
}

func listStates() []StateInfo {
	all := states.Default.All()
	out := make([]StateInfo, 0, len(all))
	for _, s := range all {
		out = append(out, StateInfo{
			ID:        int(s.ID()),
			Name:      s.Name(),
			Category:  s.Category().Name(),
			Captures:  s.CaptureSet().String(),
			Policies:  s.Policies().String(),
			SpawnType: string(s.SpawnType()),
			Unwinds:   s.HasUnwind(),
		})
	}
	return out
}

func runStates(opts *RootOptions, cmd *cobra.Command) error {
	infos := listStates()

	if opts.Format == "json" {
		return newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr()).Success(infos)
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCATEGORY\tCAPTURES\tPOLICIES\tSPAWN TYPE")
	for _, s := range infos {
		spawnType := s.SpawnType
		if spawnType == "" {
			spawnType = "-"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n", s.ID, s.Name, s.Category, s.Captures, s.Policies, spawnType)
	}
	return tw.Flush()
}
