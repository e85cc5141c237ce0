// Command phasetrack runs phase-tracking scenarios and inspects their event
// journals.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/phasetrack/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
