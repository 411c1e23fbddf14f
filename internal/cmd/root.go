package cmd

import (
	"github.com/spf13/cobra"
)

// Version is injected at build time via -ldflags
var Version = "dev"

// NewRootCommand creates and returns the root cobra command for trialctl
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trialctl",
		Short: "Timed robotic manipulation trial runner",
		Long: `trialctl runs one timed pushing trial against a persisted reference plan.

It loads the plan, optionally resets the robot to the plan's initial pose,
wires the simulated or hardware station, records cameras when configured,
executes until the deadline and writes the trial recording into a
timestamped run directory. Ctrl-C interrupts the trial and saves what was
collected before recordings are stopped.`,
		Version: Version,
		// Silence usage on errors to avoid duplicate help text
		SilenceUsage: true,
	}

	cmd.AddCommand(NewRunCommand())
	cmd.AddCommand(NewValidateCommand())
	cmd.AddCommand(NewHistoryCommand())

	return cmd
}
