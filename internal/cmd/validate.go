package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/harrison/trialctl/internal/artifact"
	"github.com/harrison/trialctl/internal/config"
	"github.com/harrison/trialctl/internal/recording"
	"github.com/harrison/trialctl/internal/trajectory"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

// NewValidateCommand creates and returns the validate subcommand
func NewValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [trajectory-file]",
		Short: "Validate the configuration and reference plan without running",
		Long: `Load the configuration and the reference plan and report what a run
would do:
  - Execution deadline (override, or plan length plus initial delay)
  - Recording artifact name, or that no data would be saved
  - Whether the robot would be reset first
  - Which cameras would record, and the recorder commands

Nothing is wired, started or written.

Exit code: 0 if valid, 1 if errors found`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			overrides, err := overridesFromFlags(cmd, args)
			if err != nil {
				return err
			}
			cfg.MergeWithFlags(overrides)
			return validateWithOutput(cfg, cmd.OutOrStdout())
		},
		SilenceUsage: true,
	}

	cmd.Flags().String("config", "", "Path to config file (default: .trialctl/config.yaml)")
	cmd.Flags().String("trajectory", "", "Reference plan file (overrides trajectory_file)")
	cmd.Flags().String("override-duration", "", "Execution deadline to check instead of the computed one")
	cmd.Flags().Bool("use-hardware", false, "Validate for the hardware station")
	cmd.Flags().Bool("closed-loop", false, "Validate a closed-loop run")
	cmd.Flags().Bool("open-loop", false, "Validate an open-loop run")

	return cmd
}

// validateWithOutput checks cfg and its plan and prints the resolved trial.
func validateWithOutput(cfg *config.Config, output io.Writer) error {
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(output, "✗ Configuration invalid: %v\n", err)
		return fmt.Errorf("invalid configuration: %w", err)
	}

	traj, err := trajectory.Load(cfg.TrajectoryFile)
	if err != nil {
		fmt.Fprintf(output, "✗ %v\n", err)
		return fmt.Errorf("invalid trajectory: %w", err)
	}

	rc := cfg.RunConfig()
	name := cfg.TrajectoryName
	if name == "" {
		name = traj.Name
	}

	fmt.Fprintf(output, "✓ %s is valid\n\n", cfg.TrajectoryFile)
	fmt.Fprintf(output, "Trajectory: %s (%d segments, %v)\n", name, traj.Len(), traj.EndTime())
	fmt.Fprintf(output, "Mode: hardware=%t closed_loop=%t visualize=%t\n", rc.UseHardware, rc.ClosedLoop, rc.Visualize)
	if rc.OverrideDuration != nil {
		fmt.Fprintf(output, "Deadline: %v (override)\n", rc.Deadline(traj.EndTime()))
	} else {
		fmt.Fprintf(output, "Deadline: %v (plan %v + delay %v)\n", rc.Deadline(traj.EndTime()), traj.EndTime(), rc.DelayBeforeExecution)
	}

	if rc.SaveData {
		fmt.Fprintf(output, "Artifact: %s\n", filepath.Join(cfg.OutputDir, "<run>", artifact.Name(name, rc.UseHardware, rc.ClosedLoop)))
	} else {
		fmt.Fprintf(output, "Artifact: none (save_experiment_data is false)\n")
	}

	if rc.UseHardware {
		fmt.Fprintf(output, "Reset: yes, hold %v at %s\n", rc.ForReset().DelayBeforeExecution, traj.InitialPose())
	} else {
		fmt.Fprintf(output, "Reset: no\n")
	}

	specs := recording.SpecsFromConfig(cfg.RealsenseConfig)
	if !cfg.ShouldRecord() || len(specs) == 0 {
		fmt.Fprintf(output, "Recording: no\n")
	} else {
		fmt.Fprintf(output, "Recording: %d camera(s)\n", len(specs))
		for _, spec := range specs {
			out := filepath.Join("<run>", artifact.RecordingsDirName, spec.Name+".bag")
			argv := recording.ExpandCommand(cfg.RealsenseConfig.RecordCommand, spec, out, cfg.RealsenseConfig.RealsenseCameraConfig)
			fmt.Fprintf(output, "  - %s (%s): %v\n", spec.Name, spec.SerialNumber, argv)
		}
	}

	warnings := trialWarnings(cfg, traj)
	if len(warnings) > 0 {
		fmt.Fprintln(output)
	}
	colorOutput := isTerminal(output)
	for _, w := range warnings {
		w.Display(output, colorOutput)
	}
	return nil
}

// isTerminal reports whether w is stdout attached to a terminal.
func isTerminal(w io.Writer) bool {
	return w == io.Writer(os.Stdout) && isatty.IsTerminal(os.Stdout.Fd())
}
