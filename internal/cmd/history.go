package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/fatih/color"
	"github.com/harrison/trialctl/internal/history"
	"github.com/harrison/trialctl/internal/models"
	"github.com/spf13/cobra"
)

// NewHistoryCommand creates the 'trialctl history' command
func NewHistoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [trial-id]",
		Short: "List recorded trials",
		Long: `List recent trials from the history database, newest first, with an
outcome summary. With a trial ID, show that trial's state transitions.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistory,
	}

	cmd.Flags().String("config", "", "Path to config file (default: .trialctl/config.yaml)")
	cmd.Flags().Int("limit", 20, "Maximum number of trials to list (0 = all)")

	return cmd
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	limit, _ := cmd.Flags().GetInt("limit")
	output := cmd.OutOrStdout()

	if _, err := os.Stat(cfg.History.DBPath); os.IsNotExist(err) {
		fmt.Fprintf(output, "No trial history found\n")
		fmt.Fprintf(output, "Database path: %s\n", cfg.History.DBPath)
		return nil
	}

	store, err := history.Open(cfg.History.DBPath)
	if err != nil {
		return fmt.Errorf("open history store: %w", err)
	}
	defer store.Close()

	colorOutput := isTerminal(output)
	ctx := context.Background()

	if len(args) == 1 {
		report, err := store.GetTrial(ctx, args[0])
		if err != nil {
			return err
		}
		displayTrial(output, report, colorOutput)
		return nil
	}

	reports, err := store.RecentTrials(ctx, limit)
	if err != nil {
		return fmt.Errorf("list trials: %w", err)
	}
	counts, err := store.OutcomeCounts(ctx)
	if err != nil {
		return fmt.Errorf("count outcomes: %w", err)
	}
	displayTrials(output, reports, counts, colorOutput)
	return nil
}

func outcomeText(outcome string, colorOutput bool) string {
	if !colorOutput {
		return outcome
	}
	switch outcome {
	case models.OutcomeCompleted:
		return color.GreenString(outcome)
	case models.OutcomeInterrupted:
		return color.YellowString(outcome)
	default:
		return color.RedString(outcome)
	}
}

func displayTrials(w io.Writer, reports []*models.TrialReport, counts map[string]int, colorOutput bool) {
	if len(reports) == 0 {
		fmt.Fprintln(w, "No trials recorded")
		return
	}

	fmt.Fprintf(w, "%-36s  %-19s  %-20s  %-8s  %-6s  %s\n", "TRIAL", "STARTED", "TRAJECTORY", "MODE", "ELAPSED", "OUTCOME")
	for _, r := range reports {
		mode := "sim"
		if r.UseHardware {
			mode = "hw"
		}
		if r.ClosedLoop {
			mode += "/cl"
		} else {
			mode += "/ol"
		}
		started := "-"
		if !r.StartedAt.IsZero() {
			started = r.StartedAt.Local().Format("2006-01-02 15:04:05")
		}
		fmt.Fprintf(w, "%-36s  %-19s  %-20s  %-8s  %-6s  %s\n",
			r.ID, started, r.TrajectoryName, mode, r.Elapsed.Round(100*time.Millisecond), outcomeText(r.Outcome, colorOutput))
	}

	outcomes := make([]string, 0, len(counts))
	total := 0
	for o, n := range counts {
		outcomes = append(outcomes, o)
		total += n
	}
	sort.Strings(outcomes)

	fmt.Fprintf(w, "\n%d trial(s) recorded:", total)
	for _, o := range outcomes {
		fmt.Fprintf(w, " %s=%d", outcomeText(o, colorOutput), counts[o])
	}
	fmt.Fprintln(w)
}

func displayTrial(w io.Writer, r *models.TrialReport, colorOutput bool) {
	fmt.Fprintf(w, "Trial: %s\n", r.ID)
	fmt.Fprintf(w, "Trajectory: %s (%s)\n", r.TrajectoryName, r.TrajectoryFile)
	fmt.Fprintf(w, "Run directory: %s\n", r.RunDir)
	fmt.Fprintf(w, "Mode: hardware=%t closed_loop=%t reset=%t recording=%t\n", r.UseHardware, r.ClosedLoop, r.Reset, r.Recording)
	fmt.Fprintf(w, "Outcome: %s\n", outcomeText(r.Outcome, colorOutput))
	if r.Reason != "" {
		fmt.Fprintf(w, "Reason: %s\n", r.Reason)
	}
	fmt.Fprintf(w, "Deadline: %v, elapsed %v\n", r.Deadline, r.Elapsed)
	if r.ArtifactPath != "" {
		fmt.Fprintf(w, "Artifact: %s\n", r.ArtifactPath)
	}
	if r.Saved {
		fmt.Fprintf(w, "Saved after interrupt\n")
	}
	if len(r.Transitions) > 0 {
		fmt.Fprintf(w, "\nTransitions:\n")
		for _, tr := range r.Transitions {
			fmt.Fprintf(w, "  %s  %s -> %s\n", tr.At.Local().Format("15:04:05.000"), tr.From, tr.To)
		}
	}
}
