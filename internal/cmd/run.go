package cmd

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/harrison/trialctl/internal/artifact"
	"github.com/harrison/trialctl/internal/config"
	"github.com/harrison/trialctl/internal/controller"
	"github.com/harrison/trialctl/internal/environment"
	"github.com/harrison/trialctl/internal/history"
	"github.com/harrison/trialctl/internal/logger"
	"github.com/harrison/trialctl/internal/models"
	"github.com/harrison/trialctl/internal/recording"
	"github.com/harrison/trialctl/internal/trajectory"
	"github.com/harrison/trialctl/internal/viz"
	"github.com/spf13/cobra"
)

// NewRunCommand creates the run command
func NewRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [trajectory-file]",
		Short: "Execute one timed trial",
		Long: `Execute one timed trial against a reference plan.

Configuration is loaded from .trialctl/config.yaml if present.
CLI flags override configuration file settings. The trajectory may be given
as the positional argument, with --trajectory, or as trajectory_file in the
configuration.

Each run writes into <output_dir>/<date>/<time>/ and repoints
<output_dir>/latest at it. The run directory holds the configuration
snapshot, a copy of the plan folder, logs, camera recordings and the trial
recording <trajectory>_hw_<True|False>_cl<True|False>.html.

Exit status is zero when the trial completes, is interrupted, or fails a
precondition (nothing was left running); it is non-zero when execution
itself fails or the configuration is invalid.

Examples:
  trialctl run plans/traj_rounded.yaml
  trialctl run --open-loop --override-duration 30s plans/traj_rounded.yaml
  trialctl run --use-hardware --config rig.yaml
  trialctl run --no-save --realtime-rate 1 plans/traj_rounded.yaml`,
		Args: cobra.MaximumNArgs(1),
		RunE: runCommand,
	}

	cmd.Flags().String("config", "", "Path to config file (default: .trialctl/config.yaml)")
	cmd.Flags().String("trajectory", "", "Reference plan file (overrides trajectory_file)")
	cmd.Flags().String("plan-folder", "", "Folder copied into the run directory")
	cmd.Flags().String("output-dir", "", "Base directory for run directories")
	cmd.Flags().String("override-duration", "", "Execution deadline, replacing plan length plus delay (e.g. 30s, 2m)")
	cmd.Flags().Bool("use-hardware", false, "Drive the hardware station instead of simulation")
	cmd.Flags().Bool("emulate-hardware", false, "Register the simulated station as the hardware driver")
	cmd.Flags().Bool("closed-loop", false, "Feed measured poses back into the controller")
	cmd.Flags().Bool("open-loop", false, "Track the reference without feedback")
	cmd.Flags().Bool("no-save", false, "Do not write the trial recording")
	cmd.Flags().Float64("realtime-rate", 0, "Pace simulated time against wall time (0 = unpaced)")
	cmd.Flags().String("log-level", "", "Log level: trace, debug, info, warn, error")
	cmd.Flags().String("log-dir", "", "Directory for log files (default: <run-dir>/logs)")
	cmd.Flags().Bool("verbose", false, "Show state transitions and debug output")
	cmd.Flags().Bool("no-history", false, "Do not record the trial in the history database")

	return cmd
}

// loadConfig loads the configuration named by --config, or the default one.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	configPath, _ := cmd.Flags().GetString("config")
	if configPath != "" {
		cfg, err := config.LoadConfig(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", configPath, err)
		}
		return cfg, nil
	}
	cfg, err := config.LoadConfigFromDir(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// overridesFromFlags collects the flags the user actually set.
func overridesFromFlags(cmd *cobra.Command, args []string) (config.Overrides, error) {
	var o config.Overrides
	flags := cmd.Flags()

	if flags.Changed("closed-loop") && flags.Changed("open-loop") {
		return o, fmt.Errorf("cannot use both --closed-loop and --open-loop")
	}

	stringFlag := func(name string) *string {
		if flags.Lookup(name) == nil || !flags.Changed(name) {
			return nil
		}
		v, _ := flags.GetString(name)
		return &v
	}

	o.TrajectoryFile = stringFlag("trajectory")
	if len(args) == 1 {
		if o.TrajectoryFile != nil {
			return o, fmt.Errorf("trajectory given both as argument and --trajectory")
		}
		o.TrajectoryFile = &args[0]
	}
	o.PlanFolder = stringFlag("plan-folder")
	o.OutputDir = stringFlag("output-dir")
	o.LogLevel = stringFlag("log-level")
	o.LogDir = stringFlag("log-dir")

	if s := stringFlag("override-duration"); s != nil {
		d, err := config.ParseDuration(*s)
		if err != nil {
			return o, fmt.Errorf("invalid override duration %q: %w", *s, err)
		}
		o.OverrideDuration = &d
	}

	if flags.Changed("use-hardware") {
		v, _ := flags.GetBool("use-hardware")
		o.UseHardware = &v
	}
	if flags.Changed("closed-loop") {
		v, _ := flags.GetBool("closed-loop")
		o.ClosedLoop = &v
	} else if flags.Changed("open-loop") {
		v, _ := flags.GetBool("open-loop")
		v = !v
		o.ClosedLoop = &v
	}
	if flags.Changed("no-save") {
		v, _ := flags.GetBool("no-save")
		v = !v
		o.SaveData = &v
	}
	if flags.Changed("realtime-rate") {
		v, _ := flags.GetFloat64("realtime-rate")
		o.RealtimeRate = &v
	}
	if flags.Changed("verbose") {
		if v, _ := flags.GetBool("verbose"); v {
			level := "debug"
			o.LogLevel = &level
		}
	}
	return o, nil
}

// runOptions are the process-level choices that are not part of Config.
type runOptions struct {
	emulateHardware bool
	noHistory       bool
	out             io.Writer
	now             func() time.Time
	// extra controller options, used by tests
	controllerOpts []controller.Option
}

// runCommand implements the run command logic
func runCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	overrides, err := overridesFromFlags(cmd, args)
	if err != nil {
		return err
	}
	cfg.MergeWithFlags(overrides)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	emulate, _ := cmd.Flags().GetBool("emulate-hardware")
	noHistory, _ := cmd.Flags().GetBool("no-history")

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	report, err := runTrial(ctx, cfg, runOptions{
		emulateHardware: emulate,
		noHistory:       noHistory,
		out:             cmd.OutOrStdout(),
		now:             time.Now,
		controllerOpts:  []controller.Option{controller.WithSignalHandling()},
	})
	if report == nil {
		return err
	}
	if !report.Handled() {
		return fmt.Errorf("trial %s failed: %w", report.ID, err)
	}
	return nil
}

// runTrial prepares the run directory and loggers, runs one trial and
// records it in the history database. A nil report means the trial never
// started.
func runTrial(ctx context.Context, cfg *config.Config, opts runOptions) (*models.TrialReport, error) {
	rd, err := artifact.NewRunDir(cfg.OutputDir, opts.now())
	if err != nil {
		return nil, fmt.Errorf("failed to create run directory: %w", err)
	}
	defer rd.Close()

	consoleLog := logger.NewConsoleLogger(opts.out, cfg.LogLevel)

	logDir := cfg.LogDir
	if logDir == "" {
		logDir = filepath.Join(rd.Path, "logs")
	}
	fileLog, err := logger.NewFileLoggerWithDirAndLevel(logDir, cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to create file logger: %w", err)
	}
	defer fileLog.Close()

	multiLog := logger.NewMultiLogger(consoleLog, fileLog)
	multiLog.LogInfo(fmt.Sprintf("Run directory: %s", rd.Path))

	if err := artifact.WriteConfigSnapshot(rd.Path, cfg); err != nil {
		multiLog.LogWarn(fmt.Sprintf("Failed to snapshot configuration: %v", err))
	}
	if cfg.PlanFolder != "" {
		copied, err := artifact.CopyPlanFolder(cfg.PlanFolder, rd.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to copy plan folder: %w", err)
		}
		multiLog.LogDebug(fmt.Sprintf("Copied %d plan file(s) from %s", len(copied), cfg.PlanFolder))
	}

	wiring := environment.NewWiring()
	if opts.emulateHardware {
		wiring.Hardware = environment.NewSimStation
	}

	var targets viz.Targets
	if cfg.SimConfig.VisualizeDesired {
		targets = viz.Targets{
			Station:   viz.NewScene("station"),
			Estimator: viz.NewScene("estimator"),
		}
	}

	var recorder controller.RecorderStarter
	if cfg.ShouldRecord() {
		recorder = recording.NewManager(recording.ProcessFactory(cfg.RealsenseConfig), multiLog)
	}

	ctrlOpts := append([]controller.Option{controller.WithClock(opts.now)}, opts.controllerOpts...)
	loader := &warningLoader{next: trajectory.Loader{}, cfg: cfg, logger: multiLog}
	ctrl := controller.New(loader, wiring, recorder, multiLog, targets, ctrlOpts...)

	report, runErr := ctrl.Run(ctx, controller.Trial{
		TrajectoryFile: cfg.TrajectoryFile,
		TrajectoryName: cfg.TrajectoryName,
		RunDir:         rd.Path,
		Config:         cfg.RunConfig(),
		Record:         cfg.ShouldRecord(),
		Cameras:        recording.SpecsFromConfig(cfg.RealsenseConfig),
		RecordingsDir:  rd.RecordingsDir(),
	})

	if cfg.History.Enabled && !opts.noHistory {
		if err := recordHistory(ctx, cfg.History.DBPath, report); err != nil {
			multiLog.LogWarn(fmt.Sprintf("Failed to record trial history: %v", err))
		}
	}

	fmt.Fprintf(opts.out, "\nTrial %s: %s\n", report.ID, report.Outcome)
	fmt.Fprintf(opts.out, "Run directory: %s\n", rd.Path)
	if report.ArtifactPath != "" && report.Visited(models.StateRunning) {
		fmt.Fprintf(opts.out, "Recording: %s\n", report.ArtifactPath)
	}
	fmt.Fprintf(opts.out, "Logs written to: %s\n", fileLog.Path())

	return report, runErr
}

// warningLoader logs trial warnings once the controller has loaded the plan.
type warningLoader struct {
	next   controller.TrajectoryLoader
	cfg    *config.Config
	logger interface{ LogWarn(string) }
}

func (l *warningLoader) Load(path string) (*models.Trajectory, error) {
	traj, err := l.next.Load(path)
	if err != nil {
		return nil, err
	}
	for _, w := range trialWarnings(l.cfg, traj) {
		l.logger.LogWarn(w.Summary())
	}
	return traj, nil
}

func recordHistory(ctx context.Context, dbPath string, report *models.TrialReport) error {
	store, err := history.Open(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()
	// the trial context may already be cancelled by an interrupt
	return store.RecordTrial(context.WithoutCancel(ctx), report)
}
