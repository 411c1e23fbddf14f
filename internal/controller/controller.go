// Package controller runs one timed trial: it loads the plan, optionally
// resets the robot, wires the main environment, records, executes toward a
// deadline and tears everything down exactly once.
//
// Interrupts are delivered as context cancellation. On the interrupted path,
// and only there, the controller saves the trial explicitly before stopping
// recordings, so a recorder that fails to stop cannot cost the saved state.
package controller

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/harrison/trialctl/internal/artifact"
	"github.com/harrison/trialctl/internal/config"
	"github.com/harrison/trialctl/internal/environment"
	"github.com/harrison/trialctl/internal/models"
	"github.com/harrison/trialctl/internal/recording"
	"github.com/harrison/trialctl/internal/viz"
)

// Logger defines the interface for logging trial progress and results.
type Logger interface {
	LogDebug(message string)
	LogInfo(message string)
	LogWarn(message string)
	LogError(message string)
	LogStateChange(from, to models.RunState)
	LogProgress(simTime, total time.Duration)
	LogSummary(report models.TrialReport)
}

// TrajectoryLoader loads the reference plan.
type TrajectoryLoader interface {
	Load(path string) (*models.Trajectory, error)
}

// Builder wires runnable environments.
type Builder interface {
	Build(cfg config.RunConfig, traj *models.Trajectory, targets viz.Targets) (environment.Handle, error)
}

// RecorderStarter starts recording sessions.
type RecorderStarter interface {
	StartAll(ctx context.Context, specs []recording.DeviceSpec, outputDir string) (*recording.Session, error)
}

// Trial describes one controller pass.
type Trial struct {
	// ID identifies the trial; generated when empty
	ID string
	// TrajectoryFile is the plan to load
	TrajectoryFile string
	// TrajectoryName overrides the plan's own name in the artifact path
	TrajectoryName string
	// RunDir receives logs and the recording artifact
	RunDir string
	// Config is the main wiring's configuration
	Config config.RunConfig
	// Record starts a recording session around execution
	Record bool
	// Cameras are the devices of the recording session
	Cameras []recording.DeviceSpec
	// RecordingsDir receives camera output; defaults to RunDir
	RecordingsDir string
}

// Controller sequences a trial through its states.
type Controller struct {
	loader   TrajectoryLoader
	builder  Builder
	recorder RecorderStarter
	logger   Logger
	targets  viz.Targets

	handleSignals bool
	now           func() time.Time
}

// Option configures a Controller.
type Option func(*Controller)

// WithSignalHandling makes Run translate SIGINT and SIGTERM into
// cancellation of the trial.
func WithSignalHandling() Option {
	return func(c *Controller) { c.handleSignals = true }
}

// WithClock replaces the wall clock used for report timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// New creates a Controller. recorder and logger may be nil; targets are the
// visualization scenes shared by the reset and main wirings.
func New(loader TrajectoryLoader, builder Builder, recorder RecorderStarter, logger Logger, targets viz.Targets, opts ...Option) *Controller {
	if loader == nil {
		panic("trajectory loader cannot be nil")
	}
	if builder == nil {
		panic("environment builder cannot be nil")
	}

	c := &Controller{
		loader:   loader,
		builder:  builder,
		recorder: recorder,
		logger:   logger,
		targets:  targets,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// run is the mutable state of one pass.
type run struct {
	c      *Controller
	trial  Trial
	report *models.TrialReport
	state  models.RunState

	main    environment.Handle
	session *recording.Session
}

// Run executes trial and always returns its report. The error is a
// *PreconditionError when the trial could not reach RUNNING and an
// *ExecutionError when execution failed; an interrupted trial returns nil.
func (c *Controller) Run(ctx context.Context, trial Trial) (*models.TrialReport, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if c.handleSignals {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(sigChan)

		go func() {
			select {
			case sig := <-sigChan:
				c.logWarn(fmt.Sprintf("Received %v, interrupting trial", sig))
				cancel()
			case <-ctx.Done():
			}
		}()
	}

	if trial.ID == "" {
		trial.ID = uuid.New().String()
	}
	if trial.RecordingsDir == "" {
		trial.RecordingsDir = trial.RunDir
	}

	r := &run{
		c:     c,
		trial: trial,
		state: models.StateInit,
		report: &models.TrialReport{
			ID:             trial.ID,
			TrajectoryFile: trial.TrajectoryFile,
			RunDir:         trial.RunDir,
			UseHardware:    trial.Config.UseHardware,
			ClosedLoop:     trial.Config.ClosedLoop,
			StartedAt:      c.now(),
		},
	}
	defer r.cleanup()

	err := r.execute(ctx)
	return r.report, err
}

func (r *run) execute(ctx context.Context) error {
	cfg := r.trial.Config

	traj, err := r.c.loader.Load(r.trial.TrajectoryFile)
	if err != nil {
		r.c.logError(fmt.Sprintf("Failed to load trajectory %s: %v", r.trial.TrajectoryFile, err))
		return r.precondition(NewPreconditionError(StageLoad, "trajectory unavailable", err))
	}

	name := r.trial.TrajectoryName
	if name == "" {
		name = traj.Name
	}
	r.report.TrajectoryName = name
	r.report.ArtifactPath = artifact.Path(r.trial.RunDir, name, cfg.UseHardware, cfg.ClosedLoop, cfg.SaveData)
	r.report.Deadline = cfg.Deadline(traj.EndTime())
	r.c.logInfo(fmt.Sprintf("Loaded %s: %d segments, %v", name, traj.Len(), traj.EndTime()))

	if r.c.targets.Estimator != nil {
		r.c.targets.Estimator.Delete()
	}

	if cfg.UseHardware {
		if err := r.reset(ctx, traj); err != nil || r.finished() {
			return err
		}
	}
	if ctx.Err() != nil {
		return r.interruptedBeforeRun(ctx.Err())
	}

	targets := r.c.targets
	if !cfg.Visualize {
		targets = viz.None
	}
	main, err := r.c.builder.Build(cfg, traj, targets)
	if err != nil {
		r.c.logError(fmt.Sprintf("Failed to wire environment: %v", err))
		return r.precondition(NewPreconditionError(StageWiring, "main wiring failed", err))
	}
	r.main = main
	r.transition(models.StateWired)

	if r.trial.Record && len(r.trial.Cameras) > 0 {
		if err := r.startRecording(ctx); err != nil || r.finished() {
			return err
		}
	}
	if ctx.Err() != nil {
		return r.interruptedBeforeRun(ctx.Err())
	}

	return r.runMain(ctx)
}

// reset drives the robot to the plan's initial pose and releases the reset
// wiring before returning.
func (r *run) reset(ctx context.Context, traj *models.Trajectory) error {
	r.transition(models.StateResetting)
	r.report.Reset = true

	resetCfg := r.trial.Config.ForReset()
	h, err := r.c.builder.Build(resetCfg, traj, r.c.targets)
	if err != nil {
		r.c.logError(fmt.Sprintf("Failed to wire reset: %v", err))
		return r.precondition(NewPreconditionError(StageReset, "reset wiring failed", err))
	}

	r.c.logInfo(fmt.Sprintf("Resetting robot to %s (hold %v)", traj.InitialPose(), resetCfg.DelayBeforeExecution))
	simErr := h.Simulate(ctx, resetCfg.DelayBeforeExecution, environment.SimulateOptions{ForReset: true})
	if err := h.Close(); err != nil {
		r.c.logWarn(fmt.Sprintf("Failed to release reset wiring: %v", err))
	}

	switch {
	case simErr == nil:
		return nil
	case ctx.Err() != nil:
		return r.interruptedBeforeRun(simErr)
	default:
		return r.fail(fmt.Errorf("reset: %w", simErr))
	}
}

func (r *run) startRecording(ctx context.Context) error {
	if r.c.recorder == nil {
		return r.precondition(NewPreconditionError(StageRecording, "no recorder configured", nil))
	}

	session, err := r.c.recorder.StartAll(ctx, r.trial.Cameras, r.trial.RecordingsDir)
	if err != nil {
		if ctx.Err() != nil {
			return r.interruptedBeforeRun(err)
		}
		r.c.logError(fmt.Sprintf("Failed to start recording: %v", err))
		return r.precondition(NewPreconditionError(StageRecording, "recording session did not start", err))
	}
	r.session = session
	r.report.Recording = true
	return nil
}

func (r *run) runMain(ctx context.Context) error {
	path := r.report.ArtifactPath
	sink := artifact.NewOnceSink(artifact.SinkFunc(r.main.SaveLogs))

	r.transition(models.StateRunning)
	r.c.logInfo(fmt.Sprintf("Executing for %v", r.report.Deadline))

	start := r.c.now()
	err := r.main.Simulate(ctx, r.report.Deadline, environment.SimulateOptions{
		RecordingFile: path,
		SaveDir:       r.trial.RunDir,
		Progress:      r.c.progress,
	})
	r.report.Elapsed = r.c.now().Sub(start)

	switch {
	case err == nil:
		r.transition(models.StateCompleted)
		r.report.Outcome = models.OutcomeCompleted
		r.stopRecording()
		return nil

	case ctx.Err() != nil:
		r.transition(models.StateInterrupted)
		r.report.Outcome = models.OutcomeInterrupted
		r.report.Reason = err.Error()

		// save strictly before recorder teardown
		if saveErr := sink.Save(path, r.trial.RunDir); saveErr != nil {
			r.c.logError(fmt.Sprintf("Failed to save interrupted trial: %v", saveErr))
		} else {
			r.c.logInfo(fmt.Sprintf("Saved interrupted trial to %s", r.trial.RunDir))
		}
		r.report.Saved = sink.Saved()
		r.stopRecording()
		return nil

	default:
		return r.fail(err)
	}
}

// finished reports whether a terminal outcome has been decided.
func (r *run) finished() bool {
	return r.report.Outcome != ""
}

func (r *run) stopRecording() {
	if err := r.session.StopAll(); err != nil {
		r.c.logWarn(fmt.Sprintf("Recording teardown: %v", err))
	}
}

func (r *run) precondition(err *PreconditionError) error {
	r.transition(models.StateFailed)
	r.report.Outcome = models.OutcomeFailedPrecondition
	r.report.Reason = err.Error()
	return err
}

func (r *run) interruptedBeforeRun(cause error) error {
	r.c.logWarn(fmt.Sprintf("Interrupted during %s", r.state))
	r.transition(models.StateInterrupted)
	r.report.Outcome = models.OutcomeInterrupted
	r.report.Reason = cause.Error()
	r.stopRecording()
	return nil
}

func (r *run) fail(err error) error {
	state := r.state
	r.c.logError(fmt.Sprintf("Trial failed during %s: %v", state, err))
	r.transition(models.StateFailed)
	r.report.Outcome = models.OutcomeFailed
	r.report.Reason = err.Error()
	r.stopRecording()
	return &ExecutionError{State: state, Err: err}
}

// cleanup releases everything still held, exactly once, and finalizes the
// report.
func (r *run) cleanup() {
	r.stopRecording()
	if r.main != nil {
		if err := r.main.Close(); err != nil {
			r.c.logWarn(fmt.Sprintf("Failed to release environment: %v", err))
		}
	}
	r.transition(models.StateCleanedUp)
	r.report.EndedAt = r.c.now()

	if r.c.logger != nil {
		r.c.logger.LogSummary(*r.report)
	}
}

func (r *run) transition(to models.RunState) {
	from := r.state
	r.state = to
	r.report.Transitions = append(r.report.Transitions, models.Transition{From: from, To: to, At: r.c.now()})
	if r.c.logger != nil {
		r.c.logger.LogStateChange(from, to)
	}
}

func (c *Controller) progress(simTime, total time.Duration) {
	if c.logger != nil {
		c.logger.LogProgress(simTime, total)
	}
}

func (c *Controller) logInfo(msg string) {
	if c.logger != nil {
		c.logger.LogInfo(msg)
	}
}

func (c *Controller) logWarn(msg string) {
	if c.logger != nil {
		c.logger.LogWarn(msg)
	}
}

func (c *Controller) logError(msg string) {
	if c.logger != nil {
		c.logger.LogError(msg)
	}
}
