// Package environment wires a desired-pose source, a robot driver, and the
// table environment into a runnable trial handle.
//
// Build constructs the three pieces in order. The source must exist before
// the environment, because the environment asks it for the initial desired
// pose while it is being wired.
package environment

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/harrison/trialctl/internal/config"
	"github.com/harrison/trialctl/internal/models"
	"github.com/harrison/trialctl/internal/viz"
)

// SimulateOptions control one timed execution.
type SimulateOptions struct {
	// RecordingFile is the HTML recording written on completion; empty for none
	RecordingFile string
	// SaveDir receives combined logs on completion; empty skips saving
	SaveDir string
	// ForReset marks the reset sub-run, which never persists artifacts
	ForReset bool
	// Progress, when set, is called once per simulated second
	Progress func(simTime, total time.Duration)
}

// Handle is a wired, runnable trial environment.
type Handle interface {
	// Simulate runs until timeout of simulated time elapses or ctx is done.
	// A cancelled run returns an error wrapping ctx.Err() and persists nothing.
	Simulate(ctx context.Context, timeout time.Duration, opts SimulateOptions) error
	// SaveLogs persists the accumulated samples; recordingFile may be empty.
	SaveLogs(recordingFile, saveDir string) error
	// Close releases the driver and the visualization scenes. Idempotent.
	Close() error
}

// Wiring builds trial environments.
type Wiring struct {
	// Simulation constructs the driver when UseHardware is false
	Simulation DriverFactory
	// Hardware constructs the driver when UseHardware is true; nil when the
	// process has no hardware station available
	Hardware DriverFactory
}

// NewWiring returns a wiring with the simulated station and no hardware driver.
func NewWiring() *Wiring {
	return &Wiring{Simulation: NewSimStation}
}

// Build wires an environment for cfg and traj. targets are claimed by the
// returned handle until Close.
func (w *Wiring) Build(cfg config.RunConfig, traj *models.Trajectory, targets viz.Targets) (Handle, error) {
	if traj == nil {
		return nil, fmt.Errorf("trajectory cannot be nil")
	}

	owner := uuid.New().String()

	// (a) desired-motion source
	source := NewPlanSource(cfg, traj)

	// (b) robot driver
	factory := w.Simulation
	if cfg.UseHardware {
		factory = w.Hardware
		if factory == nil {
			return nil, ErrNoHardwareDriver
		}
	}
	if factory == nil {
		return nil, fmt.Errorf("no simulation driver registered")
	}
	driver, err := factory(cfg, viz.NewPublisher(targets.Station, owner))
	if err != nil {
		return nil, fmt.Errorf("failed to create robot driver: %w", err)
	}

	// (c) environment composing both
	env, err := newTableEnvironment(owner, cfg, traj, source, driver, targets)
	if err != nil {
		driver.Close()
		return nil, err
	}
	return env, nil
}

// Sample is one logged control step.
type Sample struct {
	Time      float64     `yaml:"t"`
	Segment   int         `yaml:"segment"`
	Desired   models.Pose `yaml:"desired"`
	Commanded models.Pose `yaml:"commanded"`
	Measured  models.Pose `yaml:"measured"`
}

// TableEnvironment steps a driver against a position source and logs the
// result.
type TableEnvironment struct {
	owner   string
	cfg     config.RunConfig
	traj    *models.Trajectory
	source  PositionSource
	driver  RobotDriver
	targets viz.Targets

	station   viz.Publisher
	estimator viz.Publisher

	mu      sync.Mutex
	now     time.Duration
	samples []Sample

	closeOnce sync.Once
	closeErr  error
}

func newTableEnvironment(owner string, cfg config.RunConfig, traj *models.Trajectory, source PositionSource, driver RobotDriver, targets viz.Targets) (*TableEnvironment, error) {
	if err := targets.ClaimAll(owner); err != nil {
		return nil, fmt.Errorf("failed to claim visualization: %w", err)
	}

	initial := source.InitialDesiredPose()
	if err := driver.Init(initial); err != nil {
		targets.DeleteAll()
		return nil, fmt.Errorf("failed to initialize robot at %s: %w", initial, err)
	}

	env := &TableEnvironment{
		owner:     owner,
		cfg:       cfg,
		traj:      traj,
		source:    source,
		driver:    driver,
		targets:   targets,
		station:   viz.NewPublisher(targets.Station, owner),
		estimator: viz.NewPublisher(targets.Estimator, owner),
	}
	if cfg.Visualize {
		env.station.Publish(viz.Frame{Path: "desired/pusher", Pose: initial, Label: "desired"})
	}
	return env, nil
}

// Config returns the frozen configuration the environment was built with.
func (e *TableEnvironment) Config() config.RunConfig {
	return e.cfg
}

// Now returns the simulated time reached so far.
func (e *TableEnvironment) Now() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.now
}

// Samples returns a copy of the logged samples.
func (e *TableEnvironment) Samples() []Sample {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Sample(nil), e.samples...)
}

// Simulate implements Handle.
func (e *TableEnvironment) Simulate(ctx context.Context, timeout time.Duration, opts SimulateOptions) error {
	dt := e.cfg.TimeStep
	if dt <= 0 {
		return fmt.Errorf("time step must be > 0, got %v", dt)
	}

	var pace <-chan time.Time
	if e.cfg.RealtimeRate > 0 {
		ticker := time.NewTicker(time.Duration(float64(dt) / e.cfg.RealtimeRate))
		defer ticker.Stop()
		pace = ticker.C
	}

	period := e.source.Period()
	var nextSample, nextProgress time.Duration

	for e.Now() < timeout {
		if pace != nil {
			select {
			case <-ctx.Done():
				return fmt.Errorf("simulation interrupted at %v: %w", e.Now(), ctx.Err())
			case <-pace:
			}
		} else if err := ctx.Err(); err != nil {
			return fmt.Errorf("simulation interrupted at %v: %w", e.Now(), err)
		}

		now := e.Now()
		measured := e.driver.Measured()
		commanded := e.source.DesiredPose(now, measured)
		e.driver.Command(commanded)
		if err := e.driver.Step(dt); err != nil {
			return fmt.Errorf("driver step at %v: %w", now, err)
		}

		e.mu.Lock()
		e.now += dt
		e.mu.Unlock()

		if now >= nextSample {
			e.record(now, commanded, measured)
			nextSample = now + period
		}
		if opts.Progress != nil && now >= nextProgress {
			opts.Progress(now, timeout)
			nextProgress = now + time.Second
		}
	}

	if opts.Progress != nil {
		opts.Progress(timeout, timeout)
	}

	if opts.ForReset || opts.SaveDir == "" {
		return nil
	}
	return e.SaveLogs(opts.RecordingFile, opts.SaveDir)
}

func (e *TableEnvironment) record(now time.Duration, commanded, measured models.Pose) {
	desired := commanded
	if ps, ok := e.source.(*PlanSource); ok {
		desired = ps.Reference(now)
	}

	segment := -1
	if now >= e.cfg.DelayBeforeExecution {
		segment = e.traj.SegmentAt(now - e.cfg.DelayBeforeExecution)
	}

	e.mu.Lock()
	e.samples = append(e.samples, Sample{
		Time:      now.Seconds(),
		Segment:   segment,
		Desired:   desired,
		Commanded: commanded,
		Measured:  measured,
	})
	e.mu.Unlock()

	if e.cfg.Visualize {
		e.station.Publish(viz.Frame{Time: now, Path: "desired/pusher", Pose: desired, Label: "desired"})
	}
	e.estimator.Publish(viz.Frame{Time: now, Path: "estimated/pusher", Pose: measured, Label: "estimated"})
}

// Close implements Handle.
func (e *TableEnvironment) Close() error {
	e.closeOnce.Do(func() {
		e.closeErr = e.driver.Close()
		e.targets.DeleteAll()
	})
	return e.closeErr
}
