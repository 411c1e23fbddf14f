package config

import "time"

// RunConfig is the flattened configuration one environment wiring is built
// from. It is always passed by value: a wiring keeps its own copy, so the
// values it was built with cannot change for the wiring's lifetime.
type RunConfig struct {
	UseHardware          bool
	ClosedLoop           bool
	Visualize            bool
	DelayBeforeExecution time.Duration
	SaveData             bool
	OverrideDuration     *time.Duration

	ControlPeriod time.Duration // Period of the desired-pose source
	TimeStep      time.Duration // Simulation step
	RealtimeRate  float64       // 0 runs unpaced
	TrackingGain  float64       // Closed-loop correction gain
	Optitrack     OptitrackConfig
}

// RunConfig flattens the resolved configuration for one wiring.
func (c *Config) RunConfig() RunConfig {
	rc := RunConfig{
		UseHardware:          c.SimConfig.UseHardware,
		ClosedLoop:           c.SimConfig.ClosedLoop,
		Visualize:            c.SimConfig.VisualizeDesired,
		DelayBeforeExecution: c.SimConfig.DelayBeforeExecution.Std(),
		SaveData:             c.SaveExperimentData,
		ControlPeriod:        c.MPCConfig.StepSize.Std(),
		TimeStep:             c.SimConfig.TimeStep.Std(),
		RealtimeRate:         c.SimConfig.RealtimeRate,
		TrackingGain:         c.MPCConfig.Gain,
		Optitrack:            c.OptitrackConfig,
	}
	if c.OverrideDuration != nil {
		d := c.OverrideDuration.Std()
		rc.OverrideDuration = &d
	}
	return rc
}

// ForReset returns the configuration of the reset sub-run: a copy of rc that
// holds the initial pose for ResetHold with the desired-pose overlay off.
func (rc RunConfig) ForReset() RunConfig {
	reset := rc
	reset.DelayBeforeExecution = ResetHold
	reset.Visualize = false
	if rc.OverrideDuration != nil {
		d := *rc.OverrideDuration
		reset.OverrideDuration = &d
	}
	return reset
}

// Deadline computes the execution budget for a plan of the given length:
// the override when one is set, otherwise plan end time plus the initial hold.
func (rc RunConfig) Deadline(endTime time.Duration) time.Duration {
	if rc.OverrideDuration != nil {
		return *rc.OverrideDuration
	}
	return endTime + rc.DelayBeforeExecution
}
