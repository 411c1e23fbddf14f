package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// ResetHold is how long the reset sub-run holds the robot at the plan's
// initial pose before the timed trial.
const ResetHold = 600 * time.Second

// SimConfig holds the sim_config section.
type SimConfig struct {
	// UseHardware drives the physical robot instead of the simulated station
	UseHardware bool `yaml:"use_hardware"`

	// ClosedLoop feeds measured poses back into the position source
	ClosedLoop bool `yaml:"closed_loop"`

	// VisualizeDesired publishes desired and measured poses to the scenes
	VisualizeDesired bool `yaml:"visualize_desired"`

	// DelayBeforeExecution is how long the initial pose is held before the plan starts
	DelayBeforeExecution Duration `yaml:"delay_before_execution"`

	// TimeStep is the simulation step
	TimeStep Duration `yaml:"time_step"`

	// RealtimeRate paces simulated time against wall time (0 = unpaced, 1 = real time)
	RealtimeRate float64 `yaml:"realtime_rate"`
}

// MPCConfig holds the mpc_config section consumed by the position source.
type MPCConfig struct {
	Horizon  int      `yaml:"horizon"`
	StepSize Duration `yaml:"step_size"`
	// Gain scales the tracking-error correction applied in closed loop
	Gain float64 `yaml:"gain"`
}

// OptitrackConfig identifies the tracked bodies used by the state estimator.
type OptitrackConfig struct {
	ObjectName string `yaml:"object_name"`
	IiwaID     int    `yaml:"iiwa_id"`
	SliderID   int    `yaml:"slider_id"`
}

// CameraConfig is the realsense_camera_config block shared by all cameras.
type CameraConfig struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
	FPS    int `yaml:"fps"`
}

// RealsenseConfig holds the realsense_config section.
type RealsenseConfig struct {
	ShouldRecord        bool     `yaml:"should_record"`
	Camera1Name         string   `yaml:"camera1_name"`
	Camera1SerialNumber string   `yaml:"camera1_serial_number"`
	Camera2Name         string   `yaml:"camera2_name"`
	Camera2SerialNumber string   `yaml:"camera2_serial_number"`
	Camera3Name         string   `yaml:"camera3_name"`
	Camera3SerialNumber string   `yaml:"camera3_serial_number"`
	RecordCommand       []string `yaml:"record_command"`

	RealsenseCameraConfig CameraConfig `yaml:"realsense_camera_config"`
}

// HistoryConfig controls the trial history database.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	DBPath  string `yaml:"db_path"`
}

// Config represents the resolved trial configuration.
type Config struct {
	// TrajectoryFile is the persisted reference plan
	TrajectoryFile string `yaml:"trajectory_file"`

	// TrajectoryName names the artifact file; defaults to the plan's own name
	TrajectoryName string `yaml:"trajectory_name"`

	// PlanFolder is copied verbatim into the run directory when set
	PlanFolder string `yaml:"plan_folder"`

	// OutputDir is the base directory for per-run directories
	OutputDir string `yaml:"output_dir"`

	// LogLevel sets the logging verbosity (trace, debug, info, warn, error)
	LogLevel string `yaml:"log_level"`

	// LogDir is where run logs are written; empty means inside the run directory
	LogDir string `yaml:"log_dir"`

	SaveExperimentData bool `yaml:"save_experiment_data"`

	// OverrideDuration replaces the computed execution deadline when set
	OverrideDuration *Duration `yaml:"override_duration,omitempty"`

	SimConfig       SimConfig       `yaml:"sim_config"`
	MPCConfig       MPCConfig       `yaml:"mpc_config"`
	OptitrackConfig OptitrackConfig `yaml:"optitrack_config"`
	RealsenseConfig RealsenseConfig `yaml:"realsense_config"`
	History         HistoryConfig   `yaml:"history"`
}

// DefaultConfig returns a Config with sensible default values
func DefaultConfig() *Config {
	return &Config{
		OutputDir:          "outputs",
		LogLevel:           "info",
		SaveExperimentData: true,
		SimConfig: SimConfig{
			UseHardware:          false,
			ClosedLoop:           true,
			VisualizeDesired:     true,
			DelayBeforeExecution: Duration(2 * time.Second),
			TimeStep:             Duration(10 * time.Millisecond),
			RealtimeRate:         0,
		},
		MPCConfig: MPCConfig{
			Horizon:  35,
			StepSize: Duration(100 * time.Millisecond),
			Gain:     0.5,
		},
		OptitrackConfig: OptitrackConfig{
			ObjectName: "tee",
			IiwaID:     4,
			SliderID:   10,
		},
		RealsenseConfig: RealsenseConfig{
			RecordCommand: []string{"rs-record", "--serial", "{serial}", "--output", "{output}"},
			RealsenseCameraConfig: CameraConfig{
				Width:  1280,
				Height: 720,
				FPS:    30,
			},
		},
		History: HistoryConfig{
			Enabled: true,
			DBPath:  filepath.Join(".trialctl", "history.db"),
		},
	}
}

// LoadConfig loads configuration from the specified file path.
// Keys present in the file override defaults; absent keys keep them.
// If the file doesn't exist, returns default configuration without error.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

// LoadConfigFromDir loads configuration from .trialctl/config.yaml in the specified directory
func LoadConfigFromDir(dir string) (*Config, error) {
	return LoadConfig(filepath.Join(dir, ".trialctl", "config.yaml"))
}

// Overrides carries CLI flag values. Nil fields leave the config untouched.
type Overrides struct {
	TrajectoryFile   *string
	PlanFolder       *string
	OutputDir        *string
	LogLevel         *string
	LogDir           *string
	OverrideDuration *time.Duration
	UseHardware      *bool
	ClosedLoop       *bool
	SaveData         *bool
	RealtimeRate     *float64
}

// MergeWithFlags merges CLI flags into the configuration.
// Non-nil flag values override configuration values.
func (c *Config) MergeWithFlags(o Overrides) {
	if o.TrajectoryFile != nil {
		c.TrajectoryFile = *o.TrajectoryFile
	}
	if o.PlanFolder != nil {
		c.PlanFolder = *o.PlanFolder
	}
	if o.OutputDir != nil {
		c.OutputDir = *o.OutputDir
	}
	if o.LogLevel != nil {
		c.LogLevel = *o.LogLevel
	}
	if o.LogDir != nil {
		c.LogDir = *o.LogDir
	}
	if o.OverrideDuration != nil {
		d := Duration(*o.OverrideDuration)
		c.OverrideDuration = &d
	}
	if o.UseHardware != nil {
		c.SimConfig.UseHardware = *o.UseHardware
	}
	if o.ClosedLoop != nil {
		c.SimConfig.ClosedLoop = *o.ClosedLoop
	}
	if o.SaveData != nil {
		c.SaveExperimentData = *o.SaveData
	}
	if o.RealtimeRate != nil {
		c.SimConfig.RealtimeRate = *o.RealtimeRate
	}
}

// Validate validates the configuration values
func (c *Config) Validate() error {
	if c.TrajectoryFile == "" {
		return fmt.Errorf("trajectory_file is required")
	}

	validLevels := map[string]bool{
		"trace": true,
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[c.LogLevel] {
		return fmt.Errorf("invalid log_level %q, must be one of: trace, debug, info, warn, error", c.LogLevel)
	}

	if c.OutputDir == "" {
		return fmt.Errorf("output_dir cannot be empty")
	}
	if c.OverrideDuration != nil && c.OverrideDuration.Std() <= 0 {
		return fmt.Errorf("override_duration must be > 0, got %v", c.OverrideDuration.Std())
	}
	if c.SimConfig.DelayBeforeExecution.Std() < 0 {
		return fmt.Errorf("sim_config.delay_before_execution must be >= 0, got %v", c.SimConfig.DelayBeforeExecution.Std())
	}
	if c.SimConfig.TimeStep.Std() <= 0 {
		return fmt.Errorf("sim_config.time_step must be > 0, got %v", c.SimConfig.TimeStep.Std())
	}
	if c.SimConfig.RealtimeRate < 0 {
		return fmt.Errorf("sim_config.realtime_rate must be >= 0, got %v", c.SimConfig.RealtimeRate)
	}
	if c.MPCConfig.StepSize.Std() <= 0 {
		return fmt.Errorf("mpc_config.step_size must be > 0, got %v", c.MPCConfig.StepSize.Std())
	}

	if c.SimConfig.UseHardware && c.RealsenseConfig.ShouldRecord && len(c.RealsenseConfig.RecordCommand) == 0 {
		return fmt.Errorf("realsense_config.record_command cannot be empty when should_record is set")
	}

	if c.History.Enabled && c.History.DBPath == "" {
		return fmt.Errorf("history.db_path cannot be empty when history is enabled")
	}

	return nil
}

// ShouldRecord reports whether camera recording applies to this trial.
// Cameras are only driven alongside the hardware station.
func (c *Config) ShouldRecord() bool {
	return c.SimConfig.UseHardware && c.RealsenseConfig.ShouldRecord
}

// Snapshot renders the resolved configuration as YAML.
func (c *Config) Snapshot() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return data, nil
}
