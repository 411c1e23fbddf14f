package cmd

import (
	"fmt"

	"github.com/harrison/trialctl/internal/config"
	"github.com/harrison/trialctl/internal/display"
	"github.com/harrison/trialctl/internal/models"
	"github.com/harrison/trialctl/internal/recording"
)

// trialWarnings lists configuration combinations that are valid but
// probably not what the operator meant.
func trialWarnings(cfg *config.Config, traj *models.Trajectory) []display.Warning {
	var warnings []display.Warning
	rc := cfg.RunConfig()

	if traj != nil && rc.OverrideDuration != nil && *rc.OverrideDuration < traj.EndTime() {
		warnings = append(warnings, display.Warning{
			Title:      "Override ends before the plan",
			Message:    fmt.Sprintf("override_duration %v is shorter than the plan (%v)", *rc.OverrideDuration, traj.EndTime()),
			Files:      []string{cfg.TrajectoryFile},
			Suggestion: "Remove override_duration to execute the whole plan",
		})
	}

	rs := cfg.RealsenseConfig
	if rs.ShouldRecord && !rc.UseHardware {
		warnings = append(warnings, display.Warning{
			Title:   "Camera recording ignored",
			Message: "realsense_config.should_record only applies with use_hardware",
		})
	}
	if cfg.ShouldRecord() && len(recording.SpecsFromConfig(rs)) == 0 {
		warnings = append(warnings, display.Warning{
			Title:      "No cameras configured",
			Message:    "should_record is set but no camera has a name",
			Suggestion: "Set realsense_config.camera1_name",
		})
	}

	if !rc.SaveData {
		warnings = append(warnings, display.Warning{
			Title: "Trial data will not be saved",
		})
	}
	return warnings
}
