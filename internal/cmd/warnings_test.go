package cmd

import (
	"testing"
	"time"

	"github.com/harrison/trialctl/internal/config"
	"github.com/harrison/trialctl/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestTrialWarnings(t *testing.T) {
	traj := models.NewTrajectory("traj", []models.Segment{
		{Kind: models.KindFaceContact, Duration: 10 * time.Second},
	})
	short := config.Duration(5 * time.Second)
	long := config.Duration(20 * time.Second)

	tests := []struct {
		name   string
		mutate func(c *config.Config)
		want   []string
	}{
		{"defaults", func(c *config.Config) {}, nil},
		{"short override", func(c *config.Config) { c.OverrideDuration = &short }, []string{"Override ends before the plan"}},
		{"long override", func(c *config.Config) { c.OverrideDuration = &long }, nil},
		{"record in simulation", func(c *config.Config) {
			c.RealsenseConfig.ShouldRecord = true
			c.RealsenseConfig.Camera1Name = "overhead"
		}, []string{"Camera recording ignored"}},
		{"record without cameras", func(c *config.Config) {
			c.SimConfig.UseHardware = true
			c.RealsenseConfig.ShouldRecord = true
		}, []string{"No cameras configured"}},
		{"no save", func(c *config.Config) { c.SaveExperimentData = false }, []string{"Trial data will not be saved"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			cfg.TrajectoryFile = "plans/traj.yaml"
			tt.mutate(cfg)

			var titles []string
			for _, w := range trialWarnings(cfg, traj) {
				titles = append(titles, w.Title)
			}
			assert.Equal(t, tt.want, titles)
		})
	}
}
