package environment

import (
	"time"

	"github.com/harrison/trialctl/internal/config"
	"github.com/harrison/trialctl/internal/models"
)

// PositionSource produces the desired pusher pose over time.
type PositionSource interface {
	// InitialDesiredPose is the pose commanded before execution begins.
	InitialDesiredPose() models.Pose
	// DesiredPose returns the command at simulated time t given the last
	// measured pose.
	DesiredPose(t time.Duration, measured models.Pose) models.Pose
	// Period is the source's update period.
	Period() time.Duration
}

// PlanSource follows a reference trajectory after holding its initial pose
// for the configured delay. The command is refreshed once per control period
// and held in between. In closed loop the tracking error against the measured
// pose is fed forward with the configured gain.
type PlanSource struct {
	traj       *models.Trajectory
	delay      time.Duration
	period     time.Duration
	closedLoop bool
	gain       float64

	lastUpdate time.Duration
	started    bool
	current    models.Pose
}

// NewPlanSource binds a trajectory to the control frequency of cfg.
func NewPlanSource(cfg config.RunConfig, traj *models.Trajectory) *PlanSource {
	period := cfg.ControlPeriod
	if period <= 0 {
		period = cfg.TimeStep
	}
	return &PlanSource{
		traj:       traj,
		delay:      cfg.DelayBeforeExecution,
		period:     period,
		closedLoop: cfg.ClosedLoop,
		gain:       cfg.TrackingGain,
		current:    traj.InitialPose(),
	}
}

// InitialDesiredPose implements PositionSource.
func (s *PlanSource) InitialDesiredPose() models.Pose {
	return s.traj.InitialPose()
}

// Period implements PositionSource.
func (s *PlanSource) Period() time.Duration {
	return s.period
}

// Reference is the open-loop plan pose at t.
func (s *PlanSource) Reference(t time.Duration) models.Pose {
	if t < s.delay {
		return s.traj.InitialPose()
	}
	return s.traj.PoseAt(t - s.delay)
}

// DesiredPose implements PositionSource.
func (s *PlanSource) DesiredPose(t time.Duration, measured models.Pose) models.Pose {
	if s.started && t-s.lastUpdate < s.period {
		return s.current
	}
	s.started = true
	s.lastUpdate = t

	ref := s.Reference(t)
	if s.closedLoop && s.gain != 0 {
		ref = models.Pose{
			X:     ref.X + s.gain*(ref.X-measured.X),
			Y:     ref.Y + s.gain*(ref.Y-measured.Y),
			Theta: ref.Theta + s.gain*(ref.Theta-measured.Theta),
		}
	}
	s.current = ref
	return ref
}
