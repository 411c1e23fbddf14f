package environment

import (
	"errors"
	"math"
	"time"

	"github.com/harrison/trialctl/internal/config"
	"github.com/harrison/trialctl/internal/models"
	"github.com/harrison/trialctl/internal/viz"
)

// ErrNoHardwareDriver is returned by Build when hardware mode is requested but
// no hardware driver factory was registered.
var ErrNoHardwareDriver = errors.New("no hardware driver registered")

// RobotDriver moves the pusher toward commanded poses.
type RobotDriver interface {
	// Init places the robot at pose before execution.
	Init(pose models.Pose) error
	// Command sets the pose the robot should track.
	Command(pose models.Pose)
	// Step advances the driver by dt.
	Step(dt time.Duration) error
	// Measured returns the current measured pose.
	Measured() models.Pose
	// Close releases the driver.
	Close() error
}

// DriverFactory constructs a robot driver for one wiring. station receives
// the driver's view of the robot.
type DriverFactory func(cfg config.RunConfig, station viz.Publisher) (RobotDriver, error)

// defaultBandwidth is the simulated station's tracking bandwidth in 1/s.
const defaultBandwidth = 20.0

// SimStation is a simulated robot: a first-order lag toward the command.
type SimStation struct {
	bandwidth float64
	station   viz.Publisher

	now     time.Duration
	pose    models.Pose
	command models.Pose
	closed  bool
}

// NewSimStation is the DriverFactory for simulation mode.
func NewSimStation(cfg config.RunConfig, station viz.Publisher) (RobotDriver, error) {
	return &SimStation{
		bandwidth: defaultBandwidth,
		station:   station,
	}, nil
}

// Init implements RobotDriver.
func (s *SimStation) Init(pose models.Pose) error {
	s.pose = pose
	s.command = pose
	s.now = 0
	return nil
}

// Command implements RobotDriver.
func (s *SimStation) Command(pose models.Pose) {
	s.command = pose
}

// Step implements RobotDriver.
func (s *SimStation) Step(dt time.Duration) error {
	if s.closed {
		return errors.New("station is closed")
	}
	alpha := math.Min(1, dt.Seconds()*s.bandwidth)
	s.pose = s.pose.Lerp(s.command, alpha)
	s.now += dt
	s.station.Publish(viz.Frame{Time: s.now, Path: "iiwa/pusher", Pose: s.pose, Label: "measured"})
	return nil
}

// Measured implements RobotDriver.
func (s *SimStation) Measured() models.Pose {
	return s.pose
}

// Close implements RobotDriver.
func (s *SimStation) Close() error {
	s.closed = true
	return nil
}
