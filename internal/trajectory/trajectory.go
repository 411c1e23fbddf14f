// Package trajectory loads persisted reference motion plans.
//
// A plan file is YAML (JSON is accepted as a YAML subset):
//
//	name: traj_rounded
//	segments:
//	  - kind: non_collision
//	    duration: 2.5
//	    knots:
//	      - {x: 0.0, y: -0.2, theta: 0.0}
//	      - {x: 0.1, y: -0.1, theta: 0.0}
//	  - kind: face_contact
//	    duration: 4s
//	    knots: [...]
//
// Durations are Go duration strings or bare numbers of seconds.
package trajectory

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/harrison/trialctl/internal/config"
	"github.com/harrison/trialctl/internal/models"
	"gopkg.in/yaml.v3"
)

// NotFoundError is returned by Load when the plan path does not resolve.
type NotFoundError struct {
	Path string
	Err  error
}

// Error implements the error interface for NotFoundError.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("trajectory file %s not found", e.Path)
}

// Unwrap returns the underlying filesystem error.
func (e *NotFoundError) Unwrap() error {
	return e.Err
}

// IsNotFound checks if the error is or wraps a NotFoundError.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	var nf *NotFoundError
	return errors.As(err, &nf)
}

type segmentYAML struct {
	Kind     string          `yaml:"kind"`
	Duration config.Duration `yaml:"duration"`
	Knots    []models.Pose   `yaml:"knots"`
}

type trajectoryYAML struct {
	Name     string        `yaml:"name"`
	Segments []segmentYAML `yaml:"segments"`
}

// Load reads and validates the plan at path.
func Load(path string) (*models.Trajectory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &NotFoundError{Path: path, Err: err}
		}
		return nil, fmt.Errorf("failed to read trajectory file: %w", err)
	}

	traj, err := Parse(data, defaultName(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	traj.FilePath = path
	return traj, nil
}

// Parse decodes a plan document. fallbackName is used when the document has
// no name field.
func Parse(data []byte, fallbackName string) (*models.Trajectory, error) {
	var doc trajectoryYAML
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse trajectory: %w", err)
	}

	if len(doc.Segments) == 0 {
		return nil, fmt.Errorf("trajectory has no segments")
	}

	segments := make([]models.Segment, 0, len(doc.Segments))
	for i, s := range doc.Segments {
		kind := models.SegmentKind(strings.ToLower(strings.TrimSpace(s.Kind)))
		if !kind.Valid() {
			return nil, fmt.Errorf("segment %d: unknown kind %q", i, s.Kind)
		}
		if s.Duration.Std() < 0 {
			return nil, fmt.Errorf("segment %d: duration must be >= 0, got %v", i, s.Duration.Std())
		}
		segments = append(segments, models.Segment{
			Kind:     kind,
			Duration: s.Duration.Std(),
			Knots:    s.Knots,
		})
	}

	name := doc.Name
	if name == "" {
		name = fallbackName
	}
	return models.NewTrajectory(name, segments), nil
}

func defaultName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// EndTime returns the total duration of the plan.
func EndTime(traj *models.Trajectory) time.Duration {
	return traj.EndTime()
}

// Loader adapts Load to the controller's loader interface.
type Loader struct{}

// Load reads the plan at path.
func (Loader) Load(path string) (*models.Trajectory, error) {
	return Load(path)
}
