// Package viz provides the visualization scenes shared by the reset and main
// wirings of a trial.
//
// A Scene is owned by at most one wiring at a time. A wiring claims it when
// it is built and releases it with Delete; a second Claim while the scene is
// held fails with ErrSceneBusy. Scenes are created by the caller and passed
// explicitly into each wiring.
package viz

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/harrison/trialctl/internal/models"
)

// ErrSceneBusy is returned by Claim while another owner holds the scene.
var ErrSceneBusy = errors.New("scene is held by another wiring")

// Frame is one published pose sample.
type Frame struct {
	Time  time.Duration
	Path  string
	Pose  models.Pose
	Label string
}

// Scene accumulates published frames for a single owner.
type Scene struct {
	name string

	mu      sync.Mutex
	owner   string
	frames  []Frame
	deletes int
}

// NewScene creates an empty, unowned scene.
func NewScene(name string) *Scene {
	return &Scene{name: name}
}

// Name returns the scene's name.
func (s *Scene) Name() string {
	return s.name
}

// Claim takes ownership of the scene for owner.
func (s *Scene) Claim(owner string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.owner != "" && s.owner != owner {
		return fmt.Errorf("%s: %w (owner %s)", s.name, ErrSceneBusy, s.owner)
	}
	s.owner = owner
	return nil
}

// Owner returns the current owner, empty when the scene is free.
func (s *Scene) Owner() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.owner
}

// Publish records a pose under path. Frames published by anyone other than
// the current owner are dropped.
func (s *Scene) Publish(owner string, f Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.owner != owner {
		return
	}
	s.frames = append(s.frames, f)
}

// Frames returns a copy of the published frames.
func (s *Scene) Frames() []Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Frame(nil), s.frames...)
}

// Delete clears every frame and releases ownership.
func (s *Scene) Delete() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.frames = nil
	s.owner = ""
	s.deletes++
}

// Deletes counts how many times the scene has been cleared.
func (s *Scene) Deletes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deletes
}

// Targets are the two scenes a wiring publishes to: one for the control
// source's view of the station and one for the state estimator. Either may be
// nil, in which case nothing is published to it.
type Targets struct {
	Station   *Scene
	Estimator *Scene
}

// None is the zero Targets value used when visualization is disabled.
var None = Targets{}

// Scenes returns the non-nil scenes.
func (t Targets) Scenes() []*Scene {
	var out []*Scene
	if t.Station != nil {
		out = append(out, t.Station)
	}
	if t.Estimator != nil {
		out = append(out, t.Estimator)
	}
	return out
}

// ClaimAll claims every scene for owner, releasing any already claimed on
// failure.
func (t Targets) ClaimAll(owner string) error {
	var claimed []*Scene
	for _, s := range t.Scenes() {
		if err := s.Claim(owner); err != nil {
			for _, c := range claimed {
				c.Delete()
			}
			return err
		}
		claimed = append(claimed, s)
	}
	return nil
}

// DeleteAll clears every scene.
func (t Targets) DeleteAll() {
	for _, s := range t.Scenes() {
		s.Delete()
	}
}

// Publisher publishes frames to one scene on behalf of one owner. The zero
// value discards frames.
type Publisher struct {
	scene *Scene
	owner string
}

// NewPublisher binds scene and owner. scene may be nil.
func NewPublisher(scene *Scene, owner string) Publisher {
	return Publisher{scene: scene, owner: owner}
}

// Publish records f if the publisher is bound to a scene.
func (p Publisher) Publish(f Frame) {
	if p.scene != nil {
		p.scene.Publish(p.owner, f)
	}
}

// Enabled reports whether frames go anywhere.
func (p Publisher) Enabled() bool {
	return p.scene != nil
}
