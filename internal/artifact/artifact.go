// Package artifact names and persists the outputs of a trial: the run
// directory, the recording artifact path, and the explicit save performed
// when a trial is interrupted.
package artifact

import (
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
)

// PyBool formats b the way the trial artifact names always have: True/False.
func PyBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

// Name is the recording file name for a trajectory run with the given flags,
// e.g. traj_rounded_hw_False_clTrue.html.
func Name(trajName string, useHardware, closedLoop bool) string {
	return fmt.Sprintf("%s_hw_%s_cl%s.html", trajName, PyBool(useHardware), PyBool(closedLoop))
}

// Path is the recording artifact path inside runDir. It is empty when save is
// false, in which case no recording is written.
func Path(runDir, trajName string, useHardware, closedLoop, save bool) string {
	if !save {
		return ""
	}
	return filepath.Join(runDir, Name(trajName, useHardware, closedLoop))
}

// Sink persists a trial's logs and recording.
type Sink interface {
	Save(artifactPath, runDir string) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(artifactPath, runDir string) error

// Save implements Sink.
func (f SinkFunc) Save(artifactPath, runDir string) error {
	return f(artifactPath, runDir)
}

// OnceSink forwards at most one Save to the wrapped sink. Later calls return
// the first call's error without saving again.
type OnceSink struct {
	sink Sink

	attempted atomic.Bool
	done      chan struct{}
	mu        sync.Mutex
	err       error
}

// NewOnceSink wraps sink.
func NewOnceSink(sink Sink) *OnceSink {
	return &OnceSink{sink: sink, done: make(chan struct{})}
}

// Save implements Sink.
func (s *OnceSink) Save(artifactPath, runDir string) error {
	if !s.attempted.CompareAndSwap(false, true) {
		<-s.done
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.err
	}

	err := s.sink.Save(artifactPath, runDir)
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
	close(s.done)
	return err
}

// Attempted reports whether Save has been called.
func (s *OnceSink) Attempted() bool {
	return s.attempted.Load()
}

// Saved reports whether the single save completed without error.
func (s *OnceSink) Saved() bool {
	if !s.attempted.Load() {
		return false
	}
	select {
	case <-s.done:
	default:
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err == nil
}
