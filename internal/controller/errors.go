package controller

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/harrison/trialctl/internal/models"
)

// Stage identifies where a precondition failed.
type Stage int

const (
	// StageLoad is trajectory loading.
	StageLoad Stage = iota
	// StageReset is building or running the reset wiring.
	StageReset
	// StageWiring is building the main wiring.
	StageWiring
	// StageRecording is starting the recording session.
	StageRecording
)

// String returns the string representation of Stage.
func (s Stage) String() string {
	switch s {
	case StageLoad:
		return "load"
	case StageReset:
		return "reset"
	case StageWiring:
		return "wiring"
	case StageRecording:
		return "recording"
	default:
		return "unknown"
	}
}

// PreconditionError reports a trial that could not reach RUNNING. No
// resource acquired by the trial is left held when it is returned.
type PreconditionError struct {
	Stage     Stage     // Where the trial stopped
	Message   string    // Human-readable reason
	Err       error     // Underlying error (optional)
	Timestamp time.Time // When the failure was detected
}

// NewPreconditionError creates a PreconditionError with the current timestamp.
func NewPreconditionError(stage Stage, msg string, err error) *PreconditionError {
	return &PreconditionError{
		Stage:     stage,
		Message:   msg,
		Err:       err,
		Timestamp: time.Now(),
	}
}

// Error implements the error interface for PreconditionError.
func (e *PreconditionError) Error() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s: %s", e.Stage, e.Message))
	if e.Err != nil {
		sb.WriteString(fmt.Sprintf(": %v", e.Err))
	}
	return sb.String()
}

// Unwrap returns the underlying error for error wrapping support.
func (e *PreconditionError) Unwrap() error {
	return e.Err
}

// IsPreconditionError checks if the error is or wraps a PreconditionError.
func IsPreconditionError(err error) bool {
	if err == nil {
		return false
	}
	var pe *PreconditionError
	return errors.As(err, &pe)
}

// ExecutionError reports an unexpected failure of the timed execution.
type ExecutionError struct {
	State models.RunState // State the controller was in
	Err   error
}

// Error implements the error interface for ExecutionError.
func (e *ExecutionError) Error() string {
	return fmt.Sprintf("trial failed during %s: %v", e.State, e.Err)
}

// Unwrap returns the underlying error.
func (e *ExecutionError) Unwrap() error {
	return e.Err
}
