package models

import "time"

// RunState is a state of the trial run controller.
type RunState int

const (
	StateInit RunState = iota
	StateResetting
	StateWired
	StateRunning
	StateCompleted
	StateInterrupted
	StateFailed
	StateCleanedUp
)

// String returns the upper-case state name used in logs.
func (s RunState) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateResetting:
		return "RESETTING"
	case StateWired:
		return "WIRED"
	case StateRunning:
		return "RUNNING"
	case StateCompleted:
		return "COMPLETED"
	case StateInterrupted:
		return "INTERRUPTED"
	case StateFailed:
		return "FAILED"
	case StateCleanedUp:
		return "CLEANED_UP"
	default:
		return "UNKNOWN"
	}
}

// Trial outcome constants
const (
	OutcomeCompleted          = "completed"           // Execution reached its deadline
	OutcomeInterrupted        = "interrupted"         // Cancelled; state saved before teardown
	OutcomeFailedPrecondition = "failed_precondition" // Aborted before RUNNING, nothing left acquired
	OutcomeFailed             = "failed"              // Execution returned an unexpected error
)

// Transition records one state change of the controller.
type Transition struct {
	From RunState
	To   RunState
	At   time.Time
}

// TrialReport is the terminal summary of one controller pass.
type TrialReport struct {
	ID             string        // Unique trial identifier
	TrajectoryName string        // Name of the reference plan
	TrajectoryFile string        // Path the plan was loaded from
	RunDir         string        // Run-specific output directory
	ArtifactPath   string        // Recording file, empty when data is not saved
	UseHardware    bool          // Whether the main wiring drove hardware
	ClosedLoop     bool          // Whether the main wiring ran closed loop
	Reset          bool          // Whether the reset sub-run executed
	Recording      bool          // Whether a recording session was started
	Saved          bool          // Whether an explicit save was performed
	Deadline       time.Duration // Execution budget handed to the environment
	Elapsed        time.Duration // Wall time spent in RUNNING
	Outcome        string        // One of the Outcome* constants
	Reason         string        // Failure or interruption detail
	Transitions    []Transition  // Ordered state changes
	StartedAt      time.Time
	EndedAt        time.Time
}

// Final returns the last state the controller reached.
func (r *TrialReport) Final() RunState {
	if len(r.Transitions) == 0 {
		return StateInit
	}
	return r.Transitions[len(r.Transitions)-1].To
}

// Visited reports whether the controller entered the given state.
func (r *TrialReport) Visited(state RunState) bool {
	for _, tr := range r.Transitions {
		if tr.To == state {
			return true
		}
	}
	return false
}

// Handled reports whether the outcome is one the process treats as a normal
// exit: completion, interruption, or a reported precondition failure.
func (r *TrialReport) Handled() bool {
	switch r.Outcome {
	case OutcomeCompleted, OutcomeInterrupted, OutcomeFailedPrecondition:
		return true
	default:
		return false
	}
}
