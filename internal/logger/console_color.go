package logger

import (
	"github.com/fatih/color"
	"github.com/harrison/trialctl/internal/models"
)

// Colors used across console output.
// Green: completed work
// Red: failures and errors
// Yellow: warnings and interruptions
// Cyan: in-flight states
var (
	colorSuccess = color.New(color.FgGreen)
	colorFail    = color.New(color.FgRed)
	colorWarn    = color.New(color.FgYellow)
	colorActive  = color.New(color.FgCyan)
	colorMuted   = color.New(color.Faint)
)

// levelColor returns the color for a log level label.
func levelColor(level string) *color.Color {
	switch level {
	case "ERROR":
		return colorFail
	case "WARN":
		return colorWarn
	case "INFO":
		return colorActive
	default:
		return colorMuted
	}
}

// stateColor returns the color for a controller state name.
func stateColor(s models.RunState) *color.Color {
	switch s {
	case models.StateCompleted, models.StateCleanedUp:
		return colorSuccess
	case models.StateInterrupted:
		return colorWarn
	case models.StateFailed:
		return colorFail
	default:
		return colorActive
	}
}

// outcomeColor returns the color for a trial outcome.
func outcomeColor(outcome string) *color.Color {
	switch outcome {
	case models.OutcomeCompleted:
		return colorSuccess
	case models.OutcomeInterrupted:
		return colorWarn
	case models.OutcomeFailed, models.OutcomeFailedPrecondition:
		return colorFail
	default:
		return colorMuted
	}
}
