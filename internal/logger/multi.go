package logger

import (
	"fmt"
	"time"

	"github.com/harrison/trialctl/internal/models"
)

// Sink is the set of events a MultiLogger fans out.
type Sink interface {
	LogDebug(message string)
	LogInfo(message string)
	LogWarn(message string)
	LogError(message string)
	LogStateChange(from, to models.RunState)
	LogProgress(simTime, total time.Duration)
	LogSummary(report models.TrialReport)
}

// MultiLogger forwards every event to each of its sinks in order.
type MultiLogger struct {
	sinks []Sink
}

// NewMultiLogger creates a MultiLogger; nil sinks are skipped.
func NewMultiLogger(sinks ...Sink) *MultiLogger {
	m := &MultiLogger{}
	for _, s := range sinks {
		if s != nil {
			m.sinks = append(m.sinks, s)
		}
	}
	return m
}

func (m *MultiLogger) LogDebug(message string) {
	for _, s := range m.sinks {
		s.LogDebug(message)
	}
}

func (m *MultiLogger) LogInfo(message string) {
	for _, s := range m.sinks {
		s.LogInfo(message)
	}
}

func (m *MultiLogger) LogWarn(message string) {
	for _, s := range m.sinks {
		s.LogWarn(message)
	}
}

func (m *MultiLogger) LogError(message string) {
	for _, s := range m.sinks {
		s.LogError(message)
	}
}

// Infof logs a formatted info message to every sink.
func (m *MultiLogger) Infof(format string, args ...interface{}) {
	m.LogInfo(fmt.Sprintf(format, args...))
}

// Warnf logs a formatted warning to every sink.
func (m *MultiLogger) Warnf(format string, args ...interface{}) {
	m.LogWarn(fmt.Sprintf(format, args...))
}

func (m *MultiLogger) LogStateChange(from, to models.RunState) {
	for _, s := range m.sinks {
		s.LogStateChange(from, to)
	}
}

func (m *MultiLogger) LogProgress(simTime, total time.Duration) {
	for _, s := range m.sinks {
		s.LogProgress(simTime, total)
	}
}

func (m *MultiLogger) LogSummary(report models.TrialReport) {
	for _, s := range m.sinks {
		s.LogSummary(report)
	}
}
