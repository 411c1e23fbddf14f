// Package logger provides logging implementations for trial execution.
//
// ConsoleLogger and FileLogger both record controller state changes,
// execution progress and the final trial summary. Implementations are
// thread-safe; the signal handler may log concurrently with the controller.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/harrison/trialctl/internal/models"
)

// Log level constants for filtering
const (
	levelTrace int = 0
	levelDebug int = 1
	levelInfo  int = 2
	levelWarn  int = 3
	levelError int = 4
)

// ConsoleLogger logs trial progress to a writer with timestamps and thread safety.
// All output is prefixed with [HH:MM:SS] timestamps.
// Color output is automatically enabled for terminal output (os.Stdout/os.Stderr).
type ConsoleLogger struct {
	writer      io.Writer
	logLevel    string
	mutex       sync.Mutex
	colorOutput bool

	lastBucket int
}

// NewConsoleLogger creates a ConsoleLogger that writes to the provided io.Writer.
// If writer is nil, messages are silently discarded.
// Valid levels: trace, debug, info, warn, error (case-insensitive); anything
// else means info.
func NewConsoleLogger(writer io.Writer, logLevel string) *ConsoleLogger {
	return &ConsoleLogger{
		writer:      writer,
		logLevel:    normalizeLogLevel(logLevel),
		colorOutput: isTerminal(writer),
		lastBucket:  -1,
	}
}

// isTerminal checks if the writer is a terminal that supports colors.
func isTerminal(w io.Writer) bool {
	if w == nil {
		return false
	}
	if w == os.Stdout || w == os.Stderr {
		// false when NO_COLOR is set or the stream is not a TTY
		return !color.NoColor
	}
	return false
}

// normalizeLogLevel converts a log level string to lowercase and validates it.
// Returns "info" as default for empty or invalid levels.
func normalizeLogLevel(level string) string {
	normalized := strings.ToLower(strings.TrimSpace(level))
	switch normalized {
	case "trace", "debug", "info", "warn", "error":
		return normalized
	default:
		return "info"
	}
}

// logLevelToInt converts a log level string to its numeric value.
func logLevelToInt(level string) int {
	switch level {
	case "trace":
		return levelTrace
	case "debug":
		return levelDebug
	case "info":
		return levelInfo
	case "warn":
		return levelWarn
	case "error":
		return levelError
	default:
		return levelInfo
	}
}

// shouldLog checks if a message at the given level should be logged.
func (cl *ConsoleLogger) shouldLog(messageLevel string) bool {
	return logLevelToInt(messageLevel) >= logLevelToInt(cl.logLevel)
}

// LogTrace logs a trace-level message (most verbose).
func (cl *ConsoleLogger) LogTrace(message string) {
	cl.logWithLevel("TRACE", message)
}

// LogDebug logs a debug-level message.
func (cl *ConsoleLogger) LogDebug(message string) {
	cl.logWithLevel("DEBUG", message)
}

// LogInfo logs an info-level message.
// Format: "[HH:MM:SS] [INFO] <message>"
func (cl *ConsoleLogger) LogInfo(message string) {
	cl.logWithLevel("INFO", message)
}

// LogWarn logs a warning-level message.
func (cl *ConsoleLogger) LogWarn(message string) {
	cl.logWithLevel("WARN", message)
}

// LogError logs an error-level message.
func (cl *ConsoleLogger) LogError(message string) {
	cl.logWithLevel("ERROR", message)
}

// Infof logs a formatted info message. It lets the logger serve recorders.
func (cl *ConsoleLogger) Infof(format string, args ...interface{}) {
	cl.LogInfo(fmt.Sprintf(format, args...))
}

// Warnf logs a formatted warning.
func (cl *ConsoleLogger) Warnf(format string, args ...interface{}) {
	cl.LogWarn(fmt.Sprintf(format, args...))
}

func (cl *ConsoleLogger) logWithLevel(level string, message string) {
	if cl.writer == nil || !cl.shouldLog(strings.ToLower(level)) {
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	ts := timestamp()
	if cl.colorOutput {
		cl.writer.Write([]byte(fmt.Sprintf("[%s] [%s] %s\n", ts, levelColor(level).Sprint(level), message)))
		return
	}
	cl.writer.Write([]byte(fmt.Sprintf("[%s] [%s] %s\n", ts, level, message)))
}

// LogStateChange logs a controller transition at DEBUG, or INFO for
// terminal states.
// Format: "[HH:MM:SS] State: RUNNING -> COMPLETED"
func (cl *ConsoleLogger) LogStateChange(from, to models.RunState) {
	if cl.writer == nil {
		return
	}
	level := "debug"
	if isTerminalState(to) {
		level = "info"
	}
	if !cl.shouldLog(level) {
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	target := to.String()
	if cl.colorOutput {
		target = stateColor(to).Sprint(target)
	}
	cl.writer.Write([]byte(fmt.Sprintf("[%s] State: %s -> %s\n", timestamp(), from, target)))
}

func isTerminalState(s models.RunState) bool {
	switch s {
	case models.StateCompleted, models.StateInterrupted, models.StateFailed:
		return true
	default:
		return false
	}
}

// LogProgress logs execution progress in simulated time. Lines are emitted
// at most once per 10% of the deadline, plus once on completion.
// Format: "[HH:MM:SS] Progress: [=====     ] 5/10 (50%) sim 5s/10s"
func (cl *ConsoleLogger) LogProgress(simTime, total time.Duration) {
	if cl.writer == nil || !cl.shouldLog("info") {
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	bucket := progressBucket(simTime, total)
	if bucket == cl.lastBucket {
		return
	}
	cl.lastBucket = bucket
	if bucket == 10 {
		// next execution starts fresh
		cl.lastBucket = -1
	}

	pb := NewProgressBar(int(total/time.Second), 10, cl.colorOutput)
	pb.Update(int(simTime / time.Second))
	cl.writer.Write([]byte(fmt.Sprintf("[%s] Progress: %s sim %s/%s\n",
		timestamp(), pb.Render(), formatDuration(simTime), formatDuration(total))))
}

// progressBucket maps progress to 0..10.
func progressBucket(simTime, total time.Duration) int {
	if total <= 0 || simTime >= total {
		return 10
	}
	return int(simTime * 10 / total)
}

// LogSummary logs the trial summary at INFO level.
func (cl *ConsoleLogger) LogSummary(report models.TrialReport) {
	if cl.writer == nil || !cl.shouldLog("info") {
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	cl.writer.Write([]byte(formatSummary(report, timestamp(), cl.colorOutput)))
}

// formatSummary renders the trial summary block shared by console and file output.
func formatSummary(report models.TrialReport, ts string, useColor bool) string {
	header := "=== Trial Summary ==="
	outcome := report.Outcome
	if useColor {
		header = color.New(color.Bold).Sprint(header)
		outcome = outcomeColor(report.Outcome).Sprint(outcome)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("[%s] %s\n", ts, header))
	sb.WriteString(fmt.Sprintf("[%s] Trial: %s\n", ts, report.ID))
	if report.TrajectoryName != "" {
		sb.WriteString(fmt.Sprintf("[%s] Trajectory: %s\n", ts, report.TrajectoryName))
	}
	sb.WriteString(fmt.Sprintf("[%s] Mode: hardware=%t closed_loop=%t reset=%t recording=%t\n",
		ts, report.UseHardware, report.ClosedLoop, report.Reset, report.Recording))
	sb.WriteString(fmt.Sprintf("[%s] Outcome: %s\n", ts, outcome))
	if report.Reason != "" {
		sb.WriteString(fmt.Sprintf("[%s] Reason: %s\n", ts, report.Reason))
	}
	if report.Deadline > 0 {
		sb.WriteString(fmt.Sprintf("[%s] Deadline: %s (elapsed %s)\n", ts, formatDuration(report.Deadline), report.Elapsed.Round(time.Millisecond)))
	}
	if report.ArtifactPath != "" {
		sb.WriteString(fmt.Sprintf("[%s] Artifact: %s\n", ts, report.ArtifactPath))
	}
	if report.Saved {
		sb.WriteString(fmt.Sprintf("[%s] Saved after interrupt: %s\n", ts, report.RunDir))
	}
	return sb.String()
}

// timestamp returns the current time formatted as "15:04:05" (HH:MM:SS).
func timestamp() string {
	return time.Now().Format("15:04:05")
}

// formatDuration converts a time.Duration to a human-readable string.
// Examples: "5s", "1m30s", "2h15m", "500ms"
func formatDuration(d time.Duration) string {
	switch {
	case d >= time.Hour:
		hours := d / time.Hour
		minutes := (d % time.Hour) / time.Minute
		if minutes == 0 {
			return fmt.Sprintf("%dh", hours)
		}
		return fmt.Sprintf("%dh%dm", hours, minutes)
	case d >= time.Minute:
		minutes := d / time.Minute
		seconds := (d % time.Minute) / time.Second
		if seconds == 0 {
			return fmt.Sprintf("%dm", minutes)
		}
		return fmt.Sprintf("%dm%ds", minutes, seconds)
	case d >= time.Second || d == 0:
		return fmt.Sprintf("%ds", int64(d.Seconds()))
	default:
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
}

// NoOpLogger discards all log messages.
type NoOpLogger struct{}

// NewNoOpLogger creates a NoOpLogger instance.
func NewNoOpLogger() *NoOpLogger {
	return &NoOpLogger{}
}

func (n *NoOpLogger) LogDebug(string) {}
func (n *NoOpLogger) LogInfo(string) {}
func (n *NoOpLogger) LogWarn(string) {}
func (n *NoOpLogger) LogError(string) {}
func (n *NoOpLogger) LogStateChange(models.RunState, models.RunState) {}
func (n *NoOpLogger) LogProgress(time.Duration, time.Duration) {}
func (n *NoOpLogger) LogSummary(models.TrialReport) {}
