package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/harrison/trialctl/internal/models"
)

// LatestLogName is the symlink that always points at the newest trial log.
const LatestLogName = "latest.log"

// FileLogger logs trial events to a timestamped file in a log directory.
// Each logger owns one trial-YYYYMMDD-HHMMSS.log file, writes a per-trial
// transition log under trials/ when the summary arrives, and keeps the
// latest.log symlink pointing at its file.
type FileLogger struct {
	logDir    string
	runLog    *os.File
	runFile   string
	trialsDir string
	logLevel  string
	mu        sync.Mutex
}

// NewFileLoggerWithDir creates a new FileLogger with the default level "info".
func NewFileLoggerWithDir(logDir string) (*FileLogger, error) {
	return NewFileLoggerWithDirAndLevel(logDir, "info")
}

// NewFileLoggerWithDirAndLevel creates a FileLogger writing into logDir,
// creating the directory when needed.
func NewFileLoggerWithDirAndLevel(logDir string, logLevel string) (*FileLogger, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	trialsDir := filepath.Join(logDir, "trials")
	if err := os.MkdirAll(trialsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create trials directory: %w", err)
	}

	ts := time.Now().Format("20060102-150405")
	runFile := filepath.Join(logDir, fmt.Sprintf("trial-%s.log", ts))

	file, err := os.OpenFile(runFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create trial log file: %w", err)
	}

	symlinkPath := filepath.Join(logDir, LatestLogName)
	if _, err := os.Lstat(symlinkPath); err == nil {
		if err := os.Remove(symlinkPath); err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to remove old symlink: %w", err)
		}
	}
	if err := os.Symlink(filepath.Base(runFile), symlinkPath); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to create symlink: %w", err)
	}

	logger := &FileLogger{
		logDir:    logDir,
		runLog:    file,
		runFile:   runFile,
		trialsDir: trialsDir,
		logLevel:  normalizeLogLevel(logLevel),
	}

	logger.writeRunLog("=== Trial Log ===\n")
	logger.writeRunLog(fmt.Sprintf("Started at: %s\n\n", time.Now().Format(time.RFC3339)))

	return logger, nil
}

// Path returns the trial log file path.
func (fl *FileLogger) Path() string {
	return fl.runFile
}

func (fl *FileLogger) shouldLog(messageLevel string) bool {
	return logLevelToInt(messageLevel) >= logLevelToInt(fl.logLevel)
}

// LogTrace logs a trace-level message (most verbose).
func (fl *FileLogger) LogTrace(message string) {
	fl.logWithLevel("TRACE", message)
}

// LogDebug logs a debug-level message.
func (fl *FileLogger) LogDebug(message string) {
	fl.logWithLevel("DEBUG", message)
}

// LogInfo logs an info-level message.
func (fl *FileLogger) LogInfo(message string) {
	fl.logWithLevel("INFO", message)
}

// LogWarn logs a warning-level message.
func (fl *FileLogger) LogWarn(message string) {
	fl.logWithLevel("WARN", message)
}

// LogError logs an error-level message.
func (fl *FileLogger) LogError(message string) {
	fl.logWithLevel("ERROR", message)
}

// Infof logs a formatted info message.
func (fl *FileLogger) Infof(format string, args ...interface{}) {
	fl.LogInfo(fmt.Sprintf(format, args...))
}

// Warnf logs a formatted warning.
func (fl *FileLogger) Warnf(format string, args ...interface{}) {
	fl.LogWarn(fmt.Sprintf(format, args...))
}

func (fl *FileLogger) logWithLevel(level string, message string) {
	if !fl.shouldLog(strings.ToLower(level)) {
		return
	}
	fl.writeRunLog(fmt.Sprintf("[%s] [%s] %s\n", timestamp(), level, message))
}

// LogStateChange records every transition regardless of level.
func (fl *FileLogger) LogStateChange(from, to models.RunState) {
	fl.writeRunLog(fmt.Sprintf("[%s] State: %s -> %s\n", timestamp(), from, to))
}

// LogProgress is a no-op; progress bars are console-only.
func (fl *FileLogger) LogProgress(simTime, total time.Duration) {}

// LogSummary appends the summary block to the trial log and writes
// trials/trial-<id>.log with the full transition history.
func (fl *FileLogger) LogSummary(report models.TrialReport) {
	fl.writeRunLog("\n" + formatSummary(report, timestamp(), false))
	if err := fl.writeTrialDetail(report); err != nil {
		fl.writeRunLog(fmt.Sprintf("[%s] [WARN] %v\n", timestamp(), err))
	}
}

func (fl *FileLogger) writeTrialDetail(report models.TrialReport) error {
	id := report.ID
	if id == "" {
		id = "unknown"
	}
	path := filepath.Join(fl.trialsDir, fmt.Sprintf("trial-%s.log", id))

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("=== Trial %s: %s ===\n", id, report.TrajectoryName))
	sb.WriteString(fmt.Sprintf("Plan: %s\n", report.TrajectoryFile))
	sb.WriteString(fmt.Sprintf("Run directory: %s\n", report.RunDir))
	sb.WriteString(fmt.Sprintf("Outcome: %s\n", report.Outcome))
	if report.Reason != "" {
		sb.WriteString(fmt.Sprintf("Reason: %s\n", report.Reason))
	}
	sb.WriteString(fmt.Sprintf("Deadline: %s\n", formatDuration(report.Deadline)))
	sb.WriteString(fmt.Sprintf("Elapsed: %.1fs\n", report.Elapsed.Seconds()))
	sb.WriteString("\n=== Transitions ===\n")
	for _, tr := range report.Transitions {
		sb.WriteString(fmt.Sprintf("%s  %s -> %s\n", tr.At.Format(time.RFC3339Nano), tr.From, tr.To))
	}

	fl.mu.Lock()
	defer fl.mu.Unlock()
	if err := os.WriteFile(path, []byte(sb.String()), 0644); err != nil {
		return fmt.Errorf("failed to write trial detail log: %w", err)
	}
	return nil
}

// Close flushes and closes the trial log file. It is safe to call twice.
func (fl *FileLogger) Close() error {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	if fl.runLog != nil {
		if err := fl.runLog.Sync(); err != nil {
			return fmt.Errorf("failed to sync trial log: %w", err)
		}
		if err := fl.runLog.Close(); err != nil {
			return fmt.Errorf("failed to close trial log: %w", err)
		}
		fl.runLog = nil
	}
	return nil
}

func (fl *FileLogger) writeRunLog(message string) {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	if fl.runLog != nil {
		fl.runLog.WriteString(message)
		fl.runLog.Sync()
	}
}
