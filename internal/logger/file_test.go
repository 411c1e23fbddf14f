package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/harrison/trialctl/internal/models"
)

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}

// TestFileLoggerCreatesTrialLog verifies the timestamped log and latest.log symlink
func TestFileLoggerCreatesTrialLog(t *testing.T) {
	logDir := filepath.Join(t.TempDir(), "logs")

	logger, err := NewFileLoggerWithDir(logDir)
	if err != nil {
		t.Fatalf("NewFileLoggerWithDir() error = %v", err)
	}
	defer logger.Close()

	name := filepath.Base(logger.Path())
	if !strings.HasPrefix(name, "trial-") || !strings.HasSuffix(name, ".log") {
		t.Errorf("unexpected log file name %s", name)
	}

	target, err := os.Readlink(filepath.Join(logDir, LatestLogName))
	if err != nil {
		t.Fatalf("latest.log symlink missing: %v", err)
	}
	if target != name {
		t.Errorf("latest.log -> %s, want %s", target, name)
	}

	if !strings.Contains(readFile(t, logger.Path()), "=== Trial Log ===") {
		t.Error("expected log header")
	}
}

// TestFileLoggerReplacesLatestSymlink verifies a stale latest.log is repointed
func TestFileLoggerReplacesLatestSymlink(t *testing.T) {
	logDir := t.TempDir()
	if err := os.Symlink("trial-old.log", filepath.Join(logDir, LatestLogName)); err != nil {
		t.Fatal(err)
	}

	logger, err := NewFileLoggerWithDir(logDir)
	if err != nil {
		t.Fatalf("NewFileLoggerWithDir() error = %v", err)
	}
	defer logger.Close()

	target, _ := os.Readlink(filepath.Join(logDir, LatestLogName))
	if target != filepath.Base(logger.Path()) {
		t.Errorf("latest.log -> %s, want %s", target, filepath.Base(logger.Path()))
	}
}

func TestFileLoggerLevels(t *testing.T) {
	logger, err := NewFileLoggerWithDirAndLevel(t.TempDir(), "warn")
	if err != nil {
		t.Fatal(err)
	}
	defer logger.Close()

	logger.LogDebug("debug-line")
	logger.LogInfo("info-line")
	logger.Warnf("warn-%s", "line")
	logger.LogError("error-line")

	content := readFile(t, logger.Path())
	if strings.Contains(content, "debug-line") || strings.Contains(content, "info-line") {
		t.Errorf("messages below warn should be filtered:\n%s", content)
	}
	if !strings.Contains(content, "[WARN] warn-line") || !strings.Contains(content, "[ERROR] error-line") {
		t.Errorf("expected warn and error lines:\n%s", content)
	}
}

// TestFileLoggerStateChangesIgnoreLevel verifies transitions are always recorded
func TestFileLoggerStateChangesIgnoreLevel(t *testing.T) {
	logger, err := NewFileLoggerWithDirAndLevel(t.TempDir(), "error")
	if err != nil {
		t.Fatal(err)
	}
	defer logger.Close()

	logger.LogStateChange(models.StateInit, models.StateWired)
	logger.LogProgress(time.Second, 2*time.Second)

	content := readFile(t, logger.Path())
	if !strings.Contains(content, "State: INIT -> WIRED") {
		t.Errorf("expected transition line:\n%s", content)
	}
	if strings.Contains(content, "Progress") {
		t.Errorf("progress is console-only:\n%s", content)
	}
}

func TestFileLoggerSummaryWritesTrialDetail(t *testing.T) {
	logDir := t.TempDir()
	logger, err := NewFileLoggerWithDir(logDir)
	if err != nil {
		t.Fatal(err)
	}
	defer logger.Close()

	start := time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)
	report := sampleReport()
	report.TrajectoryFile = "plans/traj_rounded.yaml"
	report.Transitions = []models.Transition{
		{From: models.StateInit, To: models.StateWired, At: start},
		{From: models.StateWired, To: models.StateRunning, At: start.Add(time.Millisecond)},
		{From: models.StateRunning, To: models.StateCompleted, At: start.Add(2 * time.Second)},
		{From: models.StateCompleted, To: models.StateCleanedUp, At: start.Add(3 * time.Second)},
	}
	logger.LogSummary(report)

	content := readFile(t, logger.Path())
	if !strings.Contains(content, "=== Trial Summary ===") || !strings.Contains(content, "Outcome: completed") {
		t.Errorf("expected summary in trial log:\n%s", content)
	}
	if strings.Contains(content, "\033[") {
		t.Error("file output must not contain color codes")
	}

	detail := readFile(t, filepath.Join(logDir, "trials", "trial-abc123.log"))
	for _, want := range []string{
		"=== Trial abc123: traj_rounded ===",
		"Plan: plans/traj_rounded.yaml",
		"Elapsed: 1.5s",
		"INIT -> WIRED",
		"COMPLETED -> CLEANED_UP",
	} {
		if !strings.Contains(detail, want) {
			t.Errorf("detail missing %q:\n%s", want, detail)
		}
	}
}

func TestFileLoggerCloseTwice(t *testing.T) {
	logger, err := NewFileLoggerWithDir(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
	// writes after close are dropped
	logger.LogInfo("late")
}

func TestFileLoggerBadDirectory(t *testing.T) {
	file := filepath.Join(t.TempDir(), "not-a-dir")
	if err := os.WriteFile(file, nil, 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewFileLoggerWithDir(filepath.Join(file, "logs")); err == nil {
		t.Fatal("expected error for log dir under a regular file")
	}
}
