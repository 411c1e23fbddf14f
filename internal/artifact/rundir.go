package artifact

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/harrison/trialctl/internal/config"
	"github.com/harrison/trialctl/internal/filelock"
	"github.com/harrison/trialctl/internal/fileutil"
)

const (
	// LatestLink points at the most recent run directory under the base.
	LatestLink = "latest"
	// ConfigSnapshotName is the resolved configuration saved with each run.
	ConfigSnapshotName = "config.yaml"
	// PlanDirName holds the copied plan folder.
	PlanDirName = "plan"
	// RecordingsDirName receives camera recordings.
	RecordingsDirName = "recordings"
)

// RunDir is a locked, dated output directory for one trial.
type RunDir struct {
	Path string
	lock *filelock.FileLock
}

// RunDirPath is <base>/<YYYY-MM-DD>/<HH-MM-SS>.
func RunDirPath(base string, now time.Time) string {
	return filepath.Join(base, now.Format("2006-01-02"), now.Format("15-04-05"))
}

// NewRunDir creates and locks the run directory for a trial started at now
// and repoints <base>/latest at it. A second process targeting the same
// directory fails with filelock.ErrLocked.
func NewRunDir(base string, now time.Time) (*RunDir, error) {
	path := RunDirPath(base, now)
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create run directory: %w", err)
	}

	lock, err := filelock.LockRunDir(path)
	if err != nil {
		return nil, err
	}

	if err := updateLatest(base, path); err != nil {
		lock.Unlock()
		return nil, err
	}
	return &RunDir{Path: path, lock: lock}, nil
}

func updateLatest(base, target string) error {
	rel, err := filepath.Rel(base, target)
	if err != nil {
		return fmt.Errorf("failed to resolve run directory: %w", err)
	}
	link := filepath.Join(base, LatestLink)
	if _, err := os.Lstat(link); err == nil {
		if err := os.Remove(link); err != nil {
			return fmt.Errorf("failed to remove old symlink: %w", err)
		}
	}
	if err := os.Symlink(rel, link); err != nil {
		return fmt.Errorf("failed to create symlink: %w", err)
	}
	return nil
}

// RecordingsDir is where camera recordings for this run are written.
func (d *RunDir) RecordingsDir() string {
	return filepath.Join(d.Path, RecordingsDirName)
}

// Close releases the run directory lock. Safe to call more than once.
func (d *RunDir) Close() error {
	if d == nil || d.lock == nil {
		return nil
	}
	err := d.lock.Unlock()
	d.lock = nil
	return err
}

// CopyPlanFolder mirrors src into <runDir>/plan verbatim, including hidden
// entries and symbolic links (recreated, not followed). An empty src is a
// no-op.
func CopyPlanFolder(src, runDir string) ([]string, error) {
	if src == "" {
		return nil, nil
	}
	copied, err := fileutil.CopyTree(src, filepath.Join(runDir, PlanDirName), fileutil.ScanOptions{
		IncludeHidden:   true,
		IncludeSymlinks: true,
	})
	if err != nil {
		return copied, fmt.Errorf("failed to copy plan folder %s: %w", src, err)
	}
	return copied, nil
}

// WriteConfigSnapshot saves the resolved configuration into runDir.
func WriteConfigSnapshot(runDir string, cfg *config.Config) error {
	data, err := cfg.Snapshot()
	if err != nil {
		return err
	}
	return filelock.AtomicWrite(filepath.Join(runDir, ConfigSnapshotName), data)
}
