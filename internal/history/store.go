// Package history persists trial reports in a local SQLite database so past
// runs can be listed and inspected after the process exits.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/harrison/trialctl/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned when a trial ID has no record.
var ErrNotFound = errors.New("trial not found")

// Store manages the SQLite trial history database
type Store struct {
	db     *sql.DB
	dbPath string
}

// Open creates the database (and its parent directory) if needed and applies
// pending migrations. ":memory:" opens a private in-memory database.
func Open(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// one connection keeps pragmas and in-memory databases consistent
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA busy_timeout=5000", // Must be first
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if err := execWithRetry(db, pragma, 5, 10*time.Millisecond); err != nil {
			db.Close()
			return nil, fmt.Errorf("set %s: %w", pragma, err)
		}
	}

	store := &Store{db: db, dbPath: dbPath}
	if err := store.ApplyMigrations(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return store, nil
}

// execWithRetry executes a SQL statement with exponential backoff retry on lock errors.
func execWithRetry(db *sql.DB, stmt string, maxRetries int, baseDelay time.Duration) error {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		_, err := db.Exec(stmt)
		if err == nil {
			return nil
		}
		if !strings.Contains(err.Error(), "database is locked") {
			return err
		}
		lastErr = err
		time.Sleep(baseDelay * time.Duration(1<<attempt))
	}
	return lastErr
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.dbPath
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// RecordTrial stores a terminal trial report and its transitions. Recording
// the same trial ID twice replaces the earlier row.
func (s *Store) RecordTrial(ctx context.Context, report *models.TrialReport) error {
	if report == nil {
		return fmt.Errorf("record trial: nil report")
	}
	if report.ID == "" {
		return fmt.Errorf("record trial: empty trial id")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM transitions WHERE trial_id = ?`, report.ID); err != nil {
		return fmt.Errorf("clear transitions: %w", err)
	}

	query := `INSERT OR REPLACE INTO trials
		(trial_id, trajectory_name, trajectory_file, run_dir, artifact_path, use_hardware, closed_loop, reset, recording, saved, outcome, reason, deadline_ms, elapsed_ms, started_at, ended_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = tx.ExecContext(ctx, query,
		report.ID, report.TrajectoryName, report.TrajectoryFile, report.RunDir, report.ArtifactPath,
		report.UseHardware, report.ClosedLoop, report.Reset, report.Recording, report.Saved,
		report.Outcome, report.Reason,
		report.Deadline.Milliseconds(), report.Elapsed.Milliseconds(),
		formatTime(report.StartedAt), formatTime(report.EndedAt),
	)
	if err != nil {
		return fmt.Errorf("insert trial: %w", err)
	}

	for i, tr := range report.Transitions {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO transitions (trial_id, seq, from_state, to_state, at) VALUES (?, ?, ?, ?, ?)`,
			report.ID, i, int(tr.From), int(tr.To), formatTime(tr.At))
		if err != nil {
			return fmt.Errorf("insert transition %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit trial: %w", err)
	}
	return nil
}

const trialColumns = `trial_id, trajectory_name, trajectory_file, run_dir, artifact_path, use_hardware, closed_loop, reset, recording, saved, outcome, reason, deadline_ms, elapsed_ms, started_at, ended_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTrial(row rowScanner) (*models.TrialReport, error) {
	var (
		r                  models.TrialReport
		name, file, runDir sql.NullString
		artifact, reason   sql.NullString
		deadline, elapsed  sql.NullInt64
		startedAt, endedAt sql.NullString
	)
	err := row.Scan(&r.ID, &name, &file, &runDir, &artifact,
		&r.UseHardware, &r.ClosedLoop, &r.Reset, &r.Recording, &r.Saved,
		&r.Outcome, &reason, &deadline, &elapsed, &startedAt, &endedAt)
	if err != nil {
		return nil, err
	}
	r.TrajectoryName = name.String
	r.TrajectoryFile = file.String
	r.RunDir = runDir.String
	r.ArtifactPath = artifact.String
	r.Reason = reason.String
	r.Deadline = time.Duration(deadline.Int64) * time.Millisecond
	r.Elapsed = time.Duration(elapsed.Int64) * time.Millisecond
	r.StartedAt = parseTime(startedAt.String)
	r.EndedAt = parseTime(endedAt.String)
	return &r, nil
}

// GetTrial returns one trial including its transitions.
func (s *Store) GetTrial(ctx context.Context, id string) (*models.TrialReport, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+trialColumns+` FROM trials WHERE trial_id = ?`, id)
	report, err := scanTrial(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("query trial: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT from_state, to_state, at FROM transitions WHERE trial_id = ? ORDER BY seq ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("query transitions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var from, to int
		var at string
		if err := rows.Scan(&from, &to, &at); err != nil {
			return nil, fmt.Errorf("scan transition: %w", err)
		}
		report.Transitions = append(report.Transitions, models.Transition{
			From: models.RunState(from),
			To:   models.RunState(to),
			At:   parseTime(at),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transitions: %w", err)
	}
	return report, nil
}

// RecentTrials returns up to limit trials, newest first, without transitions.
// A non-positive limit returns every trial.
func (s *Store) RecentTrials(ctx context.Context, limit int) ([]*models.TrialReport, error) {
	query := `SELECT ` + trialColumns + ` FROM trials ORDER BY started_at DESC, id DESC`
	args := []interface{}{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query trials: %w", err)
	}
	defer rows.Close()

	var reports []*models.TrialReport
	for rows.Next() {
		report, err := scanTrial(rows)
		if err != nil {
			return nil, fmt.Errorf("scan trial: %w", err)
		}
		reports = append(reports, report)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trials: %w", err)
	}
	return reports, nil
}

// OutcomeCounts returns the number of recorded trials per outcome.
func (s *Store) OutcomeCounts(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT outcome, COUNT(*) FROM trials GROUP BY outcome`)
	if err != nil {
		return nil, fmt.Errorf("query outcome counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var outcome string
		var n int
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, fmt.Errorf("scan outcome count: %w", err)
		}
		counts[outcome] = n
	}
	return counts, rows.Err()
}

// timeLayout has fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
