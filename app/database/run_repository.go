package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SQLRunRepository handles database operations for pipeline runs
type SQLRunRepository struct {
	db *DB
}

func NewRunRepository(db *DB) *SQLRunRepository {
	return &SQLRunRepository{db: db}
}

func (r *SQLRunRepository) StartRun(run Run) error {
	_, err := r.db.Exec(`
		INSERT INTO runs (id, feed_url, pattern, status, started_at)
		VALUES (?, ?, ?, ?, ?)
	`, run.ID, run.FeedURL, run.Pattern, string(RunStatusRunning), formatTime(run.StartedAt))

	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	return nil
}

func (r *SQLRunRepository) FinishRun(id string, status RunStatus, feedTitle string, counts RunCounts, errMsg string, finishedAt time.Time) error {
	result, err := r.db.Exec(`
		UPDATE runs
		SET status = ?, feed_title = ?, error = ?,
		    total = ?, downloaded = ?, failed = ?, not_found = ?, skipped = ?, unmatched = ?,
		    finished_at = ?
		WHERE id = ?
	`, string(status), feedTitle, errMsg,
		counts.Total, counts.Downloaded, counts.Failed, counts.NotFound, counts.Skipped, counts.Unmatched,
		formatTime(finishedAt), id)

	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check finished run: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("run %s not found", id)
	}

	return nil
}

const runColumns = `id, feed_url, pattern, feed_title, status, error,
	total, downloaded, failed, not_found, skipped, unmatched, started_at, finished_at`

func (r *SQLRunRepository) GetRun(id string) (*Run, error) {
	row := r.db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id = ?`, id)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	return run, nil
}

func (r *SQLRunRepository) GetLastRun() (*Run, error) {
	row := r.db.QueryRow(`SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC, rowid DESC LIMIT 1`)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get last run: %w", err)
	}

	return run, nil
}

func (r *SQLRunRepository) GetRecentRuns(limit int) ([]Run, error) {
	rows, err := r.db.Query(`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		runs = append(runs, *run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating run rows: %w", err)
	}

	return runs, nil
}

func (r *SQLRunRepository) GetRunCount() (int, error) {
	var count int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM runs`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count runs: %w", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var (
		run        Run
		status     string
		startedAt  string
		finishedAt sql.NullString
	)

	err := row.Scan(
		&run.ID, &run.FeedURL, &run.Pattern, &run.FeedTitle, &status, &run.Error,
		&run.Counts.Total, &run.Counts.Downloaded, &run.Counts.Failed,
		&run.Counts.NotFound, &run.Counts.Skipped, &run.Counts.Unmatched,
		&startedAt, &finishedAt,
	)
	if err != nil {
		return nil, err
	}

	run.Status = RunStatus(status)

	if run.StartedAt, err = parseTime(startedAt); err != nil {
		return nil, err
	}
	if finishedAt.Valid && finishedAt.String != "" {
		t, err := parseTime(finishedAt.String)
		if err != nil {
			return nil, err
		}
		run.FinishedAt = &t
	}

	return &run, nil
}

// Fixed-width so that timestamps sort lexically in SQL.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t, nil
}
