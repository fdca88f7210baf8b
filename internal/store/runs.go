package store

import (
	"context"
	"database/sql"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Run is one recorded bulk download or incremental update run.
type Run struct {
	ID        int64     `json:"id"`
	Kind      string    `json:"kind"` // "download" or "update"
	Total     int       `json:"total"`
	Updated   int       `json:"updated"`
	Skipped   int       `json:"skipped"`
	Failed    int       `json:"failed"`
	NewPoints int       `json:"new_points"`
	Degraded  bool      `json:"degraded"`
	ElapsedMS int64     `json:"elapsed_ms"` // wall time in milliseconds
	StartedAt time.Time `json:"started_at"`
}

// RunStore records update-run summaries in SQLite so operators can inspect
// refresh history across restarts.
type RunStore struct {
	db *sql.DB
}

// NewRunStore opens (or creates) the SQLite database at dbPath and ensures
// the runs table exists.
func NewRunStore(dbPath string) (*RunStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			kind        TEXT NOT NULL,
			total       INTEGER NOT NULL,
			updated     INTEGER NOT NULL,
			skipped     INTEGER NOT NULL,
			failed      INTEGER NOT NULL,
			new_points  INTEGER NOT NULL,
			degraded    INTEGER NOT NULL,
			elapsed_ms  INTEGER NOT NULL,
			started_at  TEXT NOT NULL
		)`); err != nil {
		db.Close()
		return nil, err
	}
	return &RunStore{db: db}, nil
}

// Close closes the underlying database connection.
func (r *RunStore) Close() error {
	return r.db.Close()
}

// RecordRun inserts a run summary.
func (r *RunStore) RecordRun(ctx context.Context, run Run) error {
	degraded := 0
	if run.Degraded {
		degraded = 1
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO runs (kind, total, updated, skipped, failed, new_points, degraded, elapsed_ms, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.Kind, run.Total, run.Updated, run.Skipped, run.Failed,
		run.NewPoints, degraded, run.ElapsedMS,
		run.StartedAt.UTC().Format(time.RFC3339),
	)
	return err
}

// RecentRuns returns up to limit runs, most recent first.
func (r *RunStore) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, kind, total, updated, skipped, failed, new_points, degraded, elapsed_ms, started_at
		FROM runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			run       Run
			degraded  int
			startedAt string
		)
		if err := rows.Scan(&run.ID, &run.Kind, &run.Total, &run.Updated, &run.Skipped,
			&run.Failed, &run.NewPoints, &degraded, &run.ElapsedMS, &startedAt); err != nil {
			return nil, err
		}
		run.Degraded = degraded != 0
		if t, err := time.Parse(time.RFC3339, startedAt); err == nil {
			run.StartedAt = t
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
