// Package report keeps a local history of export runs in SQLite.
package report

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Store wraps the run-history database.
type Store struct {
	db *sql.DB
}

// Run is one row of history.
type Run struct {
	RunID       string
	Fingerprint string
	SID         string
	OutputMode  string
	Rows        int
	Reused      bool
	Outcome     string
	Duration    time.Duration
	StartedAt   time.Time
}

// Open creates or opens the history database at path and ensures the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			fingerprint TEXT NOT NULL,
			sid TEXT,
			output_mode TEXT NOT NULL,
			row_count INTEGER NOT NULL,
			reused INTEGER NOT NULL,
			outcome TEXT NOT NULL,
			duration_ms INTEGER NOT NULL,
			started_at TEXT NOT NULL
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create runs table: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Record inserts one finished run.
func (s *Store) Record(ctx context.Context, r Run) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (run_id, fingerprint, sid, output_mode, row_count, reused, outcome, duration_ms, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.Fingerprint, r.SID, r.OutputMode, r.Rows, boolToInt(r.Reused),
		r.Outcome, r.Duration.Milliseconds(), r.StartedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

// Recent returns up to limit runs, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, fingerprint, sid, output_mode, row_count, reused, outcome, duration_ms, started_at
		FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		var reused int
		var durationMS int64
		var startedAt string
		if err := rows.Scan(&r.RunID, &r.Fingerprint, &r.SID, &r.OutputMode, &r.Rows,
			&reused, &r.Outcome, &durationMS, &startedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.Reused = reused != 0
		r.Duration = time.Duration(durationMS) * time.Millisecond
		if t, err := time.Parse(time.RFC3339Nano, startedAt); err == nil {
			r.StartedAt = t
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
