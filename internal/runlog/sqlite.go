package runlog

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hebbihebb/satcn/internal/pipeline"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteStore opens or creates the run log database. Use ":memory:" for
// an in-memory database.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initialize(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL UNIQUE,
		source TEXT NOT NULL,
		format TEXT NOT NULL,
		status TEXT NOT NULL,
		started_at INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL,
		error TEXT
	);
	CREATE TABLE IF NOT EXISTS stage_records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		stage TEXT NOT NULL,
		position INTEGER NOT NULL,
		status TEXT NOT NULL,
		changes INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL,
		error TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
	CREATE INDEX IF NOT EXISTS idx_stage_records_run_id ON stage_records(run_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// RecordRun writes the run summary and its stage records in one transaction.
func (s *SQLiteStore) RecordRun(ctx context.Context, run RunRecord, stages []pipeline.ExecutionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		"INSERT INTO runs (run_id, source, format, status, started_at, duration_ms, error) VALUES (?, ?, ?, ?, ?, ?, ?)",
		run.RunID, run.Source, run.Format, run.Status, run.StartedAt.Unix(), run.Duration.Milliseconds(), run.Error,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for i, rec := range stages {
		var changes int64
		if rec.Changes != nil {
			changes = int64(*rec.Changes)
		}
		_, err = tx.ExecContext(ctx,
			"INSERT INTO stage_records (run_id, stage, position, status, changes, duration_ms, error) VALUES (?, ?, ?, ?, ?, ?, ?)",
			run.RunID, rec.Stage, i, string(rec.Status), changes, rec.Duration.Milliseconds(), rec.Err,
		)
		if err != nil {
			return fmt.Errorf("insert stage record: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Runs returns the most recent runs, newest first.
func (s *SQLiteStore) Runs(ctx context.Context, limit int) ([]RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, run_id, source, format, status, started_at, duration_ms, error FROM runs ORDER BY id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		var r RunRecord
		var startedUnix, durationMS int64
		if err := rows.Scan(&r.ID, &r.RunID, &r.Source, &r.Format, &r.Status, &startedUnix, &durationMS, &r.Error); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.StartedAt = time.Unix(startedUnix, 0)
		r.Duration = time.Duration(durationMS) * time.Millisecond
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return runs, nil
}

// Stages returns the stage records of one run in execution order.
func (s *SQLiteStore) Stages(ctx context.Context, runID string) ([]StageRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, run_id, stage, position, status, changes, duration_ms, error FROM stage_records WHERE run_id = ? ORDER BY position",
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("query stage records: %w", err)
	}
	defer rows.Close()

	var recs []StageRecord
	for rows.Next() {
		var r StageRecord
		var durationMS int64
		if err := rows.Scan(&r.ID, &r.RunID, &r.Stage, &r.Position, &r.Status, &r.Changes, &durationMS, &r.Error); err != nil {
			return nil, fmt.Errorf("scan stage record: %w", err)
		}
		r.Duration = time.Duration(durationMS) * time.Millisecond
		recs = append(recs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return recs, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}
