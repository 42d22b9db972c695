// Package runlog persists the outcome of pipeline runs so past corrections
// can be audited after the fact.
package runlog

import (
	"context"
	"time"

	"github.com/hebbihebb/satcn/internal/pipeline"
)

// RunRecord is the persisted summary of one pipeline run.
type RunRecord struct {
	ID        int64
	RunID     string
	Source    string
	Format    string
	Status    string
	StartedAt time.Time
	Duration  time.Duration
	Error     string
}

// StageRecord is the persisted outcome of one stage within a run.
type StageRecord struct {
	ID       int64
	RunID    string
	Stage    string
	Position int
	Status   string
	Changes  int64
	Duration time.Duration
	Error    string
}

// Store persists run and stage records.
type Store interface {
	// RecordRun writes the run summary and its stage records atomically.
	RecordRun(ctx context.Context, run RunRecord, stages []pipeline.ExecutionRecord) error
	// Runs returns the most recent runs, newest first.
	Runs(ctx context.Context, limit int) ([]RunRecord, error)
	// Stages returns the stage records of one run in execution order.
	Stages(ctx context.Context, runID string) ([]StageRecord, error)
	Close() error
}

// NoopStore discards all records. Used when run logging is disabled.
type NoopStore struct{}

func (NoopStore) RecordRun(context.Context, RunRecord, []pipeline.ExecutionRecord) error {
	return nil
}
func (NoopStore) Runs(context.Context, int) ([]RunRecord, error)        { return nil, nil }
func (NoopStore) Stages(context.Context, string) ([]StageRecord, error) { return nil, nil }
func (NoopStore) Close() error                                          { return nil }
