package runlog

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hebbihebb/satcn/internal/pipeline"
)

func intp(n int) *int { return &n }

func TestRecordAndQueryRuns(t *testing.T) {
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	run := RunRecord{
		RunID:     "run-1",
		Source:    "book.md",
		Format:    "markdown",
		Status:    "success",
		StartedAt: time.Unix(1756600000, 0),
		Duration:  1500 * time.Millisecond,
	}
	stages := []pipeline.ExecutionRecord{
		{Stage: "spelling", File: "book.md", Changes: intp(3), Duration: 200 * time.Millisecond, Status: pipeline.StatusOK},
		{Stage: "grammar", File: "book.md", Duration: 100 * time.Millisecond, Status: pipeline.StatusFailed, Err: "checker unreachable"},
		{Stage: "ttsnorm", File: "book.md", Changes: intp(0), Duration: 50 * time.Millisecond, Status: pipeline.StatusOK},
	}
	require.NoError(t, store.RecordRun(ctx, run, stages))

	runs, err := store.Runs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "run-1", runs[0].RunID)
	assert.Equal(t, "book.md", runs[0].Source)
	assert.Equal(t, "success", runs[0].Status)
	assert.Equal(t, 1500*time.Millisecond, runs[0].Duration)

	recs, err := store.Stages(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, []string{"spelling", "grammar", "ttsnorm"},
		[]string{recs[0].Stage, recs[1].Stage, recs[2].Stage})
	assert.Equal(t, int64(3), recs[0].Changes)
	assert.Equal(t, "failed", recs[1].Status)
	assert.Equal(t, "checker unreachable", recs[1].Error)
	assert.Equal(t, 2, recs[2].Position)
}

func TestRunsNewestFirst(t *testing.T) {
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	for _, id := range []string{"run-a", "run-b", "run-c"} {
		require.NoError(t, store.RecordRun(ctx, RunRecord{
			RunID: id, Source: "x.md", Format: "markdown", Status: "success",
			StartedAt: time.Now(),
		}, nil))
	}

	runs, err := store.Runs(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-c", runs[0].RunID)
	assert.Equal(t, "run-b", runs[1].RunID)
}

func TestDuplicateRunIDRejected(t *testing.T) {
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	run := RunRecord{RunID: "run-1", Source: "x.md", Format: "markdown", Status: "success", StartedAt: time.Now()}
	require.NoError(t, store.RecordRun(ctx, run, nil))
	assert.Error(t, store.RecordRun(ctx, run, nil))
}

func TestNoopStore(t *testing.T) {
	var store Store = NoopStore{}
	ctx := context.Background()
	require.NoError(t, store.RecordRun(ctx, RunRecord{}, nil))
	runs, err := store.Runs(ctx, 5)
	require.NoError(t, err)
	assert.Empty(t, runs)
	require.NoError(t, store.Close())
}
