// Package metrics defines observability hooks for pipeline runs.
package metrics

import "time"

// ResultLabel enumerates stage result categories for counters.
type ResultLabel string

const (
	ResultOK      ResultLabel = "ok"
	ResultFailed  ResultLabel = "failed"
	ResultSkipped ResultLabel = "skipped"
)

// Recorder defines observability hooks for run and stage metrics.
// Implementations may forward to Prometheus, OpenTelemetry, etc. All methods
// must be safe on the NoopRecorder (allowing optional injection).
type Recorder interface {
	ObserveStageDuration(stage string, d time.Duration)
	ObserveRunDuration(d time.Duration)
	IncStageResult(stage string, result ResultLabel)
	IncRunOutcome(outcome string) // outcome: success|failed|canceled
	ObserveStageChanges(stage string, changes int)
	SetBlockCount(n int)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveStageDuration(string, time.Duration) {}
func (NoopRecorder) ObserveRunDuration(time.Duration)           {}
func (NoopRecorder) IncStageResult(string, ResultLabel)         {}
func (NoopRecorder) IncRunOutcome(string)                       {}
func (NoopRecorder) ObserveStageChanges(string, int)            {}
func (NoopRecorder) SetBlockCount(int)                          {}
