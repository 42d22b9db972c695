// Package pipeline executes an ordered chain of correction stages against a
// parsed document and enforces the invariants that make reconstruction safe.
//
// Stages run strictly sequentially; later stages depend on earlier output.
// Cancellation is checked between stage boundaries only (stage internals are
// opaque), and a mid-chain cancellation still yields the last completed
// stage's consistent, reconstructable document.
package pipeline

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/hebbihebb/satcn/internal/document"
	"github.com/hebbihebb/satcn/internal/errors"
	"github.com/hebbihebb/satcn/internal/metrics"
	"github.com/hebbihebb/satcn/internal/observability"
)

// FailurePolicy controls how the runner reacts to a stage failure.
type FailurePolicy string

const (
	// PolicyAbort stops the chain and propagates the failure.
	PolicyAbort FailurePolicy = "abort"
	// PolicySkip continues the chain with the document unchanged by the
	// failed stage. One unreachable or misbehaving corrector should not
	// prevent the rest of the chain from completing.
	PolicySkip FailurePolicy = "skip"
)

// Status reports the outcome of one stage invocation.
type Status string

const (
	StatusOK     Status = "ok"
	StatusFailed Status = "failed"
)

// ExecutionRecord is the structured log artifact produced for each stage
// invocation, appended in the exact order stages were declared.
type ExecutionRecord struct {
	Stage    string        `json:"stage"`
	File     string        `json:"file"`
	Changes  *int          `json:"changes"` // nil for failed invocations
	Duration time.Duration `json:"duration"`
	Status   Status        `json:"status"`
	Err      string        `json:"error,omitempty"`
}

// ExecutionContext owns the per-run observability state: the run identifier
// and the metrics sink. Its lifecycle is scoped to one pipeline run.
type ExecutionContext struct {
	RunID    string
	Recorder metrics.Recorder
}

// NewExecutionContext creates a context for one run with a fresh run ID.
func NewExecutionContext(rec metrics.Recorder) ExecutionContext {
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}
	return ExecutionContext{RunID: uuid.NewString(), Recorder: rec}
}

// Runner drives ordered stage execution over a document.
type Runner struct {
	stages []Stage
	policy FailurePolicy
	ec     ExecutionContext
}

// NewRunner creates a Runner for the given stage chain.
func NewRunner(stages []Stage, policy FailurePolicy, ec ExecutionContext) *Runner {
	if policy != PolicyAbort {
		policy = PolicySkip
	}
	return &Runner{stages: stages, policy: policy, ec: ec}
}

// Run executes the chain. It returns the corrected document, one
// ExecutionRecord per attempted stage, and an error when the run did not
// complete (abort policy, invariant violation, or cancellation). On
// cancellation the returned document reflects the last completed stage.
func (r *Runner) Run(ctx context.Context, doc *document.Document) (*document.Document, []ExecutionRecord, error) {
	ctx = observability.WithRunID(ctx, r.ec.RunID)
	ctx = observability.WithSource(ctx, filepath.Base(doc.SourcePath))
	file := filepath.Base(doc.SourcePath)

	runStart := time.Now()
	r.ec.Recorder.SetBlockCount(len(doc.Blocks))

	records := make([]ExecutionRecord, 0, len(r.stages))
	for _, st := range r.stages {
		select {
		case <-ctx.Done():
			r.finish(runStart, "canceled")
			return doc, records, ctx.Err()
		default:
		}

		stageCtx := observability.WithStage(ctx, st.Name())
		before := doc.CloneBlocks()

		start := time.Now()
		res, err := st.Apply(stageCtx, doc)
		dur := time.Since(start)
		r.ec.Recorder.ObserveStageDuration(st.Name(), dur)

		if err != nil {
			records = append(records, ExecutionRecord{
				Stage: st.Name(), File: file, Duration: dur, Status: StatusFailed, Err: err.Error(),
			})
			r.ec.Recorder.IncStageResult(st.Name(), metrics.ResultFailed)
			observability.ErrorContext(stageCtx, "stage failed",
				slog.Duration("duration", dur), slog.Any("error", err))

			// Invariant violations surface immediately; continuing would
			// silently corrupt reconstruction.
			if errors.IsCategory(err, errors.CategoryInvariant) {
				r.finish(runStart, "failed")
				return doc, records, err
			}
			if r.policy == PolicyAbort {
				r.finish(runStart, "failed")
				return doc, records, errors.Wrap(err, errors.CategoryStage, errors.SeverityFatal,
					"stage "+st.Name()+" failed under abort policy")
			}
			continue
		}

		if res.Document == nil || res.Document.Tree != doc.Tree {
			violation := errors.New(errors.CategoryInvariant, errors.SeverityFatal,
				"stage "+st.Name()+" returned a foreign or missing document")
			records = append(records, ExecutionRecord{
				Stage: st.Name(), File: file, Duration: dur, Status: StatusFailed, Err: violation.Error(),
			})
			r.ec.Recorder.IncStageResult(st.Name(), metrics.ResultFailed)
			r.finish(runStart, "failed")
			return doc, records, violation
		}
		if err := res.Document.VerifyAgainst(before); err != nil {
			records = append(records, ExecutionRecord{
				Stage: st.Name(), File: file, Duration: dur, Status: StatusFailed, Err: err.Error(),
			})
			r.ec.Recorder.IncStageResult(st.Name(), metrics.ResultFailed)
			r.finish(runStart, "failed")
			return doc, records, err
		}

		changes := res.Changes
		if !st.ReportsChanges() {
			changes = countChanged(before, res.Document.Blocks)
		}
		doc = res.Document

		records = append(records, ExecutionRecord{
			Stage: st.Name(), File: file, Changes: &changes, Duration: dur, Status: StatusOK,
		})
		r.ec.Recorder.IncStageResult(st.Name(), metrics.ResultOK)
		r.ec.Recorder.ObserveStageChanges(st.Name(), changes)
		observability.InfoContext(stageCtx, "stage completed",
			slog.Int("changes", changes), slog.Duration("duration", dur))
	}

	r.finish(runStart, "success")
	return doc, records, nil
}

func (r *Runner) finish(start time.Time, outcome string) {
	r.ec.Recorder.ObserveRunDuration(time.Since(start))
	r.ec.Recorder.IncRunOutcome(outcome)
}

// countChanged reports how many blocks differ in content between two
// equal-length block slices. Used for stages that do not count their own
// corrections.
func countChanged(before, after []document.Block) int {
	n := 0
	for i := range after {
		if i < len(before) && after[i].Content != before[i].Content {
			n++
		}
	}
	return n
}

// FilterAvailable probes every stage that exposes a Probe method and returns
// the subset whose collaborators are reachable. A stage that was explicitly
// required but fails its probe turns into an error instead of being dropped.
func FilterAvailable(ctx context.Context, stages []Stage, required func(name string) bool) ([]Stage, error) {
	out := make([]Stage, 0, len(stages))
	for _, st := range stages {
		p, ok := st.(Prober)
		if !ok {
			out = append(out, st)
			continue
		}
		if err := p.Probe(ctx); err != nil {
			if required != nil && required(st.Name()) {
				return nil, errors.Wrap(err, errors.CategoryConfig, errors.SeverityFatal,
					"requested stage "+st.Name()+" is unavailable")
			}
			observability.WarnContext(ctx, "stage unavailable, dropping from chain",
				slog.String("stage", st.Name()), slog.Any("error", err))
			continue
		}
		out = append(out, st)
	}
	return out, nil
}
