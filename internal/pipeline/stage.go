package pipeline

import (
	"context"

	"github.com/hebbihebb/satcn/internal/document"
)

// Stage is a pluggable unit that rewrites block content. A stage must not
// alter block count, block order, or any block ref; the runner verifies this
// after every invocation and treats a violation as fatal.
//
// A stage may be a pipeline of sub-steps internally; such structure is opaque
// to the runner.
type Stage interface {
	// Name identifies the stage in logs, records and metrics.
	Name() string

	// ReportsChanges declares whether this stage counts its own corrections.
	// The flag is fixed at registration time; the runner never inspects the
	// result shape at runtime. For stages that return false, StageResult's
	// change count carries no meaning.
	ReportsChanges() bool

	// Apply consumes the current document and returns an updated one. The
	// returned document must reference the same tree and satisfy the block
	// invariants. Blocking work (model inference, external checkers) happens
	// synchronously within Apply; the runner executes stages one at a time.
	Apply(ctx context.Context, doc *document.Document) (StageResult, error)
}

// StageResult is the tagged result of a stage invocation. Using an explicit
// result type (rather than two return shapes discriminated at runtime) keeps
// the runner free of shape inspection.
type StageResult struct {
	Document *document.Document
	Changes  int
}

// Rewrite returns a copy of doc whose block contents have been mapped
// through fn. The tree and all refs are shared with the input document, so
// the result satisfies the stage invariants by construction. The input
// document is left untouched, which keeps a later failure from leaking
// partial rewrites into the chain.
func Rewrite(doc *document.Document, fn func(i int, content string) string) *document.Document {
	out := *doc
	out.Blocks = doc.CloneBlocks()
	for i := range out.Blocks {
		out.Blocks[i].Content = fn(i, out.Blocks[i].Content)
	}
	return &out
}

// Prober is implemented by stages whose backing collaborator (a local model,
// an external checker service) may be unavailable. Probe is called once when
// the chain is assembled, not per run.
type Prober interface {
	Probe(ctx context.Context) error
}
