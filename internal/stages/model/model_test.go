package model

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hebbihebb/satcn/internal/document"
	"github.com/hebbihebb/satcn/internal/errors"
)

// newModelServer rewrites submitted text by exact lookup; unknown text is
// echoed back unchanged.
func newModelServer(t *testing.T, rewrites map[string]string, calls *atomic.Int64) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/tags", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"models":[{"name":"grmr-v3"}]}`)
	})
	mux.HandleFunc("/api/generate", func(w http.ResponseWriter, r *http.Request) {
		if calls != nil {
			calls.Add(1)
		}
		var req struct {
			Model  string `json:"model"`
			Prompt string `json:"prompt"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		// The block text is the part of the prompt after the last
		// "Text:" marker.
		_, text, ok := strings.Cut(req.Prompt, "Text:\n")
		require.True(t, ok, "prompt missing text marker")

		response := text
		if rewritten, found := rewrites[text]; found {
			response = rewritten
		}
		require.NoError(t, json.NewEncoder(w).Encode(map[string]string{"response": response}))
	})
	return httptest.NewServer(mux)
}

type blockRef struct{ n int }

func (r blockRef) Equal(other document.BlockRef) bool {
	o, ok := other.(blockRef)
	return ok && o.n == r.n
}

func (r blockRef) String() string { return fmt.Sprintf("block[%d]", r.n) }

type blockTree struct{}

func (blockTree) Resolve(document.BlockRef) error           { return nil }
func (blockTree) WriteText(document.BlockRef, string) error { return nil }
func (blockTree) Render() ([]byte, error)                   { return nil, nil }

func docWith(contents ...string) *document.Document {
	blocks := make([]document.Block, len(contents))
	for i, c := range contents {
		blocks[i] = document.Block{Content: c, Ref: blockRef{n: i}}
	}
	return &document.Document{Format: document.FormatMarkup, Tree: blockTree{}, Blocks: blocks}
}

func newStage(endpoint string) *Stage {
	return New(Options{
		Endpoint:    endpoint,
		Model:       "grmr-v3",
		Concurrency: 2,
		Timeout:     5 * time.Second,
	})
}

func TestApplyRewritesBlocks(t *testing.T) {
	srv := newModelServer(t, map[string]string{
		"Teh cat sat.":  "The cat sat.",
		"He dont know.": "He doesn't know.",
	}, nil)
	defer srv.Close()

	doc := docWith("Teh cat sat.", "Nothing wrong here.", "He dont know.")
	res, err := newStage(srv.URL).Apply(context.Background(), doc)
	require.NoError(t, err)
	require.Len(t, res.Document.Blocks, 3)
	assert.Equal(t, "The cat sat.", res.Document.Blocks[0].Content)
	assert.Equal(t, "Nothing wrong here.", res.Document.Blocks[1].Content)
	assert.Equal(t, "He doesn't know.", res.Document.Blocks[2].Content)
	assert.Equal(t, 2, res.Changes)

	// Refs and order survive, input document is untouched.
	for i := range doc.Blocks {
		assert.True(t, doc.Blocks[i].Ref.Equal(res.Document.Blocks[i].Ref))
	}
	assert.Equal(t, "Teh cat sat.", doc.Blocks[0].Content)
}

func TestApplyDiscardsMarkupBreakingOutput(t *testing.T) {
	srv := newModelServer(t, map[string]string{
		"See [the guide](docs.md) now.": "See the guide docs.md now.",
	}, nil)
	defer srv.Close()

	doc := docWith("See [the guide](docs.md) now.")
	res, err := newStage(srv.URL).Apply(context.Background(), doc)
	require.NoError(t, err)
	assert.Equal(t, "See [the guide](docs.md) now.", res.Document.Blocks[0].Content)
	assert.Equal(t, 0, res.Changes)
}

func TestApplySkipsBlankBlocks(t *testing.T) {
	var calls atomic.Int64
	srv := newModelServer(t, nil, &calls)
	defer srv.Close()

	doc := docWith("   ", "real text")
	_, err := newStage(srv.URL).Apply(context.Background(), doc)
	require.NoError(t, err)
	assert.Equal(t, int64(1), calls.Load())
}

func TestApplyFailsWhenServerDown(t *testing.T) {
	srv := newModelServer(t, nil, nil)
	srv.Close()

	_, err := newStage(srv.URL).Apply(context.Background(), docWith("some text"))
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryStage))
	assert.True(t, errors.IsRetryable(err))
}

func TestProbe(t *testing.T) {
	srv := newModelServer(t, nil, nil)
	stage := newStage(srv.URL)
	require.NoError(t, stage.Probe(context.Background()))

	srv.Close()
	assert.Error(t, stage.Probe(context.Background()))
}

func TestCapabilities(t *testing.T) {
	stage := newStage("http://localhost:11434")
	assert.Equal(t, "model", stage.Name())
	assert.True(t, stage.ReportsChanges())
	assert.Equal(t, 1, New(Options{}).opts.Concurrency)
}
