// Package model implements a correction stage backed by a local language
// model served over an Ollama-compatible API. Blocks are rewritten
// independently with bounded concurrency; any output that would disturb
// Markdown-significant symbols is discarded in favor of the original text.
package model

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hebbihebb/satcn/internal/document"
	"github.com/hebbihebb/satcn/internal/errors"
	"github.com/hebbihebb/satcn/internal/pipeline"
	"github.com/hebbihebb/satcn/internal/retry"
)

const prompt = `You are a copy editor. Correct spelling, grammar and punctuation in the text below. Preserve the author's wording, tone and any markup symbols exactly. Do not rephrase, summarize or add text. Reply with the corrected text only.

Text:
%s`

// Options configures the model stage.
type Options struct {
	Endpoint    string
	Model       string
	Temperature float64
	Concurrency int
	Timeout     time.Duration
}

// Stage rewrites blocks through a language model.
type Stage struct {
	opts   Options
	client *http.Client
	policy retry.Policy
}

// New builds a model stage. Concurrency below one is clamped to one.
func New(opts Options) *Stage {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	opts.Endpoint = strings.TrimRight(opts.Endpoint, "/")
	return &Stage{
		opts:   opts,
		client: &http.Client{Timeout: opts.Timeout},
		policy: retry.DefaultPolicy(),
	}
}

// Name identifies the stage.
func (*Stage) Name() string { return "model" }

// ReportsChanges is true: the stage counts blocks it actually rewrote.
func (*Stage) ReportsChanges() bool { return true }

// Probe checks that the model server is reachable.
func (s *Stage) Probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.opts.Endpoint+"/api/tags", nil)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("model server unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("model server returned status %d", resp.StatusCode)
	}
	return nil
}

// Apply rewrites every block, preserving order and refs. Blocks are
// processed concurrently up to the configured limit; a single failed
// generation fails the stage.
func (s *Stage) Apply(ctx context.Context, doc *document.Document) (pipeline.StageResult, error) {
	out := *doc
	out.Blocks = doc.CloneBlocks()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Concurrency)

	changed := make([]bool, len(out.Blocks))
	for i := range out.Blocks {
		i := i
		g.Go(func() error {
			original := out.Blocks[i].Content
			if strings.TrimSpace(original) == "" {
				return nil
			}
			var rewritten string
			err := retry.Do(gctx, s.policy, func() error {
				var genErr error
				rewritten, genErr = s.generate(gctx, original)
				return genErr
			})
			if err != nil {
				return errors.WrapRetryable(err, errors.CategoryStage, errors.SeverityError,
					"model generation failed").WithContext("block", i)
			}
			rewritten = strings.TrimSpace(rewritten)
			if rewritten == "" || !markupParityHolds(original, rewritten) {
				return nil
			}
			if rewritten != original {
				out.Blocks[i].Content = rewritten
				changed[i] = true
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return pipeline.StageResult{}, err
	}

	count := 0
	for _, c := range changed {
		if c {
			count++
		}
	}
	return pipeline.StageResult{Document: &out, Changes: count}, nil
}

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

type generateOptions struct {
	Temperature float64 `json:"temperature"`
}

type generateResponse struct {
	Response string `json:"response"`
}

func (s *Stage) generate(ctx context.Context, text string) (string, error) {
	payload, err := json.Marshal(generateRequest{
		Model:   s.opts.Model,
		Prompt:  fmt.Sprintf(prompt, text),
		Stream:  false,
		Options: generateOptions{Temperature: s.opts.Temperature},
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.opts.Endpoint+"/api/generate",
		bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("generate request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("model server returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode generate response: %w", err)
	}
	return parsed.Response, nil
}

// markupParityHolds verifies that Markdown-significant symbol counts are
// unchanged between the original and rewritten text.
func markupParityHolds(original, rewritten string) bool {
	for _, symbol := range []string{"[", "]", "(", ")", "`", "*", "_"} {
		if strings.Count(original, symbol) != strings.Count(rewritten, symbol) {
			return false
		}
	}
	return true
}
