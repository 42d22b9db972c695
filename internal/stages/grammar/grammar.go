// Package grammar implements a conservative grammar correction stage backed
// by a LanguageTool-compatible HTTP checker.
//
// Only matches from a fixed set of low-risk rules are applied (typos,
// punctuation, spacing, casing, simple agreement); style and rephrasing
// suggestions are ignored. After rewriting a block the stage verifies that
// the counts of Markdown-significant symbols are unchanged and reverts the
// block when they are not, keeping a misfiring rule from corrupting markup.
package grammar

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/hebbihebb/satcn/internal/document"
	"github.com/hebbihebb/satcn/internal/errors"
	"github.com/hebbihebb/satcn/internal/pipeline"
	"github.com/hebbihebb/satcn/internal/retry"
)

// Category classifies a checker match into a safe correction group.
type Category string

const (
	CategoryTypos           Category = "typos"
	CategoryPunctuation     Category = "punctuation"
	CategorySpacing         Category = "spacing"
	CategoryCasing          Category = "casing"
	CategorySimpleAgreement Category = "simple_agreement"
)

// safeRules maps checker rule IDs to the category they may correct under.
// Rules outside this table are never applied.
var safeRules = map[string]Category{
	"MORFOLOGIK_RULE_EN_US":        CategoryTypos,
	"ENGLISH_WORD_REPEAT_RULE":     CategoryTypos,
	"COMMA_PARENTHESIS_WHITESPACE": CategoryPunctuation,
	"EN_QUOTES":                    CategoryPunctuation,
	"UNPAIRED_BRACKETS":            CategoryPunctuation,
	"WHITESPACE_RULE":              CategorySpacing,
	"SENTENCE_WHITESPACE":          CategorySpacing,
	"UPPERCASE_SENTENCE_START":     CategoryCasing,
	"PERSPECTIVE_AGREEMENT":        CategorySimpleAgreement,
}

// Stats counts applied corrections per category for one stage invocation.
type Stats struct {
	Typos           int
	Punctuation     int
	Spacing         int
	Casing          int
	SimpleAgreement int
}

// Total sums all categories.
func (s Stats) Total() int {
	return s.Typos + s.Punctuation + s.Spacing + s.Casing + s.SimpleAgreement
}

func (s *Stats) inc(c Category) {
	switch c {
	case CategoryTypos:
		s.Typos++
	case CategoryPunctuation:
		s.Punctuation++
	case CategorySpacing:
		s.Spacing++
	case CategoryCasing:
		s.Casing++
	case CategorySimpleAgreement:
		s.SimpleAgreement++
	}
}

// match mirrors the checker's JSON response shape.
type match struct {
	Offset       int `json:"offset"`
	Length       int `json:"length"`
	Replacements []struct {
		Value string `json:"value"`
	} `json:"replacements"`
	Rule struct {
		ID string `json:"id"`
	} `json:"rule"`
}

type checkResponse struct {
	Matches []match `json:"matches"`
}

// Stage corrects grammar in block content via an external checker service.
type Stage struct {
	endpoint string
	language string
	client   *http.Client
	policy   retry.Policy
}

// New builds a grammar stage talking to a LanguageTool-compatible endpoint.
func New(endpoint, language string, timeout time.Duration) *Stage {
	if language == "" {
		language = "en-US"
	}
	return &Stage{
		endpoint: strings.TrimRight(endpoint, "/"),
		language: language,
		client:   &http.Client{Timeout: timeout},
		policy:   retry.DefaultPolicy(),
	}
}

// Name identifies the stage.
func (*Stage) Name() string { return "grammar" }

// ReportsChanges is true: the stage counts each applied correction.
func (*Stage) ReportsChanges() bool { return true }

// Probe checks that the checker service is reachable.
func (s *Stage) Probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint+"/v2/languages", nil)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("grammar checker unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("grammar checker returned status %d", resp.StatusCode)
	}
	return nil
}

// Apply corrects every block and reports the number of applied corrections.
func (s *Stage) Apply(ctx context.Context, doc *document.Document) (pipeline.StageResult, error) {
	var stats Stats
	out := *doc
	out.Blocks = doc.CloneBlocks()

	for i := range out.Blocks {
		content := out.Blocks[i].Content
		if strings.TrimSpace(content) == "" {
			continue
		}
		corrected, blockStats, err := s.correct(ctx, content)
		if err != nil {
			return pipeline.StageResult{}, errors.WrapRetryable(err, errors.CategoryStage, errors.SeverityError,
				"grammar check failed").WithContext("block", i)
		}
		out.Blocks[i].Content = corrected
		stats.Typos += blockStats.Typos
		stats.Punctuation += blockStats.Punctuation
		stats.Spacing += blockStats.Spacing
		stats.Casing += blockStats.Casing
		stats.SimpleAgreement += blockStats.SimpleAgreement
	}

	return pipeline.StageResult{Document: &out, Changes: stats.Total()}, nil
}

// correct checks one text fragment and applies the safe subset of matches.
func (s *Stage) correct(ctx context.Context, text string) (string, Stats, error) {
	var matches []match
	err := retry.Do(ctx, s.policy, func() error {
		var checkErr error
		matches, checkErr = s.check(ctx, text)
		return checkErr
	})
	if err != nil {
		return "", Stats{}, err
	}

	type safeMatch struct {
		m   match
		cat Category
	}
	safe := make([]safeMatch, 0, len(matches))
	for _, m := range matches {
		cat, ok := safeRules[m.Rule.ID]
		if !ok || len(m.Replacements) == 0 {
			continue
		}
		safe = append(safe, safeMatch{m: m, cat: cat})
	}

	// Apply from the end of the text toward the beginning so earlier
	// replacements do not invalidate later offsets.
	sort.Slice(safe, func(i, j int) bool { return safe[i].m.Offset > safe[j].m.Offset })

	var stats Stats
	runes := []rune(text)
	for _, sm := range safe {
		start, end := sm.m.Offset, sm.m.Offset+sm.m.Length
		if start < 0 || end > len(runes) || start > end {
			continue
		}
		replacement := []rune(sm.m.Replacements[0].Value)
		runes = append(runes[:start], append(replacement, runes[end:]...)...)
		stats.inc(sm.cat)
	}
	corrected := string(runes)

	if !markupParityHolds(text, corrected) {
		return text, Stats{}, nil
	}
	return corrected, stats, nil
}

func (s *Stage) check(ctx context.Context, text string) ([]match, error) {
	form := url.Values{}
	form.Set("text", text)
	form.Set("language", s.language)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint+"/v2/check",
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("checker request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("checker returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed checkResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode checker response: %w", err)
	}
	return parsed.Matches, nil
}

// markupParityHolds verifies that Markdown-significant symbol counts are
// unchanged between the original and corrected text.
func markupParityHolds(original, corrected string) bool {
	for _, symbol := range []string{"[", "]", "(", ")", "`"} {
		if strings.Count(original, symbol) != strings.Count(corrected, symbol) {
			return false
		}
	}
	return true
}
