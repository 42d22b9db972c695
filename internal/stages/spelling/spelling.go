// Package spelling implements a dictionary-driven spelling correction stage.
//
// Corrections come from a built-in table of frequent English misspellings,
// optionally extended through configuration. Matching is case-insensitive on
// word boundaries and the replacement mirrors the casing of the original
// word, so "Teh" becomes "The" and "TEH" becomes "THE".
package spelling

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/hebbihebb/satcn/internal/document"
	"github.com/hebbihebb/satcn/internal/pipeline"
)

// defaults covers the high-frequency misspellings the pipeline corrects out
// of the box. Keys are lowercase.
var defaults = map[string]string{
	"teh":         "the",
	"adn":         "and",
	"nad":         "and",
	"taht":        "that",
	"thier":       "their",
	"recieve":     "receive",
	"recieved":    "received",
	"seperate":    "separate",
	"seperately":  "separately",
	"definately":  "definitely",
	"occured":     "occurred",
	"occurence":   "occurrence",
	"untill":      "until",
	"wich":        "which",
	"becuase":     "because",
	"beleive":     "believe",
	"acheive":     "achieve",
	"accomodate":  "accommodate",
	"alot":        "a lot",
	"arguement":   "argument",
	"embarass":    "embarrass",
	"enviroment":  "environment",
	"existance":   "existence",
	"goverment":   "government",
	"independant": "independent",
	"neccessary":  "necessary",
	"noticable":   "noticeable",
	"publically":  "publicly",
	"realy":       "really",
	"truely":      "truly",
	"wierd":       "weird",
}

// Stage corrects misspelled words in block content.
type Stage struct {
	table map[string]string
	re    *regexp.Regexp
}

// New builds a spelling stage. Entries in extra are merged over the built-in
// table (keys lowercased).
func New(extra map[string]string) *Stage {
	table := make(map[string]string, len(defaults)+len(extra))
	for k, v := range defaults {
		table[k] = v
	}
	for k, v := range extra {
		table[strings.ToLower(k)] = v
	}

	words := make([]string, 0, len(table))
	for w := range table {
		words = append(words, regexp.QuoteMeta(w))
	}
	// Longest first so e.g. "recieved" wins over "recieve".
	sort.Slice(words, func(i, j int) bool { return len(words[i]) > len(words[j]) })

	return &Stage{
		table: table,
		re:    regexp.MustCompile(`(?i)\b(` + strings.Join(words, "|") + `)\b`),
	}
}

// Name identifies the stage.
func (*Stage) Name() string { return "spelling" }

// ReportsChanges is false: like its predecessors, the stage rewrites content
// without counting corrections; the runner observes the block-level diff.
func (*Stage) ReportsChanges() bool { return false }

// Apply corrects every block's content.
func (s *Stage) Apply(_ context.Context, doc *document.Document) (pipeline.StageResult, error) {
	out := pipeline.Rewrite(doc, func(_ int, content string) string {
		return s.correct(content)
	})
	return pipeline.StageResult{Document: out}, nil
}

func (s *Stage) correct(text string) string {
	return s.re.ReplaceAllStringFunc(text, func(word string) string {
		replacement, ok := s.table[strings.ToLower(word)]
		if !ok {
			return word
		}
		return matchCase(word, replacement)
	})
}

// matchCase shapes replacement to the casing of original.
func matchCase(original, replacement string) string {
	if original == strings.ToUpper(original) && strings.ContainsFunc(original, unicode.IsLetter) && len(original) > 1 {
		return strings.ToUpper(replacement)
	}
	runes := []rune(original)
	if len(runes) > 0 && unicode.IsUpper(runes[0]) {
		rep := []rune(replacement)
		if len(rep) > 0 {
			rep[0] = unicode.ToUpper(rep[0])
		}
		return string(rep)
	}
	return replacement
}
