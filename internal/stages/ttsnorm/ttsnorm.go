// Package ttsnorm normalizes block text for speech synthesis: numbers,
// currency amounts, percentages and abbreviated dates are expanded into the
// words a narrator would read aloud. Text inside inline code spans is left
// untouched. The stage is deterministic and never fails a run.
package ttsnorm

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/hebbihebb/satcn/internal/document"
	"github.com/hebbihebb/satcn/internal/pipeline"
)

// monthNames expands abbreviated month forms found in running prose.
var monthNames = map[string]string{
	"jan": "January", "feb": "February", "mar": "March", "apr": "April",
	"may": "May", "jun": "June", "jul": "July", "aug": "August",
	"sep": "September", "sept": "September", "oct": "October",
	"nov": "November", "dec": "December",
}

var (
	currencyRe = regexp.MustCompile(`\$(\d{1,3}(?:,\d{3})*|\d+)(?:\.(\d{2}))?`)
	percentRe  = regexp.MustCompile(`(\d+(?:\.\d+)?)\s?%`)
	dateRe     = regexp.MustCompile(`\b(Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sept|Sep|Oct|Nov|Dec)\.?\s+(\d{1,2})(?:st|nd|rd|th)?,\s+(\d{4})\b`)
	ordinalRe  = regexp.MustCompile(`\b(\d+)(?:st|nd|rd|th)\b`)
	decimalRe  = regexp.MustCompile(`\b(\d+)\.(\d+)\b`)
	integerRe  = regexp.MustCompile(`\b\d{1,3}(?:,\d{3})+\b|\b\d+\b`)
)

// step is one normalization pass. Steps run in declaration order; earlier
// steps consume the more specific patterns so later ones see only what is
// left.
type step struct {
	name string
	fn   func(string) string
}

// Stage expands spoken forms in document blocks.
type Stage struct {
	steps []step
}

// New builds the normalization stage with its full sub-step chain.
func New() *Stage {
	return &Stage{steps: []step{
		{"unicode", normalizeUnicode},
		{"currency", expandCurrency},
		{"percent", expandPercent},
		{"dates", expandDates},
		{"ordinals", expandOrdinals},
		{"decimals", expandDecimals},
		{"cardinals", expandIntegers},
	}}
}

// Name identifies the stage.
func (*Stage) Name() string { return "ttsnorm" }

// ReportsChanges is false: the runner counts rewritten blocks itself.
func (*Stage) ReportsChanges() bool { return false }

// Apply rewrites every block through the sub-step chain.
func (s *Stage) Apply(ctx context.Context, doc *document.Document) (pipeline.StageResult, error) {
	out := pipeline.Rewrite(doc, func(_ int, content string) string {
		return s.normalize(content)
	})
	return pipeline.StageResult{Document: out}, nil
}

// normalize runs the chain over the prose parts of content, skipping inline
// code spans delimited by backticks.
func (s *Stage) normalize(content string) string {
	segments := strings.Split(content, "`")
	for i := range segments {
		if i%2 == 1 {
			continue
		}
		for _, st := range s.steps {
			segments[i] = st.fn(segments[i])
		}
	}
	return strings.Join(segments, "`")
}

func normalizeUnicode(text string) string {
	return norm.NFC.String(text)
}

func expandCurrency(text string) string {
	return currencyRe.ReplaceAllStringFunc(text, func(m string) string {
		groups := currencyRe.FindStringSubmatch(m)
		dollars, err := strconv.ParseInt(strings.ReplaceAll(groups[1], ",", ""), 10, 64)
		if err != nil {
			return m
		}
		unit := "dollars"
		if dollars == 1 {
			unit = "dollar"
		}
		spoken := Cardinal(dollars) + " " + unit
		if groups[2] != "" {
			cents, err := strconv.ParseInt(groups[2], 10, 64)
			if err != nil {
				return m
			}
			if cents > 0 {
				centUnit := "cents"
				if cents == 1 {
					centUnit = "cent"
				}
				spoken += " and " + Cardinal(cents) + " " + centUnit
			}
		}
		return spoken
	})
}

func expandPercent(text string) string {
	return percentRe.ReplaceAllStringFunc(text, func(m string) string {
		groups := percentRe.FindStringSubmatch(m)
		return spellNumber(groups[1]) + " percent"
	})
}

func expandDates(text string) string {
	return dateRe.ReplaceAllStringFunc(text, func(m string) string {
		groups := dateRe.FindStringSubmatch(m)
		month := monthNames[strings.ToLower(groups[1])]
		day, err := strconv.ParseInt(groups[2], 10, 64)
		if err != nil || day < 1 || day > 31 {
			return m
		}
		year, err := strconv.ParseInt(groups[3], 10, 64)
		if err != nil {
			return m
		}
		return month + " " + Ordinal(day) + ", " + yearWords(year)
	})
}

func expandOrdinals(text string) string {
	return ordinalRe.ReplaceAllStringFunc(text, func(m string) string {
		groups := ordinalRe.FindStringSubmatch(m)
		n, err := strconv.ParseInt(groups[1], 10, 64)
		if err != nil {
			return m
		}
		return Ordinal(n)
	})
}

func expandDecimals(text string) string {
	return decimalRe.ReplaceAllStringFunc(text, func(m string) string {
		groups := decimalRe.FindStringSubmatch(m)
		whole, err := strconv.ParseInt(groups[1], 10, 64)
		if err != nil {
			return m
		}
		return Cardinal(whole) + " point " + digitWords(groups[2])
	})
}

func expandIntegers(text string) string {
	return integerRe.ReplaceAllStringFunc(text, func(m string) string {
		n, err := strconv.ParseInt(strings.ReplaceAll(m, ",", ""), 10, 64)
		if err != nil {
			return m
		}
		return Cardinal(n)
	})
}

// spellNumber reads an integer or decimal literal.
func spellNumber(literal string) string {
	if whole, frac, ok := strings.Cut(literal, "."); ok {
		n, err := strconv.ParseInt(whole, 10, 64)
		if err != nil {
			return literal
		}
		return Cardinal(n) + " point " + digitWords(frac)
	}
	n, err := strconv.ParseInt(literal, 10, 64)
	if err != nil {
		return literal
	}
	return Cardinal(n)
}
