package ttsnorm

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hebbihebb/satcn/internal/document"
)

func TestCardinal(t *testing.T) {
	cases := map[int64]string{
		0:             "zero",
		7:             "seven",
		13:            "thirteen",
		20:            "twenty",
		42:            "forty-two",
		100:           "one hundred",
		101:           "one hundred one",
		999:           "nine hundred ninety-nine",
		1000:          "one thousand",
		1234:          "one thousand two hundred thirty-four",
		1_000_000:     "one million",
		2_500_000:     "two million five hundred thousand",
		1_000_000_000: "one billion",
		-15:           "minus fifteen",
	}
	for n, want := range cases {
		assert.Equal(t, want, Cardinal(n), "Cardinal(%d)", n)
	}
}

func TestOrdinal(t *testing.T) {
	cases := map[int64]string{
		1:   "first",
		2:   "second",
		3:   "third",
		4:   "fourth",
		5:   "fifth",
		8:   "eighth",
		9:   "ninth",
		12:  "twelfth",
		20:  "twentieth",
		21:  "twenty-first",
		30:  "thirtieth",
		100: "one hundredth",
		101: "one hundred first",
	}
	for n, want := range cases {
		assert.Equal(t, want, Ordinal(n), "Ordinal(%d)", n)
	}
}

func TestYearWords(t *testing.T) {
	cases := map[int64]string{
		1984: "nineteen eighty-four",
		1905: "nineteen oh five",
		1900: "nineteen hundred",
		2000: "two thousand",
		2007: "two thousand seven",
		2024: "twenty twenty-four",
		842:  "eight hundred forty-two",
	}
	for y, want := range cases {
		assert.Equal(t, want, yearWords(y), "yearWords(%d)", y)
	}
}

func TestNormalize(t *testing.T) {
	stage := New()
	cases := []struct {
		in, want string
	}{
		{"He paid $12.34 for lunch.", "He paid twelve dollars and thirty-four cents for lunch."},
		{"It cost $1.00 even.", "It cost one dollar even."},
		{"A $1,500 repair.", "A one thousand five hundred dollars repair."},
		{"Turnout was 15% higher.", "Turnout was fifteen percent higher."},
		{"Growth hit 2.5% overall.", "Growth hit two point five percent overall."},
		{"Published Jan. 1, 2024 at noon.", "Published January first, twenty twenty-four at noon."},
		{"Sept 3, 1905 was a Sunday.", "September third, nineteen oh five was a Sunday."},
		{"She finished 3rd out of 21 runners.", "She finished third out of twenty-one runners."},
		{"Pi is roughly 3.14 here.", "Pi is roughly three point one four here."},
		{"There were 1,250 seats.", "There were one thousand two hundred fifty seats."},
		{"No digits at all.", "No digits at all."},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, stage.normalize(tc.in), "normalize(%q)", tc.in)
	}
}

func TestNormalizeSkipsInlineCode(t *testing.T) {
	stage := New()
	in := "Run `retry --count 3` about 3 times."
	assert.Equal(t, "Run `retry --count 3` about three times.", stage.normalize(in))
}

type numRef struct{ n int }

func (r numRef) Equal(other document.BlockRef) bool {
	o, ok := other.(numRef)
	return ok && o.n == r.n
}

func (r numRef) String() string { return fmt.Sprintf("block[%d]", r.n) }

type numTree struct{}

func (numTree) Resolve(document.BlockRef) error           { return nil }
func (numTree) WriteText(document.BlockRef, string) error { return nil }
func (numTree) Render() ([]byte, error)                   { return nil, nil }

func TestApply(t *testing.T) {
	doc := &document.Document{
		Format: document.FormatMarkup,
		Tree:   numTree{},
		Blocks: []document.Block{
			{Content: "Chapter 1 begins.", Ref: numRef{n: 0}},
			{Content: "Nothing to expand.", Ref: numRef{n: 1}},
		},
	}

	stage := New()
	res, err := stage.Apply(context.Background(), doc)
	require.NoError(t, err)
	require.Len(t, res.Document.Blocks, 2)
	assert.Equal(t, "Chapter one begins.", res.Document.Blocks[0].Content)
	assert.Equal(t, "Nothing to expand.", res.Document.Blocks[1].Content)
	assert.True(t, doc.Blocks[0].Ref.Equal(res.Document.Blocks[0].Ref))

	// Source document stays untouched.
	assert.Equal(t, "Chapter 1 begins.", doc.Blocks[0].Content)
}

func TestCapabilities(t *testing.T) {
	stage := New()
	assert.Equal(t, "ttsnorm", stage.Name())
	assert.False(t, stage.ReportsChanges())
}
