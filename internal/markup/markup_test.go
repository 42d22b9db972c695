package markup

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hebbihebb/satcn/internal/document"
)

func parse(t *testing.T, src string) *document.Document {
	t.Helper()
	doc, err := Parser{}.Parse("doc.md", []byte(src))
	require.NoError(t, err)
	return doc
}

func TestParse_ExtractsParagraphsOnly(t *testing.T) {
	src := "# Title\n\nFirst paragraph.\n\n## Section\n\nSecond paragraph.\n\n- item one\n- item two\n"
	doc := parse(t, src)

	require.Len(t, doc.Blocks, 2)
	assert.Equal(t, "First paragraph.", doc.Blocks[0].Content)
	assert.Equal(t, "Second paragraph.", doc.Blocks[1].Content)
}

func TestParse_InlineMarkupStaysInContent(t *testing.T) {
	src := "Some **bold** and *italic* and `code` text.\n"
	doc := parse(t, src)

	require.Len(t, doc.Blocks, 1)
	assert.Equal(t, "Some **bold** and *italic* and `code` text.", doc.Blocks[0].Content)
}

func TestParse_MultilineParagraph(t *testing.T) {
	src := "Line one\nline two\nline three.\n\nNext.\n"
	doc := parse(t, src)

	require.Len(t, doc.Blocks, 2)
	assert.Equal(t, "Line one\nline two\nline three.", doc.Blocks[0].Content)
}

func TestParse_CodeBlocksExcluded(t *testing.T) {
	src := "Before.\n\n```\nteh code is not prose\n```\n\nAfter.\n"
	doc := parse(t, src)

	require.Len(t, doc.Blocks, 2)
	assert.Equal(t, "Before.", doc.Blocks[0].Content)
	assert.Equal(t, "After.", doc.Blocks[1].Content)
}

func TestParse_FrontmatterNotExtracted(t *testing.T) {
	src := "---\ntitle: Teh Book\n---\nBody paragraph.\n"
	doc := parse(t, src)

	require.Len(t, doc.Blocks, 1)
	assert.Equal(t, "Body paragraph.", doc.Blocks[0].Content)
}

func TestRoundTrip_ZeroChangesIsByteIdentical(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"simple", "# Title\n\nA paragraph.\n"},
		{"frontmatter", "---\ntitle: Sample\n---\n\n# T\n\nBody.\n"},
		{"lists and code", "Intro.\n\n- a\n- b\n\n```\ncode\n```\n\nOutro.\n"},
		{"blockquote", "> quoted text\n\nPlain.\n"},
		{"no trailing newline", "Just one paragraph"},
		{"hard breaks", "line one  \nline two\n"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			doc := parse(t, tc.src)
			out, err := doc.Render()
			require.NoError(t, err)
			assert.Equal(t, tc.src, string(out))
		})
	}
}

func TestRoundTrip_CorrectedContent(t *testing.T) {
	src := "# Title\n\nTeh cat sat.\n"
	doc := parse(t, src)

	require.Len(t, doc.Blocks, 1)
	require.Equal(t, "Teh cat sat.", doc.Blocks[0].Content)

	doc.Blocks[0].Content = strings.Replace(doc.Blocks[0].Content, "Teh", "The", 1)

	out, err := doc.Render()
	require.NoError(t, err)
	assert.Equal(t, "# Title\n\nThe cat sat.\n", string(out))
}

func TestRoundTrip_HeadingUntouchedWhenParagraphGrows(t *testing.T) {
	src := "# Heading stays\n\nShort.\n\n## Also stays\n\nTail.\n"
	doc := parse(t, src)
	require.Len(t, doc.Blocks, 2)

	doc.Blocks[0].Content = "A considerably longer replacement paragraph."
	doc.Blocks[1].Content = "T."

	out, err := doc.Render()
	require.NoError(t, err)
	assert.Equal(t, "# Heading stays\n\nA considerably longer replacement paragraph.\n\n## Also stays\n\nT.\n", string(out))
}

func TestTree_FabricatedRefDoesNotResolve(t *testing.T) {
	doc := parse(t, "One.\n\nTwo.\n")

	err := doc.Tree.WriteText(Ref{Start: 1, End: 3}, "x")
	require.Error(t, err)
}

func TestTree_ResolveRecordedSpans(t *testing.T) {
	doc := parse(t, "One.\n\nTwo.\n")
	for _, b := range doc.Blocks {
		require.NoError(t, doc.Tree.Resolve(b.Ref))
	}
}

func TestRef_Equal(t *testing.T) {
	a := Ref{Start: 0, End: 4}
	assert.True(t, a.Equal(Ref{Start: 0, End: 4}))
	assert.False(t, a.Equal(Ref{Start: 0, End: 5}))
}
