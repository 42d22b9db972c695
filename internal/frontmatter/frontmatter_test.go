package frontmatter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplit_NoFrontmatter(t *testing.T) {
	content := []byte("# Title\n\nBody text.\n")
	fm, body, had, _, err := Split(content)
	require.NoError(t, err)
	assert.False(t, had)
	assert.Nil(t, fm)
	assert.Equal(t, content, body)
}

func TestSplit_WithFrontmatter(t *testing.T) {
	content := []byte("---\ntitle: Sample\n---\n# Title\n\nBody.\n")
	fm, body, had, style, err := Split(content)
	require.NoError(t, err)
	assert.True(t, had)
	assert.Equal(t, "title: Sample\n", string(fm))
	assert.Equal(t, "# Title\n\nBody.\n", string(body))
	assert.Equal(t, "\n", style.Newline)
}

func TestSplit_EmptyFrontmatter(t *testing.T) {
	content := []byte("---\n---\nBody.\n")
	fm, body, had, _, err := Split(content)
	require.NoError(t, err)
	assert.True(t, had)
	assert.Empty(t, fm)
	assert.Equal(t, "Body.\n", string(body))
}

func TestSplit_MissingClosingDelimiter(t *testing.T) {
	content := []byte("---\ntitle: Broken\nno closing here\n")
	_, _, _, _, err := Split(content)
	require.ErrorIs(t, err, ErrMissingClosingDelimiter)
}

func TestSplit_CRLF(t *testing.T) {
	content := []byte("---\r\ntitle: Win\r\n---\r\nBody.\r\n")
	fm, body, had, style, err := Split(content)
	require.NoError(t, err)
	assert.True(t, had)
	assert.Equal(t, "title: Win\r\n", string(fm))
	assert.Equal(t, "Body.\r\n", string(body))
	assert.Equal(t, "\r\n", style.Newline)
}

func TestJoin_RoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"plain body", "# Title\n\nBody text.\n"},
		{"with frontmatter", "---\ntitle: Sample\ndate: 2024-01-01\n---\n# Title\n\nBody.\n"},
		{"empty frontmatter", "---\n---\nBody.\n"},
		{"crlf", "---\r\ntitle: Win\r\n---\r\nBody.\r\n"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			fm, body, had, style, err := Split([]byte(tc.content))
			require.NoError(t, err)
			out := Join(fm, body, had, style)
			assert.Equal(t, tc.content, string(out))
		})
	}
}

func TestFields(t *testing.T) {
	fields, err := Fields([]byte("title: Sample\ndraft: true\n"))
	require.NoError(t, err)
	assert.Equal(t, "Sample", fields["title"])
	assert.Equal(t, true, fields["draft"])

	fields, err = Fields(nil)
	require.NoError(t, err)
	assert.Empty(t, fields)
}
