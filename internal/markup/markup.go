// Package markup parses Markdown documents into the pipeline's intermediate
// form and reconstructs corrected output.
//
// Parsing walks a Goldmark AST and extracts one block per top-level paragraph.
// Each block's ref is the byte span the paragraph occupies in the original
// body, so reconstruction is a set of targeted byte-range replacements into
// the untouched source rather than a Markdown re-render. A zero-stage run
// reproduces the input byte-for-byte.
//
// Coverage limitation: headings, list items, table cells and paragraphs
// nested inside block containers (quotes, lists) are never extracted as
// blocks; their bytes pass through verbatim.
package markup

import (
	"fmt"

	"github.com/yuin/goldmark"
	gmast "github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/hebbihebb/satcn/internal/document"
	"github.com/hebbihebb/satcn/internal/errors"
	"github.com/hebbihebb/satcn/internal/frontmatter"
)

// Ref identifies a paragraph by the byte span it occupies in the document
// body (frontmatter excluded). End is exclusive.
type Ref struct {
	Start int
	End   int
}

// Equal reports whether two refs identify the same span.
func (r Ref) Equal(other document.BlockRef) bool {
	o, ok := other.(Ref)
	return ok && o == r
}

func (r Ref) String() string { return fmt.Sprintf("md:[%d:%d)", r.Start, r.End) }

// tree holds the original source split into frontmatter and body, the set of
// paragraph spans recorded at parse time, and pending write-backs.
type tree struct {
	fm    []byte
	body  []byte
	had   bool
	style frontmatter.Style

	spans   map[Ref]struct{}
	pending map[Ref]string
}

// Resolve verifies that ref matches a paragraph span recorded at parse time.
func (t *tree) Resolve(ref document.BlockRef) error {
	r, ok := ref.(Ref)
	if !ok {
		return fmt.Errorf("ref %v is not a markup ref", ref)
	}
	if _, ok := t.spans[r]; !ok {
		return fmt.Errorf("span %s not present in parsed document", r)
	}
	return nil
}

// WriteText records corrected content for the paragraph identified by ref.
// The source is not touched until Render.
func (t *tree) WriteText(ref document.BlockRef, content string) error {
	if err := t.Resolve(ref); err != nil {
		return err
	}
	t.pending[ref.(Ref)] = content
	return nil
}

// Render splices all recorded write-backs into the original body and
// re-joins the untouched frontmatter.
func (t *tree) Render() ([]byte, error) {
	edits := make([]edit, 0, len(t.pending))
	for r, content := range t.pending {
		edits = append(edits, edit{start: r.Start, end: r.End, replacement: []byte(content)})
	}
	body, err := applyEdits(t.body, edits)
	if err != nil {
		return nil, err
	}
	return frontmatter.Join(t.fm, body, t.had, t.style), nil
}

// Parser decodes Markdown files.
type Parser struct{}

// Format reports the format this parser handles.
func (Parser) Format() document.Format { return document.FormatMarkup }

// Parse decodes Markdown content into a Document.
func (Parser) Parse(path string, content []byte) (*document.Document, error) {
	fm, body, had, style, err := frontmatter.Split(content)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryParse, errors.SeverityFatal,
			"failed to split frontmatter").WithContext("path", path)
	}

	md := goldmark.New()
	root := md.Parser().Parse(text.NewReader(body))

	tr := &tree{
		fm:      append([]byte(nil), fm...),
		body:    append([]byte(nil), body...),
		had:     had,
		style:   style,
		spans:   make(map[Ref]struct{}),
		pending: make(map[Ref]string),
	}

	var blocks []document.Block
	for n := root.FirstChild(); n != nil; n = n.NextSibling() {
		para, ok := n.(*gmast.Paragraph)
		if !ok {
			continue
		}
		r, ok := paragraphSpan(body, para)
		if !ok {
			continue
		}
		tr.spans[r] = struct{}{}
		blocks = append(blocks, document.Block{
			Content: string(body[r.Start:r.End]),
			Ref:     r,
		})
	}

	return &document.Document{
		Format:     document.FormatMarkup,
		SourcePath: path,
		Tree:       tr,
		Blocks:     blocks,
	}, nil
}

// paragraphSpan computes the byte span covering a paragraph's lines, with
// trailing line breaks trimmed so block content never carries the paragraph
// separator.
func paragraphSpan(body []byte, para *gmast.Paragraph) (Ref, bool) {
	lines := para.Lines()
	if lines.Len() == 0 {
		return Ref{}, false
	}
	start := lines.At(0).Start
	stop := lines.At(lines.Len() - 1).Stop
	for stop > start && (body[stop-1] == '\n' || body[stop-1] == '\r') {
		stop--
	}
	if stop <= start {
		return Ref{}, false
	}
	return Ref{Start: start, End: stop}, true
}

func init() {
	document.RegisterParser(Parser{})
}
