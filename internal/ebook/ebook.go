// Package ebook parses EPUB documents into the pipeline's intermediate form
// and reconstructs corrected output.
//
// Blocks are extracted only from <p> elements with plain text content inside
// the book's XHTML content documents; every other element type is never
// corrected. Reconstruction re-serializes only the content
// documents that actually changed; all other archive members, including the
// container metadata and untouched chapters, are copied through verbatim.
package ebook

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/antchfx/xmlquery"

	"github.com/hebbihebb/satcn/internal/document"
	"github.com/hebbihebb/satcn/internal/errors"
)

// Ref identifies a correctable paragraph by its content document and its
// position among that document's extractable <p> elements.
type Ref struct {
	Item  string
	Index int
}

// Equal reports whether two refs identify the same paragraph.
func (r Ref) Equal(other document.BlockRef) bool {
	o, ok := other.(Ref)
	return ok && o == r
}

func (r Ref) String() string { return fmt.Sprintf("epub:%s#p%d", r.Item, r.Index) }

// contentDoc is one parsed XHTML chapter plus the text nodes backing its
// extractable paragraphs.
type contentDoc struct {
	root     *xmlquery.Node
	texts    []*xmlquery.Node
	original []string // extracted content at parse time, for dirty tracking
	dirty    bool
}

type tree struct {
	source []byte // original archive bytes
	docs   map[string]*contentDoc
}

// Resolve verifies that ref still identifies an extracted paragraph.
func (t *tree) Resolve(ref document.BlockRef) error {
	r, ok := ref.(Ref)
	if !ok {
		return fmt.Errorf("ref %v is not an ebook ref", ref)
	}
	doc, ok := t.docs[r.Item]
	if !ok {
		return fmt.Errorf("content document %q not present in archive", r.Item)
	}
	if r.Index < 0 || r.Index >= len(doc.texts) {
		return fmt.Errorf("paragraph index %d out of range for %q (%d extracted)", r.Index, r.Item, len(doc.texts))
	}
	return nil
}

// WriteText overwrites the text node of the paragraph identified by ref.
func (t *tree) WriteText(ref document.BlockRef, content string) error {
	if err := t.Resolve(ref); err != nil {
		return err
	}
	r := ref.(Ref)
	doc := t.docs[r.Item]
	if content != doc.original[r.Index] {
		doc.dirty = true
	}
	doc.texts[r.Index].Data = content
	return nil
}

// Render rebuilds the EPUB archive. Untouched members are copied with their
// original compressed bytes; changed content documents are re-serialized.
// The mimetype member keeps its leading, uncompressed position.
func (t *tree) Render() ([]byte, error) {
	r, err := zip.NewReader(bytes.NewReader(t.source), int64(len(t.source)))
	if err != nil {
		return nil, fmt.Errorf("reopen source archive: %w", err)
	}

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)

	for _, f := range r.File {
		doc, parsed := t.docs[f.Name]
		if !parsed || !doc.dirty {
			if err := w.Copy(f); err != nil {
				return nil, fmt.Errorf("copy archive member %q: %w", f.Name, err)
			}
			continue
		}

		serialized := doc.root.OutputXML(false)
		fw, err := w.CreateHeader(&zip.FileHeader{
			Name:   f.Name,
			Method: zip.Deflate,
		})
		if err != nil {
			return nil, fmt.Errorf("create archive member %q: %w", f.Name, err)
		}
		if _, err := io.WriteString(fw, serialized); err != nil {
			return nil, fmt.Errorf("write archive member %q: %w", f.Name, err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("finalize archive: %w", err)
	}
	return buf.Bytes(), nil
}

// Parser decodes EPUB files.
type Parser struct{}

// Format reports the format this parser handles.
func (Parser) Format() document.Format { return document.FormatEbook }

// Parse decodes an EPUB archive into a Document.
func (Parser) Parse(srcPath string, content []byte) (*document.Document, error) {
	r, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryParse, errors.SeverityFatal,
			"input is not a valid EPUB archive").WithContext("path", srcPath)
	}

	tr := &tree{
		source: append([]byte(nil), content...),
		docs:   make(map[string]*contentDoc),
	}

	var blocks []document.Block
	sawContent := false
	for _, f := range r.File {
		if !isContentDocument(f.Name) {
			continue
		}
		sawContent = true

		rc, err := f.Open()
		if err != nil {
			return nil, errors.Wrap(err, errors.CategoryParse, errors.SeverityFatal,
				"failed to open content document").WithContext("item", f.Name)
		}
		root, err := xmlquery.Parse(rc)
		closeErr := rc.Close()
		if err != nil {
			return nil, errors.Wrap(err, errors.CategoryParse, errors.SeverityFatal,
				"failed to parse content document").WithContext("item", f.Name)
		}
		if closeErr != nil {
			return nil, errors.Wrap(closeErr, errors.CategoryParse, errors.SeverityFatal,
				"failed to read content document").WithContext("item", f.Name)
		}

		doc := &contentDoc{root: root}
		for _, p := range xmlquery.Find(root, "//p") {
			text, ok := plainText(p)
			if !ok {
				continue
			}
			ref := Ref{Item: f.Name, Index: len(doc.texts)}
			doc.texts = append(doc.texts, p.FirstChild)
			doc.original = append(doc.original, text)
			blocks = append(blocks, document.Block{Content: text, Ref: ref})
		}
		tr.docs[f.Name] = doc
	}

	if !sawContent {
		return nil, errors.New(errors.CategoryParse, errors.SeverityFatal,
			"archive contains no XHTML content documents").WithContext("path", srcPath)
	}

	return &document.Document{
		Format:     document.FormatEbook,
		SourcePath: srcPath,
		Tree:       tr,
		Blocks:     blocks,
	}, nil
}

// isContentDocument matches the XHTML chapter files of the book body.
func isContentDocument(name string) bool {
	switch strings.ToLower(path.Ext(name)) {
	case ".xhtml", ".html", ".htm":
		return true
	}
	return false
}

// plainText returns the trimmed text of a <p> element whose only child is a
// text node. Paragraphs carrying nested inline markup are skipped; rewriting
// them safely would require splitting content across element boundaries.
func plainText(p *xmlquery.Node) (string, bool) {
	child := p.FirstChild
	if child == nil || child.NextSibling != nil || child.Type != xmlquery.TextNode {
		return "", false
	}
	text := strings.TrimSpace(child.Data)
	if text == "" {
		return "", false
	}
	return text, true
}

func init() {
	document.RegisterParser(Parser{})
}
