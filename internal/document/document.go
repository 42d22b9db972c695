// Package document defines the structure-preserving intermediate form every
// correction stage operates on.
//
// A parsed file becomes a Document: an opaque structural Tree plus an ordered
// list of Blocks. Each Block carries one paragraph of correctable prose and a
// BlockRef pointing back into the Tree. Stages rewrite Block content only;
// the Tree is touched exactly once, by Render, when the corrected text is
// written back into the original structure.
package document

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/hebbihebb/satcn/internal/errors"
)

// Format identifies a supported document type.
type Format string

const (
	FormatMarkup Format = "markdown"
	FormatEbook  Format = "epub"
)

// DetectFormat infers the document format from a file extension.
func DetectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		return FormatMarkup, nil
	case ".epub":
		return FormatEbook, nil
	default:
		return "", errors.New(errors.CategoryValidation, errors.SeverityFatal,
			fmt.Sprintf("unsupported file type %q: provide a .md or .epub file", filepath.Ext(path)))
	}
}

// BlockRef is an opaque, format-specific back-reference from a Block into the
// Tree node it was extracted from. Refs are set at parse time and are never
// interpreted or mutated by correction stages.
type BlockRef interface {
	// Equal reports whether two refs identify the same tree node.
	Equal(other BlockRef) bool
	// String renders the ref for diagnostics.
	String() string
}

// Block is one paragraph-granularity unit of correctable text.
type Block struct {
	Content string
	Ref     BlockRef
}

// Tree is the structural representation of a parsed document. It is owned
// exclusively by its Document for the lifetime of a pipeline run.
type Tree interface {
	// Resolve verifies that ref still identifies a node in the tree.
	Resolve(ref BlockRef) error
	// WriteText overwrites the text payload of the node identified by ref.
	// Sibling and parent structure is left untouched.
	WriteText(ref BlockRef, text string) error
	// Render serializes the tree, including any written text, to the
	// target format's byte representation.
	Render() ([]byte, error)
}

// Document is the top-level unit passed through the pipeline.
type Document struct {
	Format     Format
	SourcePath string
	Tree       Tree
	Blocks     []Block
}

// CloneBlocks returns a copy of the block slice. Refs are shared (they are
// immutable); content strings are value-copied by assignment.
func (d *Document) CloneBlocks() []Block {
	out := make([]Block, len(d.Blocks))
	copy(out, d.Blocks)
	return out
}

// VerifyAgainst checks the structural invariants a stage must preserve:
// the block count and order are unchanged, every ref is identical to the
// ref recorded before the stage ran, and every ref still resolves against
// the tree. A non-nil return is always an invariant violation and must be
// treated as fatal by the caller.
func (d *Document) VerifyAgainst(before []Block) error {
	if len(d.Blocks) != len(before) {
		return errors.New(errors.CategoryInvariant, errors.SeverityFatal,
			fmt.Sprintf("block count changed: %d before, %d after", len(before), len(d.Blocks)))
	}
	for i := range d.Blocks {
		if d.Blocks[i].Ref == nil || before[i].Ref == nil {
			return errors.New(errors.CategoryInvariant, errors.SeverityFatal,
				fmt.Sprintf("block %d has nil ref", i))
		}
		if !d.Blocks[i].Ref.Equal(before[i].Ref) {
			return errors.New(errors.CategoryInvariant, errors.SeverityFatal,
				fmt.Sprintf("block %d ref changed: %s -> %s", i, before[i].Ref, d.Blocks[i].Ref))
		}
		if err := d.Tree.Resolve(d.Blocks[i].Ref); err != nil {
			return errors.Wrap(err, errors.CategoryInvariant, errors.SeverityFatal,
				fmt.Sprintf("block %d ref no longer resolves", i))
		}
	}
	return nil
}

// Render writes every block's (possibly corrected) content back into the
// tree node identified by its ref and serializes the tree. Nodes with no
// corresponding block are emitted verbatim.
func (d *Document) Render() ([]byte, error) {
	for i, b := range d.Blocks {
		if err := d.Tree.WriteText(b.Ref, b.Content); err != nil {
			return nil, errors.Wrap(err, errors.CategoryReconstruct, errors.SeverityFatal,
				fmt.Sprintf("block %d (%s) does not resolve against tree", i, b.Ref))
		}
	}
	out, err := d.Tree.Render()
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryReconstruct, errors.SeverityFatal,
			"failed to serialize document tree")
	}
	return out, nil
}
