// Package frontmatter splits YAML frontmatter from a Markdown body so the
// correction pipeline never treats metadata lines as prose. The raw
// frontmatter bytes are carried through the pipeline untouched and re-joined
// verbatim at render time.
package frontmatter

import (
	"bytes"
	"errors"

	"gopkg.in/yaml.v3"
)

// ErrMissingClosingDelimiter indicates the document started with a YAML
// frontmatter delimiter but did not contain a closing delimiter.
var ErrMissingClosingDelimiter = errors.New("yaml frontmatter start delimiter found but closing delimiter is missing")

// Style captures the newline shape needed for stable rewriting.
type Style struct {
	Newline string
}

// Split separates YAML frontmatter (`---` delimited) from the Markdown body.
//
// If the document does not start with a frontmatter delimiter, had is false
// and body is the full input.
func Split(content []byte) (fm []byte, body []byte, had bool, style Style, err error) {
	style = detectStyle(content)

	nl := style.Newline
	open := []byte("---" + nl)
	if !bytes.HasPrefix(content, open) {
		return nil, content, false, style, nil
	}

	start := len(open)
	// Empty frontmatter: opening delimiter immediately followed by closing.
	if bytes.HasPrefix(content[start:], open) {
		return []byte{}, content[start+len(open):], true, style, nil
	}

	closeSeq := []byte(nl + "---" + nl)
	idx := bytes.Index(content[start:], closeSeq)
	if idx < 0 {
		return nil, nil, false, style, ErrMissingClosingDelimiter
	}

	fmEnd := start + idx + len(nl)
	bodyStart := start + idx + len(closeSeq)
	return content[start:fmEnd], content[bodyStart:], true, style, nil
}

// Join reassembles a document from raw frontmatter and body.
//
// If had is false, Join returns body as-is. Otherwise the frontmatter bytes
// are emitted between `---` delimiters using the captured newline style.
func Join(fm []byte, body []byte, had bool, style Style) []byte {
	if !had {
		return body
	}

	nl := style.Newline
	if nl == "" {
		nl = "\n"
	}
	delim := []byte("---" + nl)

	out := make([]byte, 0, 2*len(delim)+len(fm)+len(body))
	out = append(out, delim...)
	out = append(out, fm...)
	out = append(out, delim...)
	out = append(out, body...)
	return out
}

// Fields parses raw frontmatter (without delimiters) into a key/value map.
// Returns an empty map for empty input.
func Fields(fm []byte) (map[string]any, error) {
	if len(fm) == 0 {
		return map[string]any{}, nil
	}

	var fields map[string]any
	if err := yaml.Unmarshal(fm, &fields); err != nil {
		return nil, err
	}
	if fields == nil {
		fields = map[string]any{}
	}
	return fields, nil
}

func detectStyle(content []byte) Style {
	newline := "\n"
	for i := 0; i < len(content); i++ {
		if content[i] == '\n' {
			if i > 0 && content[i-1] == '\r' {
				newline = "\r\n"
			}
			break
		}
	}
	return Style{Newline: newline}
}
