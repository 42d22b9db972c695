package document

import (
	"fmt"
	"sync"
)

// Parser converts raw file content into a Document.
type Parser interface {
	// Parse decodes content into a structure-preserving Document.
	// The returned error carries CategoryParse when the content cannot be
	// decoded into the expected structural form.
	Parse(path string, content []byte) (*Document, error)
	// Format reports the document format this parser handles.
	Format() Format
}

var (
	parsersMu sync.RWMutex
	parsers   = map[Format]Parser{}
)

// RegisterParser installs a parser for its format. Later registrations for
// the same format replace earlier ones.
func RegisterParser(p Parser) {
	parsersMu.Lock()
	defer parsersMu.Unlock()
	parsers[p.Format()] = p
}

// ParserFor returns the registered parser for a format.
func ParserFor(f Format) (Parser, error) {
	parsersMu.RLock()
	defer parsersMu.RUnlock()
	p, ok := parsers[f]
	if !ok {
		return nil, fmt.Errorf("no parser registered for format %q", f)
	}
	return p, nil
}
