package markup

import (
	"errors"
	"fmt"
	"sort"
)

// edit represents a targeted byte-range replacement.
//
// start and end are byte offsets into the original body, with end exclusive.
// replacement replaces body[start:end].
//
// Reconstruction never re-renders Markdown; corrected paragraph content is
// spliced back into the original source so headings, lists, inline markup
// and whitespace outside the edited spans survive byte-for-byte.
type edit struct {
	start       int
	end         int
	replacement []byte
}

// applyEdits applies a set of byte-range edits to source and returns the
// updated content.
//
// Edits must be non-overlapping and refer to offsets in the original source.
// They are sorted and applied from the end of the buffer toward the beginning
// so earlier edits do not invalidate offsets for later edits.
func applyEdits(source []byte, edits []edit) ([]byte, error) {
	if len(edits) == 0 {
		return source, nil
	}

	sorted := make([]edit, len(edits))
	copy(sorted, edits)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].start == sorted[j].start {
			return sorted[i].end > sorted[j].end
		}
		return sorted[i].start > sorted[j].start
	})

	for i, e := range sorted {
		if e.start < 0 || e.end < 0 {
			return nil, fmt.Errorf("invalid edit[%d]: negative range", i)
		}
		if e.end < e.start {
			return nil, fmt.Errorf("invalid edit[%d]: end before start", i)
		}
		if e.end > len(source) {
			return nil, fmt.Errorf("invalid edit[%d]: range out of bounds", i)
		}
		if i > 0 {
			prev := sorted[i-1]
			// Sorted by start descending, so the current edit must end at or
			// before the previous edit's start to avoid overlap.
			if e.end > prev.start {
				return nil, errors.New("invalid edits: overlapping ranges")
			}
		}
	}

	out := append([]byte(nil), source...)
	for _, e := range sorted {
		next := make([]byte, 0, len(out)-(e.end-e.start)+len(e.replacement))
		next = append(next, out[:e.start]...)
		next = append(next, e.replacement...)
		next = append(next, out[e.end:]...)
		out = next
	}

	return out, nil
}
