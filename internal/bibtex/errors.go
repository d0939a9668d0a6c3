package bibtex

import (
	"errors"
	"fmt"
)

// ErrMalformedEntry is matched by every *MalformedEntryError.
var ErrMalformedEntry = errors.New("malformed entry")

// MalformedEntryError describes an entry the parser skipped.
type MalformedEntryError struct {
	Key     string // Cite key, if one was read before the failure
	Offset  int    // Byte offset of the entry's '@'
	Line    int    // 1-indexed line of the entry's '@'
	Message string // What went wrong
}

func (e *MalformedEntryError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("malformed entry %q (line %d): %s", e.Key, e.Line, e.Message)
	}
	return fmt.Sprintf("malformed entry at offset %d (line %d): %s", e.Offset, e.Line, e.Message)
}

// Is makes errors.Is(err, ErrMalformedEntry) work.
func (e *MalformedEntryError) Is(target error) bool {
	return target == ErrMalformedEntry
}

// Where identifies the entry by cite key, or by byte offset when no key was read.
func (e *MalformedEntryError) Where() string {
	if e.Key != "" {
		return e.Key
	}
	return fmt.Sprintf("offset %d", e.Offset)
}

// Warning is a non-fatal parse finding.
type Warning struct {
	Key     string
	Field   string
	Line    int
	Message string
}

func (w Warning) String() string {
	return fmt.Sprintf("line %d: entry %q: %s", w.Line, w.Key, w.Message)
}
