// Package bibtex parses and writes BibTeX files without losing content it
// does not understand.
package bibtex

import "strings"

// Node is one top-level item of a Document: an *Entry or an *OpaqueBlock.
type Node interface {
	node()
}

// OpaqueKind classifies text the parser keeps but does not interpret.
type OpaqueKind string

const (
	OpaqueText      OpaqueKind = "text"      // Whitespace, free text, trailing garbage
	OpaqueComment   OpaqueKind = "comment"   // @comment{...}
	OpaqueString    OpaqueKind = "string"    // @string{...} macro definitions
	OpaquePreamble  OpaqueKind = "preamble"  // @preamble{...}
	OpaqueMalformed OpaqueKind = "malformed" // An entry that failed to parse
)

// OpaqueBlock is source text reproduced verbatim on output.
type OpaqueBlock struct {
	Kind OpaqueKind
	Text string
}

func (*OpaqueBlock) node() {}

// Document is a parsed BibTeX file. Nodes are kept in source order.
type Document struct {
	Nodes    []Node
	Errors   []*MalformedEntryError
	Warnings []Warning
}

// Entries returns the entries of the document in source order.
func (d *Document) Entries() []*Entry {
	var entries []*Entry
	for _, n := range d.Nodes {
		if e, ok := n.(*Entry); ok {
			entries = append(entries, e)
		}
	}
	return entries
}

// Lookup returns the first entry with the given cite key.
func (d *Document) Lookup(key string) (*Entry, bool) {
	for _, e := range d.Entries() {
		if e.Key == key {
			return e, true
		}
	}
	return nil, false
}

// Replace swaps old for repl in place. It reports whether old was found.
func (d *Document) Replace(old, repl *Entry) bool {
	for i, n := range d.Nodes {
		if n == Node(old) {
			d.Nodes[i] = repl
			return true
		}
	}
	return false
}

// DuplicateKeys returns cite keys that appear more than once, in order of
// their second appearance.
func (d *Document) DuplicateKeys() []string {
	seen := make(map[string]int)
	var dups []string
	for _, e := range d.Entries() {
		seen[e.Key]++
		if seen[e.Key] == 2 {
			dups = append(dups, e.Key)
		}
	}
	return dups
}

// Entry is one bibliographic record.
type Entry struct {
	Type   string // Entry type as written, e.g. "Article"
	Key    string // Cite key, case-sensitive
	Fields Fields

	// Raw is the source text from '@' through the closing delimiter.
	// It is written back verbatim while the entry is unmodified.
	Raw string

	Offset int // Byte offset of '@' in the source
	Line   int // 1-indexed line of '@'

	modified bool
}

func (*Entry) node() {}

// NewEntry creates an entry that has no source text.
func NewEntry(entryType, key string) *Entry {
	return &Entry{Type: entryType, Key: key, modified: true}
}

// Kind returns the lowercased entry type.
func (e *Entry) Kind() string {
	return strings.ToLower(e.Type)
}

// Get returns the value of a field, or "" when absent.
func (e *Entry) Get(name string) string {
	v, _ := e.Fields.Get(name)
	return v
}

// Set assigns a field value. It reports whether the entry changed.
func (e *Entry) Set(name, value string) bool {
	if !e.Fields.Set(name, value) {
		return false
	}
	e.modified = true
	return true
}

// Modified reports whether the entry differs from its source text.
func (e *Entry) Modified() bool {
	return e.modified || e.Raw == ""
}

// Clone returns a deep copy of the entry.
func (e *Entry) Clone() *Entry {
	c := *e
	c.Fields = e.Fields.clone()
	return &c
}

// Field is a single name = value pair.
type Field struct {
	Name    string // Lowercased field name
	RawName string // Field name as written
	Value   string // Value with the outer delimiters removed
	Raw     string // Value expression as written; empty once the value changes
}

// Fields is an insertion-ordered, case-insensitive field mapping.
// The zero value is ready to use.
type Fields struct {
	list  []Field
	index map[string]int
}

// Len returns the number of fields.
func (f *Fields) Len() int {
	return len(f.list)
}

// Get returns the value for name and whether it is present.
func (f *Fields) Get(name string) (string, bool) {
	i, ok := f.lookup(name)
	if !ok {
		return "", false
	}
	return f.list[i].Value, true
}

// Has reports whether a field is present.
func (f *Fields) Has(name string) bool {
	_, ok := f.lookup(name)
	return ok
}

// Set assigns value to name, appending the field if it is new.
// It reports whether anything changed.
func (f *Fields) Set(name, value string) bool {
	if i, ok := f.lookup(name); ok {
		if f.list[i].Value == value {
			return false
		}
		f.list[i].Value = value
		f.list[i].Raw = ""
		return true
	}
	f.add(Field{Name: strings.ToLower(name), RawName: name, Value: value})
	return true
}

// Delete removes a field. It reports whether the field existed.
func (f *Fields) Delete(name string) bool {
	i, ok := f.lookup(name)
	if !ok {
		return false
	}
	f.list = append(f.list[:i], f.list[i+1:]...)
	f.reindex()
	return true
}

// All returns a copy of the fields in insertion order.
func (f *Fields) All() []Field {
	out := make([]Field, len(f.list))
	copy(out, f.list)
	return out
}

// Names returns the lowercased field names in insertion order.
func (f *Fields) Names() []string {
	names := make([]string, len(f.list))
	for i, fl := range f.list {
		names[i] = fl.Name
	}
	return names
}

// put stores a parsed field. A repeated name keeps its first position and
// takes the later value. It reports whether the name was already present.
func (f *Fields) put(fl Field) bool {
	if i, ok := f.lookup(fl.Name); ok {
		f.list[i].Value = fl.Value
		f.list[i].Raw = fl.Raw
		return true
	}
	f.add(fl)
	return false
}

func (f *Fields) add(fl Field) {
	if f.index == nil {
		f.reindex()
	}
	f.index[fl.Name] = len(f.list)
	f.list = append(f.list, fl)
}

func (f *Fields) lookup(name string) (int, bool) {
	if f.index == nil {
		if len(f.list) == 0 {
			return 0, false
		}
		f.reindex()
	}
	i, ok := f.index[strings.ToLower(name)]
	return i, ok
}

func (f *Fields) reindex() {
	f.index = make(map[string]int, len(f.list))
	for i, fl := range f.list {
		f.index[fl.Name] = i
	}
}

func (f Fields) clone() Fields {
	c := Fields{list: make([]Field, len(f.list))}
	copy(c.list, f.list)
	c.reindex()
	return c
}
