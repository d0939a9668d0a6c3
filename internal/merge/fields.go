package merge

import (
	"sort"
	"strings"

	"github.com/matsen/bibfix/internal/bibtex"
	"github.com/matsen/bibfix/internal/reference"
)

// FieldValue is one BibTeX field proposed by a candidate.
type FieldValue struct {
	Name  string
	Value string
}

// Identifiers and URLs are written as-is; LaTeX escaping would corrupt them.
var verbatimFields = map[string]bool{
	"doi":           true,
	"eprint":        true,
	"archiveprefix": true,
	"url":           true,
}

// Fields converts a candidate to BibTeX fields for an entry of the given type.
// The venue goes to booktitle for proceedings-like types, to journal otherwise,
// and is dropped for books.
func Fields(c reference.Candidate, entryType string) []FieldValue {
	var out []FieldValue
	add := func(name, value string) {
		if verbatimFields[name] {
			value = strings.NewReplacer("{", "", "}", "").Replace(strings.TrimSpace(value))
		} else {
			value = bibtex.EscapeValue(value)
		}
		if value != "" {
			out = append(out, FieldValue{Name: name, Value: value})
		}
	}

	add("title", c.Title)
	if len(c.Authors) > 0 {
		add("author", reference.FormatBibTeXAuthors(c.Authors))
	}
	add("year", c.Year)
	if name := VenueField(entryType); name != "" {
		add(name, c.Venue)
	}
	add("doi", c.DOI)
	if c.ArXivID != "" {
		add("eprint", c.ArXivID)
		add("archiveprefix", "arXiv")
	}

	names := make([]string, 0, len(c.Extra))
	for name := range c.Extra {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		add(strings.ToLower(name), c.Extra[name])
	}
	return out
}

// VenueField returns the field that holds the venue for an entry type.
func VenueField(entryType string) string {
	switch strings.ToLower(entryType) {
	case "inproceedings", "conference", "incollection", "proceedings":
		return "booktitle"
	case "book", "phdthesis", "mastersthesis", "techreport":
		return ""
	default:
		return "journal"
	}
}

// valueKey normalizes a value for equality tests so formatting differences
// between sources are not reported as conflicts.
func valueKey(field, value string) string {
	switch field {
	case "doi":
		return reference.NormalizeDOI(value)
	case "eprint":
		return reference.NormalizeArXivID(value)
	case "title", "journal", "booktitle":
		return reference.NormalizeTitle(value)
	case "author":
		authors := reference.ParseBibTeXAuthors(value)
		keys := make([]string, len(authors))
		for i, a := range authors {
			keys[i] = reference.NormalizeTitle(a.Last)
		}
		return strings.Join(keys, ";")
	default:
		return strings.ToLower(strings.Join(strings.Fields(value), " "))
	}
}
