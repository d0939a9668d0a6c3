package bibtex

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Indent is the field indentation used for entries that are re-rendered.
const Indent = "  "

// Write renders a document. Unmodified entries and opaque blocks are written
// exactly as they were read.
func Write(w io.Writer, doc *Document) error {
	bw := bufio.NewWriter(w)
	for _, n := range doc.Nodes {
		var s string
		switch n := n.(type) {
		case *Entry:
			s = renderEntry(n)
		case *OpaqueBlock:
			s = n.Text
		}
		if _, err := bw.WriteString(s); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Format renders a document to a string.
func Format(doc *Document) string {
	var b strings.Builder
	_ = Write(&b, doc) // strings.Builder never fails
	return b.String()
}

// FormatEntry renders a single entry, verbatim if unmodified.
func FormatEntry(e *Entry) string {
	return renderEntry(e)
}

func renderEntry(e *Entry) string {
	if !e.Modified() {
		return e.Raw
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("@%s{%s,\n", e.Type, e.Key))
	for _, f := range e.Fields.list {
		name := f.RawName
		if name == "" {
			name = f.Name
		}
		value := f.Raw
		if value == "" {
			value = "{" + f.Value + "}"
		}
		b.WriteString(fmt.Sprintf("%s%s = %s,\n", Indent, name, value))
	}
	b.WriteString("}")

	return b.String()
}

// EscapeValue prepares plain text from an external source for use inside a
// braced BibTeX value. Braces are kept when balanced (they protect case) and
// dropped otherwise so the output always parses.
func EscapeValue(s string) string {
	replacer := strings.NewReplacer(
		`\`, `\textbackslash{}`,
		"&", `\&`,
		"%", `\%`,
		"$", `\$`,
		"#", `\#`,
		"_", `\_`,
	)
	s = replacer.Replace(strings.TrimSpace(s))
	if !balanced(s) {
		s = strings.NewReplacer("{", "", "}", "").Replace(s)
		s = strings.ReplaceAll(s, `\textbackslash`, `\textbackslash{}`)
	}
	return strings.Join(strings.Fields(s), " ")
}

func balanced(s string) bool {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth < 0 {
				return false
			}
		}
	}
	return depth == 0
}

// EntryTypeForVenue guesses the entry type from a venue name.
func EntryTypeForVenue(venue string) string {
	v := strings.ToLower(venue)

	// Preprints
	if strings.Contains(v, "arxiv") ||
		strings.Contains(v, "biorxiv") ||
		strings.Contains(v, "medrxiv") {
		return "article"
	}

	// Conference proceedings
	if strings.Contains(v, "proceedings") ||
		strings.Contains(v, "conference") ||
		strings.Contains(v, "workshop") ||
		strings.Contains(v, "symposium") {
		return "inproceedings"
	}

	if v == "" {
		return "misc"
	}
	return "article"
}
