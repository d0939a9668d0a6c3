package reference

import (
	"fmt"
	"strings"
)

// Author is a single author name.
type Author struct {
	First string `json:"first"` // First/given name(s)
	Last  string `json:"last"`  // Last/family name, including von-parts and suffixes
}

// String returns the name in "First Last" order.
func (a Author) String() string {
	if a.First == "" {
		return a.Last
	}
	return a.First + " " + a.Last
}

// nameSuffixes are generational and academic suffixes kept with the last name.
var nameSuffixes = map[string]bool{
	"jr": true, "jr.": true,
	"sr": true, "sr.": true,
	"ii": true, "iii": true, "iv": true,
	"phd": true, "md": true,
}

// SplitAuthorName splits a "First Middle Last" name.
// Handles common suffixes (Jr, Sr, II, III, IV, PhD, MD).
//
// Known limitations:
// - Multi-part surnames (von Neumann, van der Waals) split incorrectly
// - Middle names are included in the first name
func SplitAuthorName(name string) Author {
	parts := strings.Fields(name)
	switch len(parts) {
	case 0:
		return Author{}
	case 1:
		// Single name (e.g., "Madonna")
		return Author{Last: parts[0]}
	}

	lastPart := strings.ToLower(parts[len(parts)-1])
	if nameSuffixes[lastPart] && len(parts) > 2 {
		return Author{
			First: strings.Join(parts[:len(parts)-2], " "),
			Last:  parts[len(parts)-2] + " " + parts[len(parts)-1],
		}
	}
	return Author{
		First: strings.Join(parts[:len(parts)-1], " "),
		Last:  parts[len(parts)-1],
	}
}

// ParseAuthor parses one BibTeX name, in either "Last, First" or
// "First Last" form.
func ParseAuthor(name string) Author {
	name = strings.Join(strings.Fields(name), " ")
	if strings.HasPrefix(name, "{") && strings.HasSuffix(name, "}") {
		// Corporate author, e.g. {World Health Organization}
		return Author{Last: name}
	}
	if last, first, ok := strings.Cut(name, ","); ok {
		// "Last, Jr, First" keeps the suffix with the last name
		if suffix, given, ok := strings.Cut(first, ","); ok {
			return Author{
				First: strings.TrimSpace(given),
				Last:  strings.TrimSpace(last) + " " + strings.TrimSpace(suffix),
			}
		}
		return Author{First: strings.TrimSpace(first), Last: strings.TrimSpace(last)}
	}
	return SplitAuthorName(name)
}

// ParseBibTeXAuthors splits a BibTeX author list on " and " at brace depth zero.
func ParseBibTeXAuthors(s string) []Author {
	var authors []Author
	for _, name := range splitAnd(s) {
		if a := ParseAuthor(name); a.Last != "" || a.First != "" {
			authors = append(authors, a)
		}
	}
	return authors
}

func splitAnd(s string) []string {
	var parts []string
	depth, start := 0, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
		case ' ', '\t', '\n':
			if depth == 0 && i+4 < len(s) && strings.EqualFold(s[i+1:i+4], "and") && isBlank(s[i+4]) {
				parts = append(parts, s[start:i])
				start = i + 5
				i += 4
			}
		}
	}
	return append(parts, s[start:])
}

func isBlank(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n'
}

// FormatBibTeXAuthors formats authors in BibTeX style: "Last, First and Last, First".
func FormatBibTeXAuthors(authors []Author) string {
	var formatted []string
	for _, a := range authors {
		if a.First != "" {
			formatted = append(formatted, fmt.Sprintf("%s, %s", a.Last, a.First))
		} else {
			formatted = append(formatted, a.Last)
		}
	}
	return strings.Join(formatted, " and ")
}
