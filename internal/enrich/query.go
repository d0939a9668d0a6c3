package enrich

import (
	"regexp"
	"strings"

	"github.com/matsen/bibfix/internal/bibtex"
	"github.com/matsen/bibfix/internal/reference"
)

// arXivRefRe finds "arXiv:1706.03762" style references in free-text fields
// such as journal = {arXiv preprint arXiv:1706.03762}.
var arXivRefRe = regexp.MustCompile(`(?i)arxiv:\s*(\d{4}\.\d{4,5}(?:v\d+)?|[a-z\-]+(?:\.[a-z]{2})?/\d{7})`)

// QueryFor builds the source query for an entry from its title and any
// DOI or arXiv id it carries.
func QueryFor(e *bibtex.Entry) reference.Query {
	q := reference.Query{Title: strings.TrimSpace(e.Get("title"))}

	q.DOI = reference.CleanDOI(e.Get("doi"))
	if q.DOI == "" {
		q.DOI = reference.FindDOI(e.Get("url"))
	}

	prefix := strings.ToLower(strings.TrimSpace(e.Get("archiveprefix") + e.Get("eprinttype")))
	if eprint := strings.TrimSpace(e.Get("eprint")); eprint != "" && (prefix == "" || prefix == "arxiv") {
		q.ArXivID = reference.NormalizeArXivID(eprint)
	}
	for _, candidate := range []func() string{
		func() string { return reference.NormalizeArXivID(e.Get("arxiv")) },
		func() string { return reference.ArXivIDFromDOI(q.DOI) },
		func() string { return reference.ArXivIDFromURL(e.Get("url")) },
		func() string { return arXivRef(e.Get("journal")) },
		func() string { return arXivRef(e.Get("note")) },
	} {
		if q.ArXivID != "" {
			break
		}
		q.ArXivID = candidate()
	}
	return q
}

func arXivRef(s string) string {
	m := arXivRefRe.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	return reference.NormalizeArXivID(m[1])
}
