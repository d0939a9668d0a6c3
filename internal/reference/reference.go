// Package reference defines the metadata records exchanged between the
// external sources and the enrichment pipeline.
package reference

import (
	"fmt"
	"strings"
)

// Source identifies an external metadata source.
type Source string

const (
	SourceArXiv    Source = "arxiv"
	SourceCrossRef Source = "crossref"
	SourceDBLP     Source = "dblp"
)

// AllSources lists the supported sources in default priority order.
var AllSources = []Source{SourceCrossRef, SourceArXiv, SourceDBLP}

// ParseSource parses a source name (case-insensitive).
func ParseSource(s string) (Source, error) {
	src := Source(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range AllSources {
		if src == known {
			return src, nil
		}
	}
	return "", fmt.Errorf("unknown source %q (valid: arxiv, crossref, dblp)", s)
}

// Candidate is a metadata record proposed by one source as a possible match
// for an entry.
type Candidate struct {
	Source  Source   `json:"source"`
	Title   string   `json:"title"`
	Authors []Author `json:"authors,omitempty"`
	Year    string   `json:"year,omitempty"`
	Venue   string   `json:"venue,omitempty"` // Journal, conference, or preprint server
	DOI     string   `json:"doi,omitempty"`
	ArXivID string   `json:"arxiv_id,omitempty"`

	// EntryType is the BibTeX entry type the source suggests, if it knows one.
	EntryType string `json:"entry_type,omitempty"`

	// Extra holds additional BibTeX fields (volume, pages, publisher, url, ...).
	Extra map[string]string `json:"extra,omitempty"`

	// Confidence is the source's own estimate of match strength in [0,1].
	// It only breaks ties between equally similar candidates.
	Confidence float64 `json:"confidence"`
}

// Query describes what is known about the entry being enriched.
type Query struct {
	Title   string `json:"title,omitempty"`
	DOI     string `json:"doi,omitempty"`
	ArXivID string `json:"arxiv_id,omitempty"`
}

// IsEmpty returns true if the query has nothing to search with.
func (q Query) IsEmpty() bool {
	return strings.TrimSpace(q.Title) == "" && q.DOI == "" && q.ArXivID == ""
}

// HasIdentifier returns true if the query carries a DOI or arXiv id.
func (q Query) HasIdentifier() bool {
	return q.DOI != "" || q.ArXivID != ""
}

// CacheKey returns a stable key for caching lookups of this query.
func (q Query) CacheKey() string {
	var parts []string
	if q.ArXivID != "" {
		parts = append(parts, "arxiv:"+NormalizeArXivID(q.ArXivID))
	}
	if q.DOI != "" {
		parts = append(parts, "doi:"+NormalizeDOI(q.DOI))
	}
	if t := NormalizeTitle(q.Title); t != "" {
		parts = append(parts, "title:"+t)
	}
	return strings.Join(parts, "|")
}
