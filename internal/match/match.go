// Package match decides which candidate, if any, a source contributed for an entry.
package match

import (
	"github.com/matsen/bibfix/internal/reference"
)

// DefaultThreshold is the minimum title similarity for a candidate to be
// accepted without an identifier match. The boundary is inclusive.
const DefaultThreshold = 0.6

// How a candidate was accepted.
const (
	ByIdentifier = "identifier"
	ByTitle      = "title"
)

// Match is an accepted candidate.
type Match struct {
	Candidate reference.Candidate
	Score     float64 // Title similarity in [0,1]
	MatchedBy string  // ByIdentifier or ByTitle
	Index     int     // Position in the candidate list
}

// Identified reports whether the match was made on an identifier.
func (m Match) Identified() bool {
	return m.MatchedBy == ByIdentifier
}

// Matcher selects the best candidate for a query.
type Matcher struct {
	// Threshold is the inclusive minimum title similarity.
	Threshold float64

	// Priority orders sources for tie-breaking; unlisted sources rank last.
	Priority []reference.Source
}

// New returns a Matcher with the default threshold and source priority.
func New() Matcher {
	return Matcher{Threshold: DefaultThreshold, Priority: reference.AllSources}
}

// Best picks the candidate for q.
//
// A candidate whose DOI or arXiv id equals the query's is accepted regardless
// of its title. Otherwise the most similar title wins if it reaches the
// threshold. Ties go to the higher Confidence, then the higher-priority
// source, then the earlier candidate. ok is false when nothing qualifies;
// that is a normal outcome, not an error.
func (m Matcher) Best(q reference.Query, candidates []reference.Candidate) (best Match, ok bool) {
	// First pass: identifier matches
	for i, c := range candidates {
		if !SameWork(q, c) {
			continue
		}
		cur := Match{Candidate: c, Score: Similarity(q.Title, c.Title), MatchedBy: ByIdentifier, Index: i}
		if !ok || m.better(cur, best) {
			best, ok = cur, true
		}
	}
	if ok {
		return best, true
	}

	// Second pass: title similarity
	if len(reference.TitleTokens(q.Title)) == 0 {
		return Match{}, false
	}
	for i, c := range candidates {
		score := Similarity(q.Title, c.Title)
		if score < m.Threshold || score == 0 {
			continue
		}
		cur := Match{Candidate: c, Score: score, MatchedBy: ByTitle, Index: i}
		if !ok || m.better(cur, best) {
			best, ok = cur, true
		}
	}
	return best, ok
}

// better reports whether a beats b.
func (m Matcher) better(a, b Match) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.Candidate.Confidence != b.Candidate.Confidence {
		return a.Candidate.Confidence > b.Candidate.Confidence
	}
	if ra, rb := m.Rank(a.Candidate.Source), m.Rank(b.Candidate.Source); ra != rb {
		return ra < rb
	}
	return a.Index < b.Index
}

// Rank returns the position of src in the priority order. Unlisted sources
// rank after all listed ones.
func (m Matcher) Rank(src reference.Source) int {
	for i, s := range m.Priority {
		if s == src {
			return i
		}
	}
	return len(m.Priority)
}

// SameWork reports whether the query and the candidate carry the same DOI or
// the same arXiv id. arXiv DOIs (10.48550/arXiv.<id>) count as arXiv ids.
func SameWork(q reference.Query, c reference.Candidate) bool {
	if reference.SameDOI(q.DOI, c.DOI) {
		return true
	}
	qid := q.ArXivID
	if qid == "" {
		qid = reference.ArXivIDFromDOI(q.DOI)
	}
	cid := c.ArXivID
	if cid == "" {
		cid = reference.ArXivIDFromDOI(c.DOI)
	}
	return reference.SameArXivID(qid, cid)
}
