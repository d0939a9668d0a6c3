package enrich

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/matsen/bibfix/internal/bibtex"
	"github.com/matsen/bibfix/internal/match"
	"github.com/matsen/bibfix/internal/reference"
)

// ErrInvalidRequest is returned for a single-entry request without a cite key.
var ErrInvalidRequest = errors.New("invalid request")

// EntryRequest asks for one entry to be built from whatever hints are known.
type EntryRequest struct {
	Key     string `json:"key"`
	Type    string `json:"type,omitempty"` // Entry type; guessed from the match when empty
	Title   string `json:"title,omitempty"`
	DOI     string `json:"doi,omitempty"`
	ArXivID string `json:"arxiv_id,omitempty"`
}

// Query returns the source query for the request's hints.
func (r EntryRequest) Query() reference.Query {
	return reference.Query{
		Title:   strings.TrimSpace(r.Title),
		DOI:     reference.CleanDOI(r.DOI),
		ArXivID: reference.NormalizeArXivID(r.ArXivID),
	}
}

// EntryResult is a rendered entry and how it was obtained.
type EntryResult struct {
	Text    string  `json:"text"`
	Outcome Outcome `json:"outcome"`
}

// EnrichEntry looks up the hints and renders the best entry it can. When no
// source matches, the entry holds the hints themselves. Only a missing cite
// key is an error.
func (e *Enricher) EnrichEntry(ctx context.Context, req EntryRequest) (EntryResult, error) {
	if strings.TrimSpace(req.Key) == "" {
		return EntryResult{}, fmt.Errorf("%w: cite key is required", ErrInvalidRequest)
	}
	q := req.Query()

	outcome := Outcome{Key: req.Key, Status: StatusUnchanged}
	var matches []match.Match
	if q.IsEmpty() {
		outcome.Reason = "no title or identifier to search for"
	} else {
		var failed int
		matches, outcome.Notes, failed = e.lookup(ctx, req.Key, q)
		if failed > 0 && failed == len(e.adapters) {
			outcome.Status = StatusFailed
			outcome.Reason = "all sources unavailable"
		}
	}

	entryType := req.Type
	if entryType == "" {
		entryType = e.entryTypeFor(matches)
	}
	entry := bibtex.NewEntry(entryType, req.Key)

	res := e.merger.Merge(entry, matches)
	if res.HasChanges() {
		outcome.Status = StatusEnriched
		outcome.Reason = ""
	} else if outcome.Status != StatusFailed && outcome.Reason == "" {
		outcome.Reason = "no source matched"
	}
	outcome.Changed = res.Changed
	outcome.AppliedSources = res.AppliedSources
	outcome.Conflicts = nonEmpty(res.Conflicts)

	// Keep the hints when no source supplied the field.
	if !entry.Fields.Has("title") && q.Title != "" {
		entry.Set("title", q.Title)
	}
	if !entry.Fields.Has("doi") && q.DOI != "" {
		entry.Set("doi", q.DOI)
	}
	if !entry.Fields.Has("eprint") && q.ArXivID != "" {
		entry.Set("eprint", q.ArXivID)
		entry.Set("archiveprefix", "arXiv")
	}

	e.metrics.RecordEntry(string(outcome.Status))
	e.logger.Debug("entry enriched",
		zap.String("key", req.Key),
		zap.String("status", string(outcome.Status)),
		zap.Strings("changed", outcome.Changed))

	return EntryResult{Text: bibtex.FormatEntry(entry), Outcome: outcome}, nil
}

// entryTypeFor picks the entry type suggested by the highest-ranked match,
// falling back to a guess from its venue.
func (e *Enricher) entryTypeFor(matches []match.Match) string {
	ordered := e.merger.Order(matches)
	if len(ordered) == 0 {
		return "misc"
	}
	for _, m := range ordered {
		if m.Candidate.EntryType != "" {
			return m.Candidate.EntryType
		}
	}
	return bibtex.EntryTypeForVenue(ordered[0].Candidate.Venue)
}

func nonEmpty(m map[string][]string) map[string][]string {
	if len(m) == 0 {
		return nil
	}
	return m
}
