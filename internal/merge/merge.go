// Package merge reconciles accepted candidates from several sources into a
// single BibTeX entry.
//
// Existing non-empty values win unless the policy marks the field as
// overridable by the supplying source. Missing or empty fields are filled
// from the highest-priority source that has a value. Disagreements between
// sources are recorded, never fatal.
package merge

import (
	"sort"
	"strings"

	"github.com/matsen/bibfix/internal/bibtex"
	"github.com/matsen/bibfix/internal/match"
	"github.com/matsen/bibfix/internal/reference"
)

// Result is the outcome of merging candidates into an entry.
type Result struct {
	Entry *bibtex.Entry

	// AppliedSources lists, in priority order, the sources that changed at
	// least one field.
	AppliedSources []reference.Source

	// Conflicts maps a field name to the distinct values the sources
	// proposed for it, in priority order. Only fields with two or more
	// distinct values appear.
	Conflicts map[string][]string

	// Changed lists the modified field names in entry order.
	Changed []string
}

// HasChanges reports whether the merge modified the entry.
func (r Result) HasChanges() bool {
	return len(r.Changed) > 0
}

// Merger applies a Policy.
type Merger struct {
	Policy Policy
}

// New creates a Merger.
func New(p Policy) *Merger {
	return &Merger{Policy: p}
}

type proposal struct {
	source reference.Source
	value  string
}

// Merge applies the matches to e in place and returns the result. Matches
// are considered identifier-exact first, then in policy priority order, so
// the outcome never depends on the order of matches.
//
// Conflicts are computed from the candidates alone, which makes Merge
// idempotent: a second call with the same matches changes nothing and
// reports the same conflicts.
func (m *Merger) Merge(e *bibtex.Entry, matches []match.Match) Result {
	ordered := m.Order(matches)

	// Collect proposals per field, keeping the order fields first appear in.
	var names []string
	proposals := make(map[string][]proposal)
	for _, mt := range ordered {
		for _, fv := range Fields(mt.Candidate, e.Kind()) {
			if _, seen := proposals[fv.Name]; !seen {
				names = append(names, fv.Name)
			}
			proposals[fv.Name] = append(proposals[fv.Name], proposal{source: mt.Candidate.Source, value: fv.Value})
		}
	}

	result := Result{Entry: e, Conflicts: make(map[string][]string)}
	applied := make(map[reference.Source]bool)
	changed := make(map[string]bool)

	for _, name := range names {
		props := proposals[name]
		if distinct := distinctValues(name, props); len(distinct) > 1 {
			result.Conflicts[name] = distinct
		}

		// An overriding source decides the field whether or not it is
		// already set; otherwise only empty fields are filled.
		existing := strings.TrimSpace(e.Get(name))
		var chosen *proposal
		for i := range props {
			if m.Policy.overrides(name, props[i].source) {
				chosen = &props[i]
				break
			}
		}
		if chosen == nil && existing == "" {
			chosen = &props[0]
		}
		if chosen != nil && existing != "" && valueKey(name, chosen.value) == valueKey(name, existing) {
			chosen = nil
		}

		if chosen != nil && e.Set(name, chosen.value) {
			applied[chosen.source] = true
			changed[name] = true
		}
	}

	for _, name := range e.Fields.Names() {
		if changed[name] {
			result.Changed = append(result.Changed, name)
		}
	}
	for _, mt := range ordered {
		src := mt.Candidate.Source
		if applied[src] {
			result.AppliedSources = append(result.AppliedSources, src)
			delete(applied, src)
		}
	}
	return result
}

// Order returns a copy of matches sorted the way Merge consults them:
// identifier matches first, then by source priority.
func (m *Merger) Order(matches []match.Match) []match.Match {
	ordered := make([]match.Match, len(matches))
	copy(ordered, matches)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.Identified() != b.Identified() {
			return a.Identified()
		}
		return m.Policy.rank(a.Candidate.Source) < m.Policy.rank(b.Candidate.Source)
	})
	return ordered
}

// distinctValues returns the proposed values that differ after normalization,
// first spelling wins.
func distinctValues(field string, props []proposal) []string {
	seen := make(map[string]bool)
	var out []string
	for _, p := range props {
		k := valueKey(field, p.value)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, p.value)
	}
	return out
}
