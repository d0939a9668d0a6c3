package merge

import (
	"fmt"
	"strings"

	"github.com/matsen/bibfix/internal/reference"
)

// Policy controls how candidate values are reconciled with an entry.
type Policy struct {
	// Priority orders sources when several supply a value for the same
	// field. Candidates matched by identifier always come first.
	Priority []reference.Source

	// Overridable lists, per lowercased field name, the sources whose value
	// replaces an existing non-empty value.
	Overridable map[string][]reference.Source
}

// DefaultPolicy returns CrossRef > arXiv > DBLP, with CrossRef overriding doi.
func DefaultPolicy() Policy {
	return Policy{
		Priority: []reference.Source{reference.SourceCrossRef, reference.SourceArXiv, reference.SourceDBLP},
		Overridable: map[string][]reference.Source{
			"doi": {reference.SourceCrossRef},
		},
	}
}

// ParseOverridable parses "field=source[+source...]" rules, e.g. "doi=crossref".
func ParseOverridable(rules []string) (map[string][]reference.Source, error) {
	out := make(map[string][]reference.Source, len(rules))
	for _, rule := range rules {
		field, sources, ok := strings.Cut(rule, "=")
		field = strings.ToLower(strings.TrimSpace(field))
		if !ok || field == "" {
			return nil, fmt.Errorf("invalid overridable %q (want field=source)", rule)
		}
		for _, s := range strings.Split(sources, "+") {
			src, err := reference.ParseSource(s)
			if err != nil {
				return nil, fmt.Errorf("overridable %q: %w", rule, err)
			}
			out[field] = append(out[field], src)
		}
	}
	return out, nil
}

// rank returns the position of src in the priority order.
func (p Policy) rank(src reference.Source) int {
	for i, s := range p.Priority {
		if s == src {
			return i
		}
	}
	return len(p.Priority)
}

func (p Policy) overrides(field string, src reference.Source) bool {
	for _, s := range p.Overridable[field] {
		if s == src {
			return true
		}
	}
	return false
}
