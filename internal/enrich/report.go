package enrich

import (
	"fmt"

	"github.com/matsen/bibfix/internal/reference"
)

// Status is the result of enriching one entry.
type Status string

const (
	StatusEnriched  Status = "enriched"  // At least one field changed
	StatusUnchanged Status = "unchanged" // Nothing to add, or nothing matched
	StatusFailed    Status = "failed"    // Unparseable, or every source unavailable
)

// SourceNote records what one source contributed for one entry.
type SourceNote struct {
	Source     reference.Source `json:"source"`
	Candidates int              `json:"candidates"`
	Matched    bool             `json:"matched"`
	MatchedBy  string           `json:"matched_by,omitempty"`
	Score      float64          `json:"score,omitempty"`
	TimedOut   bool             `json:"timed_out,omitempty"`
	Error      string           `json:"error,omitempty"`
}

// Outcome is the per-entry result.
type Outcome struct {
	Key            string              `json:"key"`
	Line           int                 `json:"line,omitempty"`
	Status         Status              `json:"status"`
	Reason         string              `json:"reason,omitempty"`
	Changed        []string            `json:"changed,omitempty"`
	AppliedSources []reference.Source  `json:"applied_sources,omitempty"`
	Conflicts      map[string][]string `json:"conflicts,omitempty"`
	Notes          []SourceNote        `json:"notes,omitempty"`
}

// Report summarizes a file or document enrichment.
type Report struct {
	RunID     string    `json:"run_id"`
	Path      string    `json:"path,omitempty"`
	Output    string    `json:"output,omitempty"`
	DryRun    bool      `json:"dry_run,omitempty"`
	Total     int       `json:"total"`
	Enriched  int       `json:"enriched"`
	Unchanged int       `json:"unchanged"`
	Failed    int       `json:"failed"`
	Outcomes  []Outcome `json:"outcomes"`
	Warnings  []string  `json:"warnings,omitempty"`
}

// Summary returns "enriched K/N entries".
func (r Report) Summary() string {
	return fmt.Sprintf("enriched %d/%d entries", r.Enriched, r.Total)
}

// FailedOutcomes returns the outcomes with StatusFailed.
func (r Report) FailedOutcomes() []Outcome {
	var failed []Outcome
	for _, o := range r.Outcomes {
		if o.Status == StatusFailed {
			failed = append(failed, o)
		}
	}
	return failed
}

func (r *Report) add(o Outcome) {
	r.Outcomes = append(r.Outcomes, o)
	r.Total++
	switch o.Status {
	case StatusEnriched:
		r.Enriched++
	case StatusUnchanged:
		r.Unchanged++
	case StatusFailed:
		r.Failed++
	}
}
