package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/matsen/bibfix/internal/enrich"
)

// outputJSON writes a value as formatted JSON to stdout.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputHuman writes a human-readable string to stdout.
func outputHuman(format string, args ...any) {
	fmt.Printf(format, args...)
}

// exitWithError outputs an error in the appropriate format (human or JSON) and exits.
func exitWithError(code int, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if humanOutput {
		fmt.Fprintf(os.Stderr, "error: %s\n", msg)
	} else {
		outputJSON(ErrorResponse{Error: msg})
	}
	os.Exit(code)
}

// ErrorResponse is a JSON error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// printReportHuman prints a file enrichment report.
func printReportHuman(r enrich.Report) {
	dest := r.Output
	switch {
	case r.DryRun:
		dest = "dry run, nothing written"
	case dest == "":
		dest = r.Path
	}
	outputHuman("%s (%s)\n", r.Summary(), dest)
	if r.Failed > 0 {
		outputHuman("%d failed\n", r.Failed)
	}

	for _, o := range r.Outcomes {
		switch o.Status {
		case enrich.StatusEnriched:
			outputHuman("  + %s: %s (from %s)\n", keyOrLine(o), strings.Join(o.Changed, ", "), joinSources(o))
			printConflicts(o.Conflicts)
		case enrich.StatusFailed:
			outputHuman("  ! %s: %s\n", keyOrLine(o), o.Reason)
		default:
			outputHuman("    %s: %s\n", keyOrLine(o), o.Reason)
		}
	}

	for _, w := range r.Warnings {
		outputHuman("warning: %s\n", w)
	}
}

// printEntryHuman prints a single-entry result: the entry text, then notes.
func printEntryHuman(res enrich.EntryResult) {
	outputHuman("%s\n", res.Text)
	o := res.Outcome
	if o.Reason != "" {
		fmt.Fprintf(os.Stderr, "%s: %s\n", o.Status, o.Reason)
	}
	for _, n := range o.Notes {
		if n.Error != "" {
			fmt.Fprintf(os.Stderr, "warning: %s: %s\n", n.Source, n.Error)
		}
	}
}

func printConflicts(conflicts map[string][]string) {
	fields := make([]string, 0, len(conflicts))
	for f := range conflicts {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	for _, f := range fields {
		outputHuman("      %s disagrees: %s\n", f, strings.Join(conflicts[f], " | "))
	}
}

func keyOrLine(o enrich.Outcome) string {
	if o.Key != "" {
		return o.Key
	}
	return fmt.Sprintf("line %d", o.Line)
}

func joinSources(o enrich.Outcome) string {
	names := make([]string, len(o.AppliedSources))
	for i, s := range o.AppliedSources {
		names[i] = string(s)
	}
	return strings.Join(names, ", ")
}
