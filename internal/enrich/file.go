package enrich

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/matsen/bibfix/internal/bibtex"
)

// ErrIO reports that a file could not be read or the result could not be
// committed. Nothing is written when it occurs.
var ErrIO = errors.New("i/o failure")

// FileOptions controls EnrichFile.
type FileOptions struct {
	// Output is where the result is written. Empty means overwrite the input.
	Output string

	// DryRun enriches without writing anything.
	DryRun bool
}

// EnrichDocument enriches every entry of doc, at most the configured number
// at a time. Each entry is enriched on a copy; the copies replace the
// originals only after every entry is done. Malformed entries are reported
// as failed and left as they are.
func (e *Enricher) EnrichDocument(ctx context.Context, doc *bibtex.Document) Report {
	report := Report{RunID: uuid.NewString()}
	logger := e.logger.With(zap.String("run_id", report.RunID))

	for _, key := range doc.DuplicateKeys() {
		logger.Warn("duplicate cite key", zap.String("key", key))
		report.Warnings = append(report.Warnings, fmt.Sprintf("duplicate cite key %q", key))
	}
	for _, w := range doc.Warnings {
		report.Warnings = append(report.Warnings, w.String())
	}

	entries := doc.Entries()
	clones := make([]*bibtex.Entry, len(entries))
	outcomes := make([]Outcome, len(entries))

	var g errgroup.Group
	g.SetLimit(e.concurrency)
	for i, entry := range entries {
		clones[i] = entry.Clone()
		i := i
		g.Go(func() error {
			outcomes[i] = e.enrichParsed(ctx, clones[i])
			return nil
		})
	}
	_ = g.Wait()

	for i, entry := range entries {
		if outcomes[i].Status == StatusEnriched {
			doc.Replace(entry, clones[i])
		}
	}

	all := append([]Outcome(nil), outcomes...)
	for _, perr := range doc.Errors {
		logger.Warn("skipping malformed entry",
			zap.String("entry", perr.Where()),
			zap.Int("line", perr.Line),
			zap.String("reason", perr.Message))
		e.metrics.RecordEntry(string(StatusFailed))
		all = append(all, Outcome{
			Key:    perr.Key,
			Line:   perr.Line,
			Status: StatusFailed,
			Reason: perr.Error(),
		})
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].Line < all[j].Line })
	for _, o := range all {
		report.add(o)
	}

	logger.Info("enrichment finished",
		zap.Int("total", report.Total),
		zap.Int("enriched", report.Enriched),
		zap.Int("failed", report.Failed))
	return report
}

// enrichParsed enriches one entry of a document in place.
func (e *Enricher) enrichParsed(ctx context.Context, entry *bibtex.Entry) Outcome {
	outcome := Outcome{Key: entry.Key, Line: entry.Line, Status: StatusUnchanged}

	q := QueryFor(entry)
	if q.IsEmpty() {
		outcome.Reason = "no title or identifier to search for"
		e.metrics.RecordEntry(string(outcome.Status))
		return outcome
	}

	matches, notes, failed := e.lookup(ctx, entry.Key, q)
	outcome.Notes = notes

	res := e.merger.Merge(entry, matches)
	outcome.Changed = res.Changed
	outcome.AppliedSources = res.AppliedSources
	outcome.Conflicts = nonEmpty(res.Conflicts)

	switch {
	case res.HasChanges():
		outcome.Status = StatusEnriched
	case failed > 0 && failed == len(e.adapters):
		outcome.Status = StatusFailed
		outcome.Reason = "all sources unavailable"
	case len(matches) == 0:
		outcome.Reason = "no source matched"
	default:
		outcome.Reason = "nothing to add"
	}

	e.metrics.RecordEntry(string(outcome.Status))
	e.logger.Debug("entry processed",
		zap.String("key", entry.Key),
		zap.String("status", string(outcome.Status)),
		zap.Strings("changed", outcome.Changed))
	return outcome
}

// EnrichFile parses path, enriches it, and writes the result atomically
// unless opts.DryRun is set. The returned error wraps ErrIO when reading or
// committing fails; per-entry problems are only reported in the Report.
func (e *Enricher) EnrichFile(ctx context.Context, path string, opts FileOptions) (Report, error) {
	doc, err := bibtex.ParseFile(path)
	if err != nil {
		return Report{}, fmt.Errorf("%w: %w", ErrIO, err)
	}

	report := e.EnrichDocument(ctx, doc)
	report.Path = path
	report.DryRun = opts.DryRun

	out := opts.Output
	if out == "" {
		out = path
	}
	if opts.DryRun {
		return report, nil
	}
	report.Output = out

	// Rewriting an unchanged input would only touch its mtime.
	if report.Enriched == 0 && sameFile(out, path) {
		return report, nil
	}
	if err := WriteFileAtomic(out, doc); err != nil {
		return report, fmt.Errorf("%w: %w", ErrIO, err)
	}
	return report, nil
}

func sameFile(a, b string) bool {
	if filepath.Clean(a) == filepath.Clean(b) {
		return true
	}
	ia, errA := os.Stat(a)
	ib, errB := os.Stat(b)
	return errA == nil && errB == nil && os.SameFile(ia, ib)
}
