// Package enrich drives metadata enrichment of single entries and whole
// BibTeX files.
//
// For each entry every source is queried concurrently, each call under its
// own timeout. Matching and merging start only once all calls have returned,
// so source priority, never arrival order, decides between sources. A failed
// or timed-out source contributes nothing and does not affect the others.
package enrich

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/matsen/bibfix/internal/match"
	"github.com/matsen/bibfix/internal/merge"
	"github.com/matsen/bibfix/internal/metrics"
	"github.com/matsen/bibfix/internal/reference"
	"github.com/matsen/bibfix/internal/source"
)

const (
	// DefaultTimeout bounds each source query.
	DefaultTimeout = 20 * time.Second

	// DefaultConcurrency is the number of entries enriched at once.
	DefaultConcurrency = 4
)

// Enricher runs the enrichment pipeline.
type Enricher struct {
	adapters    []source.Adapter
	matcher     match.Matcher
	merger      *merge.Merger
	timeout     time.Duration
	concurrency int
	logger      *zap.Logger
	metrics     *metrics.Metrics
}

// Option configures an Enricher.
type Option func(*Enricher)

// WithMatcher sets the candidate matcher.
func WithMatcher(m match.Matcher) Option {
	return func(e *Enricher) {
		e.matcher = m
	}
}

// WithMerger sets the merger.
func WithMerger(m *merge.Merger) Option {
	return func(e *Enricher) {
		e.merger = m
	}
}

// WithTimeout sets the per-source query timeout.
func WithTimeout(d time.Duration) Option {
	return func(e *Enricher) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithConcurrency sets how many entries of a file are enriched at once.
func WithConcurrency(n int) Option {
	return func(e *Enricher) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Enricher) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Enricher) {
		e.metrics = m
	}
}

// New creates an Enricher querying the given adapters.
func New(adapters []source.Adapter, opts ...Option) *Enricher {
	e := &Enricher{
		adapters:    adapters,
		matcher:     match.New(),
		merger:      merge.New(merge.DefaultPolicy()),
		timeout:     DefaultTimeout,
		concurrency: DefaultConcurrency,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Sources returns the names of the configured adapters.
func (e *Enricher) Sources() []reference.Source {
	names := make([]reference.Source, len(e.adapters))
	for i, a := range e.adapters {
		names[i] = a.Name()
	}
	return names
}

type lookup struct {
	candidates []reference.Candidate
	err        error
	timedOut   bool
	elapsed    time.Duration
}

// lookup queries every adapter and matches the answers. Results are indexed
// by adapter, so the order calls complete in is irrelevant. It returns the
// accepted matches, one note per adapter, and how many adapters failed.
func (e *Enricher) lookup(ctx context.Context, key string, q reference.Query) ([]match.Match, []SourceNote, int) {
	results := make([]lookup, len(e.adapters))

	var g errgroup.Group
	for i, a := range e.adapters {
		i, a := i, a
		g.Go(func() error {
			actx, cancel := context.WithTimeout(ctx, e.timeout)
			defer cancel()

			start := time.Now()
			cands, err := a.Query(actx, q)
			results[i] = lookup{
				candidates: cands,
				err:        err,
				timedOut:   err != nil && (errors.Is(err, context.DeadlineExceeded) || errors.Is(actx.Err(), context.DeadlineExceeded)),
				elapsed:    time.Since(start),
			}
			return nil // failures are per source
		})
	}
	_ = g.Wait()

	var (
		matches []match.Match
		notes   = make([]SourceNote, len(e.adapters))
		failed  int
	)
	for i, a := range e.adapters {
		r := results[i]
		note := SourceNote{Source: a.Name(), Candidates: len(r.candidates)}

		if r.err != nil {
			failed++
			note.Error = r.err.Error()
			outcome := metrics.OutcomeError
			if r.timedOut {
				outcome = metrics.OutcomeTimeout
				note.TimedOut = true
			}
			e.metrics.RecordSourceRequest(string(a.Name()), outcome, r.elapsed)
			e.logger.Warn("source query failed",
				zap.String("key", key),
				zap.String("source", string(a.Name())),
				zap.Duration("elapsed", r.elapsed),
				zap.Error(r.err))
			notes[i] = note
			continue
		}

		m, ok := e.matcher.Best(q, r.candidates)
		if ok {
			note.Matched = true
			note.MatchedBy = m.MatchedBy
			note.Score = m.Score
			matches = append(matches, m)
			e.metrics.RecordSourceRequest(string(a.Name()), metrics.OutcomeMatch, r.elapsed)
		} else {
			e.metrics.RecordSourceRequest(string(a.Name()), metrics.OutcomeNoMatch, r.elapsed)
		}
		notes[i] = note
	}
	return matches, notes, failed
}
