// Package source queries external bibliographic metadata services (arXiv,
// CrossRef, DBLP) and normalizes their answers into reference.Candidate values.
package source

import (
	"context"
	"fmt"

	"github.com/matsen/bibfix/internal/reference"
)

// Adapter is one metadata source.
//
// Query returns the candidates the source proposes for q. An empty slice
// means nothing was found. Errors are reserved for transport and
// availability failures and always match ErrSourceUnavailable.
type Adapter interface {
	Name() reference.Source
	Query(ctx context.Context, q reference.Query) ([]reference.Candidate, error)
}

// New creates the adapter for a source.
func New(src reference.Source, opts ...Option) (Adapter, error) {
	switch src {
	case reference.SourceArXiv:
		return NewArXiv(opts...), nil
	case reference.SourceCrossRef:
		return NewCrossRef(opts...), nil
	case reference.SourceDBLP:
		return NewDBLP(opts...), nil
	default:
		return nil, fmt.Errorf("unknown source %q", src)
	}
}

// Func adapts a function to the Adapter interface.
type Func struct {
	Source reference.Source
	Fn     func(ctx context.Context, q reference.Query) ([]reference.Candidate, error)
}

func (f Func) Name() reference.Source {
	return f.Source
}

func (f Func) Query(ctx context.Context, q reference.Query) ([]reference.Candidate, error) {
	return f.Fn(ctx, q)
}
