package source

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/matsen/bibfix/internal/cache"
	"github.com/matsen/bibfix/internal/reference"
)

// Cached wraps an adapter with a lookup cache. Successful answers are
// cached, including empty ones; failures never are.
type Cached struct {
	Adapter
	store cache.Store
	ttl   time.Duration
}

// NewCached returns a caching decorator around a.
func NewCached(a Adapter, store cache.Store, ttl time.Duration) *Cached {
	return &Cached{Adapter: a, store: store, ttl: ttl}
}

func (c *Cached) Query(ctx context.Context, q reference.Query) ([]reference.Candidate, error) {
	key := cacheKey(c.Name(), q)

	if data, ok, err := c.store.Get(ctx, key); err == nil && ok {
		var cands []reference.Candidate
		if err := json.Unmarshal(data, &cands); err == nil {
			return cands, nil
		}
	}

	cands, err := c.Adapter.Query(ctx, q)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(cands); err == nil {
		_ = c.store.Set(ctx, key, data, c.ttl) // best effort
	}
	return cands, nil
}

// cacheKey digests the normalized query so keys stay short whatever the
// title length.
func cacheKey(src reference.Source, q reference.Query) string {
	sum := blake2b.Sum256([]byte(q.CacheKey()))
	return "v1:" + string(src) + ":" + hex.EncodeToString(sum[:])
}
