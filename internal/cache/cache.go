// Package cache stores source lookups so repeated enrichment runs do not
// query the same external source twice.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("cache closed")

// Store is a key/value cache with per-entry expiry.
// A ttl of zero means the entry never expires.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Close() error
}

// Tiered reads through a fast store in front of a slow, persistent one.
type Tiered struct {
	front Store
	back  Store

	// promoteTTL bounds how long a value read from back stays in front.
	promoteTTL time.Duration
}

// NewTiered creates a two-level cache. Values found only in back are copied
// into front for promoteTTL.
func NewTiered(front, back Store, promoteTTL time.Duration) *Tiered {
	return &Tiered{front: front, back: back, promoteTTL: promoteTTL}
}

// Get returns the value for key from the first tier that has it.
func (t *Tiered) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if v, ok, err := t.front.Get(ctx, key); err == nil && ok {
		return v, true, nil
	}

	v, ok, err := t.back.Get(ctx, key)
	if err != nil || !ok {
		return nil, false, err
	}
	_ = t.front.Set(ctx, key, v, t.promoteTTL) // front is best effort
	return v, true, nil
}

// Set writes to both tiers.
func (t *Tiered) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := t.back.Set(ctx, key, value, ttl); err != nil {
		return err
	}
	front := ttl
	if front == 0 || (t.promoteTTL > 0 && t.promoteTTL < front) {
		front = t.promoteTTL
	}
	return t.front.Set(ctx, key, value, front)
}

// Close closes both tiers.
func (t *Tiered) Close() error {
	return errors.Join(t.front.Close(), t.back.Close())
}
