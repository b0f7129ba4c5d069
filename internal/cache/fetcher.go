package cache

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
)

// RefreshPolicy controls whether the fetcher consults the cache, the
// fill function, or both.
type RefreshPolicy int

const (
	// RefreshDefault serves from cache when present, fills otherwise.
	RefreshDefault RefreshPolicy = iota
	// RefreshForce bypasses the cache and overwrites the entry.
	RefreshForce
	// RefreshNever never calls the fill function; a cache miss fails.
	RefreshNever
)

// ErrNotCached is returned when RefreshNever finds no cached entry.
var ErrNotCached = errors.New("no cached entry")

// FillFunc produces the bytes for a key on a cache miss or forced refresh.
type FillFunc func(ctx context.Context) ([]byte, error)

// Fetcher wraps a Cache with fetch-with-cache semantics and hit/miss
// accounting for build metrics.
type Fetcher struct {
	cache  Cache
	hits   atomic.Int64
	misses atomic.Int64
}

// NewFetcher creates a fetch-with-cache wrapper around c.
func NewFetcher(c Cache) *Fetcher {
	return &Fetcher{cache: c}
}

// Fetch returns the bytes for key according to the policy. Cached
// entries are valid until explicitly refreshed; there is no implicit
// expiry.
func (f *Fetcher) Fetch(ctx context.Context, key string, policy RefreshPolicy, fill FillFunc) ([]byte, error) {
	if policy != RefreshForce {
		if data, found := f.cache.Get(key); found {
			f.hits.Add(1)
			return data, nil
		}
		if policy == RefreshNever {
			f.misses.Add(1)
			return nil, fmt.Errorf("fetch %s: %w", key, ErrNotCached)
		}
	}
	f.misses.Add(1)

	data, err := fill(ctx)
	if err != nil {
		return nil, fmt.Errorf("fill %s: %w", key, err)
	}

	if err := f.cache.Set(key, data, 0); err != nil {
		return nil, fmt.Errorf("store %s: %w", key, err)
	}

	return data, nil
}

// Hits returns the number of cache hits observed so far.
func (f *Fetcher) Hits() int64 { return f.hits.Load() }

// Misses returns the number of cache misses observed so far.
func (f *Fetcher) Misses() int64 { return f.misses.Load() }
