// Package cache provides a small read-through cache with an injectable clock.
// Entries past their TTL are reloaded on access; when the reload fails the
// previous value is served and flagged stale.
package cache

import (
	"context"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// Result labels how a Get was served.
type Result string

const (
	ResultHit   Result = "hit"
	ResultMiss  Result = "miss"
	ResultStale Result = "stale"
)

// Loader produces a fresh value for key.
type Loader[V any] func(ctx context.Context) (V, error)

type Options struct {
	TTL        time.Duration
	MaxEntries int
	// Now defaults to time.Now.
	Now func() time.Time
	// OnResult is invoked once per Get, e.g. to feed a counter.
	OnResult func(Result)
}

type entry[V any] struct {
	value    V
	loadedAt time.Time
}

type Cache[V any] struct {
	entries  *lru.Cache[string, entry[V]]
	ttl      time.Duration
	now      func() time.Time
	onResult func(Result)
	loads    singleflight.Group
}

func New[V any](opts Options) (*Cache[V], error) {
	if opts.TTL <= 0 {
		return nil, fmt.Errorf("cache ttl must be positive")
	}
	size := opts.MaxEntries
	if size <= 0 {
		size = 128
	}
	entries, err := lru.New[string, entry[V]](size)
	if err != nil {
		return nil, fmt.Errorf("creating lru: %w", err)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Cache[V]{
		entries:  entries,
		ttl:      opts.TTL,
		now:      now,
		onResult: opts.OnResult,
	}, nil
}

// Get returns the cached value for key, calling load when the entry is
// missing or older than the TTL. isStale is true only when a reload failed
// and an older value was returned instead.
func (c *Cache[V]) Get(ctx context.Context, key string, load Loader[V]) (value V, isStale bool, err error) {
	if cached, ok := c.fresh(key); ok {
		c.report(ResultHit)
		return cached, false, nil
	}

	// concurrent misses for one key share a single load
	shared, loadErr, _ := c.loads.Do(key, func() (any, error) {
		if cached, ok := c.fresh(key); ok {
			return cached, nil
		}
		loaded, err := load(ctx)
		if err != nil {
			return nil, err
		}
		c.entries.Add(key, entry[V]{value: loaded, loadedAt: c.now()})
		return loaded, nil
	})
	if loadErr != nil {
		if previous, ok := c.entries.Peek(key); ok {
			c.report(ResultStale)
			return previous.value, true, nil
		}
		c.report(ResultMiss)
		var zero V
		return zero, false, loadErr
	}
	c.report(ResultMiss)
	return shared.(V), false, nil
}

// Peek returns the stored value regardless of age without loading.
func (c *Cache[V]) Peek(key string) (value V, isStale bool, ok bool) {
	e, ok := c.entries.Peek(key)
	if !ok {
		return value, false, false
	}
	return e.value, c.expired(e), true
}

// Set stores value as freshly loaded.
func (c *Cache[V]) Set(key string, value V) {
	c.entries.Add(key, entry[V]{value: value, loadedAt: c.now()})
}

func (c *Cache[V]) Invalidate(key string) {
	c.entries.Remove(key)
}

func (c *Cache[V]) Purge() {
	c.entries.Purge()
}

func (c *Cache[V]) Len() int {
	return c.entries.Len()
}

func (c *Cache[V]) fresh(key string) (V, bool) {
	e, ok := c.entries.Get(key)
	if !ok || c.expired(e) {
		var zero V
		return zero, false
	}
	return e.value, true
}

func (c *Cache[V]) expired(e entry[V]) bool {
	return c.now().Sub(e.loadedAt) >= c.ttl
}

func (c *Cache[V]) report(result Result) {
	if c.onResult != nil {
		c.onResult(result)
	}
}
