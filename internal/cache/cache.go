// Package cache implements the read-through cache used by the console's
// list/detail/stats views: stale-while-revalidate with single-flight fetch
// coalescing. It is a per-process optimization layer only; the database
// stays the source of truth and the cache is refreshed from it, never the
// reverse.
package cache

import (
	"context"
	"log/slog"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

// Fetcher loads the authoritative value for a key.
type Fetcher[V any] func(ctx context.Context) (V, error)

// Cache is a key→value store with stale-while-revalidate semantics.
//
// Get returns a cached value synchronously whenever one exists; if the entry
// is older than the freshness window a background refresh is scheduled.
// Concurrent fetches for one key are collapsed into a single call. A
// background refresh failure is logged and the stale value retained; a
// cache-miss fetch failure propagates to the caller and caches nothing.
type Cache[V any] struct {
	ttl    time.Duration
	logger *slog.Logger

	mu      sync.Mutex
	entries map[string]*entry[V]
	flights map[string]*flight
	gen     uint64

	seq   uint64
	group singleflight.Group
}

type entry[V any] struct {
	value     V
	fetchedAt time.Time
	seq       uint64
}

// flight tracks the fetches currently in progress for one key. gen is bumped
// by every invalidation covering the key, so a fetch that began before the
// invalidation is discarded when it lands. The record lives only as long as
// a fetch is in flight; an invalidation with nothing in flight has nothing
// to discard.
type flight struct {
	inflight int
	gen      uint64
}

// fetchResult carries the fetched value together with the sequence number
// assigned when the fetch started, so a newer fetch always supersedes an
// older one regardless of completion order.
type fetchResult[V any] struct {
	value V
	seq   uint64
}

// New creates a cache whose entries are considered fresh for ttl. A ttl of
// zero means every hit schedules a background revalidation.
func New[V any](ttl time.Duration, logger *slog.Logger) *Cache[V] {
	return &Cache[V]{
		ttl:     ttl,
		logger:  logger,
		entries: make(map[string]*entry[V]),
		flights: make(map[string]*flight),
	}
}

// beginFetch registers a fetch for key and snapshots the generations its
// result will be validated against. Caller holds mu.
func (c *Cache[V]) beginFetch(key string) (gen, keyGen uint64) {
	f := c.flights[key]
	if f == nil {
		f = &flight{}
		c.flights[key] = f
	}
	f.inflight++
	return c.gen, f.gen
}

// endFetch releases the flight record once a fetch has landed (or failed).
func (c *Cache[V]) endFetch(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	f := c.flights[key]
	if f == nil {
		return
	}
	f.inflight--
	if f.inflight <= 0 {
		delete(c.flights, key)
	}
}

// Get returns the value for key. A cached entry is returned immediately,
// with a background refresh scheduled once it is older than the freshness
// window; a miss fetches synchronously and caches the result.
func (c *Cache[V]) Get(ctx context.Context, key string, fetch Fetcher[V]) (V, error) {
	c.mu.Lock()
	if e, ok := c.entries[key]; ok {
		value := e.value
		stale := time.Since(e.fetchedAt) >= c.ttl
		var gen, keyGen uint64
		if stale {
			gen, keyGen = c.beginFetch(key)
		}
		c.mu.Unlock()

		if stale {
			go c.refresh(key, gen, keyGen, fetch)
		}
		return value, nil
	}
	gen, keyGen := c.beginFetch(key)
	c.mu.Unlock()
	defer c.endFetch(key)

	res, err, _ := c.group.Do(key, func() (interface{}, error) {
		seq := atomic.AddUint64(&c.seq, 1)
		value, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		return fetchResult[V]{value: value, seq: seq}, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}

	fr := res.(fetchResult[V])
	c.apply(key, fr, gen, keyGen)
	return fr.value, nil
}

// refresh runs the background revalidation pass for one key. It is
// fire-and-forget: failures are logged and the stale entry retained.
func (c *Cache[V]) refresh(key string, gen, keyGen uint64, fetch Fetcher[V]) {
	defer c.endFetch(key)

	res, err, _ := c.group.Do(key, func() (interface{}, error) {
		seq := atomic.AddUint64(&c.seq, 1)
		value, err := fetch(context.Background())
		if err != nil {
			return nil, err
		}
		return fetchResult[V]{value: value, seq: seq}, nil
	})
	if err != nil {
		c.logger.Warn("background cache refresh failed, keeping stale entry",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return
	}

	c.apply(key, res.(fetchResult[V]), gen, keyGen)
}

// apply stores a fetch result unless the scope or key was invalidated while
// the fetch was in flight, or a newer fetch already landed.
func (c *Cache[V]) apply(key string, fr fetchResult[V], gen, keyGen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var cur uint64
	if f := c.flights[key]; f != nil {
		cur = f.gen
	}
	if gen != c.gen || keyGen != cur {
		// Result from before an invalidation; discard on arrival.
		return
	}

	e, ok := c.entries[key]
	if !ok {
		c.entries[key] = &entry[V]{value: fr.value, fetchedAt: time.Now(), seq: fr.seq}
		return
	}
	if fr.seq <= e.seq {
		return
	}

	e.seq = fr.seq
	e.fetchedAt = time.Now()
	if !reflect.DeepEqual(e.value, fr.value) {
		e.value = fr.value
	}
}

// Invalidate removes the entry for key. The next Get for the key fetches
// synchronously, and any in-flight refresh result for it is discarded.
func (c *Cache[V]) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key)
	if f := c.flights[key]; f != nil {
		f.gen++
	}
}

// InvalidatePrefix removes every entry whose key starts with prefix, e.g.
// all list keys for a resource kind after one of its entities mutated.
// In-flight fetches for matching keys are invalidated too; a miss fetch that
// began before the mutation must not re-enter the cache after it.
func (c *Cache[V]) InvalidatePrefix(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
		}
	}
	for key, f := range c.flights {
		if strings.HasPrefix(key, prefix) {
			f.gen++
		}
	}
}

// Reset clears the entire cache scope, e.g. on logout. In-flight fetch
// results from before the reset are discarded when they arrive.
func (c *Cache[V]) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*entry[V])
	c.gen++
}

// Len reports the number of cached entries.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
