package cache

import (
	"context"
	"time"

	"github.com/krisalay/memocache/api"
	"github.com/krisalay/memocache/engine"
	"github.com/krisalay/memocache/store"
	"github.com/krisalay/memocache/types"
	"golang.org/x/sync/singleflight"
)

/*
Cache is the main cache implementation.
It memoizes the result of a fallible computation per key for a caller-chosen
time window.

This struct is the orchestrator that connects:
- storage (a read/write locked map)
- expiration and the clock (through the engine)
- observability (through the engine)
- optional single-flight collapsing of concurrent misses

A Cache is meant to be shared: create it once and hand the same pointer to
every caller that should see the same memoized values.
*/
type Cache[K comparable, V any] struct {
	// name identifies this cache instance in logs and metrics.
	name string

	// store holds the actual key → entry data.
	store *store.Store[K, V]

	// engine contains the "rules" of the cache: clock, expiration and metrics.
	engine *engine.CacheEngine

	// sf is nil unless WithSingleFlight was given. When set, concurrent misses
	// for the same key share a single computation.
	sf      *singleflight.Group
	flightK func(K) string
}

var _ api.Cache[string, int] = (*Cache[string, int])(nil)

// New creates an empty cache. Without options it uses the system clock,
// fixed-window expiry and no metrics.
func New[K comparable, V any](opts ...Option) *Cache[K, V] {
	cfg := options{name: "cache"}
	for _, opt := range opts {
		opt(&cfg)
	}

	c := &Cache[K, V]{
		name:   cfg.name,
		store:  store.New[K, V](),
		engine: engine.NewCacheEngine(cfg.expiration, cfg.clock, cfg.metrics),
	}

	if cfg.singleFlight != nil {
		keyFn, ok := cfg.singleFlight.(func(K) string)
		if !ok {
			panic("cache: WithSingleFlight key function does not match the cache key type")
		}
		c.sf = &singleflight.Group{}
		c.flightK = keyFn
	}

	return c
}

// Name returns the name given with WithName.
func (c *Cache[K, V]) Name() string {
	return c.name
}

/*
GetOrInsertWith retrieves the value for key, or computes and stores it.

On a hit the stored value is returned and compute is not called.
On a miss compute is called exactly once, with no lock held. A successful
result is stored with expiry now + ttl (now taken at insert time) and returned.
An error is returned untouched and nothing is stored, so the next lookup tries
again.

compute receives ctx. If ctx is cancelled the computation is expected to
return an error, which leaves the store untouched.

A miss event is emitted only by the caller that runs compute. With
single-flight, callers that share another caller's flight emit no event of
their own, and a caller whose re-check inside the flight finds a fresh entry
emits a hit.
*/
func (c *Cache[K, V]) GetOrInsertWith(
	ctx context.Context,
	key K,
	ttl time.Duration,
	compute func(context.Context) (V, error),
) (V, error) {

	// Try the store first
	if v, ok := c.lookup(ctx, key); ok {
		return v, nil
	}

	if c.sf == nil {
		return c.compute(ctx, key, ttl, compute)
	}

	/*
		singleflight ensures that:
		- If 100 goroutines miss on the same key at once,
		  only ONE of them runs compute.
		- Others wait for and share its result (value or error).

		The store is checked again inside the flight: a caller that missed
		just before another flight finished would otherwise compute again.
		The leader's ctx is the one compute sees.
	*/
	res, err, _ := c.sf.Do(c.flightK(key), func() (any, error) {
		if v, ok := c.lookup(ctx, key); ok {
			return v, nil
		}
		return c.compute(ctx, key, ttl, compute)
	})
	if err != nil {
		var zero V
		return zero, err
	}
	v, _ := res.(V)
	return v, nil
}

// lookup returns the stored value if it is still fresh.
func (c *Cache[K, V]) lookup(ctx context.Context, key K) (V, bool) {
	now := c.engine.Now()

	if ent, ok := c.store.Get(key); ok && !c.engine.IsExpired(ent.ExpireAt, now) {
		c.engine.OnHit(ctx, ent.Remaining(now))
		return ent.Value, true
	}

	var zero V
	return zero, false
}

// compute records the miss, runs the computation and stores its result if,
// and only if, it succeeded.
func (c *Cache[K, V]) compute(
	ctx context.Context,
	key K,
	ttl time.Duration,
	compute func(context.Context) (V, error),
) (V, error) {

	c.engine.OnMiss(ctx)

	v, err := compute(ctx)
	if err != nil {
		c.engine.OnFailure(ctx, err)
		return v, err
	}

	now := c.engine.Now()
	c.store.Put(key, &types.CacheEntry[V]{
		Value:     v,
		CreatedAt: now,
		ExpireAt:  c.engine.ExpireAt(now, ttl),
	})
	c.engine.OnStore(ctx)

	return v, nil
}

/*
TTL returns remaining time-to-live of a key.
Returns -2 when the key is absent or its entry is stale.
*/
func (c *Cache[K, V]) TTL(key K) time.Duration {
	ent, ok := c.store.Get(key)
	if !ok {
		return -2
	}

	now := c.engine.Now()
	if c.engine.IsExpired(ent.ExpireAt, now) {
		return -2
	}
	return ent.Remaining(now)
}

// Len returns the number of stored entries, including stale ones.
func (c *Cache[K, V]) Len() int {
	return c.store.Len()
}
