package engine

import (
	"context"
	"time"

	"github.com/krisalay/memocache/expiration"
	"github.com/krisalay/memocache/types"
)

/*
CacheEngine is the "brain" of the cache system.
It is responsible for the "behavior" of the cache, NOT storage.
This acts as the policy layer.

It decides:
- What time it is
- When data is expired
- When a freshly computed entry goes stale
- How lookups are reported to the outside world

It does NOT:
- Store data
- Handle locking
- Run the computation
*/
type CacheEngine struct {

	// Expiration controls when a cache entry should be considered “too old”.
	// If this is nil, FixedWindow is used: stale once now >= insert time + ttl.
	Expiration expiration.Strategy

	// Clock is where "now" comes from. Production code uses the system
	// (monotonic) clock. Tests swap in a manual one.
	Clock expiration.Clock

	// Metrics is how we report what the cache is doing.
	// Hits, misses, stores and failed computations.
	Metrics types.Metrics
}

/*
NewCacheEngine creates a CacheEngine.
Any nil argument falls back to its default.
*/
func NewCacheEngine(
	exp expiration.Strategy,
	clock expiration.Clock,
	metrics types.Metrics,
) *CacheEngine {

	if exp == nil {
		exp = expiration.FixedWindow{}
	}
	if clock == nil {
		clock = expiration.SystemClock{}
	}

	// Ensure metrics is always non-nil
	if metrics == nil {
		metrics = types.NoopMetrics{}
	}

	return &CacheEngine{
		Expiration: exp,
		Clock:      clock,
		Metrics:    metrics,
	}
}

// Now returns the current time from the configured clock.
func (e *CacheEngine) Now() time.Time {
	return e.Clock.Now()
}

/*
IsExpired checks whether an entry with the given expiry is stale at now.
A stale entry is treated exactly like a missing one.
*/
func (e *CacheEngine) IsExpired(expireAt, now time.Time) bool {
	return e.Expiration.IsExpired(expireAt, now)
}

/*
ExpireAt is called once, when a successful computation is written.
The result is stored with the entry and never recomputed on read.
*/
func (e *CacheEngine) ExpireAt(now time.Time, ttl time.Duration) time.Time {
	return e.Expiration.ExpireAt(now, ttl)
}

// OnHit is called every time a fresh entry is returned.
func (e *CacheEngine) OnHit(ctx context.Context, remaining time.Duration) {
	e.Metrics.Hit(ctx, remaining)
}

// OnMiss is called when the computation is about to run.
func (e *CacheEngine) OnMiss(ctx context.Context) {
	e.Metrics.Miss(ctx)
}

// OnStore is called after a computed value has been written.
func (e *CacheEngine) OnStore(ctx context.Context) {
	e.Metrics.Stored(ctx)
}

// OnFailure is called when the computation failed and nothing was written.
func (e *CacheEngine) OnFailure(ctx context.Context, err error) {
	e.Metrics.Failed(ctx, err)
}
