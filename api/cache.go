package api

import (
	"context"
	"time"
)

/*
Cache defines the PUBLIC API of the memoizing cache.
This is a contract that guarantees certain behaviors, without exposing internals.
All of the details like (locking, expiration, clocks and observability)
are hidden behind this interface.

Wrappers in the cached package accept this interface, so anything that honors
the contract below can stand in for *cache.Cache.
*/
type Cache[K comparable, V any] interface {

	/*
		GetOrInsertWith returns the value for key, computing it on a miss.

		BEHAVIOR:
		-------------------
		1. If the key exists in cache and is NOT expired:
		   - Return the value immediately (cache hit)
		   - compute is NOT called

		2. If the key does NOT exist or is expired:
		   - Call compute exactly once (cache miss)
		   - On success: store (value, now + ttl) and return the value
		   - On failure: store nothing and return compute's error as-is

		IMPORTANT:
		----------
		- No lock is held while compute runs
		- Two concurrent misses for the same key may both call compute.
		  The last successful write wins.
		- Errors are never cached
	*/
	GetOrInsertWith(ctx context.Context, key K, ttl time.Duration, compute func(context.Context) (V, error)) (V, error)

	/*
		TTL returns the remaining time-to-live for a key.

		RETURN VALUES (Redis-compatible semantics):
		-------------------------------------------
		> 0   : Duration remaining before expiration
		-2    : Key does not exist or is already expired
	*/
	TTL(key K) time.Duration

	/*
		Len returns the number of stored entries, stale ones included.
		Stale entries are only replaced, never removed, so this number only grows.
	*/
	Len() int
}
