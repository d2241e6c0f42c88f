// This file defines how cache entries expire over time.

package expiration

import "time"

/*
Strategy is the interface that all expiration rules must follow. Instead of hard-coding
expiration logic into the cache, we define a strategy so expiration behavior can be swapped easily.

A strategy only ever looks at timestamps. It never mutates an entry: the expiry of an
entry is decided once, when the entry is written, and reads never push it forward.
*/
type Strategy interface {

	// ExpireAt returns the moment an entry written at now with the given ttl goes stale.
	ExpireAt(now time.Time, ttl time.Duration) time.Time

	// IsExpired reports whether an entry with the given expiry is stale at now.
	IsExpired(expireAt time.Time, now time.Time) bool
}
