package types

import "time"

// CacheEntry is immutable once stored. A newer successful computation for the
// same key replaces the whole entry instead of touching its fields.
type CacheEntry[V any] struct {
	Value     V
	CreatedAt time.Time
	ExpireAt  time.Time // computed once, at insert time
}

// Remaining returns how long the entry stays fresh after now.
// A non-positive result means the entry is stale.
func (e *CacheEntry[V]) Remaining(now time.Time) time.Duration {
	return e.ExpireAt.Sub(now)
}
