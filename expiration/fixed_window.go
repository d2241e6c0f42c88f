package expiration

import "time"

/*
FixedWindow implements "expire after write".
An entry is fresh while now < expireAt, where expireAt = insert time + ttl.
Reading the entry does not extend its life. Only a new successful write does.
*/
type FixedWindow struct{}

// ExpireAt computes insert time + ttl. A negative ttl counts as zero, so the entry
// is written but already stale.
func (FixedWindow) ExpireAt(now time.Time, ttl time.Duration) time.Time {
	if ttl < 0 {
		ttl = 0
	}
	return now.Add(ttl)
}

// IsExpired is true once now >= expireAt.
// time.Time values taken from time.Now carry a monotonic reading, so wall clock
// jumps do not affect the comparison.
func (FixedWindow) IsExpired(expireAt time.Time, now time.Time) bool {
	return !now.Before(expireAt)
}
