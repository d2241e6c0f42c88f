package cache

import (
	"github.com/krisalay/memocache/expiration"
	"github.com/krisalay/memocache/types"
)

/*
Option defines a functional configuration modifier for Cache.

Options are applied in order by New, before the cache is used:

    c := cache.New[string, uint64](
        cache.WithName("balances"),
        cache.WithMetrics(observe.NewLogMetrics("balances")),
    )

Options are not generic, so the same option values can be reused across caches
with different key and value types.
*/
type Option func(*options)

type options struct {
	name         string
	clock        expiration.Clock
	expiration   expiration.Strategy
	metrics      types.Metrics
	singleFlight any // func(K) string, checked in New
}

// WithName names the cache instance. The default is "cache".
func WithName(name string) Option {
	return func(o *options) {
		if name != "" {
			o.name = name
		}
	}
}

// WithClock replaces the system clock, typically with an expiration.ManualClock in tests.
func WithClock(c expiration.Clock) Option {
	return func(o *options) {
		o.clock = c
	}
}

// WithExpiration replaces the default expiration.FixedWindow strategy.
func WithExpiration(s expiration.Strategy) Option {
	return func(o *options) {
		o.expiration = s
	}
}

// WithMetrics sets where hit, miss, store and failure events go.
func WithMetrics(m types.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

/*
WithSingleFlight collapses concurrent misses for the same key into one
computation. key must turn a cache key into a string that is unique per key.

This is off by default: without it, concurrent misses for the same key each run
the computation and the last successful write wins.

New panics if key's parameter type differs from the cache's key type.
*/
func WithSingleFlight[K comparable](key func(K) string) Option {
	return func(o *options) {
		o.singleFlight = key
	}
}
