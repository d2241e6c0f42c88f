package types

import (
	"context"
	"time"
)

// This file defines how the cache reports what it is doing.

/*
Metrics is an interface that defines what the cache wants to report.
Each method represents an event in the lifecycle of a lookup. The cache will call these methods
whenever something happens. The signals are advisory only: nothing returned from here
can change what the cache does.
*/
type Metrics interface {

	// Hit is called when a fresh entry is found. remaining is the time left before it goes stale.
	Hit(ctx context.Context, remaining time.Duration)

	// Miss is called when the key is absent or only a stale entry exists.
	Miss(ctx context.Context)

	// Stored is called after a successful computation has been written to the store.
	Stored(ctx context.Context)

	// Failed is called when the computation returned an error. Nothing was stored.
	Failed(ctx context.Context, err error)
}

/*
NoopMetrics is a "do nothing" implementation of Metrics.

Why do we need this?
--------------------
We don't want to force every user of the cache
to wire a log or metrics sink.

If someone does not care about observability,
we still want the cache to work without:
- nil pointer checks everywhere
- if metrics != nil conditions
*/
type NoopMetrics struct{}

func (NoopMetrics) Hit(context.Context, time.Duration) {}
func (NoopMetrics) Miss(context.Context)               {}
func (NoopMetrics) Stored(context.Context)             {}
func (NoopMetrics) Failed(context.Context, error)      {}
