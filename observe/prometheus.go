package observe

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/krisalay/memocache/types"
)

// PromMetrics counts cache events in Prometheus. Every series is labelled with the cache name.
type PromMetrics struct {
	Hits      prometheus.Counter
	Misses    prometheus.Counter
	Stores    prometheus.Counter
	Failures  prometheus.Counter
	Remaining prometheus.Observer
}

var _ types.Metrics = (*PromMetrics)(nil)

// Collectors groups the vectors shared by every PromMetrics registered under one namespace.
type Collectors struct {
	hits      *prometheus.CounterVec
	misses    *prometheus.CounterVec
	stores    *prometheus.CounterVec
	failures  *prometheus.CounterVec
	remaining *prometheus.HistogramVec
}

// NewCollectors registers the cache metric vectors with reg.
func NewCollectors(reg prometheus.Registerer, namespace string) *Collectors {
	f := promauto.With(reg)

	return &Collectors{
		hits: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Lookups answered from a fresh cache entry",
		}, []string{"cache"}),
		misses: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Lookups that found no entry or a stale one",
		}, []string{"cache"}),
		stores: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_stores_total",
			Help:      "Successful computations written to the cache",
		}, []string{"cache"}),
		failures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_compute_failures_total",
			Help:      "Computations that returned an error and were not cached",
		}, []string{"cache"}),
		remaining: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cache_hit_remaining_seconds",
			Help:      "Remaining time-to-live of entries at hit time",
			Buckets:   []float64{.1, .5, 1, 2.5, 5, 10, 30, 60, 300},
		}, []string{"cache"}),
	}
}

// For returns the metrics of one named cache.
func (c *Collectors) For(name string) *PromMetrics {
	return &PromMetrics{
		Hits:      c.hits.WithLabelValues(name),
		Misses:    c.misses.WithLabelValues(name),
		Stores:    c.stores.WithLabelValues(name),
		Failures:  c.failures.WithLabelValues(name),
		Remaining: c.remaining.WithLabelValues(name),
	}
}

func (m *PromMetrics) Hit(_ context.Context, remaining time.Duration) {
	m.Hits.Inc()
	m.Remaining.Observe(remaining.Seconds())
}

func (m *PromMetrics) Miss(context.Context)          { m.Misses.Inc() }
func (m *PromMetrics) Stored(context.Context)        { m.Stores.Inc() }
func (m *PromMetrics) Failed(context.Context, error) { m.Failures.Inc() }
