package observe

import (
	"context"
	"log/slog"
	"time"

	"github.com/krisalay/memocache/internal/errs"
	"github.com/krisalay/memocache/internal/logging"
	"github.com/krisalay/memocache/types"
)

/*
LogMetrics turns cache events into structured log records.

- "cache hit" at info level, with the remaining time-to-live as cache_time
- "cache miss" at info level, no payload
- "cache store" and "cache compute failed" at debug level

Records go through the logger carried by ctx (see internal/logging), so any
attributes the caller put on ctx (trace ids, the cache key) show up too.
*/
type LogMetrics struct {
	name string
}

var _ types.Metrics = (*LogMetrics)(nil)

func NewLogMetrics(name string) *LogMetrics {
	return &LogMetrics{name: name}
}

func (m *LogMetrics) Hit(ctx context.Context, remaining time.Duration) {
	logging.Info(ctx, "cache hit",
		slog.String("cache", m.name),
		slog.Duration("cache_time", remaining),
	)
}

func (m *LogMetrics) Miss(ctx context.Context) {
	logging.Info(ctx, "cache miss", slog.String("cache", m.name))
}

func (m *LogMetrics) Stored(ctx context.Context) {
	logging.Debug(ctx, "cache store", slog.String("cache", m.name))
}

func (m *LogMetrics) Failed(ctx context.Context, err error) {
	logging.Debug(ctx, "cache compute failed",
		slog.String("cache", m.name),
		slog.Any("err", errs.Loggable(err)),
	)
}
