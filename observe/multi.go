package observe

import (
	"context"
	"time"

	"github.com/krisalay/memocache/types"
)

// Multi fans every event out to each of its sinks, in order.
type Multi []types.Metrics

var _ types.Metrics = Multi(nil)

// Combine builds a Multi, skipping nil sinks.
func Combine(sinks ...types.Metrics) Multi {
	out := make(Multi, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

func (m Multi) Hit(ctx context.Context, remaining time.Duration) {
	for _, s := range m {
		s.Hit(ctx, remaining)
	}
}

func (m Multi) Miss(ctx context.Context) {
	for _, s := range m {
		s.Miss(ctx)
	}
}

func (m Multi) Stored(ctx context.Context) {
	for _, s := range m {
		s.Stored(ctx)
	}
}

func (m Multi) Failed(ctx context.Context, err error) {
	for _, s := range m {
		s.Failed(ctx, err)
	}
}
