package balance

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/krisalay/memocache/internal/errs"
	"github.com/krisalay/memocache/internal/logging"
)

// RPCConfig shapes the simulated node.
type RPCConfig struct {
	Latency     time.Duration
	FailureRate float64
	MinBalance  uint64
	MaxBalance  uint64
}

/*
RPCSource pretends to be a remote node: every call waits Latency, fails with
probability FailureRate and otherwise returns a random balance in
[MinBalance, MaxBalance).
*/
type RPCSource struct {
	cfg RPCConfig
}

var _ Source = (*RPCSource)(nil)

func NewRPCSource(cfg RPCConfig) *RPCSource {
	if cfg.MaxBalance <= cfg.MinBalance {
		cfg.MaxBalance = cfg.MinBalance + 1
	}
	return &RPCSource{cfg: cfg}
}

func (s *RPCSource) Load(ctx context.Context, address string) (uint64, error) {
	logCtx := logging.WithAttrs(ctx, slog.String("component", "balance.rpc"), slog.String("address", address))

	if s.cfg.Latency > 0 {
		timer := time.NewTimer(s.cfg.Latency)
		select {
		case <-ctx.Done():
			timer.Stop()
			return 0, errs.Wrap(ctx.Err(), "wait for rpc")
		case <-timer.C:
		}
	}

	if rand.Float64() < s.cfg.FailureRate {
		logging.Warn(logCtx, "failed to get balance")
		return 0, ErrRPCUnavailable
	}

	balance := s.cfg.MinBalance + rand.Uint64N(s.cfg.MaxBalance-s.cfg.MinBalance)
	logging.Info(logCtx, "got balance", slog.Uint64("balance", balance))
	return balance, nil
}
