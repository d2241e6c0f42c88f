package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/viper"
	"go.uber.org/fx"

	cache "github.com/krisalay/memocache"
	"github.com/krisalay/memocache/internal/balance"
	"github.com/krisalay/memocache/internal/config"
	"github.com/krisalay/memocache/internal/errs"
	"github.com/krisalay/memocache/internal/logging"
	"github.com/krisalay/memocache/observe"
	"github.com/krisalay/memocache/types"
)

// Module wires config → metrics → cache → source → Balances.
var Module = fx.Options(
	fx.Provide(provideViper),
	fx.Provide(provideConfig),
	fx.Provide(provideLogger),
	fx.Provide(provideRegistry),
	fx.Provide(provideMetrics),
	fx.Provide(provideCache),
	fx.Provide(provideSource),
	fx.Provide(provideBalances),
	fx.Provide(provideApp),
)

type configParams struct {
	fx.In

	Ctx        context.Context
	ConfigFile string `name:"configFile"`
}

func provideViper(p configParams) (*viper.Viper, error) {
	ctx := logging.WithAttrs(p.Ctx, slog.String("component", "bootstrap.fx"))
	return config.Read(ctx, p.ConfigFile)
}

func provideConfig(ctx context.Context, v *viper.Viper) (config.Config, error) {
	return config.Decode(logging.WithAttrs(ctx, slog.String("component", "bootstrap.fx")), v)
}

func provideLogger(cfg config.Config) *slog.Logger {
	return logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
}

func provideRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

/*
provideMetrics combines the log and Prometheus sinks. With a positive
metrics.async_buffer both run on a background worker so a slow sink never
delays a lookup; the queue is drained on stop.
*/
func provideMetrics(lc fx.Lifecycle, cfg config.Config, reg *prometheus.Registry) types.Metrics {
	name := cfg.Cache.Name
	sink := observe.Combine(
		observe.NewLogMetrics(name),
		observe.NewCollectors(reg, cfg.Metrics.Namespace).For(name),
	)

	if cfg.Metrics.AsyncBuffer <= 0 {
		return sink
	}

	async := observe.NewAsync(sink, cfg.Metrics.AsyncBuffer)
	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			async.Close()
			return nil
		},
	})
	return async
}

func provideCache(cfg config.Config, metrics types.Metrics) *cache.Cache[string, uint64] {
	opts := []cache.Option{
		cache.WithName(cfg.Cache.Name),
		cache.WithMetrics(metrics),
	}
	if cfg.Cache.SingleFlight {
		opts = append(opts, cache.WithSingleFlight(func(address string) string { return address }))
	}
	return cache.New[string, uint64](opts...)
}

func provideSource(lc fx.Lifecycle, ctx context.Context, cfg config.Config) (balance.Source, error) {
	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.fx"), slog.String("source", cfg.Source.Kind))

	switch cfg.Source.Kind {
	case config.SourceRPC:
		logging.Info(logCtx, "using simulated rpc source",
			slog.Duration("latency", cfg.Source.Latency),
			slog.Float64("failure_rate", cfg.Source.FailureRate),
		)
		return balance.NewRPCSource(balance.RPCConfig{
			Latency:     cfg.Source.Latency,
			FailureRate: cfg.Source.FailureRate,
			MinBalance:  cfg.Source.MinBalance,
			MaxBalance:  cfg.Source.MaxBalance,
		}), nil

	case config.SourceSQLite:
		db, err := balance.OpenLedger(logCtx, cfg.Source.Database.Driver, cfg.Source.Database.DSN)
		if err != nil {
			return nil, errs.Wrap(err, "open ledger")
		}
		lc.Append(fx.Hook{
			OnStop: func(_ context.Context) error {
				return balance.CloseLedger(db)
			},
		})
		return balance.NewLedgerSource(db), nil

	case config.SourceRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Source.Redis.Addr,
			Password: cfg.Source.Redis.Password,
			DB:       cfg.Source.Redis.DB,
		})
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				if err := client.Ping(ctx).Err(); err != nil {
					return errs.Wrapf(err, "ping redis %s", cfg.Source.Redis.Addr)
				}
				return nil
			},
			OnStop: func(_ context.Context) error {
				return client.Close()
			},
		})
		logging.Info(logCtx, "using redis source", slog.String("addr", cfg.Source.Redis.Addr))
		return balance.NewRedisSource(client, cfg.Source.Redis.KeyPrefix), nil

	default:
		return nil, fmt.Errorf("unsupported source.kind %q", cfg.Source.Kind)
	}
}

func provideBalances(cfg config.Config, c *cache.Cache[string, uint64], src balance.Source) (*balance.Balances, error) {
	p, err := cfg.Cache.Policy()
	if err != nil {
		return nil, errs.Wrap(err, "cache policy")
	}
	return balance.NewBalances(c, src, p)
}

type appParams struct {
	fx.In

	Config   config.Config
	Viper    *viper.Viper
	Logger   *slog.Logger
	Registry *prometheus.Registry
	Balances *balance.Balances
}

func provideApp(p appParams) *App {
	return &App{
		Config:   p.Config,
		Viper:    p.Viper,
		Logger:   p.Logger,
		Registry: p.Registry,
		Balances: p.Balances,
	}
}
