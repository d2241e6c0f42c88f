package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/krisalay/memocache/cached"
	"github.com/krisalay/memocache/internal/errs"
	"github.com/krisalay/memocache/internal/logging"
)

type Config struct {
	App     AppConfig     `mapstructure:"app"`
	Log     LogConfig     `mapstructure:"log"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Source  SourceConfig  `mapstructure:"source"`
	Watch   WatchConfig   `mapstructure:"watch"`
	Server  ServerConfig  `mapstructure:"server"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// CacheConfig holds the caching policy of the balance lookups.
type CacheConfig struct {
	Name           string `mapstructure:"name"`
	CacheTime      int    `mapstructure:"cache_time"`
	CacheFieldName string `mapstructure:"cache_field_name"`
	SingleFlight   bool   `mapstructure:"single_flight"`
}

// Policy returns the validated caching policy. cache_time always carries a
// default, so a 0 here was set explicitly and is invalid rather than missing.
func (c CacheConfig) Policy() (cached.Policy, error) {
	if c.CacheTime == 0 {
		return cached.Policy{}, &cached.PolicyError{
			Option: cached.OptionCacheTime,
			Err:    fmt.Errorf("%w: 0", cached.ErrInvalidCacheTime),
		}
	}
	p := cached.Policy{CacheTime: c.CacheTime, CacheFieldName: c.CacheFieldName}
	if err := p.Validate(); err != nil {
		return cached.Policy{}, err
	}
	return p, nil
}

type SourceConfig struct {
	Kind        string         `mapstructure:"kind"`
	Latency     time.Duration  `mapstructure:"latency"`
	FailureRate float64        `mapstructure:"failure_rate"`
	MinBalance  uint64         `mapstructure:"min_balance"`
	MaxBalance  uint64         `mapstructure:"max_balance"`
	Database    DatabaseConfig `mapstructure:"database"`
	Redis       RedisConfig    `mapstructure:"redis"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type RedisConfig struct {
	Addr      string `mapstructure:"addr"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

type WatchConfig struct {
	Address    string        `mapstructure:"address"`
	Iterations int           `mapstructure:"iterations"`
	Interval   time.Duration `mapstructure:"interval"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

type MetricsConfig struct {
	Namespace   string `mapstructure:"namespace"`
	AsyncBuffer int    `mapstructure:"async_buffer"`
}

const (
	SourceRPC    = "rpc"
	SourceSQLite = "sqlite"
	SourceRedis  = "redis"
)

// Load reads configFile (or ./configs/config.yaml, ./config.yaml when empty),
// applies MEMO_* environment overrides and validates the result.
func Load(ctx context.Context, configFile string) (Config, error) {
	v, err := Read(ctx, configFile)
	if err != nil {
		return Config{}, err
	}
	return Decode(ctx, v)
}

// Read prepares a viper instance with defaults, env bindings and the config file.
func Read(ctx context.Context, configFile string) (*viper.Viper, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, errs.Wrap(err, "check context")
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "config"))

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("MEMO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile == "" && errors.As(err, &notFound) {
			logging.Warn(logCtx, "config file not found, fallback to defaults and env")
		} else {
			return nil, errs.Wrap(err, "read config")
		}
	} else {
		logging.Info(logCtx, "using config file", slog.String("path", v.ConfigFileUsed()))
	}

	return v, nil
}

// Decode unmarshals and validates the current state of v.
func Decode(ctx context.Context, v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errs.Wrap(err, "unmarshal config")
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	logging.Info(
		logging.WithAttrs(ctx, slog.String("component", "config")),
		"config loaded",
		slog.String("app", cfg.App.Name),
		slog.String("env", cfg.App.Env),
		slog.String("source", cfg.Source.Kind),
		slog.Int("cache_time", cfg.Cache.CacheTime),
	)

	return cfg, nil
}

// Validate checks the settings that have no usable default.
func (c Config) Validate() error {
	if _, err := c.Cache.Policy(); err != nil {
		return errs.Wrap(err, "cache policy")
	}

	switch c.Source.Kind {
	case SourceRPC:
		if c.Source.FailureRate < 0 || c.Source.FailureRate > 1 {
			return fmt.Errorf("source.failure_rate must be within [0, 1], got %v", c.Source.FailureRate)
		}
		if c.Source.MaxBalance <= c.Source.MinBalance {
			return fmt.Errorf("source.max_balance must be greater than source.min_balance")
		}
	case SourceSQLite:
		if c.Source.Database.DSN == "" {
			return errors.New("source.database.dsn is required")
		}
	case SourceRedis:
		if c.Source.Redis.Addr == "" {
			return errors.New("source.redis.addr is required")
		}
	default:
		return fmt.Errorf("unsupported source.kind %q", c.Source.Kind)
	}

	if c.Watch.Interval < 0 {
		return errors.New("watch.interval must not be negative")
	}
	return nil
}

/*
Watch reloads the config file whenever it changes on disk and hands every
valid new Config to onChange. Invalid edits are logged and skipped, so the
previous config stays in effect.
*/
func Watch(ctx context.Context, v *viper.Viper, onChange func(Config)) {
	logCtx := logging.WithAttrs(ctx, slog.String("component", "config"))

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}

		cfg, err := Decode(logCtx, v)
		if err != nil {
			logging.Warn(logCtx, "ignoring invalid config change",
				slog.String("path", e.Name),
				slog.Any("err", errs.Loggable(err)),
			)
			return
		}

		logging.Info(logCtx, "config reloaded", slog.String("path", e.Name), slog.String("op", e.Op.String()))
		onChange(cfg)
	})
	v.WatchConfig()
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "memocache")
	v.SetDefault("app.env", "local")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("cache.name", "balances")
	v.SetDefault("cache.cache_time", 10)
	v.SetDefault("cache.cache_field_name", cached.DefaultCacheFieldName)
	v.SetDefault("cache.single_flight", false)

	v.SetDefault("source.kind", SourceRPC)
	v.SetDefault("source.latency", time.Second)
	v.SetDefault("source.failure_rate", 0.5)
	v.SetDefault("source.min_balance", 100)
	v.SetDefault("source.max_balance", 10000)
	v.SetDefault("source.database.driver", "sqlite")
	v.SetDefault("source.database.dsn", ".memocache/ledger.sqlite")
	v.SetDefault("source.redis.addr", "localhost:6379")
	v.SetDefault("source.redis.db", 0)
	v.SetDefault("source.redis.key_prefix", "balance:")

	v.SetDefault("watch.address", "123")
	v.SetDefault("watch.iterations", 15)
	v.SetDefault("watch.interval", time.Second)

	v.SetDefault("server.addr", ":8080")

	v.SetDefault("metrics.namespace", "memocache")
	v.SetDefault("metrics.async_buffer", 1024)
}
