package bootstrap

import (
	"context"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/viper"

	"github.com/krisalay/memocache/internal/balance"
	"github.com/krisalay/memocache/internal/config"
	"github.com/krisalay/memocache/internal/logging"
)

// App is everything a command needs once the fx graph is up.
type App struct {
	Config   config.Config
	Viper    *viper.Viper
	Logger   *slog.Logger
	Registry *prometheus.Registry
	Balances *balance.Balances
}

// Context installs the configured logger on ctx.
func (a *App) Context(ctx context.Context) context.Context {
	return logging.WithAttrs(
		logging.WithLogger(ctx, a.Logger),
		slog.String("env", a.Config.App.Env),
	)
}
