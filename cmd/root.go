package main

import (
	"context"
	"errors"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/krisalay/memocache/internal/errs"
	"github.com/krisalay/memocache/internal/logging"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:          "memocache",
	Short:        "Memoized balance lookups",
	Long:         "Balance lookups memoized per address for a fixed time window, backed by a simulated RPC node, a SQLite ledger or Redis.",
	SilenceUsage: true,
}

// Execute runs the root command with a logger on ctx.
func Execute(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}

	logger := slog.New(slog.NewTextHandler(rootCmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	ctx = logging.WithLogger(ctx, logger)
	ctx = logging.WithAttrs(ctx, slog.String("app", "memocache"))

	rootCmd.SetContext(ctx)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logging.Error(ctx, "command execution failed", slog.Any("err", errs.Loggable(err)))
		return errs.Wrap(err, "execute root command")
	}

	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file path (default ./configs/config.yaml)")
}
