package main

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/krisalay/memocache/internal/balance"
	"github.com/krisalay/memocache/internal/config"
	"github.com/krisalay/memocache/internal/errs"
	"github.com/krisalay/memocache/internal/logging"
)

var seedCmd = &cobra.Command{
	Use:   "seed <address=balance>...",
	Short: "Write balances into the SQLite ledger",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		balances, err := parseSeedArgs(args)
		if err != nil {
			return err
		}

		cfg, err := config.Load(ctx, cfgFile)
		if err != nil {
			return errs.Wrap(err, "load config")
		}

		db, err := balance.OpenLedger(ctx, cfg.Source.Database.Driver, cfg.Source.Database.DSN)
		if err != nil {
			return errs.Wrap(err, "open ledger")
		}
		defer func() {
			if err := balance.CloseLedger(db); err != nil {
				logging.Warn(ctx, "close ledger failed", slog.Any("err", errs.Loggable(err)))
			}
		}()

		if err := balance.Seed(ctx, db, balances); err != nil {
			return err
		}

		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "seeded %d accounts into %s\n", len(balances), cfg.Source.Database.DSN); err != nil {
			return errs.Wrap(err, "write seed output")
		}
		return nil
	},
}

func parseSeedArgs(args []string) (map[string]uint64, error) {
	out := make(map[string]uint64, len(args))
	for _, arg := range args {
		address, raw, ok := strings.Cut(arg, "=")
		address = strings.TrimSpace(address)
		if !ok || address == "" {
			return nil, fmt.Errorf("expected address=balance, got %q", arg)
		}

		v, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return nil, errs.Wrapf(err, "parse balance of %s", address)
		}
		out[address] = v
	}
	return out, nil
}

func init() {
	rootCmd.AddCommand(seedCmd)
}
