package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/krisalay/memocache/internal/bootstrap"
	"github.com/krisalay/memocache/internal/errs"
	"github.com/krisalay/memocache/internal/logging"
)

var lookupCmd = &cobra.Command{
	Use:   "lookup <address>...",
	Short: "Look up balances once",
	Long:  "Looks up each address through the configured cache policy. Repeated addresses within one call are answered from the cache.",
	Args:  cobra.MinimumNArgs(1),
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App) error {
		ctx := cmd.Context()

		var failed int
		for _, address := range cmd.Flags().Args() {
			v, err := app.Balances.Lookup(ctx, address)
			if err != nil {
				failed++
				logging.Warn(ctx, "lookup failed", slog.String("address", address), slog.Any("err", errs.Loggable(err)))
				if _, werr := fmt.Fprintf(cmd.OutOrStdout(), "%s\terror: %v\n", address, err); werr != nil {
					return errs.Wrap(werr, "write lookup output")
				}
				continue
			}

			ttl := "not cached"
			if remaining := app.Balances.TTL(address); remaining > 0 {
				ttl = "cached for " + remaining.String()
			}
			if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\t(%s)\n", address, v, ttl); err != nil {
				return errs.Wrap(err, "write lookup output")
			}
		}

		if failed > 0 {
			return fmt.Errorf("%d of %d lookups failed", failed, len(cmd.Flags().Args()))
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(lookupCmd)
}
