package main

import (
	"github.com/spf13/cobra"

	"github.com/krisalay/memocache/internal/bootstrap"
	"github.com/krisalay/memocache/internal/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve memoized balances and metrics over HTTP",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App) error {
		ctx := cmd.Context()

		addr := app.Config.Server.Addr
		if serveAddr != "" {
			addr = serveAddr
		}

		router := server.NewRouter(ctx, app.Balances.Lookup, app.Balances.TTL, app.Registry)
		return server.New(addr, router).Run(ctx)
	}),
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default server.addr)")
}
