package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/krisalay/memocache/internal/bootstrap"
	"github.com/krisalay/memocache/internal/config"
	"github.com/krisalay/memocache/internal/errs"
	"github.com/krisalay/memocache/internal/logging"
)

var (
	watchAddress    string
	watchIterations int
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Query one address repeatedly and print each result",
	Long: "Queries the same address once per interval through the generated cached wrapper. " +
		"Within the cache window results come from memory; failures are retried on the next iteration. " +
		"The interval follows live edits of watch.interval in the config file.",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App) error {
		ctx := cmd.Context()

		address := app.Config.Watch.Address
		if watchAddress != "" {
			address = watchAddress
		}
		iterations := app.Config.Watch.Iterations
		if watchIterations > 0 {
			iterations = watchIterations
		}

		var interval atomic.Int64
		interval.Store(int64(app.Config.Watch.Interval))
		if app.Viper.ConfigFileUsed() != "" {
			config.Watch(ctx, app.Viper, func(cfg config.Config) {
				interval.Store(int64(cfg.Watch.Interval))
			})
		}

		return runWatch(ctx, cmd.OutOrStdout(), watchRun{
			Address:    address,
			Iterations: iterations,
			Interval:   func() time.Duration { return time.Duration(interval.Load()) },
			Lookup:     app.Balances.BalanceCached,
		})
	}),
}

type watchRun struct {
	Address    string
	Iterations int
	Interval   func() time.Duration
	Lookup     func(ctx context.Context, address string) (uint64, error)
}

type watchStyles struct {
	label lipgloss.Style
	ok    lipgloss.Style
	err   lipgloss.Style
}

func newWatchStyles(out io.Writer) watchStyles {
	r := lipgloss.NewRenderer(out)
	return watchStyles{
		label: r.NewStyle().Bold(true),
		ok:    r.NewStyle().Foreground(lipgloss.Color("42")),
		err:   r.NewStyle().Foreground(lipgloss.Color("203")),
	}
}

// runWatch performs Iterations lookups of Address, sleeping Interval between them.
// Lookup failures are printed, not returned; only cancellation stops the loop early.
func runWatch(ctx context.Context, out io.Writer, run watchRun) error {
	styles := newWatchStyles(out)

	for i := 1; i <= run.Iterations; i++ {
		iterCtx := logging.WithTelemetry(ctx, uuid.NewString(), "")
		iterCtx = logging.WithAttrs(iterCtx, slog.Int("iteration", i))

		v, err := run.Lookup(iterCtx, run.Address)

		var result string
		if err != nil {
			result = styles.err.Render("error: " + err.Error())
		} else {
			result = styles.ok.Render(fmt.Sprintf("%d", v))
		}
		if _, werr := fmt.Fprintf(out, "%s Result = %s\n", styles.label.Render(fmt.Sprintf("Iteration %d:", i)), result); werr != nil {
			return errs.Wrap(werr, "write watch output")
		}

		if i == run.Iterations {
			break
		}

		var wait time.Duration
		if run.Interval != nil {
			wait = run.Interval()
		}
		if wait <= 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
			continue
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return nil
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().StringVar(&watchAddress, "address", "", "Address to query (default watch.address)")
	watchCmd.Flags().IntVar(&watchIterations, "iterations", 0, "Number of lookups (default watch.iterations)")
}
