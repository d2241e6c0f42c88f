// Command cachegen writes <Method>Cached wrappers for methods carrying a
// //memocache:cached directive. It is meant to run from go:generate:
//
//	//go:generate go run github.com/krisalay/memocache/cmd/cachegen --file balances.go
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/krisalay/memocache/cachegen"
	"github.com/krisalay/memocache/internal/errs"
	"github.com/krisalay/memocache/internal/logging"
)

var (
	sourceFile string
	outputFile string
)

var rootCmd = &cobra.Command{
	Use:          "cachegen",
	Short:        "Generate memoized wrappers for //memocache:cached methods",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("file", sourceFile))

		if sourceFile == "" {
			return errors.New("--file is required outside go:generate")
		}

		out, err := cachegen.GenerateFile(sourceFile, outputFile)
		if cachegen.IsNothingToDo(err) {
			logging.Info(ctx, "no cached methods, nothing generated")
			return nil
		}
		if err != nil {
			return err
		}

		_, err = fmt.Fprintf(cmd.OutOrStdout(), "cachegen: wrote %s\n", out)
		return err
	},
}

func main() {
	ctx := logging.WithLogger(context.Background(), logging.New(os.Stderr, "info", "text"))
	rootCmd.SetContext(ctx)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logging.Error(ctx, "cachegen failed", slog.Any("err", errs.Loggable(err)))
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().StringVar(&sourceFile, "file", os.Getenv("GOFILE"), "Go source file to scan (default $GOFILE)")
	rootCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default <file>_cached.go)")
}
