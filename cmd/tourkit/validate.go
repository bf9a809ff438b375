package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vanderheijden86/tourkit/pkg/tour"
	"github.com/vanderheijden86/tourkit/pkg/watcher"
)

func validateCmd(a *app) *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "validate [path]",
		Short: "Check a tour catalog",
		Long: `Load a tour catalog file or directory and report every invalid
definition. Without a path the configured catalog is checked.

With --watch the catalog is re-checked whenever it changes on disk.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := a.cfg.Tours
			if len(args) == 1 {
				path = args[0]
			}
			out := cmd.OutOrStdout()
			if path == "" {
				reg, err := tour.BuiltinRegistry()
				if err != nil {
					return err
				}
				printCatalog(out, "built-in", reg)
				return nil
			}

			err := validateCatalog(cmd.Context(), out, path)
			if !watch {
				return err
			}
			if err != nil {
				fmt.Fprintf(out, "%s: %v\n", path, err)
			}
			return watchCatalog(cmd.Context(), a, out, path)
		},
	}
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "re-validate on change until interrupted")
	return cmd
}

func validateCatalog(ctx context.Context, out io.Writer, path string) error {
	defs, err := tour.Load(ctx, path)
	if err != nil {
		return err
	}
	reg, err := tour.NewRegistry(defs...)
	if err != nil {
		return err
	}
	printCatalog(out, path, reg)
	return nil
}

func printCatalog(out io.Writer, name string, reg *tour.Registry) {
	fmt.Fprintf(out, "%s: %d tours OK\n", name, reg.Len())
	for _, def := range reg.All() {
		route := def.Route
		if route == "" {
			route = "(any page)"
		}
		fmt.Fprintf(out, "  %-22s %2d steps  %s\n", def.ID, def.Len(), route)
	}
}

func watchCatalog(ctx context.Context, a *app, out io.Writer, path string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	w, err := watcher.NewWatcher(path,
		watcher.WithOnError(func(err error) {
			a.logger.Warn("watching catalog", zap.String("path", path), zap.Error(err))
		}),
	)
	if err != nil {
		return err
	}
	if err := w.Start(); err != nil {
		return err
	}
	defer w.Stop()

	fmt.Fprintf(out, "watching %s (polling: %v)\n", w.Path(), w.IsPolling())
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-w.Changed():
			if err := validateCatalog(ctx, out, path); err != nil {
				fmt.Fprintf(out, "%s: %v\n", path, err)
			}
		}
	}
}
