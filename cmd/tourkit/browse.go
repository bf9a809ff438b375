package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vanderheijden86/tourkit/pkg/host/browser"
	"github.com/vanderheijden86/tourkit/pkg/layout"
)

func browseCmd(a *app) *cobra.Command {
	var (
		tourID     string
		controlURL string
		headless   bool
		width      float64
		height     float64
		keepOpen   bool
	)

	cmd := &cobra.Command{
		Use:   "browse <url>",
		Short: "Run tours on a live page in Chrome",
		Long: `Open url in Chrome and drive the tour engine against the real page:
targets are found with CSS selectors, the overlay is injected into the
page and the arrow, enter and escape keys work as in the application.

Without --tour, tours start by themselves on first page visits. The
command exits when the tour ends, unless --keep-open is set.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			reg, err := a.registry(ctx)
			if err != nil {
				return err
			}
			if tourID != "" && !reg.Has(tourID) {
				return fmt.Errorf("unknown tour %q", tourID)
			}
			store, backend, err := a.openStore()
			if err != nil {
				return err
			}
			defer backend.Close()

			openCtx, cancelOpen := context.WithTimeout(ctx, time.Minute)
			h, err := browser.Open(openCtx, browser.Config{
				ControlURL: controlURL,
				Headful:    !headless,
				Viewport:   layout.Viewport{Width: width, Height: height},
				Logger:     a.logger,
			}, args[0])
			cancelOpen()
			if err != nil {
				return err
			}
			defer func() {
				if err := h.Close(); err != nil {
					a.logger.Warn("closing browser", zap.Error(err))
				}
			}()

			s, err := browser.NewSession(h, a.engineConfig(reg, store, a.profiler(h.Signals)))
			if err != nil {
				return err
			}

			runCtx, cancel := context.WithCancel(ctx)
			defer cancel()
			if !keepOpen {
				go func() {
					select {
					case <-s.Finished():
						cancel()
					case <-runCtx.Done():
					}
				}()
			}

			a.logger.Info("browsing",
				zap.String("url", args[0]),
				zap.String("tour", tourID),
				zap.String("tier", string(s.Engine().Tier())))
			return s.Run(runCtx, tourID)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&tourID, "tour", "t", "", "start this tour right away")
	f.StringVar(&controlURL, "control-url", "", "DevTools URL of a running Chrome (default: launch one)")
	f.BoolVar(&headless, "headless", false, "launch Chrome without a window")
	f.Float64Var(&width, "width", 0, "emulated viewport width (default: window size)")
	f.Float64Var(&height, "height", 0, "emulated viewport height")
	f.BoolVar(&keepOpen, "keep-open", false, "keep running after the tour ends")
	return cmd
}
