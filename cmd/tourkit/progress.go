package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/huh"
	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/vanderheijden86/tourkit/internal/datasource"
	"github.com/vanderheijden86/tourkit/pkg/config"
	"github.com/vanderheijden86/tourkit/pkg/progress"
	"github.com/vanderheijden86/tourkit/pkg/tour"
)

// isTerminal reports whether stdin is an interactive terminal. It is a
// variable so tests can pretend either way.
var isTerminal = func() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

func progressCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "progress",
		Short: "Inspect and edit saved tour progress",
	}
	cmd.AddCommand(progressShowCmd(a))
	cmd.AddCommand(progressResetCmd(a))
	cmd.AddCommand(progressCompleteCmd(a))
	cmd.AddCommand(progressMigrateCmd(a))
	cmd.AddCommand(progressDiffCmd(a))
	return cmd
}

func progressShowCmd(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print completed tours and visited pages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, backend, err := a.openStore()
			if err != nil {
				return err
			}
			defer backend.Close()

			rec := store.Snapshot()
			out := cmd.OutOrStdout()
			if asJSON {
				data, err := json.MarshalIndent(rec, "", "  ")
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(out, string(data))
				return err
			}
			printRecord(out, rec)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}

func printRecord(out io.Writer, rec progress.Record) {
	fmt.Fprintf(out, "First session complete: %v\n", rec.HasCompletedFirstSession)
	if !rec.LastSeen.IsZero() {
		fmt.Fprintf(out, "Last seen: %s\n", rec.LastSeen.Format("2006-01-02 15:04"))
	}
	fmt.Fprintf(out, "Completed tours (%d):\n", len(rec.CompletedTourIDs))
	for _, id := range rec.CompletedTourIDs {
		fmt.Fprintf(out, "  %s\n", id)
	}
	fmt.Fprintf(out, "Visited pages (%d):\n", len(rec.VisitedPagePaths))
	for _, p := range rec.VisitedPagePaths {
		fmt.Fprintf(out, "  %s\n", p)
	}
}

func progressResetCmd(a *app) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Forget all progress so every tour runs again",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				if !isTerminal() {
					return errors.New("refusing to reset without --yes when stdin is not a terminal")
				}
				confirmed := false
				form := huh.NewForm(huh.NewGroup(
					huh.NewConfirm().
						Title("Reset all tour progress?").
						Description("Completed tours and visited pages are forgotten.").
						Value(&confirmed).
						Affirmative("Reset").
						Negative("Cancel"),
				))
				if err := form.Run(); err != nil {
					return err
				}
				if !confirmed {
					fmt.Fprintln(cmd.OutOrStdout(), "Reset cancelled")
					return nil
				}
			}

			store, backend, err := a.openStore()
			if err != nil {
				return err
			}
			defer backend.Close()
			store.ResetAll()
			fmt.Fprintln(cmd.OutOrStdout(), "Progress reset")
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

func progressCompleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "complete <tour-id>",
		Short: "Mark a tour as completed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := a.registry(cmd.Context())
			if err != nil {
				return err
			}
			id := args[0]
			if !reg.Has(id) {
				return fmt.Errorf("%w: %s", tour.ErrNotFound, id)
			}
			store, backend, err := a.openStore()
			if err != nil {
				return err
			}
			defer backend.Close()
			store.CompleteTour(id)
			fmt.Fprintf(cmd.OutOrStdout(), "Marked %s completed\n", id)
			return nil
		},
	}
}

// otherSource describes a backend named on the command line.
func otherSource(backend, path string) (datasource.DataSource, error) {
	typ, err := datasource.ParseSourceType(backend)
	if err != nil {
		return datasource.DataSource{}, err
	}
	return datasource.NewSource(typ, path, config.StateDir()), nil
}

func progressMigrateCmd(a *app) *cobra.Command {
	var to, path string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Copy progress from the configured backend to another",
		Long: `Copy every progress key from the configured backend to another one,
overwriting what it holds. Point storage.backend at the target afterwards.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := a.cfg.Source()
			if err != nil {
				return err
			}
			dst, err := otherSource(to, path)
			if err != nil {
				return err
			}
			if src.Type == dst.Type && src.Path == dst.Path {
				return fmt.Errorf("source and target are both %s", src)
			}

			from, err := datasource.Open(src, a.logger)
			if err != nil {
				return err
			}
			defer from.Close()
			into, err := datasource.Open(dst, a.logger)
			if err != nil {
				return err
			}
			defer into.Close()

			n, err := datasource.Migrate(from, into)
			if err != nil {
				return err
			}
			dst.Refresh()
			fmt.Fprintf(cmd.OutOrStdout(), "Copied %d keys to %s\n", n, dst)
			return nil
		},
	}
	cmd.Flags().StringVar(&to, "to", "", "target backend: file or sqlite")
	cmd.Flags().StringVar(&path, "path", "", "target path (default: state directory)")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func progressDiffCmd(a *app) *cobra.Command {
	var against, path string

	cmd := &cobra.Command{
		Use:   "diff",
		Short: "Compare the configured backend with another",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := a.cfg.Source()
			if err != nil {
				return err
			}
			other, err := otherSource(against, path)
			if err != nil {
				return err
			}
			diff, err := datasource.CompareSources(src, other)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), diff.Summary())
			return nil
		},
	}
	cmd.Flags().StringVar(&against, "against", "", "backend to compare with: file or sqlite")
	cmd.Flags().StringVar(&path, "path", "", "its path (default: state directory)")
	_ = cmd.MarkFlagRequired("against")
	return cmd
}
