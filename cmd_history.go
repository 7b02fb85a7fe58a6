package main

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/spf13/cobra"

	trackingapp "health-importer/internal/tracking/application"
)

func newHistoryCmd(root *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect or reset the import history",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Show imported files and last timestamps",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				tracker, _, closeState, err := historyState(cmd, root)
				if err != nil {
					return err
				}
				defer closeState()
				printHistory(cmd.OutOrStdout(), tracker.Summary())
				return nil
			},
		},
		&cobra.Command{
			Use:   "reset",
			Short: "Forget all imported files, timestamps and checkpoints",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				tracker, progress, closeState, err := historyState(cmd, root)
				if err != nil {
					return err
				}
				defer closeState()
				if err := tracker.Reset(cmd.Context()); err != nil {
					return err
				}
				if err := progress.Clear(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "import history reset")
				return nil
			},
		},
	)
	return cmd
}

func historyState(cmd *cobra.Command, root *rootFlags) (*trackingapp.Tracker, *trackingapp.Progress, func(), error) {
	cfg, err := root.settings()
	if err != nil {
		return nil, nil, nil, err
	}
	logger, err := newLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return nil, nil, nil, err
	}
	state, closeState, err := openState(cmd.Context(), cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	tracker, progress, err := openTracking(cmd.Context(), state, logger)
	if err != nil {
		closeState()
		return nil, nil, nil, err
	}
	return tracker, progress, closeState, nil
}

func printHistory(w io.Writer, s trackingapp.Summary) {
	if s.LastImport == nil {
		fmt.Fprintln(w, "no imports recorded")
		return
	}
	fmt.Fprintf(w, "last import: %s\n", s.LastImport.Format(time.RFC3339))
	fmt.Fprintf(w, "files (%d):\n", len(s.Files))
	for _, f := range s.Files {
		fmt.Fprintf(w, "  %s  %s  written=%d duplicates=%d errors=%d\n",
			f.ImportTime.Format(time.RFC3339), f.Path, f.Stats.Written, f.Stats.Duplicates, f.Stats.Errors())
	}

	measurements := make([]string, 0, len(s.LastTimestamps))
	for m := range s.LastTimestamps {
		measurements = append(measurements, m)
	}
	sort.Strings(measurements)
	fmt.Fprintln(w, "last timestamps:")
	for _, m := range measurements {
		fmt.Fprintf(w, "  %-24s %s\n", m, s.LastTimestamps[m].Format(time.RFC3339))
	}
}
