package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"seat-checkin-backend/internal/reconcile"
)

func newClearCommand(opts *rootOptions) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:          "clear",
		Short:        "Delete every check-in from the shared store",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.New("refusing to clear check-ins without --yes")
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return runClear(ctx, cmd, opts)
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm deleting every check-in")

	return cmd
}

func runClear(ctx context.Context, cmd *cobra.Command, opts *rootOptions) error {
	cfg, err := opts.load()
	if err != nil {
		return err
	}
	if cfg.Database.Driver == "memory" {
		return errors.New("clear needs a shared database")
	}

	s, _, err := openStore(cfg)
	if err != nil {
		return err
	}

	tally, err := reconcile.NewEngine(s, reconcile.WithStationID(cfg.CheckIn.StationID)).ClearAll(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "deleted %d check-ins, %d failed\n", tally.Succeeded, tally.Failed)
	return tally.Err()
}
