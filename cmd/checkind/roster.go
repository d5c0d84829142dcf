package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"seat-checkin-backend/internal/identity"
	"seat-checkin-backend/internal/roster"
)

func newRosterCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "roster",
		Short: "Inspect roster files",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "check <file>",
		Short: "Validate a roster file (.xlsx, .csv or .json)",
		Long: `Loads the roster with the configured column aliases and lists rows
with missing or duplicated ids and credentials. Exits non-zero when any
problem is found.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRosterCheck(cmd, opts, args[0])
		},
	})

	return cmd
}

func runRosterCheck(cmd *cobra.Command, opts *rootOptions, path string) error {
	aliases := identity.DefaultAliases
	if _, err := os.Stat(opts.configPath); err == nil {
		cfg, err := opts.load()
		if err != nil {
			return err
		}
		aliases = aliases.Extend(cfg.Roster.Aliases)
	}

	r, err := roster.LoadFile(path, identity.NewResolver(aliases))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	problems := r.Validate()
	fmt.Fprintf(out, "%s: %d attendees, %d problems\n", path, r.Len(), len(problems))
	for _, p := range problems {
		fmt.Fprintf(out, "  %s\n", p)
	}
	if len(problems) > 0 {
		return errors.New("roster has problems")
	}
	return nil
}
