package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/moffa90/go-sdupdater/flash"
)

// NewRollbackCommand creates the rollback command.
func NewRollbackCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rollback",
		Short: "Boot the inactive slot if it holds the reference image",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRollback(rootOpts, cmd)
		},
	}
	return cmd
}

func runRollback(rootOpts *RootOptions, cmd *cobra.Command) error {
	out := cmd.OutOrStdout()

	dev, err := openDevice(rootOpts, cmd, flash.WithRestartHook(func(p *flash.Partition) {
		fmt.Fprintf(out, "restarted into %s\n", p)
	}))
	if err != nil {
		return err
	}
	defer dev.Close()

	outcome, err := dev.updater.TryRollback(cmd.Context())
	fmt.Fprintf(out, "rollback: %s\n", outcome)
	return err
}
