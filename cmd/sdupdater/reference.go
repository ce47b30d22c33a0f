package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

// NewReferenceCommand creates the reference command.
func NewReferenceCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reference",
		Short: "Show the reference record of the last menu image",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dev, err := openDevice(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer dev.Close()

			out := cmd.OutOrStdout()
			rec := dev.refs.Load()
			if rec.IsZero() {
				fmt.Fprintln(out, "no reference recorded")
				return nil
			}
			fmt.Fprintf(out, "size    %d (%s)\n", rec.Size, humanize.Bytes(uint64(rec.Size)))
			fmt.Fprintf(out, "digest  %s\n", rec.Digest)
			return nil
		},
	}
	return cmd
}
