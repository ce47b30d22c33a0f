package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/juju/errors"
	"github.com/spf13/cobra"

	"github.com/moffa90/go-sdupdater/espimage"
	"github.com/moffa90/go-sdupdater/flash"
)

// NewInspectCommand creates the inspect command.
func NewInspectCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect [image]",
		Short: "Show image metadata of both slots, or of an image file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				return inspectFile(args[0], cmd.OutOrStdout())
			}
			return inspectSlots(rootOpts, cmd)
		},
	}
	return cmd
}

func inspectFile(path string, out io.Writer) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	meta, err := espimage.Parse(f, 0, info.Size())
	if err != nil {
		return errors.Annotatef(err, "%s", path)
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "file\t%s\n", path)
	writeMetadata(tw, meta)
	if trailing := info.Size() - int64(meta.Length); trailing > 0 {
		fmt.Fprintf(tw, "trailing\t%s\n", humanize.Bytes(uint64(trailing)))
	}
	return tw.Flush()
}

func inspectSlots(rootOpts *RootOptions, cmd *cobra.Command) error {
	dev, err := openDevice(rootOpts, cmd)
	if err != nil {
		return err
	}
	defer dev.Close()

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	slots := []struct {
		role string
		part *flash.Partition
	}{
		{"running", dev.sim.ActivePartition()},
		{"next", dev.sim.NextUpdatePartition()},
	}
	for i, s := range slots {
		if i > 0 {
			fmt.Fprintln(tw)
		}
		fmt.Fprintf(tw, "%s\t%s (%s)\n", s.role, s.part, humanize.Bytes(uint64(s.part.Size)))
		meta := s.part.Metadata()
		if !meta.Valid() {
			fmt.Fprintf(tw, "image\tnone\n")
			continue
		}
		writeMetadata(tw, meta)
	}
	fmt.Fprintf(tw, "\nboot\t%s\n", dev.sim.BootPartition())
	fmt.Fprintf(tw, "rollback\t%v\n", dev.sim.CanRollback())
	return tw.Flush()
}

func writeMetadata(w io.Writer, meta espimage.Metadata) {
	fmt.Fprintf(w, "length\t%d (%s)\n", meta.Length, humanize.Bytes(uint64(meta.Length)))
	fmt.Fprintf(w, "entry\t0x%08X\n", meta.EntryAddress)
	fmt.Fprintf(w, "segments\t%d\n", meta.SegmentCount)
	fmt.Fprintf(w, "hash appended\t%v\n", meta.HashAppended)
	fmt.Fprintf(w, "digest\t%s\n", meta.Digest)
}
