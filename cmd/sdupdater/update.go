package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/moffa90/go-sdupdater/flash"
	"github.com/moffa90/go-sdupdater/updater"
)

// UpdateOptions holds flags for the update command.
type UpdateOptions struct {
	Restart bool
	Quiet   bool
}

// NewUpdateCommand creates the update command.
func NewUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &UpdateOptions{}

	cmd := &cobra.Command{
		Use:   "update <image>",
		Short: "Flash an image into the inactive slot",
		Long: `Flash an image into the inactive slot and select it for the next boot.

The image is named by its file name with a leading slash, as on the root of
an SD card, so menu.bin is the privileged /menu.bin. A rollback is tried
first; when the inactive slot already holds the menu image the device boots
it and nothing is written.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpdate(rootOpts, opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Restart, "restart", true, "restart into the new slot after a successful update")
	cmd.Flags().BoolVarP(&opts.Quiet, "quiet", "q", false, "no progress output")

	return cmd
}

func runUpdate(rootOpts *RootOptions, opts *UpdateOptions, path string, cmd *cobra.Command) error {
	out := cmd.OutOrStdout()

	dev, err := openDevice(rootOpts, cmd, flash.WithRestartHook(func(p *flash.Partition) {
		fmt.Fprintf(out, "restarted into %s\n", p)
	}))
	if err != nil {
		return err
	}
	defer dev.Close()

	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	fsys := os.DirFS(filepath.Dir(abs))
	name := "/" + filepath.Base(abs)

	var reporter updater.Reporter
	if !opts.Quiet {
		reporter = &textReporter{w: out}
	}

	err = dev.updater.UpdateFromFS(cmd.Context(), fsys, name, reporter)
	switch {
	case errors.Is(err, updater.ErrRestarted):
		fmt.Fprintf(out, "%s already in place, booted without flashing\n", name)
		return nil
	case err != nil:
		return err
	}

	fmt.Fprintf(out, "%s written to %s\n", name, dev.sim.BootPartition())
	if !opts.Restart {
		return nil
	}
	return dev.sim.Restart()
}
