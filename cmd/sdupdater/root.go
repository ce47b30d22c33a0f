package main

import (
	"github.com/juju/errors"
	"github.com/juju/loggo"
	"github.com/spf13/cobra"

	"github.com/moffa90/go-sdupdater/config"
	"github.com/moffa90/go-sdupdater/flash"
	"github.com/moffa90/go-sdupdater/nvs"
	"github.com/moffa90/go-sdupdater/refstore"
	"github.com/moffa90/go-sdupdater/updater"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	Verbose    bool

	// Config is loaded before any subcommand runs
	Config *config.Config
}

// NewRootCommand creates the root command for the sdupdater CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "sdupdater",
		Short: "A/B firmware updater for ESP application images",
		Long: `Flash ESP application images into the inactive slot of a two-slot device.

Before flashing, the inactive slot is compared with the reference record of
the last menu image. When it already holds that image the device boots it
instead of writing flash again.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.ConfigPath)
			if err != nil {
				return err
			}
			opts.Config = cfg
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "config file (default $"+config.EnvVar+")")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "debug logging")

	cmd.AddCommand(NewUpdateCommand(opts))
	cmd.AddCommand(NewRollbackCommand(opts))
	cmd.AddCommand(NewInspectCommand(opts))
	cmd.AddCommand(NewReferenceCommand(opts))

	return cmd
}

// device bundles everything a command needs to talk to the simulated
// device. Close releases it.
type device struct {
	sim     *flash.SimDevice
	store   *nvs.SQLite
	refs    *refstore.Store
	updater *updater.Updater
	logger  loggo.Logger
}

func openDevice(opts *RootOptions, cmd *cobra.Command, simOpts ...flash.SimOption) (*device, error) {
	cfg := opts.Config
	logger := newLogger(opts, cmd)

	sim, err := cfg.OpenDevice(simOpts...)
	if err != nil {
		return nil, errors.Annotate(err, "open device")
	}
	store, err := cfg.OpenNVS()
	if err != nil {
		_ = sim.Close()
		return nil, errors.Annotate(err, "open nvs")
	}
	refs := refstore.New(store)

	up := updater.New(sim, refs, append(cfg.UpdaterOptions(),
		updater.WithLogger(updater.NewLoggoLogger(logger)),
	)...)

	logger.Debugf("opened %s, nvs %s", sim, cfg.NVS.Path)
	return &device{
		sim:     sim,
		store:   store,
		refs:    refs,
		updater: up,
		logger:  logger,
	}, nil
}

func (d *device) Close() error {
	serr := d.store.Close()
	if err := d.sim.Close(); err != nil {
		return err
	}
	return serr
}

// newLogger returns a logger writing to the command's stderr at the
// configured level, or DEBUG with --verbose.
func newLogger(opts *RootOptions, cmd *cobra.Command) loggo.Logger {
	level := opts.Config.LogLevel()
	if opts.Verbose {
		level = loggo.DEBUG
	}
	ctx := loggo.NewContext(level)
	_ = ctx.AddWriter("stderr", loggo.NewSimpleWriter(cmd.ErrOrStderr(), loggo.DefaultFormatter))
	return ctx.GetLogger("sdupdater")
}
