// Package updater installs firmware into the inactive slot of a two-slot
// device and rolls back to a known image without reflashing it.
//
// # Overview
//
// Two operations cover a boot cycle, always in this order:
//   - TryRollback: if the other slot holds exactly the image recorded in
//     the reference store, select it and restart
//   - Apply: stream a new image into the other slot and finalize it
//
// UpdateFromFS runs both against an image file.
//
// # Basic Usage
//
//	dev, err := flash.OpenSim("/var/lib/device")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	store, err := nvs.OpenSQLite("/var/lib/device/nvs.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	up := updater.New(dev, refstore.New(store))
//
//	err = up.UpdateFromFS(ctx, os.DirFS("/mnt/sd"), "/menu.bin", nil)
//	switch {
//	case errors.Is(err, updater.ErrRestarted):
//	    // the menu was already in the other slot
//	case err != nil:
//	    log.Fatal(err)
//	default:
//	    dev.Restart()
//	}
//
// # Progress Tracking
//
// Progress is reported once per percentage point of the declared size:
//
//	up := updater.New(dev, refs,
//	    updater.WithProgressCallback(func(p updater.Progress) {
//	        fmt.Printf("%s %3d%%\n", p.Label, p.Percent)
//	    }),
//	)
//
// A Reporter passed to Apply overrides the configured one for that call.
//
// # Configuration Options
//
//	up := updater.New(dev, refs,
//	    updater.WithLogger(updater.NewLoggoLogger(loggo.GetLogger("sdupdater"))),
//	    updater.WithChunkSize(4096),
//	    updater.WithPrivilegedImage("/menu.bin"),
//	    updater.WithWatchdog(wdt),
//	)
//
// # Error Handling
//
// Apply fails with:
//   - ErrInvalidSize: declared size is not positive
//   - ErrNoSpace: the subsystem refused to begin (wraps *flash.Error)
//   - *FinalizeError: ending the session failed, carries the flash code
//   - ErrIncomplete: ending succeeded but the update is not finished
//
// A source shorter than the declared size is not an error by itself;
// End decides. None of these failures touch the running slot.
//
// TryRollback returns an Outcome. Every outcome other than OutcomeReverted
// leaves the running slot selected.
package updater
