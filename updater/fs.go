package updater

import (
	"context"
	"fmt"
	"io/fs"
	"strings"
)

// UpdateFromFS installs the image name from fsys, trying a rollback first
// because booting an identical image from the other slot is faster than
// flashing it.
//
// When the rollback restarts the device ErrRestarted is returned and the
// file is not read. Otherwise the file must exist, must not be a directory
// and must not be empty. The image label is name as given, so "/menu.bin"
// matches the default privileged image; a leading slash is stripped when
// opening from fsys.
//
// Example:
//
//	err := up.UpdateFromFS(ctx, os.DirFS("/mnt/sd"), "/menu.bin", nil)
func (u *Updater) UpdateFromFS(ctx context.Context, fsys fs.FS, name string, reporter Reporter) error {
	outcome, err := u.TryRollback(ctx)
	if outcome.Reverted() {
		if err != nil {
			return err
		}
		return ErrRestarted
	}
	if err != nil {
		u.logError("rollback attempt failed, continuing with update", "error", err)
	}

	f, err := fsys.Open(strings.TrimPrefix(name, "/"))
	if err != nil {
		u.logError("could not load binary", "name", name, "error", err)
		return fmt.Errorf("open %s: %w", name, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", name, err)
	}
	if info.IsDir() {
		u.logError("not a file", "name", name)
		return fmt.Errorf("%s: %w", name, ErrNotAFile)
	}
	if info.Size() == 0 {
		u.logError("file is empty", "name", name)
		return fmt.Errorf("%s: %w", name, ErrEmptyImage)
	}

	if wd := u.config.Watchdog; wd != nil {
		wd.Disable()
		defer wd.Enable()
	}

	u.logInfo("starting update", "name", name, "size", info.Size())
	_, err = u.Apply(ctx, f, info.Size(), name, reporter)
	return err
}
