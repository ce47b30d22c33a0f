package updater

import (
	"fmt"

	"github.com/juju/errors"

	"github.com/moffa90/go-sdupdater/flash"
)

const (
	// ErrInvalidSize is returned when the declared image size is not positive.
	ErrInvalidSize = errors.ConstError("invalid image size")

	// ErrNoSpace is returned when the flash subsystem refuses to begin a
	// write session, usually because the image does not fit the slot.
	ErrNoSpace = errors.ConstError("not enough space to begin update")

	// ErrIncomplete is returned when finalization succeeded but the flash
	// subsystem does not report the update as finished. The written slot
	// is not left selected for boot.
	ErrIncomplete = errors.ConstError("update not finished after finalize")

	// ErrNotAFile is returned by UpdateFromFS when the name is a directory.
	ErrNotAFile = errors.ConstError("not a file")

	// ErrEmptyImage is returned by UpdateFromFS for a zero-length file.
	ErrEmptyImage = errors.ConstError("image file is empty")

	// ErrRestarted is returned by UpdateFromFS when a rollback restarted
	// the device instead of updating it.
	ErrRestarted = errors.ConstError("device restarted into rollback slot")
)

// FinalizeError indicates that ending the write session failed. The
// running slot is untouched.
type FinalizeError struct {
	// Code is the flash subsystem error code
	Code flash.ErrorCode

	// Err is the error returned by the subsystem
	Err error
}

func (e *FinalizeError) Error() string {
	return fmt.Sprintf("finalize update: error #%d (%s)", uint8(e.Code), e.Code)
}

func (e *FinalizeError) Unwrap() error {
	return e.Err
}
