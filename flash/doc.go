// Package flash defines the boot/flash subsystem the updater drives and
// provides SimDevice, a directory-backed simulator of a two-slot device.
//
// # Slots
//
// A device has two application partitions, ota_0 and ota_1. Exactly one is
// running; the other is the next update partition. Writing always targets
// the next update partition:
//
//	dev.Begin(size)        // erase the inactive slot, open a write session
//	dev.Write(chunk)       // repeated until size bytes are written
//	dev.End()              // verify the image and select it for next boot
//	dev.IsFinished()       // the session wrote every declared byte
//
// Rollback selects the other slot for the next boot without writing it:
//
//	if dev.CanRollback() {
//	    dev.Rollback()
//	    dev.Restart()
//	}
//
// # Errors
//
// Subsystem failures are reported as *Error, carrying the operation and an
// ErrorCode:
//
//	if err := dev.Begin(size); err != nil {
//	    var fe *flash.Error
//	    if errors.As(err, &fe) && fe.Code == flash.ErrSpace {
//	        // image does not fit the slot
//	    }
//	}
package flash
