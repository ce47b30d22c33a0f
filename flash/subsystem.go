package flash

// Writer streams an image into the next update partition.
type Writer interface {
	// Begin erases the next update partition and opens a write session
	// for exactly size bytes.
	Begin(size int64) error

	// Write appends p to the open session.
	Write(p []byte) (int, error)

	// End closes the session, verifies the written image and selects it
	// for the next boot.
	End() error

	// IsFinished reports whether the last session wrote every declared byte.
	IsFinished() bool

	// Abort discards the open or just-ended session and keeps the running
	// partition selected for the next boot.
	Abort() error
}

// BootControl selects which partition boots.
type BootControl interface {
	// ActivePartition returns the running partition.
	ActivePartition() *Partition

	// NextUpdatePartition returns the partition an update or rollback
	// would boot into.
	NextUpdatePartition() *Partition

	// CanRollback reports whether the next update partition holds a
	// bootable image and no write session is open.
	CanRollback() bool

	// Rollback selects the next update partition for the next boot.
	Rollback() error

	// Restart reboots the device. On hardware it does not return.
	Restart() error
}

// Subsystem is the boot/flash layer of a two-slot device.
type Subsystem interface {
	Writer
	BootControl
}
