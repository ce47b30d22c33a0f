package flash

import (
	"fmt"

	"github.com/juju/errors"
)

// ErrorCode identifies why a subsystem operation failed.
type ErrorCode uint8

// Error codes reported by the flash subsystem.
const (
	// ErrOK indicates no error
	ErrOK ErrorCode = 0

	// ErrWrite indicates a flash write failed
	ErrWrite ErrorCode = 1

	// ErrErase indicates a flash erase failed
	ErrErase ErrorCode = 2

	// ErrRead indicates a flash read failed
	ErrRead ErrorCode = 3

	// ErrSpace indicates the image does not fit the partition
	ErrSpace ErrorCode = 4

	// ErrSize indicates the declared size is invalid
	ErrSize ErrorCode = 5

	// ErrStream indicates the source stream failed
	ErrStream ErrorCode = 6

	// ErrMD5 indicates an MD5 check failed
	ErrMD5 ErrorCode = 7

	// ErrMagicByte indicates the image does not start with the magic byte
	ErrMagicByte ErrorCode = 8

	// ErrActivate indicates the partition could not be selected for boot
	ErrActivate ErrorCode = 9

	// ErrNoPartition indicates no partition is available
	ErrNoPartition ErrorCode = 10

	// ErrBadArgument indicates the call is not valid in the current state
	ErrBadArgument ErrorCode = 11

	// ErrAbort indicates the session was aborted
	ErrAbort ErrorCode = 12

	// ErrUnknown is used when a failure carries no code
	ErrUnknown ErrorCode = 0xFF
)

// ErrBusy is wrapped by Begin when a write session is already open.
const ErrBusy = errors.ConstError("write session already open")

// Error is a failed subsystem operation.
type Error struct {
	// Op is the operation that failed ("begin", "write", "end", ...)
	Op string

	// Code classifies the failure
	Code ErrorCode

	// Err is the underlying cause, if any
	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s failed: %s (%d): %v", e.Op, e.Code, uint8(e.Code), e.Err)
	}
	return fmt.Sprintf("%s failed: %s (%d)", e.Op, e.Code, uint8(e.Code))
}

func (e *Error) Unwrap() error {
	return e.Err
}

// CodeOf returns the ErrorCode carried by err, ErrOK for nil and ErrUnknown
// when err is not an *Error.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ErrOK
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return ErrUnknown
}

// String returns a human-readable name for the code.
func (c ErrorCode) String() string {
	switch c {
	case ErrOK:
		return "no error"
	case ErrWrite:
		return "flash write failed"
	case ErrErase:
		return "flash erase failed"
	case ErrRead:
		return "flash read failed"
	case ErrSpace:
		return "not enough space"
	case ErrSize:
		return "bad size given"
	case ErrStream:
		return "stream read timeout"
	case ErrMD5:
		return "MD5 check failed"
	case ErrMagicByte:
		return "wrong magic byte"
	case ErrActivate:
		return "could not activate the firmware"
	case ErrNoPartition:
		return "partition could not be found"
	case ErrBadArgument:
		return "bad argument"
	case ErrAbort:
		return "aborted"
	default:
		return fmt.Sprintf("unknown error 0x%02X", uint8(c))
	}
}
