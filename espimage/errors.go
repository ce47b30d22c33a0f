package espimage

import "fmt"

// FormatError indicates that the image layout is invalid at the given offset.
type FormatError struct {
	Offset int64
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("invalid image at offset 0x%X: %s", e.Offset, e.Reason)
}

// ChecksumError indicates that the stored checksum byte does not match the
// XOR of the segment data.
type ChecksumError struct {
	Expected byte
	Actual   byte
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("image checksum mismatch: stored 0x%02X, computed 0x%02X",
		e.Expected, e.Actual)
}

// DigestError indicates that the appended SHA-256 does not match the image.
type DigestError struct {
	Expected Digest
	Actual   Digest
}

func (e *DigestError) Error() string {
	return fmt.Sprintf("image digest mismatch: stored %s, computed %s", e.Expected, e.Actual)
}
