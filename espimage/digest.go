package espimage

import (
	"encoding/hex"
	"fmt"
)

// Digest is the SHA-256 fingerprint of an image.
type Digest [DigestSize]byte

// Equal reports whether d and other hold the same 32 bytes. Comparison
// stops at the first differing byte.
func (d Digest) Equal(other Digest) bool {
	for i := 0; i < DigestSize; i++ {
		if d[i] != other[i] {
			return false
		}
	}
	return true
}

// IsZero reports whether every byte of d is zero.
func (d Digest) IsZero() bool {
	return d.Equal(Digest{})
}

// String returns the lowercase hex encoding of d.
func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// ParseDigest parses a 64-character hex string into a Digest.
func ParseDigest(s string) (Digest, error) {
	var d Digest
	decoded, err := hex.DecodeString(s)
	if err != nil {
		return d, fmt.Errorf("parsing digest: %w", err)
	}
	if len(decoded) != DigestSize {
		return d, fmt.Errorf("digest is %d bytes, want %d", len(decoded), DigestSize)
	}
	copy(d[:], decoded)
	return d, nil
}
