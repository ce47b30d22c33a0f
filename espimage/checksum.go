package espimage

// Checksum computes the image checksum over the given segment data: the XOR
// of every byte, seeded with ChecksumSeed.
func Checksum(data ...[]byte) byte {
	sum := checksum(ChecksumSeed)
	for _, d := range data {
		_, _ = sum.Write(d)
	}
	return byte(sum)
}

// checksum accumulates the XOR checksum as an io.Writer so segment data can
// be streamed through it alongside the digest.
type checksum byte

func (c *checksum) Write(p []byte) (int, error) {
	s := byte(*c)
	for _, b := range p {
		s ^= b
	}
	*c = checksum(s)
	return len(p), nil
}

// paddedLength returns the offset just past the checksum byte for an image
// whose segments end at unpadded.
func paddedLength(unpadded int64) int64 {
	return (unpadded + 1 + ChecksumAlign - 1) &^ (ChecksumAlign - 1)
}
