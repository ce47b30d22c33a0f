package espimage

// Image layout constants.
const (
	// Magic is the first byte of every application image (0xE9)
	Magic = 0xE9

	// HeaderSize is the size of the image header in bytes
	HeaderSize = 24

	// SegmentHeaderSize is the size of a segment header:
	// LOAD_ADDR(4) + DATA_LEN(4)
	SegmentHeaderSize = 8

	// MaxSegments is the maximum number of segments in one image
	MaxSegments = 16

	// ChecksumAlign is the block size the checksum byte is padded to
	ChecksumAlign = 16

	// ChecksumSeed is the initial value of the XOR checksum
	ChecksumSeed = 0xEF

	// SegmentAlign is the required alignment of segment data lengths
	SegmentAlign = 4

	// DigestSize is the size of an image digest in bytes
	DigestSize = 32
)

// Header field offsets.
const (
	offsetMagic        = 0
	offsetSegmentCount = 1
	offsetSPIMode      = 2
	offsetSPISpeedSize = 3
	offsetEntryAddress = 4
	offsetChipID       = 12
	offsetHashAppended = 23
)
