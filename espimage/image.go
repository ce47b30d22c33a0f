package espimage

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Header is the decoded 24-byte image header.
type Header struct {
	// SegmentCount is the number of segments following the header
	SegmentCount int

	// SPIMode is the flash SPI mode the image was built for
	SPIMode byte

	// SPISpeedSize packs flash speed (low nibble) and size (high nibble)
	SPISpeedSize byte

	// EntryAddress is the address of the application entry point
	EntryAddress uint32

	// ChipID identifies the target chip
	ChipID uint16

	// HashAppended is set when a SHA-256 digest follows the checksum block
	HashAppended bool
}

// Segment is one load segment of an image.
type Segment struct {
	// LoadAddress is where the segment is mapped at boot
	LoadAddress uint32

	// Data is the segment payload; its length must be a multiple of 4
	Data []byte
}

// Metadata describes the image stored in a partition.
// The zero value means the partition holds no usable image.
type Metadata struct {
	// StartAddress is the flash address of the first image byte
	StartAddress uint32

	// Length is the full image length in bytes, including checksum padding
	// and the appended digest
	Length uint32

	// Digest is the SHA-256 of the image up to the appended digest
	Digest Digest

	// EntryAddress is the application entry point from the header
	EntryAddress uint32

	// SegmentCount is the number of segments walked
	SegmentCount int

	// HashAppended reports whether the image carries its own digest
	HashAppended bool
}

// Valid reports whether m describes a usable image.
func (m Metadata) Valid() bool {
	return m.Length > 0
}

// ParseHeader decodes an image header.
func ParseHeader(data []byte) (Header, error) {
	if len(data) < HeaderSize {
		return Header{}, &FormatError{
			Reason: fmt.Sprintf("header is %d bytes, want %d", len(data), HeaderSize),
		}
	}
	if data[offsetMagic] != Magic {
		return Header{}, &FormatError{
			Offset: offsetMagic,
			Reason: fmt.Sprintf("bad magic byte 0x%02X, want 0x%02X", data[offsetMagic], Magic),
		}
	}

	h := Header{
		SegmentCount: int(data[offsetSegmentCount]),
		SPIMode:      data[offsetSPIMode],
		SPISpeedSize: data[offsetSPISpeedSize],
		EntryAddress: binary.LittleEndian.Uint32(data[offsetEntryAddress:]),
		ChipID:       binary.LittleEndian.Uint16(data[offsetChipID:]),
		HashAppended: data[offsetHashAppended] != 0,
	}
	if h.SegmentCount > MaxSegments {
		return Header{}, &FormatError{
			Offset: offsetSegmentCount,
			Reason: fmt.Sprintf("%d segments, at most %d allowed", h.SegmentCount, MaxSegments),
		}
	}
	return h, nil
}

// Parse walks the image stored in r, which must not extend past limit bytes,
// and returns its metadata. start is the flash address of r's first byte and
// is only recorded in the result.
//
// The walk is a single read-only pass: header, every segment, the checksum
// block and, when present, the appended digest. Checksum and digest
// mismatches are reported as *ChecksumError and *DigestError.
func Parse(r io.ReaderAt, start uint32, limit int64) (Metadata, error) {
	if r == nil {
		return Metadata{}, errors.New("nil image reader")
	}
	if limit < HeaderSize {
		return Metadata{}, &FormatError{Reason: fmt.Sprintf("region of %d bytes cannot hold a header", limit)}
	}

	hasher := sha256.New()

	hdr := make([]byte, HeaderSize)
	if err := readFull(r, hdr, 0); err != nil {
		return Metadata{}, fmt.Errorf("read header: %w", err)
	}
	h, err := ParseHeader(hdr)
	if err != nil {
		return Metadata{}, err
	}
	hasher.Write(hdr)

	sum := checksum(ChecksumSeed)
	body := io.MultiWriter(hasher, &sum)

	offset := int64(HeaderSize)
	segHdr := make([]byte, SegmentHeaderSize)
	for i := 0; i < h.SegmentCount; i++ {
		if offset+SegmentHeaderSize > limit {
			return Metadata{}, &FormatError{Offset: offset, Reason: fmt.Sprintf("segment %d header past end of partition", i)}
		}
		if err := readFull(r, segHdr, offset); err != nil {
			return Metadata{}, fmt.Errorf("read segment %d header: %w", i, err)
		}
		hasher.Write(segHdr)

		dataLen := int64(binary.LittleEndian.Uint32(segHdr[4:]))
		if dataLen%SegmentAlign != 0 {
			return Metadata{}, &FormatError{Offset: offset, Reason: fmt.Sprintf("segment %d length %d not a multiple of %d", i, dataLen, SegmentAlign)}
		}
		offset += SegmentHeaderSize
		if offset+dataLen > limit {
			return Metadata{}, &FormatError{Offset: offset, Reason: fmt.Sprintf("segment %d data past end of partition", i)}
		}

		if _, err := io.Copy(body, io.NewSectionReader(r, offset, dataLen)); err != nil {
			return Metadata{}, fmt.Errorf("read segment %d data: %w", i, err)
		}
		offset += dataLen
	}

	length := paddedLength(offset)
	if length > limit {
		return Metadata{}, &FormatError{Offset: offset, Reason: "checksum block past end of partition"}
	}
	tail := make([]byte, length-offset)
	if err := readFull(r, tail, offset); err != nil {
		return Metadata{}, fmt.Errorf("read checksum: %w", err)
	}
	hasher.Write(tail)

	if stored := tail[len(tail)-1]; stored != byte(sum) {
		return Metadata{}, &ChecksumError{Expected: stored, Actual: byte(sum)}
	}

	var digest Digest
	copy(digest[:], hasher.Sum(nil))

	if h.HashAppended {
		if length+DigestSize > limit {
			return Metadata{}, &FormatError{Offset: length, Reason: "appended digest past end of partition"}
		}
		var stored Digest
		if err := readFull(r, stored[:], length); err != nil {
			return Metadata{}, fmt.Errorf("read appended digest: %w", err)
		}
		if !stored.Equal(digest) {
			return Metadata{}, &DigestError{Expected: stored, Actual: digest}
		}
		length += DigestSize
	}

	return Metadata{
		StartAddress: start,
		Length:       uint32(length),
		Digest:       digest,
		EntryAddress: h.EntryAddress,
		SegmentCount: h.SegmentCount,
		HashAppended: h.HashAppended,
	}, nil
}

// ReadMetadata is Parse without the error: a nil reader or an image that
// fails to verify yields the zero Metadata.
func ReadMetadata(r io.ReaderAt, start uint32, limit int64) Metadata {
	if r == nil {
		return Metadata{}
	}
	meta, err := Parse(r, start, limit)
	if err != nil {
		return Metadata{}
	}
	return meta
}

// readFull reads exactly len(buf) bytes at off. An io.EOF that accompanies
// a full read is not an error.
func readFull(r io.ReaderAt, buf []byte, off int64) error {
	n, err := r.ReadAt(buf, off)
	if n == len(buf) {
		return nil
	}
	if err == nil || err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	return err
}
