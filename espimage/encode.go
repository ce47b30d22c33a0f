package espimage

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
)

// Encode builds an image with the given entry point and segments. When
// appendHash is set the SHA-256 of the image is appended after the checksum
// block.
func Encode(entry uint32, segments []Segment, appendHash bool) ([]byte, error) {
	if len(segments) > MaxSegments {
		return nil, fmt.Errorf("%d segments, at most %d allowed", len(segments), MaxSegments)
	}

	size := HeaderSize
	for i, seg := range segments {
		if len(seg.Data)%SegmentAlign != 0 {
			return nil, fmt.Errorf("segment %d length %d not a multiple of %d", i, len(seg.Data), SegmentAlign)
		}
		size += SegmentHeaderSize + len(seg.Data)
	}
	padded := int(paddedLength(int64(size)))
	total := padded
	if appendHash {
		total += DigestSize
	}

	img := make([]byte, HeaderSize, total)
	img[offsetMagic] = Magic
	img[offsetSegmentCount] = byte(len(segments))
	binary.LittleEndian.PutUint32(img[offsetEntryAddress:], entry)
	if appendHash {
		img[offsetHashAppended] = 1
	}

	sum := checksum(ChecksumSeed)
	for _, seg := range segments {
		img = binary.LittleEndian.AppendUint32(img, seg.LoadAddress)
		img = binary.LittleEndian.AppendUint32(img, uint32(len(seg.Data)))
		img = append(img, seg.Data...)
		_, _ = sum.Write(seg.Data)
	}

	img = append(img, make([]byte, padded-size)...)
	img[padded-1] = byte(sum)

	if appendHash {
		digest := sha256.Sum256(img)
		img = append(img, digest[:]...)
	}
	return img, nil
}
