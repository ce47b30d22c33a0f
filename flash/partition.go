package flash

import (
	"fmt"
	"io"

	"github.com/moffa90/go-sdupdater/espimage"
)

// Partition is a read-only view of one application slot.
// Partitions are handed out by a Subsystem; callers never create the slots
// they describe.
type Partition struct {
	// Label is the partition name, ota_0 or ota_1
	Label string

	// Address is the flash offset of the partition
	Address uint32

	// Size is the partition capacity in bytes
	Size uint32

	data io.ReaderAt
}

// NewPartition describes a slot whose bytes are read from data.
func NewPartition(label string, address, size uint32, data io.ReaderAt) *Partition {
	return &Partition{
		Label:   label,
		Address: address,
		Size:    size,
		data:    data,
	}
}

// ReadAt reads from the partition. Reads past Size, or from a partition
// without backing data, return io.EOF.
func (p *Partition) ReadAt(b []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("negative offset %d", off)
	}
	if p.data == nil || off >= int64(p.Size) {
		return 0, io.EOF
	}
	if remain := int64(p.Size) - off; int64(len(b)) > remain {
		n, err := p.data.ReadAt(b[:remain], off)
		if err == nil {
			err = io.EOF
		}
		return n, err
	}
	return p.data.ReadAt(b, off)
}

// Metadata walks the image held by the partition. A nil partition, one
// without backing data, or an image that fails verification yields the
// zero Metadata.
func (p *Partition) Metadata() espimage.Metadata {
	if p == nil || p.data == nil {
		return espimage.Metadata{}
	}
	return espimage.ReadMetadata(p, p.Address, int64(p.Size))
}

func (p *Partition) String() string {
	if p == nil {
		return "<none>"
	}
	return fmt.Sprintf("%s@0x%X", p.Label, p.Address)
}
