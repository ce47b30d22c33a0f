// Package espimage walks ESP application images stored in a flash partition.
//
// # Image Format
//
// An application image is a 24-byte header followed by up to 16 segments,
// a checksum block and an optional SHA-256 digest:
//
//	Header:   [MAGIC 0xE9][SEGMENTS][SPI_MODE][SPI_SPEED_SIZE][ENTRY(4)]...[HASH_APPENDED]
//	Segment:  [LOAD_ADDR(4)][DATA_LEN(4)][DATA...]
//	Checksum: [ZERO PADDING...][XOR CHECKSUM]   (ends on a 16-byte boundary)
//	Digest:   [SHA-256(32)]                      (only when HASH_APPENDED is 1)
//
// All multi-byte fields are little-endian. The checksum is the XOR of every
// segment data byte seeded with 0xEF. The digest covers every byte from the
// start of the image through the checksum block.
//
// # Usage
//
// Read the length and digest of the image held by a partition:
//
//	meta, err := espimage.Parse(partition, partition.Address, int64(partition.Size))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("image: %d bytes, sha256 %s\n", meta.Length, meta.Digest)
//
// ReadMetadata is the infallible form used by the updater: any failure
// yields the zero Metadata, whose Length of 0 means "no usable image".
//
// Build an image, for tests or a simulator:
//
//	img, err := espimage.Encode(0x400d0018, []espimage.Segment{
//	    {LoadAddress: 0x3f400020, Data: rodata},
//	    {LoadAddress: 0x400d0020, Data: text},
//	}, true)
package espimage
