// Copyright 2026 The Nx Authors
// SPDX-License-Identifier: Apache-2.0

package nx

// sectorSize is the alignment boundary, in bytes, for every section and
// block region in the archive.
const sectorSize = 4096

// CompressionTag identifies the algorithm a Block's payload was
// compressed with. Values match the wire encoding in spec §6 exactly;
// do not renumber.
type CompressionTag uint8

const (
	CompressionCopy  CompressionTag = 0
	CompressionZStd  CompressionTag = 1
	CompressionLZ4   CompressionTag = 2
	CompressionBZip3 CompressionTag = 3
)

// compressionTagBits is the width of the Compression field inside a
// Block entry.
const compressionTagBits = 3

func (tag CompressionTag) String() string {
	switch tag {
	case CompressionCopy:
		return "copy"
	case CompressionZStd:
		return "zstd"
	case CompressionLZ4:
		return "lz4"
	case CompressionBZip3:
		return "bzip3"
	default:
		return "unknown"
	}
}

// Valid reports whether tag is one of the four recognized compression
// tags. It does not imply the tag is supported for compression (see
// CompressionBZip3 in compress.go).
func (tag CompressionTag) Valid() bool {
	switch tag {
	case CompressionCopy, CompressionZStd, CompressionLZ4, CompressionBZip3:
		return true
	default:
		return false
	}
}

// maxCompressedSize is the largest value a Block's compressed_size field
// can hold: 29 bits, i.e. 2^29-1 (512 MiB - 1).
const maxCompressedSize = 1<<29 - 1

// Block is one compressed region of the archive payload. Its order in
// the TOC's block array equals its serialization order in the payload.
type Block struct {
	CompressedSize uint32
	Compression    CompressionTag
}
