// Copyright 2026 The Nx Authors
// SPDX-License-Identifier: Apache-2.0

package nx

// FileEntry describes one packed file's placement inside the archive.
// Hash is present unless the active TOC variant has no hash field, in
// which case HasHash is false and callers must not treat a zero Hash
// as meaningful.
type FileEntry struct {
	Path    string
	Hash    uint64
	HasHash bool

	DecompressedSize int64

	// DecompressedBlockOffset is the byte offset of this file's data
	// inside the decompressed payload of FirstBlockIndex. Meaningful
	// only for SOLID files; always zero for chunked files.
	DecompressedBlockOffset int64

	PathIndex       uint32
	FirstBlockIndex uint32
}

// IsChunked reports whether e spans more than one block, i.e. its
// decompressed size exceeded the archive's chunk_size at pack time.
func (e FileEntry) IsChunked(chunkSize int64) bool {
	return e.DecompressedSize > chunkSize
}

// ChunkCount returns the number of consecutive blocks e occupies. For a
// SOLID file this is always 1.
func (e FileEntry) ChunkCount(chunkSize int64) uint32 {
	if !e.IsChunked(chunkSize) {
		return 1
	}
	return uint32(ceilDiv(e.DecompressedSize, chunkSize))
}

func ceilDiv(a, b int64) int64 {
	if b <= 0 {
		return 0
	}
	return (a + b - 1) / b
}
