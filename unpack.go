// Copyright 2026 The Nx Authors
// SPDX-License-Identifier: Apache-2.0

package nx

import "fmt"

// archiveState is the unpacking state machine spec §4.10 describes.
// Transitions only advance on a successful parse step; a failure
// leaves the Archive at the last successful state and surfaces the
// error to the caller.
type archiveState int

const (
	stateMapped archiveState = iota
	stateHeaderParsed
	stateTocParsed
	statePoolDecoded
	stateReady
)

// OpenOptions configures Open.
type OpenOptions struct {
	// Hardened enables the validation pass described in spec §4.8:
	// every FileEntry's block references, size accounting, and
	// algorithm tag are checked before the archive is usable.
	Hardened bool

	// VerifyHashes opts into per-file hash verification against the
	// TOC's recorded hash64 during extraction (spec §4.9's opt-in
	// verification, since magic-less zstd frames carry no in-frame
	// checksum).
	VerifyHashes bool
}

// Archive is an opened, parsed Nx archive. Once Ready, it supports
// concurrent read-only queries: List, Find, and Extract may all be
// called from multiple goroutines simultaneously.
type Archive struct {
	state archiveState

	file                   *mappedFile
	header                 fileHeader
	toc                    toc
	paths                  []string
	dict                   *DictionarySection
	userData               *UserDataSection
	options                OpenOptions
	blockOffsets           []int64 // file offset of each block's compressed payload
	blockDecompressedSizes []int64
	pathToIndex            map[string]int
}

// Open memory-maps path, parses the file header and table of contents,
// decompresses the string pool, and — if opts.Hardened is set — runs
// the hardened validation pass. On any failure the returned error
// identifies exactly which stage failed; no partial Archive is
// returned.
func Open(path string, opts OpenOptions) (*Archive, error) {
	file, err := openMappedFile(path)
	if err != nil {
		return nil, err
	}

	archive := &Archive{file: file, state: stateMapped, options: opts}

	header, err := decodeFileHeader(file.Bytes())
	if err != nil {
		file.Close()
		return nil, err
	}
	if header.HeaderRegionSize() > file.Size() {
		file.Close()
		return nil, &MalformedHeaderError{Reason: "header_page_count exceeds file size"}
	}
	// Pack writes format version 1, the only version this build parses;
	// the TOC discriminant is interpreted only after this check.
	if header.FormatVersion != 1 {
		file.Close()
		return nil, &UnsupportedFormatVersionError{Version: header.FormatVersion}
	}
	archive.header = header
	archive.state = stateHeaderParsed

	region := file.Bytes()[fileHeaderSize:header.HeaderRegionSize()]
	decodedToc, err := decodeToc(region)
	if err != nil {
		file.Close()
		return nil, err
	}
	if err := validateBlockReferences(decodedToc, header); err != nil {
		file.Close()
		return nil, err
	}
	archive.toc = decodedToc
	archive.state = stateTocParsed

	paths, err := decodeStringPool(decodedToc.PoolBytes, len(decodedToc.Files))
	if err != nil {
		file.Close()
		return nil, err
	}
	archive.paths = paths
	archive.state = statePoolDecoded

	sectionOffset := decodedToc.EndOffset
	if header.HasDictionary {
		dict, consumed, err := decodeDictionarySection(region[sectionOffset:], true)
		if err != nil {
			file.Close()
			return nil, err
		}
		archive.dict = dict
		sectionOffset += consumed
	}
	if header.HasUserData {
		userData, err := decodeUserDataSection(region[sectionOffset:])
		if err != nil {
			file.Close()
			return nil, err
		}
		archive.userData = userData
	}

	archive.blockOffsets = computeBlockOffsets(header, decodedToc.Blocks)
	archive.blockDecompressedSizes = computeBlockDecompressedSizes(header, decodedToc.Files, len(decodedToc.Blocks))
	archive.pathToIndex = make(map[string]int, len(decodedToc.Files))
	for i, entry := range decodedToc.Files {
		if int(entry.PathIndex) >= len(paths) {
			file.Close()
			return nil, &MalformedArchiveError{Reason: "file entry path_index out of range"}
		}
		archive.pathToIndex[paths[entry.PathIndex]] = i
	}

	if opts.Hardened {
		if err := archive.validateHardened(); err != nil {
			file.Close()
			return nil, err
		}
	}
	archive.state = stateReady

	return archive, nil
}

// Close unmaps the underlying archive file. Queries made after Close
// are invalid.
func (a *Archive) Close() error {
	return a.file.Close()
}

// UserData returns the archive's decompressed opaque user-data payload,
// or (nil, false) if the archive carries none.
func (a *Archive) UserData() ([]byte, bool) {
	if a.userData == nil {
		return nil, false
	}
	decompressed, err := decompressBlock(a.userData.Payload, CompressionZStd, int(a.userData.DecompressedSize), nil)
	if err != nil {
		return nil, false
	}
	return decompressed, true
}

// validateBlockReferences applies the always-on bounds checks spec
// §4.8 requires even outside hardened mode: no file may reference a
// block index at or beyond BlockCount, so extraction never indexes
// past the parsed block array regardless of the Hardened flag.
func validateBlockReferences(t toc, header fileHeader) error {
	blockCount := uint32(len(t.Blocks))
	chunkSize := header.ChunkSize()
	for _, entry := range t.Files {
		count := entry.ChunkCount(chunkSize)
		if entry.FirstBlockIndex >= blockCount && count > 0 {
			return &MalformedArchiveError{Reason: fmt.Sprintf("file entry references block %d, BlockCount is %d", entry.FirstBlockIndex, blockCount)}
		}
		if entry.FirstBlockIndex+count > blockCount {
			return &MalformedArchiveError{Reason: "chunk run extends past BlockCount"}
		}
	}
	return nil
}

// validateHardened implements spec §4.8's hardened-mode checks:
// referenced blocks in range, chunk runs don't overlap other files,
// compressed_size fits the mapped region, and every algorithm tag is
// recognized. A SOLID block's decompressed size is derived from the
// entries that reference it, so a SOLID file's slice is not checked
// against a separate size here; extraction bounds-checks the slice
// against the decompressed payload.
func (a *Archive) validateHardened() error {
	chunkSize := a.header.ChunkSize()
	claimed := make([]bool, len(a.toc.Blocks))   // blocks owned by a chunked file
	solidUsed := make([]bool, len(a.toc.Blocks)) // blocks referenced by a SOLID file

	for _, block := range a.toc.Blocks {
		if !block.Compression.Valid() {
			return &MalformedArchiveError{Reason: fmt.Sprintf("block has unrecognized compression tag %d", block.Compression)}
		}
		if block.CompressedSize > maxCompressedSize {
			return &MalformedArchiveError{Reason: "block compressed_size exceeds 29-bit maximum"}
		}
	}

	for _, entry := range a.toc.Files {
		count := entry.ChunkCount(chunkSize)
		for i := uint32(0); i < count; i++ {
			blockIndex := entry.FirstBlockIndex + i
			if int(blockIndex) >= len(a.toc.Blocks) {
				return &MalformedArchiveError{Reason: "chunk run references out-of-range block"}
			}
			if entry.IsChunked(chunkSize) {
				if claimed[blockIndex] || solidUsed[blockIndex] {
					return &MalformedArchiveError{Reason: "chunk run overlaps another file's blocks"}
				}
				claimed[blockIndex] = true
			} else {
				if claimed[blockIndex] {
					return &MalformedArchiveError{Reason: "chunk run overlaps another file's blocks"}
				}
				solidUsed[blockIndex] = true
			}
		}
		if !entry.IsChunked(chunkSize) {
			block := a.toc.Blocks[entry.FirstBlockIndex]
			if entry.DecompressedBlockOffset < 0 {
				return &MalformedArchiveError{Reason: "negative decompressed_block_offset"}
			}
			_ = block // decompressed size of a SOLID block is implicit and checked at extraction time
		}
	}

	blockOffset := int64(a.header.HeaderRegionSize())
	for i, block := range a.toc.Blocks {
		if blockOffset+int64(block.CompressedSize) > a.file.Size() {
			return &MalformedArchiveError{Reason: fmt.Sprintf("block %d compressed_size exceeds mapped region", i)}
		}
		blockOffset = alignUp64(blockOffset+int64(block.CompressedSize), sectorSize)
	}

	return nil
}

// computeBlockOffsets returns, for each block, the file offset of its
// compressed payload. Every block's region (payload plus padding) is
// rounded up to the next 4096-byte boundary, per spec §6.
func computeBlockOffsets(header fileHeader, blocks []Block) []int64 {
	offsets := make([]int64, len(blocks))
	cursor := header.HeaderRegionSize()
	for i, block := range blocks {
		offsets[i] = cursor
		cursor = alignUp64(cursor+int64(block.CompressedSize), sectorSize)
	}
	return offsets
}

// computeBlockDecompressedSizes derives each block's decompressed size
// from the file entries that reference it, since spec §3 defines it as
// implicit rather than stored on the wire: for a SOLID block it is the
// maximum (offset+size) over every file sharing it, and for a chunk
// block it is that chunk's slice of its owning file (chunkSize, or the
// remainder on the file's last chunk).
func computeBlockDecompressedSizes(header fileHeader, files []FileEntry, blockCount int) []int64 {
	sizes := make([]int64, blockCount)
	chunkSize := header.ChunkSize()

	for _, entry := range files {
		if entry.IsChunked(chunkSize) {
			remaining := entry.DecompressedSize
			count := entry.ChunkCount(chunkSize)
			for i := uint32(0); i < count; i++ {
				want := chunkSize
				if want > remaining {
					want = remaining
				}
				blockIndex := entry.FirstBlockIndex + i
				if int(blockIndex) < len(sizes) {
					sizes[blockIndex] = want
				}
				remaining -= want
			}
			continue
		}

		end := entry.DecompressedBlockOffset + entry.DecompressedSize
		if int(entry.FirstBlockIndex) < len(sizes) && end > sizes[entry.FirstBlockIndex] {
			sizes[entry.FirstBlockIndex] = end
		}
	}
	return sizes
}

func alignUp64(offset int64, alignment int64) int64 {
	remainder := offset % alignment
	if remainder == 0 {
		return offset
	}
	return offset + (alignment - remainder)
}
