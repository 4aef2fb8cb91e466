// Copyright 2026 The Nx Authors
// SPDX-License-Identifier: Apache-2.0

package nx

import (
	"encoding/binary"

	"github.com/Sewer56/sewer56-archives-nx/bitio"
)

// tocDiscriminant identifies which table-of-contents layout follows the
// 8-byte TOC header. Cross-version detection is driven by
// fileHeader.FormatVersion rather than this discriminant alone — two
// discriminant values can carry different semantics across format
// versions (spec Open Question 9(b)); callers must check FormatVersion
// before trusting a discriminant.
type tocDiscriminant uint8

const (
	// tocPresetStandard is the 20-byte FileEntry preset carrying a
	// hash field. This is the only preset required by spec §4.2's
	// "at minimum" clause.
	tocPresetStandard tocDiscriminant = 0

	// tocPresetNoHash is identical to tocPresetStandard but omits the
	// hash field, producing a 12-byte FileEntry.
	tocPresetNoHash tocDiscriminant = 1

	// tocFlexible64 declares its own bit widths for FileCount,
	// BlockCount, pool size, and per-entry DecompressedBlockOffset in
	// an extended header. Recognized as a named constant; this build
	// has no verified encoder for it (see DESIGN.md), so it is
	// rejected with UnsupportedTocVersion rather than parsed against
	// an unverified layout.
	tocFlexible64 tocDiscriminant = 2

	// tocPreset64Size and tocPresetTiny are recognized named constants
	// for presets this build does not parse: the former widens
	// decompressed_size to a full 64 bits for every entry, the latter
	// is tuned for SOLID-less tiny packages. Both are rejected with
	// UnsupportedTocVersion rather than misparsed, per spec §4.2.
	tocPreset64Size tocDiscriminant = 3
	tocPresetTiny   tocDiscriminant = 4
)

// tocHeaderSize is the fixed 8-byte TOC header spec §4.2/§6 describe:
// discriminant, FileCount, BlockCount, and a reserved byte.
const tocHeaderSize = 8

const (
	tocDiscriminantBits = 8
	tocFileCountBits    = 24
	tocBlockCountBits   = 24
	tocReservedBits     = 64 - tocDiscriminantBits - tocFileCountBits - tocBlockCountBits
)

// tocPoolSizeFieldSize is a 4-byte little-endian field this
// implementation places immediately after the 8-byte TOC header,
// giving the string pool's compressed byte length. spec §4.2 treats
// the pool's bound as either a later-revision header field or an
// earlier-revision header-declared buffer; this field is the concrete
// choice made here for both fixed presets (see DESIGN.md).
const tocPoolSizeFieldSize = 4

// blockEntrySize is the fixed on-wire size of one Block entry:
// compressed_size (29 bits) + compression tag (3 bits), byte-aligned
// to 4 bytes.
const blockEntrySize = 4

// fileEntryEntrySize returns the fixed on-wire size, in bytes, of one
// FileEntry for the given preset. Only meaningful for the two
// fixed-width presets.
func fileEntryEntrySize(discriminant tocDiscriminant) int {
	switch discriminant {
	case tocPresetStandard:
		return 20
	case tocPresetNoHash:
		return 12
	default:
		return 0
	}
}

// fileEntryAlignment returns the required start alignment, in bytes,
// of the FileEntry array for the given preset (spec §4.2/§6: "4 or 8
// bytes depending on variant").
func fileEntryAlignment(discriminant tocDiscriminant) int {
	switch discriminant {
	case tocPresetStandard:
		return 8
	default:
		return 4
	}
}

// toc is the fully decoded table of contents.
type toc struct {
	Discriminant tocDiscriminant
	Files        []FileEntry
	Blocks       []Block
	PoolBytes    []byte // compressed string pool payload

	// EndOffset is the byte offset, relative to the buffer passed to
	// decodeToc, of the first byte after PoolBytes — where an optional
	// DictionarySection or UserDataSection begins.
	EndOffset int
}

func alignUp(offset, alignment int) int {
	if alignment <= 1 {
		return offset
	}
	remainder := offset % alignment
	if remainder == 0 {
		return offset
	}
	return offset + (alignment - remainder)
}

// decodeToc parses the TOC region starting at buf[0], which must begin
// immediately after the FileHeader.
func decodeToc(buf []byte) (toc, error) {
	if len(buf) < tocHeaderSize {
		return toc{}, &MalformedArchiveError{Reason: "buffer shorter than TOC header"}
	}

	r := bitio.NewReader(buf[:tocHeaderSize])
	discriminantBits, err := r.ReadBits(tocDiscriminantBits)
	if err != nil {
		return toc{}, &MalformedArchiveError{Reason: "truncated TOC discriminant"}
	}
	discriminant := tocDiscriminant(discriminantBits)

	switch discriminant {
	case tocPresetStandard, tocPresetNoHash:
		return decodeFixedToc(buf, discriminant, r)
	case tocFlexible64, tocPreset64Size, tocPresetTiny:
		// Recognized named constants; this build has no verified
		// encoder for any of the three, so they are rejected rather
		// than parsed against a hand-invented layout (see DESIGN.md).
		return toc{}, &UnsupportedTocVersionError{Version: uint8(discriminant)}
	default:
		return toc{}, &UnsupportedTocVersionError{Version: uint8(discriminant)}
	}
}

func decodeFixedToc(buf []byte, discriminant tocDiscriminant, r *bitio.Reader) (toc, error) {
	fileCount, err := r.ReadBits(tocFileCountBits)
	if err != nil {
		return toc{}, &MalformedArchiveError{Reason: "truncated FileCount"}
	}
	blockCount, err := r.ReadBits(tocBlockCountBits)
	if err != nil {
		return toc{}, &MalformedArchiveError{Reason: "truncated BlockCount"}
	}
	if _, err := r.ReadBits(tocReservedBits); err != nil {
		return toc{}, &MalformedArchiveError{Reason: "truncated TOC reserved bits"}
	}

	offset := tocHeaderSize
	if offset+tocPoolSizeFieldSize > len(buf) {
		return toc{}, &MalformedArchiveError{Reason: "truncated pool size field"}
	}
	poolCompressedSize := int(binary.LittleEndian.Uint32(buf[offset : offset+4]))
	offset += tocPoolSizeFieldSize

	entrySize := fileEntryEntrySize(discriminant)
	offset = alignUp(offset, fileEntryAlignment(discriminant))
	entries, newOffset, err := decodeFixedFileEntries(buf, offset, int(fileCount), discriminant, entrySize)
	if err != nil {
		return toc{}, err
	}
	offset = newOffset

	offset = alignUp(offset, 4)
	blocks, newOffset, err := decodeBlocks(buf, offset, int(blockCount))
	if err != nil {
		return toc{}, err
	}
	offset = newOffset

	offset = alignUp(offset, 4)
	if offset+poolCompressedSize > len(buf) {
		return toc{}, &MalformedArchiveError{Reason: "string pool extends past mapped region"}
	}
	pool := buf[offset : offset+poolCompressedSize]

	return toc{Discriminant: discriminant, Files: entries, Blocks: blocks, PoolBytes: pool, EndOffset: offset + poolCompressedSize}, nil
}

func decodeFixedFileEntries(buf []byte, offset, count int, discriminant tocDiscriminant, entrySize int) ([]FileEntry, int, error) {
	entries := make([]FileEntry, 0, count)
	hasHash := discriminant == tocPresetStandard

	for i := 0; i < count; i++ {
		if offset+entrySize > len(buf) {
			return nil, 0, &MalformedArchiveError{Reason: "truncated FileEntry array"}
		}
		entryBuf := buf[offset : offset+entrySize]
		pos := 0

		var hash uint64
		if hasHash {
			hash = binary.LittleEndian.Uint64(entryBuf[pos : pos+8])
			pos += 8
		}
		decompressedSize := binary.LittleEndian.Uint32(entryBuf[pos : pos+4])
		pos += 4
		decompressedBlockOffset := binary.LittleEndian.Uint32(entryBuf[pos : pos+4])
		pos += 4
		pathIndex := binary.LittleEndian.Uint16(entryBuf[pos : pos+2])
		pos += 2
		firstBlockIndex := binary.LittleEndian.Uint16(entryBuf[pos : pos+2])

		entries = append(entries, FileEntry{
			Hash:                    hash,
			HasHash:                 hasHash,
			DecompressedSize:        int64(decompressedSize),
			DecompressedBlockOffset: int64(decompressedBlockOffset),
			PathIndex:               uint32(pathIndex),
			FirstBlockIndex:         uint32(firstBlockIndex),
		})
		offset += entrySize
	}
	return entries, offset, nil
}

func decodeBlocks(buf []byte, offset, count int) ([]Block, int, error) {
	blocks := make([]Block, 0, count)
	for i := 0; i < count; i++ {
		if offset+blockEntrySize > len(buf) {
			return nil, 0, &MalformedArchiveError{Reason: "truncated Block array"}
		}
		raw := binary.LittleEndian.Uint32(buf[offset : offset+blockEntrySize])
		compressedSize := raw & maxCompressedSize
		tag := CompressionTag(raw >> 29)
		blocks = append(blocks, Block{CompressedSize: compressedSize, Compression: tag})
		offset += blockEntrySize
	}
	return blocks, offset, nil
}

// encodeFixedToc serializes files and blocks under tocPresetStandard
// (hasHash true) or tocPresetNoHash (hasHash false), followed by the
// already-compressed pool bytes. Used by the packing executor.
func encodeFixedToc(discriminant tocDiscriminant, files []FileEntry, blocks []Block, poolBytes []byte) ([]byte, error) {
	w := bitio.NewWriter()
	if err := w.WriteBits(uint64(discriminant), tocDiscriminantBits); err != nil {
		return nil, err
	}
	if err := w.WriteBits(uint64(len(files)), tocFileCountBits); err != nil {
		return nil, err
	}
	if err := w.WriteBits(uint64(len(blocks)), tocBlockCountBits); err != nil {
		return nil, err
	}
	if err := w.WriteBits(0, tocReservedBits); err != nil {
		return nil, err
	}
	w.Align()

	out := w.Bytes()
	var poolSizeField [4]byte
	binary.LittleEndian.PutUint32(poolSizeField[:], uint32(len(poolBytes)))
	out = append(out, poolSizeField[:]...)

	out = padTo(out, fileEntryAlignment(discriminant))
	hasHash := discriminant == tocPresetStandard
	for _, entry := range files {
		out = appendFixedFileEntry(out, entry, hasHash)
	}

	out = padTo(out, 4)
	for _, block := range blocks {
		var raw uint32
		raw = uint32(block.Compression)<<29 | (block.CompressedSize & maxCompressedSize)
		var entryBuf [4]byte
		binary.LittleEndian.PutUint32(entryBuf[:], raw)
		out = append(out, entryBuf[:]...)
	}

	out = padTo(out, 4)
	out = append(out, poolBytes...)
	return out, nil
}

func appendFixedFileEntry(out []byte, entry FileEntry, hasHash bool) []byte {
	if hasHash {
		var hashBuf [8]byte
		binary.LittleEndian.PutUint64(hashBuf[:], entry.Hash)
		out = append(out, hashBuf[:]...)
	}
	var sizeBuf [4]byte
	binary.LittleEndian.PutUint32(sizeBuf[:], uint32(entry.DecompressedSize))
	out = append(out, sizeBuf[:]...)

	var offsetBuf [4]byte
	binary.LittleEndian.PutUint32(offsetBuf[:], uint32(entry.DecompressedBlockOffset))
	out = append(out, offsetBuf[:]...)

	var pathBuf [2]byte
	binary.LittleEndian.PutUint16(pathBuf[:], uint16(entry.PathIndex))
	out = append(out, pathBuf[:]...)

	var blockBuf [2]byte
	binary.LittleEndian.PutUint16(blockBuf[:], uint16(entry.FirstBlockIndex))
	out = append(out, blockBuf[:]...)
	return out
}

func padTo(buf []byte, alignment int) []byte {
	target := alignUp(len(buf), alignment)
	for len(buf) < target {
		buf = append(buf, 0)
	}
	return buf
}
