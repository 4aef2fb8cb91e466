// Copyright 2026 The Nx Authors
// SPDX-License-Identifier: Apache-2.0

package nx

import (
	"github.com/Sewer56/sewer56-archives-nx/bitio"
)

// fileHeaderSize is the fixed size, in bytes, of the archive's leading
// FileHeader.
const fileHeaderSize = 8

// Field widths for the FileHeader bitstream. They sum to 64 bits
// (8 bytes) exactly.
const (
	formatVersionBits   = 8
	headerPageCountBits = 16
	chunkSizeLog2Bits   = 6
	hasDictionaryBits   = 1
	hasUserDataBits     = 1
	headerReservedBits  = 64 - formatVersionBits - headerPageCountBits -
		chunkSizeLog2Bits - hasDictionaryBits - hasUserDataBits
)

// minChunkSizeLog2 and maxChunkSizeLog2 bound chunk_size_log2 to the
// spec's [512 B, 1 TiB] range.
const (
	minChunkSizeLog2 = 9  // 512 B
	maxChunkSizeLog2 = 40 // 1 TiB
)

// fileHeader is the archive's fixed 8-byte preface. All other sections
// (TOC, blocks, pool) follow it at byte offset fileHeaderSize.
type fileHeader struct {
	FormatVersion   uint8
	HeaderPageCount uint16 // size of header+TOC region, in 4096-byte pages
	ChunkSizeLog2   uint8
	HasDictionary   bool
	HasUserData     bool
}

// ChunkSize returns the configured chunk size in bytes.
func (h fileHeader) ChunkSize() int64 {
	return int64(1) << h.ChunkSizeLog2
}

// HeaderRegionSize returns the byte length of the header+TOC region
// this FileHeader declares, i.e. HeaderPageCount*4096.
func (h fileHeader) HeaderRegionSize() int64 {
	return int64(h.HeaderPageCount) * sectorSize
}

func encodeFileHeader(h fileHeader) ([]byte, error) {
	w := bitio.NewWriter()
	if err := w.WriteBits(uint64(h.FormatVersion), formatVersionBits); err != nil {
		return nil, err
	}
	if err := w.WriteBits(uint64(h.HeaderPageCount), headerPageCountBits); err != nil {
		return nil, err
	}
	if err := w.WriteBits(uint64(h.ChunkSizeLog2), chunkSizeLog2Bits); err != nil {
		return nil, err
	}
	if err := w.WriteBits(boolBit(h.HasDictionary), hasDictionaryBits); err != nil {
		return nil, err
	}
	if err := w.WriteBits(boolBit(h.HasUserData), hasUserDataBits); err != nil {
		return nil, err
	}
	if err := w.WriteBits(0, headerReservedBits); err != nil {
		return nil, err
	}
	w.Align()
	buf := w.Bytes()
	if len(buf) != fileHeaderSize {
		return nil, &MalformedHeaderError{Reason: "encoded header is not 8 bytes"}
	}
	return buf, nil
}

func decodeFileHeader(buf []byte) (fileHeader, error) {
	if len(buf) < fileHeaderSize {
		return fileHeader{}, &MalformedHeaderError{Reason: "buffer shorter than 8 bytes"}
	}
	r := bitio.NewReader(buf[:fileHeaderSize])

	formatVersion, err := r.ReadBits(formatVersionBits)
	if err != nil {
		return fileHeader{}, &MalformedHeaderError{Reason: "truncated format_version"}
	}
	headerPageCount, err := r.ReadBits(headerPageCountBits)
	if err != nil {
		return fileHeader{}, &MalformedHeaderError{Reason: "truncated header_page_count"}
	}
	chunkSizeLog2, err := r.ReadBits(chunkSizeLog2Bits)
	if err != nil {
		return fileHeader{}, &MalformedHeaderError{Reason: "truncated chunk_size_log2"}
	}
	hasDictionary, err := r.ReadBits(hasDictionaryBits)
	if err != nil {
		return fileHeader{}, &MalformedHeaderError{Reason: "truncated dictionary flag"}
	}
	hasUserData, err := r.ReadBits(hasUserDataBits)
	if err != nil {
		return fileHeader{}, &MalformedHeaderError{Reason: "truncated user-data flag"}
	}
	if _, err := r.ReadBits(headerReservedBits); err != nil {
		return fileHeader{}, &MalformedHeaderError{Reason: "truncated reserved bits"}
	}

	if chunkSizeLog2 < minChunkSizeLog2 || chunkSizeLog2 > maxChunkSizeLog2 {
		return fileHeader{}, &MalformedHeaderError{Reason: "chunk_size_log2 outside [9, 40]"}
	}
	if headerPageCount == 0 {
		return fileHeader{}, &MalformedHeaderError{Reason: "header_page_count is zero"}
	}

	return fileHeader{
		FormatVersion:   uint8(formatVersion),
		HeaderPageCount: uint16(headerPageCount),
		ChunkSizeLog2:   uint8(chunkSizeLog2),
		HasDictionary:   hasDictionary != 0,
		HasUserData:     hasUserData != 0,
	}, nil
}

func boolBit(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}
