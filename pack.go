// Copyright 2026 The Nx Authors
// SPDX-License-Identifier: Apache-2.0

package nx

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// PackResult summarizes a completed pack operation.
type PackResult struct {
	FileCount  int
	BlockCount int
	TotalSize  int64
}

// Pack plans and compresses inputs into an Nx archive at destPath. The
// archive is written to a temporary file in destPath's directory and
// atomically renamed into place on success, so a failed or cancelled
// pack never leaves partial output at destPath.
func Pack(ctx context.Context, destPath string, inputs []PackInput, opts PackOptions) (PackResult, error) {
	if opts.ChunkSize <= 0 {
		return PackResult{}, fmt.Errorf("nx: ChunkSize must be positive")
	}
	if opts.SolidBlockSize <= 0 {
		return PackResult{}, fmt.Errorf("nx: SolidBlockSize must be positive")
	}

	p, err := buildPlan(inputs, opts)
	if err != nil {
		return PackResult{}, err
	}

	entries, blocks, payloads, dict, err := executePlan(ctx, p, opts)
	if err != nil {
		return PackResult{}, err
	}

	archiveBytes, err := assembleArchive(entries, blocks, p.poolBytes, payloads, dict, opts.UserData, opts)
	if err != nil {
		return PackResult{}, err
	}

	if err := writeAtomic(destPath, archiveBytes); err != nil {
		return PackResult{}, err
	}

	return PackResult{FileCount: len(entries), BlockCount: len(blocks), TotalSize: int64(len(archiveBytes))}, nil
}

// assembleArchive concatenates the header, TOC (with the standard
// hashed preset), the optional dictionary and user-data sections, and
// each block's compressed payload, padding the header region and every
// block region up to the next 4096-byte boundary per spec §6.
func assembleArchive(entries []FileEntry, blocks []Block, poolBytes []byte, payloads [][]byte, dict *DictionarySection, userData []byte, opts PackOptions) ([]byte, error) {
	tocBytes, err := encodeFixedToc(tocPresetStandard, entries, blocks, poolBytes)
	if err != nil {
		return nil, err
	}

	headerRegion := make([]byte, 0, fileHeaderSize+len(tocBytes))
	headerRegion = append(headerRegion, make([]byte, fileHeaderSize)...)
	headerRegion = append(headerRegion, tocBytes...)

	hasDictionary := dict != nil && len(dict.Dictionaries) > 0
	if hasDictionary {
		headerRegion = append(headerRegion, encodeDictionarySection(dict)...)
	}

	hasUserData := len(userData) > 0
	if hasUserData {
		compressed, err := compressBlock(userData, CompressionZStd, nil)
		if err != nil {
			return nil, err
		}
		section := &UserDataSection{DecompressedSize: uint32(len(userData)), Payload: compressed}
		headerRegion = append(headerRegion, encodeUserDataSection(section)...)
	}

	headerRegionPadded := padToSector(headerRegion)

	pageCount := len(headerRegionPadded) / sectorSize
	if pageCount == 0 || pageCount > 0xFFFF {
		return nil, fmt.Errorf("nx: header+TOC region of %d bytes does not fit in header_page_count", len(headerRegionPadded))
	}

	header := fileHeader{
		FormatVersion:   1,
		HeaderPageCount: uint16(pageCount),
		ChunkSizeLog2:   log2Exact(opts.ChunkSize),
		HasDictionary:   hasDictionary,
		HasUserData:     hasUserData,
	}
	headerBytes, err := encodeFileHeader(header)
	if err != nil {
		return nil, err
	}
	copy(headerRegionPadded[:fileHeaderSize], headerBytes)

	out := headerRegionPadded
	for _, payload := range payloads {
		out = append(out, padToSector(payload)...)
	}
	return out, nil
}

func padToSector(buf []byte) []byte {
	target := alignUp(len(buf), sectorSize)
	padded := make([]byte, target)
	copy(padded, buf)
	return padded
}

// log2Exact returns the base-2 logarithm of n, assuming n is an exact
// power of two in range; used to encode chunk_size_log2.
func log2Exact(n int64) uint8 {
	var exponent uint8
	for (int64(1) << exponent) < n {
		exponent++
	}
	return exponent
}

// writeAtomic writes data to a temp file alongside destPath and
// renames it into place, so a crash or error never leaves a
// partially-written archive at destPath.
func writeAtomic(destPath string, data []byte) error {
	dir := filepath.Dir(destPath)
	tmpFile, err := os.CreateTemp(dir, ".nx-pack-*.tmp")
	if err != nil {
		return &IoError{Kind: IoErrorWrite, Err: err}
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return &IoError{Kind: IoErrorWrite, Err: err}
	}
	if err := tmpFile.Close(); err != nil {
		return &IoError{Kind: IoErrorWrite, Err: err}
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return &IoError{Kind: IoErrorWrite, Err: err}
	}
	success = true
	return nil
}
