// Copyright 2026 The Nx Authors
// SPDX-License-Identifier: Apache-2.0

package nx

import (
	"fmt"
	"runtime"
	"sync"
)

// FileInfo is the metadata List and Find expose for a file entry,
// without decompressing its content.
type FileInfo struct {
	Path      string
	Size      int64
	Hash      uint64
	HasHash   bool
	fileIndex int
}

// List returns metadata for every file in the archive, in TOC order.
func (a *Archive) List() []FileInfo {
	infos := make([]FileInfo, len(a.toc.Files))
	for i, entry := range a.toc.Files {
		infos[i] = a.fileInfo(i, entry)
	}
	return infos
}

// Find looks up a file by exact path. The second return value is false
// if no file with that path exists.
func (a *Archive) Find(path string) (FileInfo, bool) {
	index, ok := a.pathToIndex[path]
	if !ok {
		return FileInfo{}, false
	}
	return a.fileInfo(index, a.toc.Files[index]), true
}

func (a *Archive) fileInfo(index int, entry FileEntry) FileInfo {
	return FileInfo{
		Path:      a.paths[entry.PathIndex],
		Size:      entry.DecompressedSize,
		Hash:      entry.Hash,
		HasHash:   entry.HasHash,
		fileIndex: index,
	}
}

// Extract decompresses a single file's content in full.
func (a *Archive) Extract(info FileInfo) ([]byte, error) {
	entry := a.toc.Files[info.fileIndex]
	chunkSize := a.header.ChunkSize()

	var data []byte
	if entry.IsChunked(chunkSize) {
		var err error
		data, err = a.extractChunked(entry, chunkSize)
		if err != nil {
			return nil, err
		}
	} else {
		var err error
		data, err = a.extractSolid(entry)
		if err != nil {
			return nil, err
		}
	}

	if a.options.VerifyHashes && entry.HasHash {
		if actual := HashBytes(data); actual != entry.Hash {
			return nil, &HashMismatchError{Path: a.paths[entry.PathIndex], Expected: entry.Hash, Actual: actual}
		}
	}
	return data, nil
}

func (a *Archive) extractSolid(entry FileEntry) ([]byte, error) {
	blockIndex := entry.FirstBlockIndex
	block := a.toc.Blocks[blockIndex]

	decompressedSize := int(a.blockDecompressedSizes[blockIndex])
	payload, err := a.readBlock(blockIndex, block, decompressedSize)
	if err != nil {
		return nil, err
	}

	start := entry.DecompressedBlockOffset
	end := start + entry.DecompressedSize
	if end > int64(len(payload)) {
		return nil, &MalformedArchiveError{Reason: "file slice extends past decompressed block"}
	}
	return payload[start:end], nil
}

func (a *Archive) extractChunked(entry FileEntry, chunkSize int64) ([]byte, error) {
	chunkCount := entry.ChunkCount(chunkSize)
	out := make([]byte, 0, entry.DecompressedSize)

	remaining := entry.DecompressedSize
	for i := uint32(0); i < chunkCount; i++ {
		blockIndex := entry.FirstBlockIndex + i
		block := a.toc.Blocks[blockIndex]

		want := chunkSize
		if want > remaining {
			want = remaining
		}
		payload, err := a.readBlock(blockIndex, block, int(want))
		if err != nil {
			return nil, err
		}
		out = append(out, payload...)
		remaining -= want
	}
	return out, nil
}

func (a *Archive) readBlock(blockIndex uint32, block Block, decompressedSize int) ([]byte, error) {
	if !block.Compression.Valid() {
		return nil, &UnknownCompressionTagError{Tag: uint8(block.Compression)}
	}
	offset := a.blockOffsets[blockIndex]
	compressed := make([]byte, block.CompressedSize)
	if _, err := a.file.ReadAt(compressed, offset); err != nil {
		return nil, err
	}

	dictBytes, err := a.dict.resolveDictionaryBytes(int(blockIndex))
	if err != nil {
		return nil, err
	}
	return decompressBlock(compressed, block.Compression, decompressedSize, dictBytes)
}

// BatchExtract decompresses every requested file, grouping requests by
// block index so a shared SOLID block is decompressed at most once,
// and parallelizing across distinct blocks with a pool bounded by
// runtime.NumCPU(). Results are returned in the same order as infos.
func (a *Archive) BatchExtract(infos []FileInfo) ([][]byte, error) {
	type blockGroup struct {
		blockIndex uint32
		members    []int // indices into infos
	}
	groups := make(map[uint32]*blockGroup)
	var order []uint32
	for i, info := range infos {
		entry := a.toc.Files[info.fileIndex]
		group, ok := groups[entry.FirstBlockIndex]
		if !ok {
			group = &blockGroup{blockIndex: entry.FirstBlockIndex}
			groups[entry.FirstBlockIndex] = group
			order = append(order, entry.FirstBlockIndex)
		}
		group.members = append(group.members, i)
	}

	results := make([][]byte, len(infos))
	errs := make([]error, len(order))

	workers := runtime.NumCPU()
	semaphore := make(chan struct{}, workers)
	var waitGroup sync.WaitGroup

	chunkSize := a.header.ChunkSize()

	for groupIndex, firstBlock := range order {
		group := groups[firstBlock]
		waitGroup.Add(1)
		semaphore <- struct{}{}
		go func(groupIndex int, group *blockGroup) {
			defer waitGroup.Done()
			defer func() { <-semaphore }()

			firstEntry := a.toc.Files[infos[group.members[0]].fileIndex]
			if firstEntry.IsChunked(chunkSize) {
				// Chunked files span several blocks, so each member is
				// extracted independently; entries that share a chunk
				// run through deduplication each decompress it again.
				for _, memberIndex := range group.members {
					data, err := a.Extract(infos[memberIndex])
					if err != nil {
						errs[groupIndex] = fmt.Errorf("extracting %q: %w", infos[memberIndex].Path, err)
						return
					}
					results[memberIndex] = data
				}
				return
			}

			block := a.toc.Blocks[group.blockIndex]
			decompressedSize := int(a.blockDecompressedSizes[group.blockIndex])
			payload, err := a.readBlock(group.blockIndex, block, decompressedSize)
			if err != nil {
				errs[groupIndex] = fmt.Errorf("decompressing block %d: %w", group.blockIndex, err)
				return
			}

			for _, memberIndex := range group.members {
				info := infos[memberIndex]
				entry := a.toc.Files[info.fileIndex]
				start := entry.DecompressedBlockOffset
				end := start + entry.DecompressedSize
				if end > int64(len(payload)) {
					errs[groupIndex] = &MalformedArchiveError{Reason: "file slice extends past decompressed block"}
					return
				}
				data := payload[start:end]

				if a.options.VerifyHashes && entry.HasHash {
					if actual := HashBytes(data); actual != entry.Hash {
						errs[groupIndex] = &HashMismatchError{Path: a.paths[entry.PathIndex], Expected: entry.Hash, Actual: actual}
						return
					}
				}
				results[memberIndex] = data
			}
		}(groupIndex, group)
	}
	waitGroup.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}
