// Copyright 2026 The Nx Authors
// SPDX-License-Identifier: Apache-2.0

package nx

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"sync"
)

// blockJob is one unit of compression work: compress content into
// exactly one archive Block at the given index.
type blockJob struct {
	blockIndex int
	content    []byte
	dictGroup  string
}

// blockResult is a completed compression job, written directly into
// the executor's pre-sized output slices by its own goroutine — no
// ordering channel is needed since every job's blockIndex is fixed
// ahead of time by the plan.
type blockResult struct {
	compressed  []byte
	compression CompressionTag
	err         error
}

// executePlan reads every input's content, resolves deduplicated
// placement, dispatches one compression job per block across a bounded
// worker pool, and returns the finished FileEntry and Block arrays, each
// block's compressed payload in block-index order, and the dictionary
// section trained from the plan's DictionaryGroup assignments (nil if
// no input named a group).
func executePlan(ctx context.Context, p *plan, opts PackOptions) ([]FileEntry, []Block, [][]byte, *DictionarySection, error) {
	fileContent := make([][]byte, len(p.files))
	fileHashes := make([]uint64, len(p.files))
	for i, file := range p.files {
		if _, deduped := p.dedupOf[i]; deduped {
			continue
		}
		data, err := readAll(file)
		if err != nil {
			return nil, nil, nil, nil, err
		}
		fileContent[i] = data
		fileHashes[i] = HashBytes(data)
	}

	entries := make([]FileEntry, len(p.files))
	jobs := make([]blockJob, p.blockCount)
	placement := make(map[int]FileEntry, len(p.files)) // fileIndex -> resolved placement, sans Path/PathIndex

	blockIndex := 0
	for _, unit := range p.units {
		switch {
		case unit.solid != nil:
			bundle := unit.solid
			combined := make([]byte, 0, bundle.totalSize)
			for _, fileIndex := range bundle.fileIndices {
				combined = append(combined, fileContent[fileIndex]...)
			}
			jobs[blockIndex] = blockJob{blockIndex: blockIndex, content: combined, dictGroup: p.files[bundle.fileIndices[0]].DictionaryGroup}
			for k, fileIndex := range bundle.fileIndices {
				placement[fileIndex] = FileEntry{
					Hash:                    fileHashes[fileIndex],
					HasHash:                 true,
					DecompressedSize:        p.files[fileIndex].Size,
					DecompressedBlockOffset: bundle.offsets[k],
					FirstBlockIndex:         uint32(blockIndex),
				}
			}
			blockIndex++

		case unit.chunked != nil:
			run := unit.chunked
			content := fileContent[run.fileIndex]
			firstBlock := blockIndex
			for c := 0; c < run.chunkCount; c++ {
				start := int64(c) * opts.ChunkSize
				end := start + opts.ChunkSize
				if end > int64(len(content)) {
					end = int64(len(content))
				}
				jobs[blockIndex] = blockJob{blockIndex: blockIndex, content: content[start:end], dictGroup: p.files[run.fileIndex].DictionaryGroup}
				blockIndex++
			}
			placement[run.fileIndex] = FileEntry{
				Hash:                    fileHashes[run.fileIndex],
				HasHash:                 true,
				DecompressedSize:        p.files[run.fileIndex].Size,
				DecompressedBlockOffset: 0,
				FirstBlockIndex:         uint32(firstBlock),
			}
		}
	}

	for fileIndex, representative := range p.dedupOf {
		entries[fileIndex] = placement[representative]
	}
	for fileIndex := range p.files {
		if entry, ok := placement[fileIndex]; ok {
			entries[fileIndex] = entry
		}
	}
	for i := range entries {
		entries[i].PathIndex = p.pathIndices[i]
	}

	groupPerBlock := make([]string, len(jobs))
	contentPerBlock := make([][]byte, len(jobs))
	for i, job := range jobs {
		groupPerBlock[i] = job.dictGroup
		contentPerBlock[i] = job.content
	}
	dict, groupIndex := buildDictionarySectionFromGroups(groupPerBlock, contentPerBlock)

	dictByGroup := make(map[string][]byte, len(groupIndex))
	for group, index := range groupIndex {
		dictByGroup[group] = dict.Dictionaries[index]
	}

	results, err := runJobs(ctx, jobs, opts, dictByGroup)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	blocks := make([]Block, len(jobs))
	payloads := make([][]byte, len(jobs))
	for i, result := range results {
		blocks[i] = Block{CompressedSize: uint32(len(result.compressed)), Compression: result.compression}
		payloads[i] = result.compressed
	}

	return entries, blocks, payloads, dict, nil
}

// runJobs compresses each block job in a pool bounded by opts.Workers
// (0 selects runtime.NumCPU(); 1 disables parallelism). Jobs write
// their own result slot directly, so no result-ordering step is
// needed after the pool drains.
func runJobs(ctx context.Context, jobs []blockJob, opts PackOptions, dictByGroup map[string][]byte) ([]blockResult, error) {
	workers := opts.Workers
	if workers == 0 {
		workers = runtime.NumCPU()
	}
	if workers < 1 {
		workers = 1
	}

	results := make([]blockResult, len(jobs))
	semaphore := make(chan struct{}, workers)
	var waitGroup sync.WaitGroup
	var firstErr error
	var mu sync.Mutex

	for _, job := range jobs {
		select {
		case <-ctx.Done():
			return nil, Cancelled
		default:
		}

		waitGroup.Add(1)
		semaphore <- struct{}{}
		go func(job blockJob) {
			defer waitGroup.Done()
			defer func() { <-semaphore }()

			mu.Lock()
			cancelled := firstErr != nil
			mu.Unlock()
			if cancelled {
				return
			}

			dictBytes := lookupDictionaryGroup(dictByGroup, job.dictGroup)

			compressed, err := compressBlock(job.content, opts.Algorithm, dictBytes)
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = fmt.Errorf("compressing block %d: %w", job.blockIndex, err)
				}
				mu.Unlock()
				return
			}
			results[job.blockIndex] = blockResult{compressed: compressed, compression: opts.Algorithm}
		}(job)
	}
	waitGroup.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return results, nil
}

// lookupDictionaryGroup resolves a block's DictionaryGroup to its
// trained dictionary bytes. An empty group, or one with no trained
// dictionary, compresses without a dictionary.
func lookupDictionaryGroup(dictByGroup map[string][]byte, group string) []byte {
	if group == "" {
		return nil
	}
	return dictByGroup[group]
}

func readAll(input PackInput) ([]byte, error) {
	reader, err := input.Open()
	if err != nil {
		return nil, &IoError{Kind: IoErrorShortRead, Err: err}
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, &IoError{Kind: IoErrorShortRead, Err: err}
	}
	return data, nil
}
