// Copyright 2026 The Nx Authors
// SPDX-License-Identifier: Apache-2.0

package nx

import (
	"io"
	"sort"
)

// PackInput describes one file to be packed, as supplied by the
// caller. Open must return a fresh reader positioned at byte 0 each
// time it is called; the planner and executor may call it more than
// once (once to hash/fingerprint for dedup, once to compress).
type PackInput struct {
	Path            string
	Size            int64
	Open            func() (io.ReadCloser, error)
	DictionaryGroup string // e.g. a file extension; empty means "no group"
}

// PackOptions configures the planner and executor.
type PackOptions struct {
	ChunkSize      int64
	SolidBlockSize int64
	Algorithm      CompressionTag
	Level          int
	Dedup          bool

	// Workers sets the compression worker pool size. 0 selects
	// runtime.NumCPU(); 1 disables parallelism.
	Workers int

	// UserData, if non-empty, is stored as the archive's opaque
	// user-data section (spec §3/§4.11): arbitrary caller metadata that
	// travels with the archive but plays no role in extraction.
	UserData []byte
}

// solidBundle is a planned SOLID block: a contiguous run of small
// files sharing one compressed Block.
type solidBundle struct {
	fileIndices []int
	offsets     []int64 // per-file decompressed_block_offset within the bundle
	totalSize   int64
}

// chunkedRun is a planned run of dedicated chunk blocks for one large
// file.
type chunkedRun struct {
	fileIndex  int
	chunkCount int
}

// planUnit is one item in block-index order: either a SOLID bundle or
// a chunked run, each occupying one or more consecutive block slots.
type planUnit struct {
	solid   *solidBundle
	chunked *chunkedRun
}

// plan is the planner's output: the sorted file order, the resolved
// path pool mapping, and the ordered block plan the executor consumes.
type plan struct {
	files       []PackInput
	pathIndices []uint32 // parallel to files, from the string pool encoder
	poolBytes   []byte
	units       []planUnit
	blockCount  int

	// dedupOf maps a file index to the file index whose block placement
	// it should reuse, when Dedup finds identical content. Absent
	// entries are not deduplicated.
	dedupOf map[int]int
}

// buildPlan sorts inputs by (size, path), partitions them into SOLID
// bundles and chunked runs, and resolves path pool indices. It does
// not compress anything; that is the executor's job.
func buildPlan(inputs []PackInput, opts PackOptions) (*plan, error) {
	order := make([]int, len(inputs))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		a, b := inputs[order[i]], inputs[order[j]]
		if a.Size != b.Size {
			return a.Size < b.Size
		}
		return a.Path < b.Path
	})

	sorted := make([]PackInput, len(inputs))
	for i, idx := range order {
		sorted[i] = inputs[idx]
	}

	var dedupOf map[int]int
	if opts.Dedup {
		var err error
		dedupOf, err = findDuplicates(sorted)
		if err != nil {
			return nil, err
		}
	}

	var units []planUnit
	blockCount := 0

	var current *solidBundle
	flush := func() {
		if current != nil && len(current.fileIndices) > 0 {
			units = append(units, planUnit{solid: current})
			blockCount++
			current = nil
		}
	}

	for i, file := range sorted {
		if _, deduped := dedupOf[i]; deduped {
			continue
		}
		if file.Size > opts.SolidBlockSize {
			flush()
			chunkCount := int(ceilDiv(file.Size, opts.ChunkSize))
			if chunkCount == 0 {
				chunkCount = 1
			}
			units = append(units, planUnit{chunked: &chunkedRun{fileIndex: i, chunkCount: chunkCount}})
			blockCount += chunkCount
			continue
		}

		if current == nil {
			current = &solidBundle{}
		}
		if current.totalSize+file.Size > opts.SolidBlockSize && len(current.fileIndices) > 0 {
			flush()
			current = &solidBundle{}
		}
		current.offsets = append(current.offsets, current.totalSize)
		current.fileIndices = append(current.fileIndices, i)
		current.totalSize += file.Size
	}
	flush()

	paths := make([]string, len(sorted))
	for i, file := range sorted {
		paths[i] = file.Path
	}
	poolBytes, pathIndices, err := encodeStringPool(paths)
	if err != nil {
		return nil, err
	}

	return &plan{
		files:       sorted,
		pathIndices: pathIndices,
		poolBytes:   poolBytes,
		units:       units,
		blockCount:  blockCount,
		dedupOf:     dedupOf,
	}, nil
}

// findDuplicates hashes every file's full content (XXH3-64) and groups
// identical (hash, size) fingerprints. For each group beyond the first
// member, the map records that member's index pointing at the group's
// representative index, so the caller can skip re-emitting it into the
// block plan and instead reuse the representative's placement.
func findDuplicates(files []PackInput) (map[int]int, error) {
	type fingerprint struct {
		hash uint64
		size int64
	}
	seen := make(map[fingerprint]int, len(files))
	dedupOf := make(map[int]int)

	for i, file := range files {
		reader, err := file.Open()
		if err != nil {
			return nil, &IoError{Kind: IoErrorShortRead, Err: err}
		}
		hasher := NewHasher()
		_, err = io.Copy(hasher, reader)
		reader.Close()
		if err != nil {
			return nil, &IoError{Kind: IoErrorShortRead, Err: err}
		}

		fp := fingerprint{hash: hasher.Sum64(), size: file.Size}
		if representative, ok := seen[fp]; ok {
			dedupOf[i] = representative
		} else {
			seen[fp] = i
		}
	}
	return dedupOf, nil
}
