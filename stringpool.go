// Copyright 2026 The Nx Authors
// SPDX-License-Identifier: Apache-2.0

package nx

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/klauspost/compress/zstd"
)

// encodeStringPool lex-sorts paths, builds a NUL-separated decompressed
// buffer, and compresses it with ZStandard. It returns the compressed
// bytes and a mapping from each input path's original index to its
// dense index in the sorted pool — callers propagate this into
// FileEntry.PathIndex.
func encodeStringPool(paths []string) (compressed []byte, inputToPoolIndex []uint32, err error) {
	order := make([]int, len(paths))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return paths[order[i]] < paths[order[j]]
	})

	var decompressed bytes.Buffer
	inputToPoolIndex = make([]uint32, len(paths))
	for poolIndex, originalIndex := range order {
		decompressed.WriteString(paths[originalIndex])
		decompressed.WriteByte(0)
		inputToPoolIndex[originalIndex] = uint32(poolIndex)
	}

	encoder, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, nil, &CompressionError{Algorithm: "zstd", Err: err}
	}
	defer encoder.Close()
	compressed = encoder.EncodeAll(decompressed.Bytes(), nil)
	return compressed, inputToPoolIndex, nil
}

// decodeStringPool decompresses pool and splits it into exactly
// fileCount NUL-terminated paths, in the order they appear in the pool
// (lexicographic, since the encoder sorted them). Returns
// MalformedStringPool if decompression fails or the NUL count does not
// match fileCount.
func decodeStringPool(pool []byte, fileCount int) ([]string, error) {
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, &MalformedStringPoolError{Reason: fmt.Sprintf("creating decoder: %v", err)}
	}
	defer decoder.Close()

	decompressed, err := decoder.DecodeAll(pool, nil)
	if err != nil {
		return nil, &MalformedStringPoolError{Reason: fmt.Sprintf("decompressing: %v", err)}
	}

	paths := make([]string, 0, fileCount)
	start := 0
	for start < len(decompressed) {
		// bytes.IndexByte is the vectorized NUL scan spec §4.3 calls
		// for; UTF-8 guarantees 0x00 never appears inside a
		// multi-byte sequence, so a byte-wise scan is safe.
		nulOffset := bytes.IndexByte(decompressed[start:], 0)
		if nulOffset < 0 {
			return nil, &MalformedStringPoolError{Reason: "trailing entry missing NUL terminator"}
		}
		paths = append(paths, string(decompressed[start:start+nulOffset]))
		start += nulOffset + 1
	}

	if len(paths) != fileCount {
		return nil, &MalformedStringPoolError{
			Reason: fmt.Sprintf("pool contains %d entries, want %d", len(paths), fileCount),
		}
	}
	return paths, nil
}
