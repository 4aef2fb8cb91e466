// Copyright 2026 The Nx Authors
// SPDX-License-Identifier: Apache-2.0

package nx

import (
	"encoding/hex"
	"fmt"

	"github.com/zeebo/xxh3"
)

// hashSeed is the fixed zero seed spec.md §6 requires for every XXH3-64
// computation in the format: file content hashes and dictionary content
// hashes both use it, so two archives built from the same bytes always
// agree on hash values.
const hashSeed uint64 = 0

// HashBytes computes the XXH3-64 hash of data, seeded with zero. This
// is the hash recorded in FileEntry.Hash (when the active TOC variant
// carries a hash field) and in the dictionary section's optional hash
// array.
func HashBytes(data []byte) uint64 {
	return xxh3.HashSeed(data, hashSeed)
}

// Hasher incrementally computes an XXH3-64 hash over data supplied
// across multiple Write calls, for callers streaming file content
// rather than holding it entirely in memory (e.g. hashing a chunked
// file chunk-by-chunk before it is compressed).
type Hasher struct {
	inner *xxh3.Hasher
}

// NewHasher creates a streaming XXH3-64 hasher seeded with zero.
func NewHasher() *Hasher {
	h := xxh3.NewSeed(hashSeed)
	return &Hasher{inner: h}
}

// Write adds data to the running hash. It never returns an error.
func (h *Hasher) Write(data []byte) (int, error) {
	return h.inner.Write(data)
}

// Sum64 returns the hash of all data written so far.
func (h *Hasher) Sum64() uint64 {
	return h.inner.Sum64()
}

// Reset returns the hasher to its initial state, ready to hash a new
// stream with the same seed.
func (h *Hasher) Reset() {
	h.inner.Reset()
}

// FormatHash returns the canonical hex representation of a file-content
// hash, used in log messages and error text.
func FormatHash(hash uint64) string {
	var buf [8]byte
	for i := 0; i < 8; i++ {
		buf[i] = byte(hash >> (8 * (7 - i)))
	}
	return hex.EncodeToString(buf[:])
}

// ParseHash parses a 16-character hex string (as produced by
// [FormatHash]) into a hash value.
func ParseHash(hexString string) (uint64, error) {
	decoded, err := hex.DecodeString(hexString)
	if err != nil {
		return 0, fmt.Errorf("parsing hash: %w", err)
	}
	if len(decoded) != 8 {
		return 0, fmt.Errorf("hash is %d bytes, want 8", len(decoded))
	}
	var value uint64
	for _, b := range decoded {
		value = (value << 8) | uint64(b)
	}
	return value, nil
}
