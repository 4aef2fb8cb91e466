// Copyright 2026 The Nx Authors
// SPDX-License-Identifier: Apache-2.0

package nx

import "testing"

func TestFileHeaderRoundTrip(t *testing.T) {
	original := fileHeader{
		FormatVersion:   1,
		HeaderPageCount: 3,
		ChunkSizeLog2:   20, // 1 MiB
		HasDictionary:   true,
		HasUserData:     false,
	}

	encoded, err := encodeFileHeader(original)
	if err != nil {
		t.Fatalf("encodeFileHeader: %v", err)
	}
	if len(encoded) != fileHeaderSize {
		t.Fatalf("encoded header is %d bytes, want %d", len(encoded), fileHeaderSize)
	}

	decoded, err := decodeFileHeader(encoded)
	if err != nil {
		t.Fatalf("decodeFileHeader: %v", err)
	}
	if decoded != original {
		t.Fatalf("round trip mismatch: got %+v, want %+v", decoded, original)
	}
}

func TestFileHeaderRejectsBadChunkSize(t *testing.T) {
	h := fileHeader{FormatVersion: 1, HeaderPageCount: 1, ChunkSizeLog2: 63}
	encoded, err := encodeFileHeader(h)
	if err != nil {
		t.Fatalf("encodeFileHeader: %v", err)
	}
	if _, err := decodeFileHeader(encoded); err == nil {
		t.Fatal("expected error decoding header with out-of-range chunk_size_log2")
	}
}

func TestFileHeaderRejectsTruncatedBuffer(t *testing.T) {
	if _, err := decodeFileHeader([]byte{1, 2, 3}); err == nil {
		t.Fatal("expected error decoding truncated header")
	}
}
