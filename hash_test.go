// Copyright 2026 The Nx Authors
// SPDX-License-Identifier: Apache-2.0

package nx

import "testing"

func TestHashBytesDeterministic(t *testing.T) {
	data := []byte("hello world")
	first := HashBytes(data)
	second := HashBytes(data)
	if first != second {
		t.Fatalf("HashBytes is not deterministic: %#x != %#x", first, second)
	}
}

func TestHasherMatchesOneShot(t *testing.T) {
	data := []byte("the quick brown fox jumps over the lazy dog")

	hasher := NewHasher()
	_, _ = hasher.Write(data[:10])
	_, _ = hasher.Write(data[10:])

	if got, want := hasher.Sum64(), HashBytes(data); got != want {
		t.Fatalf("streaming hash %#x != one-shot hash %#x", got, want)
	}
}

func TestFormatParseHashRoundTrip(t *testing.T) {
	hash := HashBytes([]byte("round trip me"))
	formatted := FormatHash(hash)
	parsed, err := ParseHash(formatted)
	if err != nil {
		t.Fatalf("ParseHash: %v", err)
	}
	if parsed != hash {
		t.Fatalf("parsed %#x, want %#x", parsed, hash)
	}
}
