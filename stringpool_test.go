// Copyright 2026 The Nx Authors
// SPDX-License-Identifier: Apache-2.0

package nx

import "testing"

func TestStringPoolRoundTrip(t *testing.T) {
	input := []string{"mods/textures/wall.png", "readme.txt", "mods/audio/theme.ogg", "a.txt"}

	compressed, mapping, err := encodeStringPool(input)
	if err != nil {
		t.Fatalf("encodeStringPool: %v", err)
	}

	decoded, err := decodeStringPool(compressed, len(input))
	if err != nil {
		t.Fatalf("decodeStringPool: %v", err)
	}

	for i := 0; i < len(decoded)-1; i++ {
		if decoded[i] > decoded[i+1] {
			t.Fatalf("pool is not lexicographically sorted at index %d: %q > %q", i, decoded[i], decoded[i+1])
		}
	}

	if len(mapping) != len(input) {
		t.Fatalf("mapping length = %d, want %d", len(mapping), len(input))
	}
	for i, original := range input {
		poolIndex := mapping[i]
		if decoded[poolIndex] != original {
			t.Errorf("input[%d]=%q maps to pool[%d]=%q, mismatch", i, original, poolIndex, decoded[poolIndex])
		}
	}
}

func TestStringPoolRejectsCountMismatch(t *testing.T) {
	compressed, _, err := encodeStringPool([]string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("encodeStringPool: %v", err)
	}
	if _, err := decodeStringPool(compressed, 2); err == nil {
		t.Fatal("expected MalformedStringPoolError on count mismatch")
	}
}

func TestStringPoolEmpty(t *testing.T) {
	compressed, mapping, err := encodeStringPool(nil)
	if err != nil {
		t.Fatalf("encodeStringPool: %v", err)
	}
	if len(mapping) != 0 {
		t.Fatalf("expected empty mapping, got %v", mapping)
	}
	decoded, err := decodeStringPool(compressed, 0)
	if err != nil {
		t.Fatalf("decodeStringPool: %v", err)
	}
	if len(decoded) != 0 {
		t.Fatalf("expected no paths, got %v", decoded)
	}
}
