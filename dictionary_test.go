// Copyright 2026 The Nx Authors
// SPDX-License-Identifier: Apache-2.0

package nx

import "testing"

func TestDictionaryForBlockRunLength(t *testing.T) {
	mappings := []dictionaryMapping{
		{DictIndex: 0, BlockRunLength: 3}, // blocks 0-2
		{DictIndex: dictionaryNoneIndex, BlockRunLength: 2}, // blocks 3-4
		{DictIndex: 1, BlockRunLength: 1}, // block 5
	}

	cases := []struct {
		block   int
		wantIdx uint8
		wantOk  bool
	}{
		{0, 0, true},
		{2, 0, true},
		{3, 0, false},
		{4, 0, false},
		{5, 1, true},
	}

	for _, c := range cases {
		idx, ok := dictionaryForBlock(mappings, c.block)
		if ok != c.wantOk || (ok && idx != c.wantIdx) {
			t.Errorf("block %d: got (idx=%d, ok=%v), want (idx=%d, ok=%v)", c.block, idx, ok, c.wantIdx, c.wantOk)
		}
	}
}

func TestDictionarySectionRoundTrip(t *testing.T) {
	section := &DictionarySection{
		Dictionaries: [][]byte{[]byte("dict-zero-content"), []byte("dict-one-content")},
		Hashes:       []uint64{HashBytes([]byte("dict-zero-content")), HashBytes([]byte("dict-one-content"))},
		Mappings: []dictionaryMapping{
			{DictIndex: 0, BlockRunLength: 2},
			{DictIndex: 1, BlockRunLength: 1},
		},
	}

	encoded := encodeDictionarySection(section)
	decoded, _, err := decodeDictionarySection(encoded, true)
	if err != nil {
		t.Fatalf("decodeDictionarySection: %v", err)
	}

	if len(decoded.Dictionaries) != len(section.Dictionaries) {
		t.Fatalf("dictionary count = %d, want %d", len(decoded.Dictionaries), len(section.Dictionaries))
	}
	for i, dict := range section.Dictionaries {
		if string(decoded.Dictionaries[i]) != string(dict) {
			t.Errorf("dictionary %d mismatch: got %q, want %q", i, decoded.Dictionaries[i], dict)
		}
	}
	for i, hash := range section.Hashes {
		if decoded.Hashes[i] != hash {
			t.Errorf("hash %d mismatch: got %#x, want %#x", i, decoded.Hashes[i], hash)
		}
	}
}

func TestUnknownDictionaryIndexRejected(t *testing.T) {
	section := &DictionarySection{
		Dictionaries: [][]byte{[]byte("only-dictionary")},
		Mappings:     []dictionaryMapping{{DictIndex: 5, BlockRunLength: 1}}, // 5 is out of range
	}
	encoded := encodeDictionarySection(section)
	if _, _, err := decodeDictionarySection(encoded, false); err == nil {
		t.Fatal("expected UnknownDictionaryIndexError")
	}
}
