// Copyright 2026 The Nx Authors
// SPDX-License-Identifier: Apache-2.0

package nx

import (
	"encoding/binary"
	"sort"
)

// dictionaryNoneIndex is the sentinel meaning "no dictionary, decode
// raw" for a block's resolved dictionary index.
const dictionaryNoneIndex = 255

// maxTrainingSampleBytes bounds how much representative corpus content
// is fed to zstd as a raw-content dictionary (see trainDictionary).
const maxTrainingSampleBytes = 110 * 1024

// dictionaryMapping is one run-length entry: DictIndex applies to the
// next BlockRunLength blocks in TOC order, starting where the previous
// mapping's run ended.
type dictionaryMapping struct {
	DictIndex      uint8
	BlockRunLength uint8
}

// DictionarySection holds the optional per-extension ZStandard
// dictionaries and the block→dictionary run-length mapping table.
type DictionarySection struct {
	Dictionaries [][]byte
	Hashes       []uint64 // one per dictionary; nil if hashes were not recorded
	Mappings     []dictionaryMapping
}

// trainDictionary approximates ZStandard dictionary training by
// sampling up to maxTrainingSampleBytes of representative content and
// using it directly as a zstd raw-content dictionary. True ZDICT_*
// statistical training is a C-library feature with no pure-Go
// equivalent; see DESIGN.md for the rationale behind this choice.
func trainDictionary(corpus [][]byte) []byte {
	var sample []byte
	for _, piece := range corpus {
		if len(sample)+len(piece) > maxTrainingSampleBytes {
			remaining := maxTrainingSampleBytes - len(sample)
			if remaining <= 0 {
				break
			}
			sample = append(sample, piece[:remaining]...)
			break
		}
		sample = append(sample, piece...)
	}
	return sample
}

// dictionaryForBlock resolves which dictionary applies to blockIndex by
// binary-searching the accumulated run starts. Returns (0, false) for
// dictionaryNoneIndex. The run start table is rebuilt with
// dictionaryRunStarts on every call, so each lookup is linear in
// len(mappings).
func dictionaryForBlock(mappings []dictionaryMapping, blockIndex int) (index uint8, ok bool) {
	starts := dictionaryRunStarts(mappings)
	i := sort.Search(len(starts), func(i int) bool { return starts[i] > blockIndex })
	if i == 0 {
		return 0, false
	}
	mapping := mappings[i-1]
	if mapping.DictIndex == dictionaryNoneIndex {
		return 0, false
	}
	return mapping.DictIndex, true
}

// buildDictionarySectionFromGroups turns an ordered sequence of
// per-block dictionary group names (empty string meaning "no group")
// into a DictionarySection: one trained dictionary per distinct group,
// plus a run-length mapping table walking groupPerBlock in order.
// Returns (nil, nil) if no block names a group, so callers can leave
// HasDictionary unset for archives that never asked for one.
func buildDictionarySectionFromGroups(groupPerBlock []string, contentPerBlock [][]byte) (*DictionarySection, map[string]int) {
	groupIndex := make(map[string]int)
	var order []string
	corpusByGroup := make(map[string][][]byte)
	for i, group := range groupPerBlock {
		if group == "" {
			continue
		}
		if _, seen := groupIndex[group]; !seen {
			groupIndex[group] = len(order)
			order = append(order, group)
		}
		corpusByGroup[group] = append(corpusByGroup[group], contentPerBlock[i])
	}
	if len(order) == 0 {
		return nil, nil
	}

	dictionaries := make([][]byte, len(order))
	hashes := make([]uint64, len(order))
	for i, group := range order {
		trained := trainDictionary(corpusByGroup[group])
		dictionaries[i] = trained
		hashes[i] = HashBytes(trained)
	}

	var mappings []dictionaryMapping
	currentIndex := uint8(dictionaryNoneIndex)
	currentRun := 0
	flush := func() {
		for currentRun > 0 {
			run := currentRun
			if run > 255 {
				run = 255
			}
			mappings = append(mappings, dictionaryMapping{DictIndex: currentIndex, BlockRunLength: uint8(run)})
			currentRun -= run
		}
	}
	for _, group := range groupPerBlock {
		index := uint8(dictionaryNoneIndex)
		if group != "" {
			index = uint8(groupIndex[group])
		}
		if currentRun > 0 && index != currentIndex {
			flush()
		}
		currentIndex = index
		currentRun++
	}
	flush()

	return &DictionarySection{Dictionaries: dictionaries, Hashes: hashes, Mappings: mappings}, groupIndex
}

// dictionaryRunStarts returns, for each mapping, the block index at
// which its run begins, so a binary search can locate the owning
// mapping for any block index in O(log N).
func dictionaryRunStarts(mappings []dictionaryMapping) []int {
	starts := make([]int, len(mappings))
	cursor := 0
	for i, mapping := range mappings {
		starts[i] = cursor
		cursor += int(mapping.BlockRunLength)
	}
	return starts
}

// resolveDictionaryBytes returns the raw dictionary bytes a block
// should decode with, or nil if the block uses no dictionary. Returns
// UnknownDictionaryIndexError if the resolved index is out of range.
func (d *DictionarySection) resolveDictionaryBytes(blockIndex int) ([]byte, error) {
	if d == nil || len(d.Mappings) == 0 {
		return nil, nil
	}
	index, ok := dictionaryForBlock(d.Mappings, blockIndex)
	if !ok {
		return nil, nil
	}
	if int(index) >= len(d.Dictionaries) {
		return nil, &UnknownDictionaryIndexError{Index: index}
	}
	return d.Dictionaries[index], nil
}

// encodeDictionarySection serializes a DictionarySection: a small fixed
// header (dictionary count, mapping count), the mapping array, a
// parallel u32 size array, an optional u64 hash array, then the
// concatenated raw dictionary payloads.
func encodeDictionarySection(d *DictionarySection) []byte {
	if d == nil || len(d.Dictionaries) == 0 {
		return nil
	}
	hasHashes := len(d.Hashes) == len(d.Dictionaries)

	out := make([]byte, 0, 2)
	out = append(out, byte(len(d.Dictionaries)), byte(len(d.Mappings)))
	for _, mapping := range d.Mappings {
		out = append(out, mapping.DictIndex, mapping.BlockRunLength)
	}
	for _, dict := range d.Dictionaries {
		var sizeBuf [4]byte
		binary.LittleEndian.PutUint32(sizeBuf[:], uint32(len(dict)))
		out = append(out, sizeBuf[:]...)
	}
	if hasHashes {
		for _, hash := range d.Hashes {
			var hashBuf [8]byte
			binary.LittleEndian.PutUint64(hashBuf[:], hash)
			out = append(out, hashBuf[:]...)
		}
	}
	for _, dict := range d.Dictionaries {
		out = append(out, dict...)
	}
	return out
}

// decodeDictionarySection parses a DictionarySection from buf. hasHashes
// tells the decoder whether the optional hash array is present; the
// section carries no presence flag for it, and neither do the
// FileHeader or TOC. Open always passes true, matching Pack, which
// always records dictionary hashes.
func decodeDictionarySection(buf []byte, hasHashes bool) (*DictionarySection, int, error) {
	if len(buf) < 2 {
		return nil, 0, &MalformedArchiveError{Reason: "dictionary section shorter than its header"}
	}
	numDictionaries := int(buf[0])
	numMappings := int(buf[1])
	if numDictionaries > 254 {
		return nil, 0, &MalformedArchiveError{Reason: "dictionary section declares more than 254 dictionaries"}
	}
	offset := 2

	mappings := make([]dictionaryMapping, 0, numMappings)
	for i := 0; i < numMappings; i++ {
		if offset+2 > len(buf) {
			return nil, 0, &MalformedArchiveError{Reason: "truncated dictionary mapping array"}
		}
		mappings = append(mappings, dictionaryMapping{DictIndex: buf[offset], BlockRunLength: buf[offset+1]})
		offset += 2
	}

	sizes := make([]uint32, numDictionaries)
	for i := 0; i < numDictionaries; i++ {
		if offset+4 > len(buf) {
			return nil, 0, &MalformedArchiveError{Reason: "truncated dictionary size array"}
		}
		sizes[i] = binary.LittleEndian.Uint32(buf[offset : offset+4])
		offset += 4
	}

	var hashes []uint64
	if hasHashes {
		hashes = make([]uint64, numDictionaries)
		for i := 0; i < numDictionaries; i++ {
			if offset+8 > len(buf) {
				return nil, 0, &MalformedArchiveError{Reason: "truncated dictionary hash array"}
			}
			hashes[i] = binary.LittleEndian.Uint64(buf[offset : offset+8])
			offset += 8
		}
	}

	dictionaries := make([][]byte, numDictionaries)
	for i := 0; i < numDictionaries; i++ {
		size := int(sizes[i])
		if offset+size > len(buf) {
			return nil, 0, &MalformedArchiveError{Reason: "dictionary payload extends past section"}
		}
		dictionaries[i] = buf[offset : offset+size]
		offset += size
	}

	for _, mapping := range mappings {
		if mapping.DictIndex != dictionaryNoneIndex && int(mapping.DictIndex) >= numDictionaries {
			return nil, 0, &UnknownDictionaryIndexError{Index: mapping.DictIndex}
		}
	}

	return &DictionarySection{Dictionaries: dictionaries, Hashes: hashes, Mappings: mappings}, offset, nil
}
