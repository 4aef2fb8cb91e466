// Copyright 2026 The Nx Authors
// SPDX-License-Identifier: Apache-2.0

package nx

import (
	"bytes"
	"io"
	"testing"
)

func testInput(path string, content []byte) PackInput {
	return PackInput{
		Path: path,
		Size: int64(len(content)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(content)), nil
		},
	}
}

func TestBuildPlanSortsBySizeThenPath(t *testing.T) {
	inputs := []PackInput{
		testInput("z.txt", bytes.Repeat([]byte{1}, 10)),
		testInput("a.txt", bytes.Repeat([]byte{1}, 5)),
		testInput("b.txt", bytes.Repeat([]byte{1}, 5)),
	}
	p, err := buildPlan(inputs, PackOptions{ChunkSize: 1 << 20, SolidBlockSize: 1 << 16})
	if err != nil {
		t.Fatalf("buildPlan: %v", err)
	}

	want := []string{"a.txt", "b.txt", "z.txt"}
	for i, path := range want {
		if p.files[i].Path != path {
			t.Fatalf("files[%d] = %q, want %q", i, p.files[i].Path, path)
		}
	}
}

func TestBuildPlanPartitionsSolidBundlesByBudget(t *testing.T) {
	inputs := []PackInput{
		testInput("a", bytes.Repeat([]byte{1}, 40)),
		testInput("b", bytes.Repeat([]byte{1}, 40)),
		testInput("c", bytes.Repeat([]byte{1}, 40)),
	}
	p, err := buildPlan(inputs, PackOptions{ChunkSize: 1 << 20, SolidBlockSize: 50})
	if err != nil {
		t.Fatalf("buildPlan: %v", err)
	}

	// With a 50-byte SOLID budget and three 40-byte files, no two files
	// fit in the same bundle, so each becomes its own SOLID unit.
	if len(p.units) != 3 {
		t.Fatalf("got %d plan units, want 3", len(p.units))
	}
	for _, unit := range p.units {
		if unit.solid == nil || len(unit.solid.fileIndices) != 1 {
			t.Fatalf("expected single-file SOLID bundles, got %+v", unit)
		}
	}
}

func TestBuildPlanChunksLargeFiles(t *testing.T) {
	content := bytes.Repeat([]byte{1}, 250)
	inputs := []PackInput{testInput("big", content)}
	p, err := buildPlan(inputs, PackOptions{ChunkSize: 100, SolidBlockSize: 64})
	if err != nil {
		t.Fatalf("buildPlan: %v", err)
	}
	if len(p.units) != 1 || p.units[0].chunked == nil {
		t.Fatalf("expected a single chunked unit, got %+v", p.units)
	}
	if got, want := p.units[0].chunked.chunkCount, 3; got != want {
		t.Fatalf("chunkCount = %d, want %d", got, want)
	}
	if p.blockCount != 3 {
		t.Fatalf("blockCount = %d, want 3", p.blockCount)
	}
}

func TestFindDuplicatesGroupsIdenticalContent(t *testing.T) {
	content := []byte("identical content")
	inputs := []PackInput{
		testInput("a", content),
		testInput("b", append([]byte{}, content...)),
		testInput("c", []byte("different content")),
	}
	dedupOf, err := findDuplicates(inputs)
	if err != nil {
		t.Fatalf("findDuplicates: %v", err)
	}
	if representative, ok := dedupOf[1]; !ok || representative != 0 {
		t.Fatalf("expected inputs[1] deduped against inputs[0], got %v", dedupOf)
	}
	if _, ok := dedupOf[2]; ok {
		t.Fatal("distinct content should not be deduplicated")
	}
}
