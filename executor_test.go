// Copyright 2026 The Nx Authors
// SPDX-License-Identifier: Apache-2.0

package nx

import (
	"bytes"
	"context"
	"testing"
)

func TestExecutePlanProducesOneBlockPerSolidBundle(t *testing.T) {
	inputs := []PackInput{
		testInput("a", bytes.Repeat([]byte{1}, 10)),
		testInput("b", bytes.Repeat([]byte{2}, 10)),
	}
	opts := PackOptions{ChunkSize: 1 << 20, SolidBlockSize: 1 << 16, Algorithm: CompressionCopy, Workers: 1}
	p, err := buildPlan(inputs, opts)
	if err != nil {
		t.Fatalf("buildPlan: %v", err)
	}

	entries, blocks, payloads, dict, err := executePlan(context.Background(), p, opts)
	if err != nil {
		t.Fatalf("executePlan: %v", err)
	}
	if len(blocks) != 1 {
		t.Fatalf("got %d blocks, want 1 (both files share one SOLID bundle)", len(blocks))
	}
	if dict != nil {
		t.Fatal("expected no DictionarySection when no input names a DictionaryGroup")
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	for _, entry := range entries {
		if entry.FirstBlockIndex != 0 {
			t.Fatalf("expected both entries to reference block 0, got %d", entry.FirstBlockIndex)
		}
	}
	if len(payloads) != 1 || len(payloads[0]) != 20 {
		t.Fatalf("expected one 20-byte copy payload, got %v", payloads)
	}
}

func TestExecutePlanTrainsOneDictionaryPerGroup(t *testing.T) {
	makeInput := func(path, group string, content []byte) PackInput {
		input := testInput(path, content)
		input.DictionaryGroup = group
		return input
	}
	inputs := []PackInput{
		makeInput("a.json", "json", bytes.Repeat([]byte("json-body "), 20)),
		makeInput("b.json", "json", bytes.Repeat([]byte("json-body "), 20)),
		makeInput("c.xml", "xml", bytes.Repeat([]byte("xml-body "), 20)),
	}
	// Force each file into its own block so every block carries its
	// group's dictionary independently.
	opts := PackOptions{ChunkSize: 1 << 20, SolidBlockSize: 1, Algorithm: CompressionZStd, Workers: 1}
	p, err := buildPlan(inputs, opts)
	if err != nil {
		t.Fatalf("buildPlan: %v", err)
	}

	_, _, _, dict, err := executePlan(context.Background(), p, opts)
	if err != nil {
		t.Fatalf("executePlan: %v", err)
	}
	if dict == nil {
		t.Fatal("expected a DictionarySection")
	}
	if len(dict.Dictionaries) != 2 {
		t.Fatalf("got %d trained dictionaries, want 2 (one per group)", len(dict.Dictionaries))
	}
}
