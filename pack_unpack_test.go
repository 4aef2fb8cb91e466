// Copyright 2026 The Nx Authors
// SPDX-License-Identifier: Apache-2.0

package nx

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func memoryInput(path string, content []byte) PackInput {
	return PackInput{
		Path: path,
		Size: int64(len(content)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(content)), nil
		},
	}
}

func defaultOptions() PackOptions {
	return PackOptions{
		ChunkSize:      1 << 20, // 1 MiB
		SolidBlockSize: 64 * 1024,
		Algorithm:      CompressionZStd,
		Workers:        2,
	}
}

func packAndOpen(t *testing.T, inputs []PackInput, opts PackOptions, openOpts OpenOptions) *Archive {
	t.Helper()
	dir := t.TempDir()
	destPath := filepath.Join(dir, "archive.r3a")

	if _, err := Pack(context.Background(), destPath, inputs, opts); err != nil {
		t.Fatalf("Pack: %v", err)
	}

	archive, err := Open(destPath, openOpts)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { archive.Close() })
	return archive
}

func TestPackUnpackEmptyArchive(t *testing.T) {
	archive := packAndOpen(t, nil, defaultOptions(), OpenOptions{})
	if got := archive.List(); len(got) != 0 {
		t.Fatalf("expected empty archive, got %d files", len(got))
	}
}

func TestPackUnpackSingleSmallFile(t *testing.T) {
	content := []byte("hello world")
	archive := packAndOpen(t, []PackInput{memoryInput("a.txt", content)}, defaultOptions(), OpenOptions{})

	info, ok := archive.Find("a.txt")
	if !ok {
		t.Fatal("a.txt not found")
	}
	if info.Size != int64(len(content)) {
		t.Fatalf("size = %d, want %d", info.Size, len(content))
	}
	if !info.HasHash || info.Hash != HashBytes(content) {
		t.Fatalf("hash mismatch: HasHash=%v Hash=%#x", info.HasHash, info.Hash)
	}

	got, err := archive.Extract(info)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Fatalf("extracted %q, want %q", got, content)
	}
}

func TestPackUnpackSolidManyTinyFiles(t *testing.T) {
	var inputs []PackInput
	contents := make(map[string][]byte)
	for i := 0; i < 100; i++ {
		path := fmt.Sprintf("file-%03d.bin", i)
		content := bytes.Repeat([]byte{byte(i)}, 1024)
		contents[path] = content
		inputs = append(inputs, memoryInput(path, content))
	}

	opts := defaultOptions()
	opts.SolidBlockSize = 64 * 1024
	archive := packAndOpen(t, inputs, opts, OpenOptions{})

	infos := archive.List()
	if len(infos) != len(inputs) {
		t.Fatalf("got %d files, want %d", len(infos), len(inputs))
	}

	for _, info := range infos {
		want, ok := contents[info.Path]
		if !ok {
			t.Fatalf("unexpected path %q", info.Path)
		}
		got, err := archive.Extract(info)
		if err != nil {
			t.Fatalf("Extract(%q): %v", info.Path, err)
		}
		if !bytes.Equal(got, want) {
			t.Fatalf("content mismatch for %q", info.Path)
		}
	}
}

func TestPackUnpackChunkedLargeFile(t *testing.T) {
	const chunkSize = 1 << 20 // 1 MiB
	const fileSize = 5*chunkSize + 123
	content := make([]byte, fileSize)
	for i := range content {
		content[i] = byte(i)
	}

	opts := defaultOptions()
	opts.ChunkSize = chunkSize
	opts.SolidBlockSize = 64 * 1024
	archive := packAndOpen(t, []PackInput{memoryInput("big.bin", content)}, opts, OpenOptions{})

	info, ok := archive.Find("big.bin")
	if !ok {
		t.Fatal("big.bin not found")
	}
	got, err := archive.Extract(info)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Fatal("chunked file round trip mismatch")
	}
}

func TestBatchExtractMatchesSequential(t *testing.T) {
	var inputs []PackInput
	for i := 0; i < 40; i++ {
		path := fmt.Sprintf("f%02d.txt", i)
		inputs = append(inputs, memoryInput(path, bytes.Repeat([]byte{byte('a' + i%26)}, 500)))
	}
	archive := packAndOpen(t, inputs, defaultOptions(), OpenOptions{})

	infos := archive.List()
	sequential := make([][]byte, len(infos))
	for i, info := range infos {
		data, err := archive.Extract(info)
		if err != nil {
			t.Fatalf("Extract(%q): %v", info.Path, err)
		}
		sequential[i] = data
	}

	parallel, err := archive.BatchExtract(infos)
	if err != nil {
		t.Fatalf("BatchExtract: %v", err)
	}

	for i := range infos {
		if !bytes.Equal(sequential[i], parallel[i]) {
			t.Fatalf("mismatch at %q: sequential and parallel extraction differ", infos[i].Path)
		}
	}
}

func TestPackUnpackDictionaryRoundTrip(t *testing.T) {
	shared := `{"schema":"v1","fields":["id","name","created_at"]}`
	var inputs []PackInput
	contents := make(map[string][]byte)
	for i := 0; i < 20; i++ {
		path := fmt.Sprintf("record-%02d.json", i)
		content := []byte(fmt.Sprintf(`%s,"id":%d`, shared, i))
		contents[path] = content
		input := memoryInput(path, content)
		input.DictionaryGroup = "json-records"
		inputs = append(inputs, input)
	}

	opts := defaultOptions()
	opts.SolidBlockSize = 32 // every record exceeds the 32-byte SOLID budget, so each gets its own block, each eligible for the shared dictionary
	archive := packAndOpen(t, inputs, opts, OpenOptions{})

	if archive.dict == nil {
		t.Fatal("expected archive to carry a DictionarySection for the shared dictionary group")
	}

	for _, info := range archive.List() {
		want := contents[info.Path]
		got, err := archive.Extract(info)
		if err != nil {
			t.Fatalf("Extract(%q): %v", info.Path, err)
		}
		if !bytes.Equal(got, want) {
			t.Fatalf("content mismatch for %q", info.Path)
		}
	}
}

func TestPackUnpackUserData(t *testing.T) {
	dir := t.TempDir()
	destPath := filepath.Join(dir, "archive.r3a")
	opts := defaultOptions()
	opts.UserData = []byte("build-id=deadbeef;origin=ci")

	if _, err := Pack(context.Background(), destPath, []PackInput{memoryInput("a.txt", []byte("hi"))}, opts); err != nil {
		t.Fatalf("Pack: %v", err)
	}

	archive, err := Open(destPath, OpenOptions{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer archive.Close()

	got, ok := archive.UserData()
	if !ok {
		t.Fatal("expected UserData() to report an attached section")
	}
	if !bytes.Equal(got, opts.UserData) {
		t.Fatalf("UserData() = %q, want %q", got, opts.UserData)
	}
}

func TestOpenRejectsCorruptedFirstBlockIndex(t *testing.T) {
	dir := t.TempDir()
	destPath := filepath.Join(dir, "archive.r3a")
	inputs := []PackInput{memoryInput("a.txt", []byte("hello world"))}

	if _, err := Pack(context.Background(), destPath, inputs, defaultOptions()); err != nil {
		t.Fatalf("Pack: %v", err)
	}

	raw, err := os.ReadFile(destPath)
	if err != nil {
		t.Fatalf("reading archive: %v", err)
	}

	// Corrupt the sole FileEntry's first_block_index to point past
	// BlockCount (1 block was written). The entry array follows the
	// 8-byte TOC header and the 4-byte pool-size field, padded to the
	// preset's 8-byte entry alignment; first_block_index is the
	// trailing 2-byte field of the 20-byte tocPresetStandard entry,
	// after the hash, size, offset, and path_index fields.
	entryStart := fileHeaderSize + alignUp(tocHeaderSize+tocPoolSizeFieldSize, fileEntryAlignment(tocPresetStandard))
	firstBlockIndexOffset := entryStart + 8 + 4 + 4 + 2
	raw[firstBlockIndexOffset] = 0xFF
	raw[firstBlockIndexOffset+1] = 0xFF

	if err := os.WriteFile(destPath, raw, 0o644); err != nil {
		t.Fatalf("writing corrupted archive: %v", err)
	}

	if _, err := Open(destPath, OpenOptions{}); err == nil {
		t.Fatal("expected corrupted archive to fail even without hardened mode (always-on bounds check)")
	}
}
