// Copyright 2026 The Nx Authors
// SPDX-License-Identifier: Apache-2.0

//go:build !darwin && !linux

package nx

import (
	"fmt"
	"io"
	"os"
)

// mappedFile is a portable, non-mmap'd fallback that reads the whole
// archive into a heap buffer. Used on platforms without a
// golang.org/x/sys/unix mmap binding.
type mappedFile struct {
	data []byte
}

func openMappedFile(path string) (*mappedFile, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, &IoError{Kind: IoErrorMap, Err: fmt.Errorf("opening %s: %w", path, err)}
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, &IoError{Kind: IoErrorMap, Err: fmt.Errorf("reading %s: %w", path, err)}
	}
	if len(data) == 0 {
		return nil, &MalformedHeaderError{Reason: "archive file is empty"}
	}
	return &mappedFile{data: data}, nil
}

func (m *mappedFile) Bytes() []byte {
	return m.data
}

func (m *mappedFile) Size() int64 {
	return int64(len(m.data))
}

func (m *mappedFile) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off >= int64(len(m.data)) {
		return 0, &IoError{Kind: IoErrorShortRead, Err: fmt.Errorf("offset %d out of range", off)}
	}
	readCount := copy(p, m.data[off:])
	if readCount < len(p) {
		return readCount, &IoError{Kind: IoErrorShortRead, Err: fmt.Errorf("read %d of %d bytes at offset %d", readCount, len(p), off)}
	}
	return readCount, nil
}

func (m *mappedFile) Close() error {
	m.data = nil
	return nil
}
