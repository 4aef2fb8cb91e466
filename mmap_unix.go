// Copyright 2026 The Nx Authors
// SPDX-License-Identifier: Apache-2.0

//go:build darwin || linux

package nx

import (
	"fmt"
	"runtime/debug"

	"golang.org/x/sys/unix"
)

// mappedFile is a read-only memory-mapped archive file. Reads go
// through the mapping directly — no syscall overhead for pages already
// resident.
type mappedFile struct {
	fd   int
	data []byte
	size int64
}

func openMappedFile(path string) (*mappedFile, error) {
	fd, err := unix.Open(path, unix.O_RDONLY, 0)
	if err != nil {
		return nil, &IoError{Kind: IoErrorMap, Err: fmt.Errorf("opening %s: %w", path, err)}
	}

	var stat unix.Stat_t
	if err := unix.Fstat(fd, &stat); err != nil {
		unix.Close(fd)
		return nil, &IoError{Kind: IoErrorMap, Err: fmt.Errorf("stating %s: %w", path, err)}
	}
	if stat.Size == 0 {
		unix.Close(fd)
		return nil, &MalformedHeaderError{Reason: "archive file is empty"}
	}

	data, err := unix.Mmap(fd, 0, int(stat.Size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		unix.Close(fd)
		return nil, &IoError{Kind: IoErrorMap, Err: fmt.Errorf("memory-mapping %s: %w", path, err)}
	}

	return &mappedFile{fd: fd, data: data, size: stat.Size}, nil
}

// Bytes returns the full mapped region. Callers must not retain slices
// derived from it beyond the mappedFile's Close.
func (m *mappedFile) Bytes() []byte {
	return m.data
}

func (m *mappedFile) Size() int64 {
	return m.size
}

// ReadAt guards against SIGBUS from storage I/O errors on the mapped
// region (e.g. a truncated or failing backing device) by disabling the
// normal Go crash-on-fault behavior for the duration of the copy.
func (m *mappedFile) ReadAt(p []byte, off int64) (readCount int, err error) {
	if off < 0 || off >= m.size {
		return 0, &IoError{Kind: IoErrorShortRead, Err: fmt.Errorf("offset %d out of range", off)}
	}

	old := debug.SetPanicOnFault(true)
	defer func() {
		debug.SetPanicOnFault(old)
		if r := recover(); r != nil {
			err = &IoError{Kind: IoErrorShortRead, Err: fmt.Errorf("page fault reading archive at offset %d: %v", off, r)}
		}
	}()

	readCount = copy(p, m.data[off:])
	if readCount < len(p) {
		return readCount, &IoError{Kind: IoErrorShortRead, Err: fmt.Errorf("read %d of %d bytes at offset %d", readCount, len(p), off)}
	}
	return readCount, nil
}

func (m *mappedFile) Close() error {
	var firstErr error
	if m.data != nil {
		if err := unix.Munmap(m.data); err != nil {
			firstErr = fmt.Errorf("unmapping archive: %w", err)
		}
		m.data = nil
	}
	if m.fd >= 0 {
		if err := unix.Close(m.fd); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing archive fd: %w", err)
		}
		m.fd = -1
	}
	return firstErr
}
