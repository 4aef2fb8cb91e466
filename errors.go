// Copyright 2026 The Nx Authors
// SPDX-License-Identifier: Apache-2.0

package nx

import (
	"errors"
	"fmt"
)

// MalformedHeaderError reports that the 8-byte FileHeader failed a
// structural check (truncated or empty file, chunk_size_log2 out of
// range, a zero page count or one that exceeds the file size).
type MalformedHeaderError struct {
	Reason string
}

func (err *MalformedHeaderError) Error() string {
	return fmt.Sprintf("nx: malformed file header: %s", err.Reason)
}

// UnsupportedFormatVersionError reports a FileHeader.FormatVersion this
// build does not know how to parse.
type UnsupportedFormatVersionError struct {
	Version uint8
}

func (err *UnsupportedFormatVersionError) Error() string {
	return fmt.Sprintf("nx: unsupported format version %d", err.Version)
}

// UnsupportedTocVersionError reports a table-of-contents discriminant
// this build does not implement.
type UnsupportedTocVersionError struct {
	Version uint8
}

func (err *UnsupportedTocVersionError) Error() string {
	return fmt.Sprintf("nx: unsupported table-of-contents version %d", err.Version)
}

// MalformedStringPoolError reports that the string pool failed to
// decompress or its NUL-separated entries do not match the file count
// the table of contents declared.
type MalformedStringPoolError struct {
	Reason string
}

func (err *MalformedStringPoolError) Error() string {
	return fmt.Sprintf("nx: malformed string pool: %s", err.Reason)
}

// MalformedArchiveError reports a structural inconsistency in the
// archive that is not specific to the header or string pool: an out of
// range block index, a chunk run that overlaps another file's blocks,
// an offset outside the mapped region.
type MalformedArchiveError struct {
	Reason string
}

func (err *MalformedArchiveError) Error() string {
	return fmt.Sprintf("nx: malformed archive: %s", err.Reason)
}

// UnknownCompressionTagError reports a block compression tag this build
// does not recognize.
type UnknownCompressionTagError struct {
	Tag uint8
}

func (err *UnknownCompressionTagError) Error() string {
	return fmt.Sprintf("nx: unknown compression tag %d", err.Tag)
}

// UnknownDictionaryIndexError reports a block's dictionary index
// falling outside the dictionary section's entry count.
type UnknownDictionaryIndexError struct {
	Index uint8
}

func (err *UnknownDictionaryIndexError) Error() string {
	return fmt.Sprintf("nx: unknown dictionary index %d", err.Index)
}

// CompressionError wraps a failure from a specific compression
// algorithm, preserving the underlying library error for inspection.
type CompressionError struct {
	Algorithm string
	Err       error
}

func (err *CompressionError) Error() string {
	return fmt.Sprintf("nx: %s: %v", err.Algorithm, err.Err)
}

func (err *CompressionError) Unwrap() error {
	return err.Err
}

// HashMismatchError reports that a decompressed file's content hash did
// not match the hash recorded in its FileEntry. Only raised when hash
// verification is requested; see OpenOptions.VerifyHashes.
type HashMismatchError struct {
	Path     string
	Expected uint64
	Actual   uint64
}

func (err *HashMismatchError) Error() string {
	return fmt.Sprintf("nx: hash mismatch for %q: expected %s, got %s",
		err.Path, FormatHash(err.Expected), FormatHash(err.Actual))
}

// IoError wraps an underlying I/O failure (short read, mmap failure,
// write failure) with a classification that callers can switch on
// without inspecting the wrapped error's concrete type.
type IoError struct {
	Kind IoErrorKind
	Err  error
}

// IoErrorKind classifies an IoError.
type IoErrorKind int

const (
	IoErrorUnknown IoErrorKind = iota
	IoErrorShortRead
	IoErrorMap
	IoErrorWrite
)

func (err *IoError) Error() string {
	return fmt.Sprintf("nx: io error (%s): %v", err.Kind, err.Err)
}

func (err *IoError) Unwrap() error {
	return err.Err
}

func (kind IoErrorKind) String() string {
	switch kind {
	case IoErrorShortRead:
		return "short read"
	case IoErrorMap:
		return "memory map"
	case IoErrorWrite:
		return "write"
	default:
		return "unknown"
	}
}

// Cancelled is returned by Pack when the caller's context is cancelled
// before every block job has been dispatched. Unpacking operations take
// no context and are not cancellable.
var Cancelled = errors.New("nx: operation cancelled")

// IsMalformed reports whether err indicates the archive's on-disk
// layout is structurally invalid, as opposed to an I/O or cancellation
// failure.
func IsMalformed(err error) bool {
	var headerErr *MalformedHeaderError
	var poolErr *MalformedStringPoolError
	var archiveErr *MalformedArchiveError
	return errors.As(err, &headerErr) || errors.As(err, &poolErr) || errors.As(err, &archiveErr)
}

// IsHashMismatch reports whether err is a [HashMismatchError].
func IsHashMismatch(err error) bool {
	var hashErr *HashMismatchError
	return errors.As(err, &hashErr)
}

// IsUnsupportedVersion reports whether err indicates the archive was
// produced by a format or table-of-contents version this build cannot
// parse.
func IsUnsupportedVersion(err error) bool {
	var formatErr *UnsupportedFormatVersionError
	var tocErr *UnsupportedTocVersionError
	return errors.As(err, &formatErr) || errors.As(err, &tocErr)
}
