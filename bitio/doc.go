// Copyright 2026 The Nx Authors
// SPDX-License-Identifier: Apache-2.0

// Package bitio implements the bit-packed codec used by
// the Nx archive format's file header and table-of-contents header: an
// ordered tuple of fixed-width bit-fields packed
// sequentially into a byte buffer, with no per-field padding.
//
// Fields are packed most-significant-bit first within the stream: the
// first field written occupies the high bits of the first byte, the
// second field continues immediately after (crossing a byte boundary
// mid-field when it doesn't divide evenly), and so on. A field wider
// than one byte therefore has its most significant bits in the earliest
// byte: the stream is big-endian in bit and byte order, not
// little-endian. A [Writer] and
// [Reader] pair is always used together for a given schema — the caller
// is responsible for writing and reading fields in the same order with
// the same widths.
//
// Widths up to 64 bits are supported. [Reader.ReadBits] returns
// io.ErrUnexpectedEOF when a read would run past the end of the
// buffer, which callers translate into the format's MalformedHeader
// error (file header) or MalformedArchive error (TOC header).
package bitio
