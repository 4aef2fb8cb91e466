// Copyright 2026 The Nx Authors
// SPDX-License-Identifier: Apache-2.0

// Package nx implements the Nx semi-SOLID archive format (".r3a"): a
// bundle format that groups many small files into shared compressed
// blocks (SOLID blocks) while storing large files as independent,
// parallelism-friendly chunk runs.
//
// The package is organized in layers, each usable independently:
//
//   - Hashing: XXH3-64 over decompressed file and dictionary bytes.
//     Hashes identify content for deduplication; they are not a
//     cryptographic integrity mechanism.
//
//   - Bit-packed codec (package bitio): most-significant-bit-first
//     bit-field packing for the file header and table-of-contents
//     header.
//
//   - String pool: a lex-sorted, NUL-separated, ZStandard-compressed
//     list of every file's path, addressed by dense index.
//
//   - Dictionary section: optional per-extension ZStandard
//     dictionaries with a run-length block→dictionary mapping.
//
//   - Compressor façade: a uniform interface over Copy, LZ4, and
//     ZStandard (with "magic-less" framing that omits the 4-byte magic
//     and the 4-byte checksum of a standalone zstd frame; the
//     content-size field is still written).
//
//   - Packing: Pack groups input files into SOLID blocks and chunked
//     large-file runs, compresses them in a bounded worker pool, and
//     emits a byte-exact archive layout.
//
//   - Unpacking: Open memory-maps an archive and parses its header and
//     table of contents; the resulting Archive decompresses arbitrary
//     file subsets in parallel while honoring SOLID block locality.
//
// Archive editing in place, general-purpose compression, arbitrary
// random byte-range reads within a file, cryptographic authentication,
// and cross-format (.zip/.7z) interop are explicitly not supported —
// see the package-level type documentation for what each layer does
// and does not guarantee.
package nx
