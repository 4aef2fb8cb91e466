// Copyright 2026 The Nx Authors
// SPDX-License-Identifier: Apache-2.0

package nx

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// zstdMagic is the 4-byte frame magic klauspost/compress/zstd always
// writes. Magic-less blocks strip it before storage and re-synthesize
// it before handing the frame back to the decoder, saving 4 bytes per
// block; the frame checksum is additionally disabled on the encoder
// side, saving 4 more. The Frame_Content_Size field EncodeAll still
// writes is kept, so this is an 8-byte saving per block, not the full
// 12 bytes a minimal frame header could reach.
var zstdMagic = [4]byte{0x28, 0xb5, 0x2f, 0xfd}

// rawDictionaryID is the Dictionary_ID this implementation stamps on
// every raw-content zstd dictionary. Each compressBlock/decompressBlock
// call that uses a dictionary builds a fresh encoder/decoder scoped to
// exactly one dictionary's content, so a single shared ID never causes
// cross-dictionary confusion — it only has to match between the two
// sides of one block's encode/decode.
const rawDictionaryID = 1

// zstdEncoder and zstdDecoder are reused across calls; both types are
// safe for concurrent use once constructed.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.SpeedDefault),
		zstd.WithEncoderCRC(false),
	)
	if err != nil {
		panic("nx: zstd encoder initialization failed: " + err.Error())
	}

	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("nx: zstd decoder initialization failed: " + err.Error())
	}
}

// compressBlock compresses data with the given algorithm. dict, when
// non-nil, is used as zstd raw-content dictionary bytes (LZ4 and Copy
// ignore it). Returns CompressionError on any backend failure.
func compressBlock(data []byte, tag CompressionTag, dict []byte) ([]byte, error) {
	switch tag {
	case CompressionCopy:
		return data, nil
	case CompressionLZ4:
		return compressLZ4(data)
	case CompressionZStd:
		return compressZstdMagicless(data, dict)
	case CompressionBZip3:
		// No pure-Go BZip3 implementation is available; the reference
		// format binds libbzip3 natively. Pack fails with this error
		// when PackOptions.Algorithm is BZip3; decode-side dispatch
		// also recognizes the tag and fails loudly rather than
		// silently misparse.
		return nil, &CompressionError{Algorithm: "bzip3", Err: fmt.Errorf("bzip3 compression is not implemented")}
	default:
		return nil, &UnknownCompressionTagError{Tag: uint8(tag)}
	}
}

// decompressBlock reverses compressBlock. decompressedSize must be
// exact: it is the out-of-band size every magic-less zstd frame
// requires, and is also used to size the LZ4/Copy destination buffers.
func decompressBlock(compressed []byte, tag CompressionTag, decompressedSize int, dict []byte) ([]byte, error) {
	switch tag {
	case CompressionCopy:
		if len(compressed) != decompressedSize {
			return nil, &MalformedArchiveError{Reason: "copy block size does not match decompressed size"}
		}
		return compressed, nil
	case CompressionLZ4:
		return decompressLZ4(compressed, decompressedSize)
	case CompressionZStd:
		return decompressZstdMagicless(compressed, decompressedSize, dict)
	case CompressionBZip3:
		return nil, &CompressionError{Algorithm: "bzip3", Err: fmt.Errorf("bzip3 decompression is not implemented")}
	default:
		return nil, &UnknownCompressionTagError{Tag: uint8(tag)}
	}
}

func compressLZ4(data []byte) ([]byte, error) {
	bound := lz4.CompressBlockBound(len(data))
	destination := make([]byte, bound)
	written, err := lz4.CompressBlock(data, destination, nil)
	if err != nil {
		return nil, &CompressionError{Algorithm: "lz4", Err: err}
	}
	if written == 0 {
		// lz4 reports 0 when it determined the block is incompressible;
		// the caller still needs a valid payload, so fall back to a
		// verbatim copy rather than failing the whole block.
		return append([]byte(nil), data...), nil
	}
	return destination[:written], nil
}

func decompressLZ4(compressed []byte, decompressedSize int) ([]byte, error) {
	if len(compressed) == decompressedSize {
		// Mirrors the compressLZ4 incompressible fallback: the stored
		// bytes are the verbatim original, not an LZ4 block.
		return append([]byte(nil), compressed...), nil
	}
	destination := make([]byte, decompressedSize)
	read, err := lz4.UncompressBlock(compressed, destination)
	if err != nil {
		return nil, &CompressionError{Algorithm: "lz4", Err: err}
	}
	if read != decompressedSize {
		return nil, &CompressionError{Algorithm: "lz4", Err: fmt.Errorf("got %d bytes, want %d", read, decompressedSize)}
	}
	return destination, nil
}

func compressZstdMagicless(data []byte, dict []byte) ([]byte, error) {
	encoder := zstdEncoder
	var err error
	if len(dict) > 0 {
		encoder, err = zstd.NewWriter(nil,
			zstd.WithEncoderLevel(zstd.SpeedDefault),
			zstd.WithEncoderCRC(false),
			zstd.WithEncoderDictRaw(rawDictionaryID, dict),
		)
		if err != nil {
			return nil, &CompressionError{Algorithm: "zstd", Err: err}
		}
		defer encoder.Close()
	}

	framed := encoder.EncodeAll(data, nil)
	if len(framed) < len(zstdMagic) {
		return nil, &CompressionError{Algorithm: "zstd", Err: fmt.Errorf("frame shorter than magic")}
	}
	return framed[len(zstdMagic):], nil
}

func decompressZstdMagicless(compressed []byte, decompressedSize int, dict []byte) ([]byte, error) {
	framed := make([]byte, 0, len(zstdMagic)+len(compressed))
	framed = append(framed, zstdMagic[:]...)
	framed = append(framed, compressed...)

	decoder := zstdDecoder
	if len(dict) > 0 {
		var err error
		decoder, err = zstd.NewReader(nil, zstd.WithDecoderDictRaw(rawDictionaryID, dict))
		if err != nil {
			return nil, &CompressionError{Algorithm: "zstd", Err: err}
		}
		defer decoder.Close()
	}

	result, err := decoder.DecodeAll(framed, make([]byte, 0, decompressedSize))
	if err != nil {
		return nil, &CompressionError{Algorithm: "zstd", Err: err}
	}
	if len(result) != decompressedSize {
		return nil, &CompressionError{Algorithm: "zstd", Err: fmt.Errorf("got %d bytes, want %d", len(result), decompressedSize)}
	}
	return result, nil
}
