// Copyright 2026 The Nx Authors
// SPDX-License-Identifier: Apache-2.0

package nx

import "encoding/binary"

// UserDataSection is an opaque, caller-defined payload stored after the
// TOC (and optional DictionarySection). The engine never interprets its
// contents.
type UserDataSection struct {
	DecompressedSize uint32
	Payload          []byte // compressed bytes as stored on disk
}

func encodeUserDataSection(u *UserDataSection) []byte {
	if u == nil {
		return nil
	}
	out := make([]byte, 8, 8+len(u.Payload))
	binary.LittleEndian.PutUint32(out[0:4], u.DecompressedSize)
	binary.LittleEndian.PutUint32(out[4:8], uint32(len(u.Payload)))
	out = append(out, u.Payload...)
	return out
}

func decodeUserDataSection(buf []byte) (*UserDataSection, error) {
	if len(buf) < 8 {
		return nil, &MalformedArchiveError{Reason: "user-data section shorter than its header"}
	}
	decompressedSize := binary.LittleEndian.Uint32(buf[0:4])
	compressedSize := binary.LittleEndian.Uint32(buf[4:8])
	if 8+int(compressedSize) > len(buf) {
		return nil, &MalformedArchiveError{Reason: "user-data payload extends past section"}
	}
	payload := buf[8 : 8+int(compressedSize)]
	return &UserDataSection{DecompressedSize: decompressedSize, Payload: payload}, nil
}
