// Copyright (c) 2024 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package blockstore

import "encoding/binary"

// DiskPosition identifies a record inside a numbered data file. An
// Offset of zero encodes "none"; the codec never returns offset zero
// for a real record since every file's first eight bytes are its
// opening frame header.
type DiskPosition struct {
	File   uint32
	Offset uint32
}

// IsNone reports whether this position encodes the absence of a
// record.
func (p DiskPosition) IsNone() bool {
	return p.Offset == 0
}

// diskPositionSize is the serialized size of a DiskPosition.
const diskPositionSize = 8

// Serialize returns the big-endian encoding of p, used as metadata
// store values so lexicographic key order doesn't need to reason
// about value bytes.
func (p DiskPosition) Serialize() []byte {
	b := make([]byte, diskPositionSize)
	binary.BigEndian.PutUint32(b[0:4], p.File)
	binary.BigEndian.PutUint32(b[4:8], p.Offset)
	return b
}

// DeserializeDiskPosition decodes the encoding produced by Serialize.
func DeserializeDiskPosition(b []byte) (DiskPosition, error) {
	if len(b) < diskPositionSize {
		return DiskPosition{}, storageErr(ErrCorruption, "short disk position", nil)
	}
	return DiskPosition{
		File:   binary.BigEndian.Uint32(b[0:4]),
		Offset: binary.BigEndian.Uint32(b[4:8]),
	}, nil
}
