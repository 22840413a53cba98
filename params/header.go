// Copyright (c) 2024 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package params

import (
	"encoding/binary"

	"github.com/project-illium/ilxd/types"
)

// HeaderSize is the fixed wire size of a BlockHeader: 4 (version) +
// 32 (prev) + 32 (merkle root) + 4 (time) + 4 (bits) + 4 (nonce).
const HeaderSize = 80

// Serialize returns the canonical 80-byte little-endian encoding of
// the header. Every stored block hash is defined as the hash of this
// encoding.
func (h *BlockHeader) Serialize() []byte {
	b := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(b[0:4], uint32(h.Version))
	copy(b[4:36], h.PrevBlock[:])
	copy(b[36:68], h.MerkleRoot[:])
	binary.LittleEndian.PutUint32(b[68:72], h.Time)
	binary.LittleEndian.PutUint32(b[72:76], h.Bits)
	binary.LittleEndian.PutUint32(b[76:80], h.Nonce)
	return b
}

// Deserialize decodes an 80-byte header encoding produced by
// Serialize.
func (h *BlockHeader) Deserialize(b []byte) error {
	if len(b) < HeaderSize {
		return ErrShortHeader
	}
	h.Version = int32(binary.LittleEndian.Uint32(b[0:4]))
	copy(h.PrevBlock[:], b[4:36])
	copy(h.MerkleRoot[:], b[36:68])
	h.Time = binary.LittleEndian.Uint32(b[68:72])
	h.Bits = binary.LittleEndian.Uint32(b[72:76])
	h.Nonce = binary.LittleEndian.Uint32(b[76:80])
	return nil
}

// ID returns the block hash: the hash of the header's canonical
// serialization.
func (h *BlockHeader) ID() types.ID {
	return types.NewIDFromData(h.Serialize())
}

// ErrShortHeader is returned by Deserialize when fewer than
// HeaderSize bytes are supplied.
var ErrShortHeader = shortHeaderError{}

type shortHeaderError struct{}

func (shortHeaderError) Error() string { return "header: short buffer" }
