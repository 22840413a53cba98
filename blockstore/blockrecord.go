// Copyright (c) 2024 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package blockstore

import (
	"encoding/binary"
	"math/big"

	"github.com/project-illium/ilxd/blockchain"
	"github.com/project-illium/ilxd/types"
)

// blockRecordSize is the serialized size of a BlockIndexRecord, not
// counting its hash (which is the metadata store's key, not part of
// the value): previous hash (32) + version (4) + merkle root (32) +
// time/bits/nonce (4*3) + file num (4) + data/undo offset (4*2) + tx
// count (4) + status (4) + work (32, big-endian, zero-padded).
const blockRecordSize = 32 + 4 + 32 + 12 + 4 + 8 + 4 + 4 + 32

// serializeBlockRecord encodes r (excluding its own hash) for storage
// under the metadata store's 'b' prefix.
func serializeBlockRecord(r *blockchain.BlockIndexRecord) []byte {
	b := make([]byte, blockRecordSize)
	off := 0

	var prevHash types.ID
	if r.Previous != nil {
		prevHash = r.Previous.Hash
	}
	copy(b[off:off+32], prevHash[:])
	off += 32

	binary.LittleEndian.PutUint32(b[off:off+4], uint32(r.Version))
	off += 4

	copy(b[off:off+32], r.MerkleRoot[:])
	off += 32

	binary.LittleEndian.PutUint32(b[off:off+4], r.Time)
	off += 4
	binary.LittleEndian.PutUint32(b[off:off+4], r.Bits)
	off += 4
	binary.LittleEndian.PutUint32(b[off:off+4], r.Nonce)
	off += 4

	binary.LittleEndian.PutUint32(b[off:off+4], uint32(r.FileNum))
	off += 4
	binary.LittleEndian.PutUint32(b[off:off+4], r.DataOffset)
	off += 4
	binary.LittleEndian.PutUint32(b[off:off+4], r.UndoOffset)
	off += 4
	binary.LittleEndian.PutUint32(b[off:off+4], r.TxCount)
	off += 4

	binary.LittleEndian.PutUint32(b[off:off+4], uint32(r.Status))
	off += 4

	work := r.Work
	if work == nil {
		work = big.NewInt(0)
	}
	workBytes := work.Bytes()
	copy(b[off+32-len(workBytes):off+32], workBytes)

	return b
}

// deserializeBlockRecord decodes the bytes produced by
// serializeBlockRecord into a fresh record carrying hash. previousHash
// is returned separately since linking it to its BlockIndexRecord
// pointer is the caller's job (it may not be loaded yet).
func deserializeBlockRecord(hash types.ID, b []byte) (*blockchain.BlockIndexRecord, types.ID, error) {
	if len(b) < blockRecordSize {
		return nil, types.ID{}, storageErr(ErrCorruption, "short block index record", nil)
	}
	off := 0

	var prevHash types.ID
	copy(prevHash[:], b[off:off+32])
	off += 32

	version := int32(binary.LittleEndian.Uint32(b[off : off+4]))
	off += 4

	var merkleRoot types.ID
	copy(merkleRoot[:], b[off:off+32])
	off += 32

	blkTime := binary.LittleEndian.Uint32(b[off : off+4])
	off += 4
	bits := binary.LittleEndian.Uint32(b[off : off+4])
	off += 4
	nonce := binary.LittleEndian.Uint32(b[off : off+4])
	off += 4

	fileNum := int32(binary.LittleEndian.Uint32(b[off : off+4]))
	off += 4
	dataOffset := binary.LittleEndian.Uint32(b[off : off+4])
	off += 4
	undoOffset := binary.LittleEndian.Uint32(b[off : off+4])
	off += 4
	txCount := binary.LittleEndian.Uint32(b[off : off+4])
	off += 4

	status := blockchain.Status(binary.LittleEndian.Uint32(b[off : off+4]))
	off += 4

	work := new(big.Int).SetBytes(b[off : off+32])

	r := &blockchain.BlockIndexRecord{
		Hash:       hash,
		Height:     -1,
		Version:    version,
		MerkleRoot: merkleRoot,
		Time:       blkTime,
		Bits:       bits,
		Nonce:      nonce,
		FileNum:    fileNum,
		DataOffset: dataOffset,
		UndoOffset: undoOffset,
		TxCount:    txCount,
		Status:     status,
		Work:       work,
	}
	return r, prevHash, nil
}
