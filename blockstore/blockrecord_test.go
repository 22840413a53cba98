// Copyright (c) 2024 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package blockstore

import (
	"math/big"
	"testing"

	"github.com/go-test/deep"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/project-illium/ilxd/blockchain"
	"github.com/project-illium/ilxd/types"
)

func TestBlockRecordRoundTrip(t *testing.T) {
	prev := &blockchain.BlockIndexRecord{Hash: types.NewIDFromData([]byte("parent"))}

	r := &blockchain.BlockIndexRecord{
		Hash:       types.NewIDFromData([]byte("child")),
		Previous:   prev,
		Version:    1,
		MerkleRoot: types.NewIDFromData([]byte("merkle")),
		Time:       1700000000,
		Bits:       0x1d00ffff,
		Nonce:      424242,
		FileNum:    3,
		DataOffset: 1024,
		UndoOffset: 512,
		TxCount:    7,
		Status:     blockchain.StatusHaveData | blockchain.StatusHaveUndo,
		Work:       big.NewInt(1 << 30),
	}

	raw := serializeBlockRecord(r)
	require.Len(t, raw, blockRecordSize)

	got, prevHash, err := deserializeBlockRecord(r.Hash, raw)
	require.NoError(t, err)
	assert.Equal(t, prev.Hash, prevHash)

	r.Height = -1 // deserializeBlockRecord never knows height; Link assigns it
	r.Previous = nil
	r.Skip = nil
	if diff := deep.Equal(r, got); diff != nil {
		t.Fatalf("round trip mismatch: %v", diff)
	}
}

func TestBlockRecordRoundTripWithNilWorkAndGenesis(t *testing.T) {
	r := &blockchain.BlockIndexRecord{
		Hash:   types.NewIDFromData([]byte("genesis")),
		Height: 0,
	}

	raw := serializeBlockRecord(r)
	got, prevHash, err := deserializeBlockRecord(r.Hash, raw)
	require.NoError(t, err)
	assert.Equal(t, types.ID{}, prevHash)
	assert.Equal(t, 0, big.NewInt(0).Cmp(got.Work))
}

func TestDeserializeBlockRecordRejectsShortInput(t *testing.T) {
	_, _, err := deserializeBlockRecord(types.ID{}, make([]byte, blockRecordSize-1))
	assert.Error(t, err)
	assert.True(t, ErrorIs(err, ErrCorruption))
}
