// Copyright (c) 2024 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package blockstore

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/project-illium/ilxd/blockchain"
	"github.com/project-illium/ilxd/params"
	"github.com/project-illium/ilxd/types"
)

func testParams(maxFileBytes uint32) *params.NetworkParams {
	p := params.RegestParams
	p.MaxFileBytes = maxFileBytes
	p.BlockFileChunkSize = maxFileBytes
	p.UndoFileChunkSize = maxFileBytes
	return &p
}

func TestWriteBlockLandsAtOffsetEight(t *testing.T) {
	store, err := CreateInstance(Config{DataDir: t.TempDir(), Params: testParams(16 * 1024)}, nil, nil)
	require.NoError(t, err)
	defer store.Shutdown()

	hash := types.NewIDFromData([]byte("block-1"))
	pos, err := store.WriteBlock(hash, []byte("payload"), 0, 0)
	require.NoError(t, err)
	assert.Equal(t, DiskPosition{File: 0, Offset: 8}, pos)

	got, err := store.LoadBlock(pos)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), got)
}

func TestWriteBlockRollsOverAtMaxFileBytes(t *testing.T) {
	store, err := CreateInstance(Config{DataDir: t.TempDir(), Params: testParams(16 * 1024)}, nil, nil)
	require.NoError(t, err)
	defer store.Shutdown()

	first := make([]byte, 15*1024)
	hash1 := types.NewIDFromData([]byte("a"))
	pos1, err := store.WriteBlock(hash1, first, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, DiskPosition{File: 0, Offset: 8}, pos1)

	second := make([]byte, 2*1024)
	hash2 := types.NewIDFromData([]byte("b"))
	pos2, err := store.WriteBlock(hash2, second, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, DiskPosition{File: 1, Offset: 8}, pos2)
}

func TestLoadUndoBlockWrongHashIsCorruption(t *testing.T) {
	store, err := CreateInstance(Config{DataDir: t.TempDir(), Params: testParams(16 * 1024)}, nil, nil)
	require.NoError(t, err)
	defer store.Shutdown()

	blockHash := types.NewIDFromData([]byte("block"))
	pos, err := store.WriteUndoBlock(0, blockHash, []byte("undo-bytes"))
	require.NoError(t, err)

	wrongHash := types.NewIDFromData([]byte("different block"))
	_, err = store.LoadUndoBlock(pos, wrongHash)
	assert.Error(t, err)
	assert.True(t, ErrorIs(err, ErrCorruption))

	got, err := store.LoadUndoBlock(pos, blockHash)
	require.NoError(t, err)
	assert.Equal(t, []byte("undo-bytes"), got)
}

func TestWriteUndoBlockAdvancesLastFile(t *testing.T) {
	store, err := CreateInstance(Config{DataDir: t.TempDir(), Params: testParams(16 * 1024)}, nil, nil)
	require.NoError(t, err)
	defer store.Shutdown()

	// A resync can write revert files ahead of any forward file; the
	// persisted last-file pointer must follow.
	blockHash := types.NewIDFromData([]byte("block"))
	_, err = store.WriteUndoBlock(3, blockHash, []byte("undo-bytes"))
	require.NoError(t, err)

	last, ok, err := store.ReadLastBlockFile()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint32(3), last)
}

func TestAppendBlockLinksHeaderAndWritesPayload(t *testing.T) {
	store, err := CreateInstance(Config{DataDir: t.TempDir(), Params: testParams(16 * 1024)}, nil, nil)
	require.NoError(t, err)
	defer store.Shutdown()

	genesis := store.HeaderChain().Tip()
	header := &params.BlockHeader{
		Version:   1,
		PrevBlock: genesis.Hash,
		Time:      1700000001,
		Bits:      testParams(16 * 1024).GenesisHeader.Bits,
	}

	record, changed, err := store.AppendBlock(header, []byte("block-body"))
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, int32(1), record.Height)
	assert.True(t, record.HaveData())
	assert.Equal(t, genesis.Hash, store.HeaderChain().Tip().Previous.Hash)
	assert.Equal(t, record.Hash, store.HeaderChain().Tip().Hash)

	got, err := store.LoadBlock(DiskPosition{File: uint32(record.FileNum), Offset: record.DataOffset})
	require.NoError(t, err)
	assert.Equal(t, []byte("block-body"), got)
}

func TestInvalidateAndReconsiderBlockThroughPublicAPI(t *testing.T) {
	store, err := CreateInstance(Config{DataDir: t.TempDir(), Params: testParams(16 * 1024)}, nil, nil)
	require.NoError(t, err)
	defer store.Shutdown()

	genesis := store.HeaderChain().Tip()
	easyBits := genesis.Bits

	a1, _, err := store.AppendHeader(&params.BlockHeader{PrevBlock: genesis.Hash, Time: 1, Bits: easyBits})
	require.NoError(t, err)
	a2, _, err := store.AppendHeader(&params.BlockHeader{PrevBlock: a1.Hash, Time: 2, Bits: easyBits})
	require.NoError(t, err)
	assert.Equal(t, a2.Hash, store.HeaderChain().Tip().Hash)

	// B forks at genesis with a single, much harder block, so it
	// outweighs A's two easy blocks and becomes best.
	b1, changed, err := store.AppendHeader(&params.BlockHeader{PrevBlock: genesis.Hash, Time: 3, Bits: 0x1d00ffff})
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, b1.Hash, store.HeaderChain().Tip().Hash)

	// Invalidate B's head through the public API: the chain must
	// revert to A.
	_, err = store.InvalidateBlock(b1.Hash)
	require.NoError(t, err)
	assert.True(t, b1.Failed())
	assert.Equal(t, a2.Hash, store.HeaderChain().Tip().Hash)

	// Reconsidering clears the failure and restores B as best, with
	// no second AppendHeader call needed.
	_, err = store.ReconsiderBlock(b1.Hash)
	require.NoError(t, err)
	assert.False(t, b1.Failed())
	assert.Equal(t, b1.Hash, store.HeaderChain().Tip().Hash)

	// Reconsider idempotence: calling it again leaves things as-is.
	_, err = store.ReconsiderBlock(b1.Hash)
	require.NoError(t, err)
	assert.Equal(t, b1.Hash, store.HeaderChain().Tip().Hash)
}

func TestInvalidateBlockWithKnownChildThroughPublicAPI(t *testing.T) {
	store, err := CreateInstance(Config{DataDir: t.TempDir(), Params: testParams(16 * 1024)}, nil, nil)
	require.NoError(t, err)
	defer store.Shutdown()

	genesis := store.HeaderChain().Tip()
	easyBits := genesis.Bits

	a1, _, err := store.AppendHeader(&params.BlockHeader{PrevBlock: genesis.Hash, Time: 1, Bits: easyBits})
	require.NoError(t, err)
	a2, _, err := store.AppendHeader(&params.BlockHeader{PrevBlock: a1.Hash, Time: 2, Bits: easyBits})
	require.NoError(t, err)
	assert.Equal(t, a2.Hash, store.HeaderChain().Tip().Hash)

	// b1 is a weaker fork off genesis that stays known but never best.
	b1, changed, err := store.AppendHeader(&params.BlockHeader{PrevBlock: genesis.Hash, Time: 3, Bits: easyBits})
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, a2.Hash, store.HeaderChain().Tip().Hash)

	// Invalidate a1, which is not itself the tip -- a2 is, one block
	// further out. The whole a1/a2 branch must fail and b1 becomes
	// best since it's the only surviving candidate.
	_, err = store.InvalidateBlock(a1.Hash)
	require.NoError(t, err)
	assert.True(t, a1.Failed())
	assert.True(t, a2.Status&blockchain.StatusFailedChild != 0)
	assert.False(t, b1.Failed())
	assert.Equal(t, b1.Hash, store.HeaderChain().Tip().Hash)

	// Reconsidering a1 clears FailedMask across the whole branch.
	_, err = store.ReconsiderBlock(a1.Hash)
	require.NoError(t, err)
	assert.False(t, a1.Failed())
	assert.False(t, a2.Failed())
}

func TestReadTxIndexRoundTrip(t *testing.T) {
	store, err := CreateInstance(Config{DataDir: t.TempDir(), Params: testParams(16 * 1024)}, nil, nil)
	require.NoError(t, err)
	defer store.Shutdown()

	txHash := []byte("some-tx-hash-bytes-000000000000")
	_, ok, err := store.ReadTxIndex(txHash)
	require.NoError(t, err)
	assert.False(t, ok)

	pos := DiskPosition{File: 3, Offset: 128}
	require.NoError(t, store.WriteTxIndex(txHash, pos))

	got, ok, err := store.ReadTxIndex(txHash)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, pos, got)
}

func TestFlagRoundTrip(t *testing.T) {
	store, err := CreateInstance(Config{DataDir: t.TempDir(), Params: testParams(16 * 1024)}, nil, nil)
	require.NoError(t, err)
	defer store.Shutdown()

	_, ok, err := store.ReadFlag("did-prune")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.WriteFlag("did-prune", true))
	v, ok, err := store.ReadFlag("did-prune")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, v)
}

// recordingValidator satisfies Validator by recording every position
// and payload it's handed, for the reindex scenario below.
type recordingValidator struct {
	mu    sync.Mutex
	found []DiskPosition
}

func (v *recordingValidator) AddBlock(ctx context.Context, pos DiskPosition, payload []byte) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.found = append(v.found, pos)
	return nil
}

func (v *recordingValidator) WaitForSpace(ctx context.Context) error { return nil }

func (v *recordingValidator) WaitValidationFinished(ctx context.Context) error { return nil }

func TestReindexRediscoversBlocksAcrossFiles(t *testing.T) {
	dataDir := t.TempDir()
	smallParams := testParams(4 * 1024)

	store, err := CreateInstance(Config{DataDir: dataDir, Params: smallParams}, nil, nil)
	require.NoError(t, err)

	payload := make([]byte, 1*1024)
	for i := 0; i < 5; i++ {
		hash := types.NewIDFromData([]byte{byte(i)})
		_, err := store.WriteBlock(hash, payload, int32(i), 0)
		require.NoError(t, err)
	}
	require.NoError(t, store.Shutdown())

	// Simulate losing the index while keeping the raw block files: wipe
	// only the index directory, not blocks/.
	require.NoError(t, os.RemoveAll(filepath.Join(dataDir, "index")))

	store2, err := CreateInstance(Config{DataDir: dataDir, Params: smallParams}, nil, nil)
	require.NoError(t, err)
	defer store2.Shutdown()

	v := &recordingValidator{}
	store2.validator = v
	require.NoError(t, store2.SetReindexing(ScanningFiles))
	require.NoError(t, store2.StartBlockImporter(context.Background()))

	assert.Len(t, v.found, 5)

	state, err := store2.Reindexing()
	require.NoError(t, err)
	assert.Equal(t, NoReindex, state)
}
