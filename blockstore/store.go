// Copyright (c) 2024 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

// Package blockstore is the block storage engine: append-only
// numbered block/undo data files addressed through memory-mapped
// views, a typed metadata store, an in-memory multi-tip header-chain
// index, a write coordinator, and a reindex driver. Nothing in this
// package parses transactions or validates consensus rules; that is
// the job of the Validator a caller supplies to createInstance.
package blockstore

import (
	"context"
	"math/big"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/project-illium/ilxd/blockchain"
	"github.com/project-illium/ilxd/blockstore/filemap"
	"github.com/project-illium/ilxd/blockstore/metadb"
	"github.com/project-illium/ilxd/blockstore/recordio"
	"github.com/project-illium/ilxd/params"
	"github.com/project-illium/ilxd/types"
)

// Store is the block storage engine's top-level handle. Lock order
// across its fields: blockIndexLock (guarding index and chain
// together) sits above writeCoordinator.mu, which sits above
// filemap.Mapper's own internal lock. No method acquires them out of
// that order.
type Store struct {
	cfg Config

	mapper   *filemap.Mapper
	meta     *metadb.DB
	wc       *writeCoordinator
	sideData *SideData

	blockIndexLock sync.Mutex
	index          *blockchain.BlockIndex
	chain          *blockchain.HeaderChain

	validator Validator
	notifier  Notifier

	closingDown atomic.Bool
}

// createInstance opens (creating if needed) the storage engine rooted
// at cfg.DataDir. If cfg.Wipe is set, any existing metadata store and
// data files are deleted first.
func createInstance(cfg Config, validator Validator, notifier Notifier) (*Store, error) {
	cfg.assertValid()

	blocksDir := filepath.Join(cfg.DataDir, "blocks")
	indexDir := filepath.Join(cfg.DataDir, "index")
	sideDir := filepath.Join(cfg.DataDir, "sidedata")

	if cfg.Wipe {
		if err := os.RemoveAll(blocksDir); err != nil {
			return nil, storageErr(ErrIO, "blockstore: wipe blocks dir", err)
		}
		if err := os.RemoveAll(indexDir); err != nil {
			return nil, storageErr(ErrIO, "blockstore: wipe index dir", err)
		}
		if err := os.RemoveAll(sideDir); err != nil {
			return nil, storageErr(ErrIO, "blockstore: wipe side-data dir", err)
		}
	}
	if err := os.MkdirAll(blocksDir, 0755); err != nil {
		return nil, storageErr(ErrIO, "blockstore: create blocks dir", err)
	}
	if err := os.MkdirAll(indexDir, 0755); err != nil {
		return nil, storageErr(ErrIO, "blockstore: create index dir", err)
	}

	meta, err := metadb.Open(indexDir, cfg.CacheBytes)
	if err != nil {
		return nil, err
	}

	sideData, err := openSideData(sideDir, cfg.CacheBytes)
	if err != nil {
		_ = meta.Close()
		return nil, err
	}

	mapper := filemap.New(blocksDir, cfg.AltDataDirs)
	wc := newWriteCoordinator(mapper, meta, cfg.Params)
	if err := wc.loadLastFile(); err != nil {
		_ = meta.Close()
		return nil, err
	}

	s := &Store{
		cfg:       cfg,
		mapper:    mapper,
		meta:      meta,
		sideData:  sideData,
		wc:        wc,
		index:     blockchain.NewBlockIndex(),
		validator: validator,
		notifier:  notifier,
	}

	if err := s.cacheAllBlockInfos(); err != nil {
		_ = meta.Close()
		return nil, err
	}
	if err := s.seedHeaderChain(); err != nil {
		_ = meta.Close()
		return nil, err
	}

	return s, nil
}

// seedHeaderChain builds the HeaderChain tracker from whatever was
// loaded by cacheAllBlockInfos, using the configured genesis header as
// the root if nothing was loaded yet. A freshly seeded genesis record
// is persisted so that records linked to it find their parent when the
// index is reloaded.
func (s *Store) seedHeaderChain() error {
	all := s.index.AllByHeight()
	if len(all) == 0 {
		genesisHash := s.cfg.Params.GenesisHeader.ID()
		genesis := s.index.GetOrCreate(genesisHash)
		genesis.Version = s.cfg.Params.GenesisHeader.Version
		genesis.MerkleRoot = types.NewID(s.cfg.Params.GenesisHeader.MerkleRoot[:])
		genesis.Time = s.cfg.Params.GenesisHeader.Time
		genesis.Bits = s.cfg.Params.GenesisHeader.Bits
		genesis.Nonce = s.cfg.Params.GenesisHeader.Nonce
		genesis.Link(nil, bigZero())
		s.chain = blockchain.NewHeaderChain(genesis)
		batch := s.meta.NewBatch()
		batch.PutBlock(genesisHash[:], serializeBlockRecord(genesis))
		return batch.Commit(false)
	}
	s.chain = blockchain.NewHeaderChain(all[0])
	for _, r := range all[1:] {
		s.chain.Append(r)
	}
	return nil
}

// shutdown flushes pending metadata and releases the engine's
// resources. It is not idempotent: a second call returns an error,
// since the side-data store it closes first is already closed.
func (s *Store) shutdown() error {
	s.closingDown.Store(true)
	if err := s.sideData.Close(); err != nil {
		return storageErr(ErrIO, "blockstore: close side-data store", err)
	}
	return s.meta.Close()
}

// SideData exposes the auxiliary key-value store for callers that
// need to persist data outside the engine's own key table.
func (s *Store) SideData() *SideData {
	return s.sideData
}

// closing reports whether shutdown has been requested, for
// cooperative cancellation of the Reindex Driver's loops.
func (s *Store) closing() bool {
	return s.closingDown.Load()
}

// loadBlock returns the raw block bytes at pos.
func (s *Store) loadBlock(pos DiskPosition) ([]byte, error) {
	if pos.IsNone() {
		return nil, storageErr(ErrNotFound, "blockstore: no data position", nil)
	}
	view, _, _, err := s.mapper.Map(pos.File, filemap.Forward)
	if err != nil {
		return nil, err
	}
	defer view.Release()
	payload, err := recordio.ReadForward(view.Bytes(), pos.Offset, s.cfg.Params.BlockMagic)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(payload))
	copy(out, payload)
	return out, nil
}

// loadUndoBlock returns the raw undo bytes at pos, verifying the
// trailing checksum against blockHash.
func (s *Store) loadUndoBlock(pos DiskPosition, blockHash types.ID) ([]byte, error) {
	if pos.IsNone() {
		return nil, storageErr(ErrNotFound, "blockstore: no undo position", nil)
	}
	view, _, _, err := s.mapper.Map(pos.File, filemap.Revert)
	if err != nil {
		return nil, err
	}
	defer view.Release()
	payload, err := recordio.ReadRevert(view.Bytes(), pos.Offset, s.cfg.Params.UndoMagic, blockHash[:])
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(payload))
	copy(out, payload)
	return out, nil
}

// writeBlock appends a block's raw bytes to the current forward file
// and records its position, without touching the header index.
func (s *Store) writeBlock(hash types.ID, payload []byte, height int32, blockTime uint32) (DiskPosition, error) {
	return s.wc.writeBlock(hash, payload, height, blockTime, nil)
}

// writeUndoBlock appends a block's undo bytes to the revert file
// paired with fileNum.
func (s *Store) writeUndoBlock(fileNum uint32, blockHash types.ID, payload []byte) (DiskPosition, error) {
	return s.wc.writeUndoBlock(fileNum, blockHash[:], payload)
}

// appendHeader links header into the Block Index Map and folds it
// into the Header Chain Tracker, returning the record and whether this
// call changed the best chain's tip.
func (s *Store) appendHeader(header *params.BlockHeader) (*blockchain.BlockIndexRecord, bool, error) {
	s.blockIndexLock.Lock()
	defer s.blockIndexLock.Unlock()

	hash := header.ID()
	record := s.index.GetOrCreate(hash)
	if record.IsLinked() {
		return record, false, nil
	}

	var prevID types.ID
	copy(prevID[:], header.PrevBlock[:])
	prev, ok := s.index.Get(prevID)
	if !ok && prevID != (types.ID{}) {
		return nil, false, storageErr(ErrNotFound, "blockstore: unknown parent header", nil)
	}

	var work *big.Int
	if prev == nil {
		work = bigZero()
	} else {
		work = newBig().Add(prev.Work, workForBits(header.Bits))
	}

	record.Version = header.Version
	record.MerkleRoot = types.NewID(header.MerkleRoot[:])
	record.Time = header.Time
	record.Bits = header.Bits
	record.Nonce = header.Nonce
	record.Link(prev, work)

	oldTip := s.chain.Tip()
	changed := s.chain.Append(record)

	if changed && s.notifier != nil {
		s.notifier.NotifyTipChanged(oldTip.Hash, record.Hash)
	}

	return record, changed, nil
}

// appendBlock writes a block's bytes and links its header in one
// call, the common path for newly received blocks. The file-info,
// last-file, and block-index writes all land in a single metadata
// batch committed once, per spec.md's WriteBatchSync contract: a
// crash can never leave a durable last-file/file-info pointing at a
// file whose block-index record didn't make it to disk.
func (s *Store) appendBlock(header *params.BlockHeader, payload []byte) (*blockchain.BlockIndexRecord, bool, error) {
	record, changed, err := s.appendHeader(header)
	if err != nil {
		return nil, false, err
	}

	batch := s.meta.NewBatch()
	pos, err := s.wc.writeBlock(record.Hash, payload, record.Height, header.Time, batch)
	if err != nil {
		return nil, false, err
	}

	s.blockIndexLock.Lock()
	record.FileNum = int32(pos.File)
	record.DataOffset = pos.Offset
	record.Status |= blockchain.StatusHaveData
	batch.PutBlock(record.Hash[:], serializeBlockRecord(record))
	s.blockIndexLock.Unlock()

	if err := batch.Commit(false); err != nil {
		return nil, false, err
	}

	if s.notifier != nil {
		s.notifier.NotifyBlockConnected(record.Hash, record.Height)
	}
	return record, changed, nil
}

// invalidateBlock marks hash's record StatusFailed, marks every known
// descendant StatusFailedChild, and removes whichever tips those
// records affect from the Header Chain Tracker's tip set, re-selecting
// the best chain from whatever tips survive. This is the only path
// through which the validation engine reports a block that failed
// contextual or script validation after its header was already
// linked; it is the spec's "status bit changes" re-drive of the chain
// tracker that appendHeader's early-return-on-already-linked guard
// cannot reach.
func (s *Store) invalidateBlock(hash types.ID) (*blockchain.BlockIndexRecord, error) {
	s.blockIndexLock.Lock()
	defer s.blockIndexLock.Unlock()

	record, ok := s.index.Get(hash)
	if !ok {
		return nil, storageErr(ErrNotFound, "blockstore: unknown block", nil)
	}

	var dirty []*blockchain.BlockIndexRecord
	s.index.Fail(record, func(r *blockchain.BlockIndexRecord) {
		dirty = append(dirty, r)
	})
	s.chain.InvalidateTip(record)

	if len(dirty) == 0 {
		return record, nil
	}
	batch := s.meta.NewBatch()
	for _, r := range dirty {
		batch.PutBlock(r.Hash[:], serializeBlockRecord(r))
	}
	if err := batch.Commit(false); err != nil {
		return nil, err
	}
	return record, nil
}

// reconsiderBlock clears StatusFailed/StatusFailedChild from hash's
// record, every ancestor, and every descendant the Block Index Map
// finds by walking each record's skip-assisted ancestor chain
// (BlockIndex.Reconsider), then re-admits record as a Header Chain
// Tracker tip candidate so it can reclaim the best chain if its
// cumulative work still wins. Calling it twice in a row for the same
// hash is a no-op the second time, since nothing is left to clear.
func (s *Store) reconsiderBlock(hash types.ID) (*blockchain.BlockIndexRecord, error) {
	s.blockIndexLock.Lock()
	defer s.blockIndexLock.Unlock()

	record, ok := s.index.Get(hash)
	if !ok {
		return nil, storageErr(ErrNotFound, "blockstore: unknown block", nil)
	}

	var dirty []*blockchain.BlockIndexRecord
	s.index.Reconsider(record, func(r *blockchain.BlockIndexRecord) {
		dirty = append(dirty, r)
	})
	s.chain.RestoreTip(record)

	if len(dirty) == 0 {
		return record, nil
	}
	batch := s.meta.NewBatch()
	for _, r := range dirty {
		batch.PutBlock(r.Hash[:], serializeBlockRecord(r))
	}
	if err := batch.Commit(false); err != nil {
		return nil, err
	}
	return record, nil
}

// readBlockFileInfo returns the FileInfoRecord for fileNum.
func (s *Store) readBlockFileInfo(fileNum uint32) (*FileInfoRecord, error) {
	raw, err := s.meta.GetFileInfo(fileNum)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, storageErr(ErrNotFound, "blockstore: no such file info", nil)
	}
	return DeserializeFileInfoRecord(raw)
}

// readLastBlockFile returns the last-used forward file number.
func (s *Store) readLastBlockFile() (uint32, bool, error) {
	return s.meta.GetLastFile()
}

// readTxIndex returns the position of txHash's containing block, if
// indexed.
func (s *Store) readTxIndex(txHash []byte) (DiskPosition, bool, error) {
	raw, err := s.meta.GetTxIndex(txHash)
	if err != nil {
		return DiskPosition{}, false, err
	}
	if raw == nil {
		return DiskPosition{}, false, nil
	}
	pos, err := DeserializeDiskPosition(raw)
	if err != nil {
		return DiskPosition{}, false, err
	}
	return pos, true, nil
}

// writeTxIndex records pos as txHash's containing block position.
func (s *Store) writeTxIndex(txHash []byte, pos DiskPosition) error {
	batch := s.meta.NewBatch()
	batch.PutTxIndex(txHash, pos.Serialize())
	return batch.Commit(false)
}

// writeFlag persists a named boolean flag.
func (s *Store) writeFlag(name string, value bool) error {
	return s.meta.SetFlag(name, value)
}

// readFlag reads a named boolean flag.
func (s *Store) readFlag(name string) (bool, bool, error) {
	return s.meta.GetFlag(name)
}

// cacheAllBlockInfos loads every persisted BlockIndexRecord into the
// in-memory Block Index Map, linking each to its previous pointer once
// all records are present (a record may be read before its parent).
func (s *Store) cacheAllBlockInfos() error {
	s.blockIndexLock.Lock()
	defer s.blockIndexLock.Unlock()

	type pending struct {
		record *blockchain.BlockIndexRecord
		prev   types.ID
	}
	var items []pending

	err := s.meta.ForEachBlock(func(hash, value []byte) error {
		var id types.ID
		copy(id[:], hash)
		record, prevHash, err := deserializeBlockRecord(id, value)
		if err != nil {
			return err
		}
		s.index.GetOrCreate(id) // reserve the slot
		items = append(items, pending{record: record, prev: prevHash})
		return nil
	})
	if err != nil {
		return err
	}

	// Copy every field except linkage into the reserved slots first so
	// every record exists before any Link call needs its parent.
	for _, it := range items {
		slot, _ := s.index.Get(it.record.Hash)
		*slot = *it.record
		slot.Hash = it.record.Hash
		slot.Height = -1
	}

	// Now link in an order that guarantees parents are linked first:
	// repeatedly sweep until nothing new links, which terminates
	// because the parent chain is finite and acyclic.
	remaining := items
	for len(remaining) > 0 {
		progressed := false
		next := remaining[:0]
		for _, it := range remaining {
			slot, _ := s.index.Get(it.record.Hash)
			if slot.IsLinked() {
				continue
			}
			if it.prev == (types.ID{}) {
				slot.Link(nil, bigZero())
				progressed = true
				continue
			}
			parent, ok := s.index.Get(it.prev)
			if ok && parent.IsLinked() {
				slot.Link(parent, newBig().Add(parent.Work, workForBits(slot.Bits)))
				progressed = true
				continue
			}
			next = append(next, it)
		}
		remaining = next
		if !progressed && len(remaining) > 0 {
			return storageErr(ErrCorruption, "blockstore: orphaned block index records with no linkable parent", nil)
		}
	}
	return nil
}

// reindexing reports the persisted reindex state machine's current
// phase.
func (s *Store) reindexing() (ReindexState, error) {
	raw, err := s.meta.GetReindexState()
	if err != nil {
		return NoReindex, err
	}
	return ReindexState(raw), nil
}

// setReindexing persists a reindex state machine transition.
func (s *Store) setReindexing(state ReindexState) error {
	return s.meta.SetReindexState(byte(state))
}

// headerChain returns the Header Chain Tracker.
func (s *Store) headerChain() *blockchain.HeaderChain {
	s.blockIndexLock.Lock()
	defer s.blockIndexLock.Unlock()
	return s.chain
}

// headerChainTips returns every known chain tip.
func (s *Store) headerChainTips() []*blockchain.BlockIndexRecord {
	s.blockIndexLock.Lock()
	defer s.blockIndexLock.Unlock()
	return s.chain.Tips()
}

// startBlockImporter runs the Reindex Driver to completion (or until
// ctx is cancelled), honoring cfg.StopAfterBlockImport by triggering
// shutdown once it finishes.
func (s *Store) startBlockImporter(ctx context.Context) error {
	if err := s.runReindex(ctx); err != nil {
		return err
	}
	if s.cfg.StopAfterBlockImport {
		return s.shutdown()
	}
	return nil
}
