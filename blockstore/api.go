// Copyright (c) 2024 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package blockstore

import (
	"context"

	"github.com/project-illium/ilxd/blockchain"
	"github.com/project-illium/ilxd/params"
	"github.com/project-illium/ilxd/types"
)

// CreateInstance opens the block storage engine described by cfg,
// supplying the external collaborators that validate submitted blocks
// and receive chain-state notifications. Either may be nil if the
// caller doesn't need that integration point (the validator is only
// called by StartBlockImporter, the notifier only by AppendHeader and
// AppendBlock).
func CreateInstance(cfg Config, validator Validator, notifier Notifier) (*Store, error) {
	return createInstance(cfg, validator, notifier)
}

// Shutdown flushes pending metadata and releases the engine's
// resources.
func (s *Store) Shutdown() error { return s.shutdown() }

// LoadBlock returns the raw block bytes at pos.
func (s *Store) LoadBlock(pos DiskPosition) ([]byte, error) { return s.loadBlock(pos) }

// LoadUndoBlock returns the raw undo bytes at pos, verified against
// blockHash's checksum.
func (s *Store) LoadUndoBlock(pos DiskPosition, blockHash types.ID) ([]byte, error) {
	return s.loadUndoBlock(pos, blockHash)
}

// WriteBlock appends a block's raw bytes to the current forward file.
func (s *Store) WriteBlock(hash types.ID, payload []byte, height int32, blockTime uint32) (DiskPosition, error) {
	return s.writeBlock(hash, payload, height, blockTime)
}

// WriteUndoBlock appends a block's undo bytes to the revert file
// paired with fileNum.
func (s *Store) WriteUndoBlock(fileNum uint32, blockHash types.ID, payload []byte) (DiskPosition, error) {
	return s.writeUndoBlock(fileNum, blockHash, payload)
}

// AppendHeader links header into the Block Index Map and Header Chain
// Tracker, returning whether this call changed the best tip.
func (s *Store) AppendHeader(header *params.BlockHeader) (*blockchain.BlockIndexRecord, bool, error) {
	return s.appendHeader(header)
}

// AppendBlock writes a block's bytes and links its header in one
// call.
func (s *Store) AppendBlock(header *params.BlockHeader, payload []byte) (*blockchain.BlockIndexRecord, bool, error) {
	return s.appendBlock(header, payload)
}

// InvalidateBlock marks hash's record failed and removes it from the
// Header Chain Tracker's best chain, re-selecting the best surviving
// tip. The caller is the validation engine, reporting a block that
// failed contextual or script validation.
func (s *Store) InvalidateBlock(hash types.ID) (*blockchain.BlockIndexRecord, error) {
	return s.invalidateBlock(hash)
}

// ReconsiderBlock clears a prior InvalidateBlock's failure from hash's
// record and its ancestors/descendants, and re-admits it as a
// candidate for the best chain.
func (s *Store) ReconsiderBlock(hash types.ID) (*blockchain.BlockIndexRecord, error) {
	return s.reconsiderBlock(hash)
}

// ReadBlockFileInfo returns the FileInfoRecord for fileNum.
func (s *Store) ReadBlockFileInfo(fileNum uint32) (*FileInfoRecord, error) {
	return s.readBlockFileInfo(fileNum)
}

// ReadLastBlockFile returns the last-used forward file number.
func (s *Store) ReadLastBlockFile() (uint32, bool, error) { return s.readLastBlockFile() }

// ReadTxIndex returns the position of txHash's containing block, if
// indexed.
func (s *Store) ReadTxIndex(txHash []byte) (DiskPosition, bool, error) {
	return s.readTxIndex(txHash)
}

// WriteTxIndex records pos as txHash's containing block position.
func (s *Store) WriteTxIndex(txHash []byte, pos DiskPosition) error {
	return s.writeTxIndex(txHash, pos)
}

// WriteFlag persists a named boolean flag.
func (s *Store) WriteFlag(name string, value bool) error { return s.writeFlag(name, value) }

// ReadFlag reads a named boolean flag.
func (s *Store) ReadFlag(name string) (bool, bool, error) { return s.readFlag(name) }

// Reindexing reports the persisted reindex state machine's phase.
func (s *Store) Reindexing() (ReindexState, error) { return s.reindexing() }

// SetReindexing persists a reindex state machine transition.
func (s *Store) SetReindexing(state ReindexState) error { return s.setReindexing(state) }

// HeaderChain returns the Header Chain Tracker.
func (s *Store) HeaderChain() *blockchain.HeaderChain { return s.headerChain() }

// HeaderChainTips returns every known chain tip.
func (s *Store) HeaderChainTips() []*blockchain.BlockIndexRecord { return s.headerChainTips() }

// StartBlockImporter runs the Reindex Driver to completion (or until
// ctx is cancelled).
func (s *Store) StartBlockImporter(ctx context.Context) error { return s.startBlockImporter(ctx) }
