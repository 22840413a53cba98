// Copyright (c) 2024 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

// Package metadb is the typed façade over the embedded ordered
// key-value store that backs file-info, tx-index, block-index, flag,
// reindex-state, and last-file records. It is built directly on
// github.com/dgraph-io/badger (v1) rather than through the
// ipfs/go-datastore shim so it can control key encoding, batch
// semantics, and value obfuscation directly.
package metadb

import (
	"crypto/rand"
	"encoding/binary"

	badger "github.com/dgraph-io/badger"

	"github.com/project-illium/ilxd/blockstore/internal/storeerr"
)

// Key prefixes, per the Metadata Store's key table.
const (
	prefixFileInfo byte = 'f'
	prefixTxIndex  byte = 't'
	prefixBlock    byte = 'b'
	prefixFlag     byte = 'F'
	prefixReindex  byte = 'R'
	prefixLastFile byte = 'l'

	obfuscationKeyRecord byte = 0x00
	obfuscationKeySize        = 32
)

// DB is the typed metadata store.
type DB struct {
	db     *badger.DB
	obfKey []byte
}

// Open opens (creating if needed) the embedded KV store rooted at
// dir, discovering or generating the per-database obfuscation key. A
// positive cacheBytes is passed to badger as its MaxTableSize; no
// block-cache size is set.
func Open(dir string, cacheBytes int64) (*DB, error) {
	opts := badger.DefaultOptions(dir)
	if cacheBytes > 0 {
		opts.MaxTableSize = cacheBytes
	}
	bdb, err := badger.Open(opts)
	if err != nil {
		return nil, storeerr.IOErr("metadb: open", err)
	}

	d := &DB{db: bdb}
	if err := d.loadOrCreateObfKey(); err != nil {
		_ = bdb.Close()
		return nil, err
	}
	return d, nil
}

// Close releases the underlying KV handle.
func (d *DB) Close() error {
	if err := d.db.Close(); err != nil {
		return storeerr.IOErr("metadb: close", err)
	}
	return nil
}

func (d *DB) loadOrCreateObfKey() error {
	key := []byte{obfuscationKeyRecord}
	var stored []byte
	err := d.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		stored, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return storeerr.IOErr("metadb: load obfuscation key", err)
	}
	if len(stored) == obfuscationKeySize {
		d.obfKey = stored
		return nil
	}

	fresh := make([]byte, obfuscationKeySize)
	if _, err := rand.Read(fresh); err != nil {
		return storeerr.IOErr("metadb: generate obfuscation key", err)
	}
	err = d.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, fresh)
	})
	if err != nil {
		return storeerr.IOErr("metadb: persist obfuscation key", err)
	}
	d.obfKey = fresh
	return nil
}

func (d *DB) obfuscate(v []byte) []byte {
	out := make([]byte, len(v))
	for i := range v {
		out[i] = v[i] ^ d.obfKey[i%len(d.obfKey)]
	}
	return out
}

// fileInfoKey, txIndexKey, and blockKey build the secondary-keyed
// record keys for their respective prefixes.

func fileInfoKey(fileNum uint32) []byte {
	k := make([]byte, 5)
	k[0] = prefixFileInfo
	binary.BigEndian.PutUint32(k[1:], fileNum)
	return k
}

func txIndexKey(txHash []byte) []byte {
	k := make([]byte, 1+len(txHash))
	k[0] = prefixTxIndex
	copy(k[1:], txHash)
	return k
}

func blockKey(blockHash []byte) []byte {
	k := make([]byte, 1+len(blockHash))
	k[0] = prefixBlock
	copy(k[1:], blockHash)
	return k
}

func flagKey(name string) []byte {
	k := make([]byte, 1+len(name))
	k[0] = prefixFlag
	copy(k[1:], name)
	return k
}

// Get reads and de-obfuscates the raw value stored under key, or nil
// if absent.
func (d *DB) get(key []byte) ([]byte, error) {
	var val []byte
	err := d.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		v, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		val = v
		return nil
	})
	if err != nil {
		return nil, storeerr.IOErr("metadb: get", err)
	}
	if val == nil {
		return nil, nil
	}
	return d.obfuscate(val), nil
}

// GetFileInfo returns the raw (decoded-by-caller) bytes for a
// FileInfoRecord, or nil if absent.
func (d *DB) GetFileInfo(fileNum uint32) ([]byte, error) {
	return d.get(fileInfoKey(fileNum))
}

// GetTxIndex returns the raw DiskPosition bytes for a transaction
// hash, or nil if absent.
func (d *DB) GetTxIndex(txHash []byte) ([]byte, error) {
	return d.get(txIndexKey(txHash))
}

// GetBlock returns the raw serialized BlockIndexRecord bytes for a
// block hash, or nil if absent.
func (d *DB) GetBlock(blockHash []byte) ([]byte, error) {
	return d.get(blockKey(blockHash))
}

// GetFlag returns the boolean flag value and whether it was present.
func (d *DB) GetFlag(name string) (bool, bool, error) {
	raw, err := d.get(flagKey(name))
	if err != nil {
		return false, false, err
	}
	if raw == nil {
		return false, false, nil
	}
	return raw[0] == '1', true, nil
}

// GetReindexState returns the persisted reindex state (0, 1, or 2),
// defaulting to 0 (NoReindex) if absent.
func (d *DB) GetReindexState() (byte, error) {
	raw, err := d.get([]byte{prefixReindex})
	if err != nil {
		return 0, err
	}
	if raw == nil {
		return 0, nil
	}
	return raw[0], nil
}

// GetLastFile returns the persisted last-used file number and whether
// it was present.
func (d *DB) GetLastFile() (uint32, bool, error) {
	raw, err := d.get([]byte{prefixLastFile})
	if err != nil {
		return 0, false, err
	}
	if raw == nil {
		return 0, false, nil
	}
	return binary.BigEndian.Uint32(raw), true, nil
}

// ForEachBlock calls fn with the raw (caller-decoded) value of every
// 'b'-prefixed record, for cacheAllBlockInfos.
func (d *DB) ForEachBlock(fn func(blockHash, value []byte) error) error {
	return d.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		it := txn.NewIterator(opts)
		defer it.Close()
		prefix := []byte{prefixBlock}
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			v, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			hash := make([]byte, len(item.Key())-1)
			copy(hash, item.Key()[1:])
			if err := fn(hash, d.obfuscate(v)); err != nil {
				return err
			}
		}
		return nil
	})
}

// SetFlag writes a single flag value immediately (not part of a
// batch), syncing on commit.
func (d *DB) SetFlag(name string, value bool) error {
	v := byte('0')
	if value {
		v = '1'
	}
	err := d.db.Update(func(txn *badger.Txn) error {
		return txn.Set(flagKey(name), d.obfuscate([]byte{v}))
	})
	if err != nil {
		return storeerr.IOErr("metadb: set flag", err)
	}
	return d.db.Sync()
}

// SetReindexState writes the reindex state machine's value
// immediately, syncing on commit since transitions must be durable
// before the caller proceeds.
func (d *DB) SetReindexState(state byte) error {
	err := d.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte{prefixReindex}, d.obfuscate([]byte{state}))
	})
	if err != nil {
		return storeerr.IOErr("metadb: set reindex state", err)
	}
	return d.db.Sync()
}

// Batch accumulates a set of writes to commit atomically.
type Batch struct {
	db  *DB
	ops []batchOp
}

type batchOp struct {
	key   []byte
	value []byte
	del   bool
}

// NewBatch returns an empty Batch bound to this store.
func (d *DB) NewBatch() *Batch {
	return &Batch{db: d}
}

// PutFileInfo stages a FileInfoRecord write.
func (b *Batch) PutFileInfo(fileNum uint32, value []byte) {
	b.ops = append(b.ops, batchOp{key: fileInfoKey(fileNum), value: b.db.obfuscate(value)})
}

// PutTxIndex stages a transaction-index write.
func (b *Batch) PutTxIndex(txHash, value []byte) {
	b.ops = append(b.ops, batchOp{key: txIndexKey(txHash), value: b.db.obfuscate(value)})
}

// PutBlock stages a serialized BlockIndexRecord write.
func (b *Batch) PutBlock(blockHash, value []byte) {
	b.ops = append(b.ops, batchOp{key: blockKey(blockHash), value: b.db.obfuscate(value)})
}

// PutLastFile stages the last-used-file-number write.
func (b *Batch) PutLastFile(fileNum uint32) {
	v := make([]byte, 4)
	binary.BigEndian.PutUint32(v, fileNum)
	b.ops = append(b.ops, batchOp{key: []byte{prefixLastFile}, value: b.db.obfuscate(v)})
}

// DeleteBlock stages a block-index record deletion.
func (b *Batch) DeleteBlock(blockHash []byte) {
	b.ops = append(b.ops, batchOp{key: blockKey(blockHash), del: true})
}

// Commit applies every staged write atomically. If sync is true the
// commit is flushed to disk before returning, matching
// WriteBatchSync's sync-on-commit option.
func (b *Batch) Commit(sync bool) error {
	err := b.db.db.Update(func(txn *badger.Txn) error {
		for _, op := range b.ops {
			if op.del {
				if err := txn.Delete(op.key); err != nil {
					return err
				}
				continue
			}
			if err := txn.Set(op.key, op.value); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return storeerr.IOErr("metadb: commit batch", err)
	}
	if sync {
		if err := b.db.db.Sync(); err != nil {
			return storeerr.IOErr("metadb: sync after commit", err)
		}
	}
	return nil
}
