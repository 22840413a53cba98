// Copyright (c) 2022 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package blockchain

import (
	"math/big"
	"sort"
	"sync"

	"github.com/project-illium/ilxd/types"
)

// Status is a bitfield describing what the engine knows about a
// BlockIndexRecord: whether its data/undo bytes are on disk, how far
// validation has progressed, and whether it or an ancestor is known
// invalid.
type Status uint32

const (
	// StatusHaveData is set once the block's raw bytes are written.
	StatusHaveData Status = 1 << iota
	// StatusHaveUndo is set once the block's undo bytes are written.
	StatusHaveUndo
	// StatusValidHeader is set once the header itself checks out
	// (PoW, timestamp) independent of its body.
	StatusValidHeader
	// StatusValidTree is set once the record's ancestry up to a
	// checkpoint is known structurally sound.
	StatusValidTree
	// StatusValidChain is set once full contextual validation of the
	// chain up to and including this block has completed.
	StatusValidChain
	// StatusValidScripts is set once script/signature validation of
	// this block specifically has completed.
	StatusValidScripts
	// StatusFailed is set when this block itself failed validation.
	StatusFailed
	// StatusFailedChild is set when an ancestor failed validation.
	StatusFailedChild
)

// FailedMask covers "this header or an ancestor is invalid."
const FailedMask = StatusFailed | StatusFailedChild

// BlockIndexRecord is the in-memory record of one known header. It is
// owned exclusively by the BlockIndex that created it; Previous and
// Skip are weak back-references into that same owning map, never
// followed after the map has been unloaded.
type BlockIndexRecord struct {
	Hash types.ID

	Height   int32 // -1 until linked
	Previous *BlockIndexRecord
	Skip     *BlockIndexRecord

	Version    int32
	MerkleRoot types.ID
	Time       uint32
	Bits       uint32
	Nonce      uint32

	FileNum    int32
	DataOffset uint32 // 0 = absent
	UndoOffset uint32 // 0 = absent
	TxCount    uint32

	Status Status
	Work   *big.Int // cumulative work from genesis along Previous
}

// HaveData reports whether this record's block bytes are on disk.
func (r *BlockIndexRecord) HaveData() bool {
	return r.Status&StatusHaveData != 0
}

// HaveUndo reports whether this record's undo bytes are on disk.
func (r *BlockIndexRecord) HaveUndo() bool {
	return r.Status&StatusHaveUndo != 0
}

// Failed reports whether this record or an ancestor is known invalid.
func (r *BlockIndexRecord) Failed() bool {
	return r.Status&FailedMask != 0
}

// IsLinked reports whether Height has been assigned, i.e. the record
// has been linked into a chain by Link.
func (r *BlockIndexRecord) IsLinked() bool {
	return r.Height >= 0
}

// clearLowestOneBit clears the lowest set bit of n, the building
// block of the skip-list height calculation below.
func clearLowestOneBit(n int32) int32 {
	return n & (n - 1)
}

// skipListHeight calculates the height of the ancestor a record at
// the given height should link to via Skip. Applying
// clearLowestOneBit twice produces a deterministic, append-only-safe
// skip list whose search, insert (there is no delete) cost is close
// to O(log n) without needing multiple levels.
func skipListHeight(height int32) int32 {
	if height < 0 {
		return 0
	}
	return clearLowestOneBit(clearLowestOneBit(height))
}

// Link assigns this record's place in the chain: its height, its
// previous pointer, its skip pointer (built from previous's own skip
// chain), and its cumulative work. It must be called exactly once,
// when the record's parent becomes known.
func (r *BlockIndexRecord) Link(previous *BlockIndexRecord, work *big.Int) {
	r.Previous = previous
	r.Work = work
	if previous == nil {
		r.Height = 0
		r.Skip = nil
		return
	}
	r.Height = previous.Height + 1
	r.Skip = previous.Ancestor(skipListHeight(r.Height))
}

// Ancestor returns the record's ancestor at the given height, walking
// Skip pointers when doing so won't overshoot the target height and
// falling back to Previous otherwise.
func (r *BlockIndexRecord) Ancestor(height int32) *BlockIndexRecord {
	if height < 0 || height > r.Height {
		return nil
	}
	n := r
	for n != nil && n.Height != height {
		if n.Skip != nil && skipListHeight(n.Height) >= height {
			n = n.Skip
			continue
		}
		n = n.Previous
	}
	return n
}

// BlockIndex is the process-wide mapping from block hash to its
// owned BlockIndexRecord. All records in a single BlockIndex form one
// arena; Previous/Skip pointers never cross into a different
// BlockIndex, so there is nothing resembling a shared ownership cycle
// to manage.
type BlockIndex struct {
	mtx     sync.Mutex
	records map[types.ID]*BlockIndexRecord
}

// NewBlockIndex returns an empty BlockIndex.
func NewBlockIndex() *BlockIndex {
	return &BlockIndex{
		records: make(map[types.ID]*BlockIndexRecord),
	}
}

// GetOrCreate returns the existing record for hash, or inserts and
// returns a fresh default-valued one (Height -1, Status zero). The
// returned pointer is stable for the BlockIndex's lifetime and is the
// weak back-reference other components store.
func (bi *BlockIndex) GetOrCreate(hash types.ID) *BlockIndexRecord {
	bi.mtx.Lock()
	defer bi.mtx.Unlock()

	if r, ok := bi.records[hash]; ok {
		return r
	}
	r := &BlockIndexRecord{Hash: hash, Height: -1}
	bi.records[hash] = r
	return r
}

// Get returns the record for hash, if known.
func (bi *BlockIndex) Get(hash types.ID) (*BlockIndexRecord, bool) {
	bi.mtx.Lock()
	defer bi.mtx.Unlock()

	r, ok := bi.records[hash]
	return r, ok
}

// Contains reports whether hash is known to the index.
func (bi *BlockIndex) Contains(hash types.ID) bool {
	bi.mtx.Lock()
	defer bi.mtx.Unlock()

	_, ok := bi.records[hash]
	return ok
}

// Len returns the number of records currently held.
func (bi *BlockIndex) Len() int {
	bi.mtx.Lock()
	defer bi.mtx.Unlock()

	return len(bi.records)
}

// AllByHeight returns every linked record sorted ascending by height.
// Unlinked records (Height == -1) are omitted.
func (bi *BlockIndex) AllByHeight() []*BlockIndexRecord {
	bi.mtx.Lock()
	defer bi.mtx.Unlock()

	out := make([]*BlockIndexRecord, 0, len(bi.records))
	for _, r := range bi.records {
		if r.IsLinked() {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Height < out[j].Height
	})
	return out
}

// FileIndicesWithData returns the set of file numbers that currently
// host at least one record with StatusHaveData set.
func (bi *BlockIndex) FileIndicesWithData() map[int32]struct{} {
	bi.mtx.Lock()
	defer bi.mtx.Unlock()

	out := make(map[int32]struct{})
	for _, r := range bi.records {
		if r.HaveData() {
			out[r.FileNum] = struct{}{}
		}
	}
	return out
}

// Reconsider clears FailedMask on record, every one of its ancestors,
// and every descendant found in the map (any record whose ancestor at
// record's height equals record). Every record whose status actually
// changes is passed to markUnsaved so the caller can schedule it for
// the next metadata flush. Calling Reconsider twice in a row is a
// no-op the second time, since nothing is left to clear.
func (bi *BlockIndex) Reconsider(record *BlockIndexRecord, markUnsaved func(*BlockIndexRecord)) {
	bi.mtx.Lock()
	defer bi.mtx.Unlock()

	log.Debug("Reconsidering block", log.Args("hash", record.Hash, "height", record.Height))

	clear := func(r *BlockIndexRecord) {
		if r.Status&FailedMask != 0 {
			r.Status &^= FailedMask
			if markUnsaved != nil {
				markUnsaved(r)
			}
		}
	}

	for n := record; n != nil; n = n.Previous {
		clear(n)
	}

	if !record.IsLinked() {
		return
	}
	for _, r := range bi.records {
		if !r.IsLinked() || r.Height <= record.Height {
			continue
		}
		if anc := r.Ancestor(record.Height); anc == record {
			clear(r)
		}
	}
}

// Fail sets StatusFailed on record and StatusFailedChild on every
// descendant found in the map (any record whose ancestor at record's
// height equals record). Every record whose status actually changes
// is passed to markUnsaved so the caller can schedule it for the next
// metadata flush.
func (bi *BlockIndex) Fail(record *BlockIndexRecord, markUnsaved func(*BlockIndexRecord)) {
	bi.mtx.Lock()
	defer bi.mtx.Unlock()

	log.Debug("Invalidating block", log.Args("hash", record.Hash, "height", record.Height))

	if record.Status&StatusFailed == 0 {
		record.Status |= StatusFailed
		if markUnsaved != nil {
			markUnsaved(record)
		}
	}

	if !record.IsLinked() {
		return
	}
	for _, r := range bi.records {
		if !r.IsLinked() || r.Height <= record.Height {
			continue
		}
		if anc := r.Ancestor(record.Height); anc == record && r.Status&StatusFailedChild == 0 {
			r.Status |= StatusFailedChild
			if markUnsaved != nil {
				markUnsaved(r)
			}
		}
	}
}

// Unload destroys every record. It must only be called once no
// Header Chain Tracker reference into this index survives.
func (bi *BlockIndex) Unload() {
	bi.mtx.Lock()
	defer bi.mtx.Unlock()

	bi.records = make(map[types.ID]*BlockIndexRecord)
}
