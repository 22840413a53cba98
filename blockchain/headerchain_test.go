// Copyright (c) 2022 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package blockchain

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
)

// extend appends a single new record onto parent with the given
// incremental work and folds it into hc, returning the new record.
func extend(bi *BlockIndex, hc *HeaderChain, parent *BlockIndexRecord, work int64) *BlockIndexRecord {
	r := bi.GetOrCreate(randomID())
	r.Link(parent, new(big.Int).Add(parent.Work, big.NewInt(work)))
	hc.Append(r)
	return r
}

func newGenesisChain(bi *BlockIndex) (*BlockIndexRecord, *HeaderChain) {
	genesis := bi.GetOrCreate(randomID())
	genesis.Link(nil, big.NewInt(0))
	return genesis, NewHeaderChain(genesis)
}

func TestHeaderChainLinearExtension(t *testing.T) {
	bi := NewBlockIndex()
	genesis, hc := newGenesisChain(bi)

	a := extend(bi, hc, genesis, 100)
	b := extend(bi, hc, a, 100)

	assert.Same(t, b, hc.Tip())
	assert.Equal(t, int32(2), hc.Height())
	assert.Same(t, a, hc.AtHeight(1))
	assert.Same(t, b, hc.AtHeight(2))
}

func TestHeaderChainReorgPicksGreaterWork(t *testing.T) {
	bi := NewBlockIndex()
	genesis, hc := newGenesisChain(bi)

	// Chain A accumulates work 300 across 3 blocks.
	a1 := extend(bi, hc, genesis, 100)
	a2 := extend(bi, hc, a1, 100)
	a3 := extend(bi, hc, a2, 100)
	assert.Same(t, a3, hc.Tip())

	// Chain B forks at genesis and accumulates work 400 across 2 blocks.
	b1 := extend(bi, hc, genesis, 200)
	b2 := extend(bi, hc, b1, 200)

	assert.Same(t, b2, hc.Tip())
	assert.Equal(t, int32(2), hc.Height())
	assert.Same(t, b1, hc.AtHeight(1))
	assert.Same(t, b2, hc.AtHeight(2))

	// Both tips remain known even though only one is best.
	tips := hc.Tips()
	assert.Len(t, tips, 2)
}

func TestHeaderChainEqualWorkKeepsIncumbent(t *testing.T) {
	bi := NewBlockIndex()
	genesis, hc := newGenesisChain(bi)

	a := extend(bi, hc, genesis, 100)
	assert.Same(t, a, hc.Tip())

	b := bi.GetOrCreate(randomID())
	b.Link(genesis, big.NewInt(100))
	changed := hc.Append(b)

	assert.False(t, changed)
	assert.Same(t, a, hc.Tip())
}

func TestHeaderChainInvalidateAndReconsider(t *testing.T) {
	bi := NewBlockIndex()
	genesis, hc := newGenesisChain(bi)

	a1 := extend(bi, hc, genesis, 100)
	a2 := extend(bi, hc, a1, 100)
	assert.Same(t, a2, hc.Tip())

	// A lower-work alternative branch exists too.
	_ = extend(bi, hc, genesis, 50)
	assert.Same(t, a2, hc.Tip())

	// Invalidate the best tip. a1 (work 100) now outweighs b1 (work 50)
	// and becomes the new best candidate.
	a2.Status |= StatusFailed
	hc.InvalidateTip(a2)

	assert.Same(t, a1, hc.Tip())
	assert.Equal(t, int32(1), hc.Height())

	// Reconsider clears the failure and restores a2 as the winner.
	var restored []*BlockIndexRecord
	bi.Reconsider(a2, func(r *BlockIndexRecord) { restored = append(restored, r) })
	assert.False(t, a2.Failed())

	hc.RestoreTip(a2)
	assert.Same(t, a2, hc.Tip())
	assert.Equal(t, int32(2), hc.Height())
}

func TestHeaderChainInvalidateNonTipWithDescendant(t *testing.T) {
	bi := NewBlockIndex()
	genesis, hc := newGenesisChain(bi)

	a1 := extend(bi, hc, genesis, 100)
	a2 := extend(bi, hc, a1, 100)
	a3 := extend(bi, hc, a2, 100)
	assert.Same(t, a3, hc.Tip())

	// A separate, lower-work branch off genesis survives untouched.
	b1 := extend(bi, hc, genesis, 50)
	assert.Same(t, a3, hc.Tip())

	// a1 is not itself a tip -- a3 is, two blocks further out. Failing
	// a1 must still fail the whole branch and hand the best tip to the
	// only surviving candidate, b1.
	var dirty []*BlockIndexRecord
	bi.Fail(a1, func(r *BlockIndexRecord) { dirty = append(dirty, r) })
	hc.InvalidateTip(a1)

	assert.True(t, a1.Failed())
	assert.True(t, a2.Status&StatusFailedChild != 0)
	assert.True(t, a3.Status&StatusFailedChild != 0)
	assert.False(t, b1.Failed())
	assert.Len(t, dirty, 3)

	assert.Same(t, b1, hc.Tip())
	tips := hc.Tips()
	assert.Len(t, tips, 2) // genesis (replacing the failed branch) and b1
}

func TestHeaderChainFailedParentMarksFailedChild(t *testing.T) {
	bi := NewBlockIndex()
	genesis, hc := newGenesisChain(bi)

	a := extend(bi, hc, genesis, 100)
	a.Status |= StatusFailed
	hc.InvalidateTip(a)

	child := bi.GetOrCreate(randomID())
	child.Link(a, new(big.Int).Add(a.Work, big.NewInt(100)))
	changed := hc.Append(child)

	assert.False(t, changed)
	assert.True(t, child.Status&StatusFailedChild != 0)
	assert.Same(t, genesis, hc.Tip())
}
