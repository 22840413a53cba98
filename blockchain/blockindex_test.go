// Copyright (c) 2022 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package blockchain

import (
	"crypto/rand"
	"math/big"
	"testing"

	"github.com/project-illium/ilxd/types"
	"github.com/stretchr/testify/assert"
)

func randomID() types.ID {
	var b [32]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(err)
	}
	return types.NewID(b[:])
}

// buildChain links n records onto genesis, each with work 1 more than
// its parent, and returns them in order (index 0 is genesis).
func buildChain(t *testing.T, bi *BlockIndex, n int) []*BlockIndexRecord {
	t.Helper()
	genesis := bi.GetOrCreate(randomID())
	genesis.Link(nil, big.NewInt(1))

	chain := []*BlockIndexRecord{genesis}
	prev := genesis
	for i := 1; i < n; i++ {
		r := bi.GetOrCreate(randomID())
		r.Link(prev, new(big.Int).Add(prev.Work, big.NewInt(1)))
		chain = append(chain, r)
		prev = r
	}
	return chain
}

func TestGetOrCreateIsIdempotent(t *testing.T) {
	bi := NewBlockIndex()
	hash := randomID()

	a := bi.GetOrCreate(hash)
	b := bi.GetOrCreate(hash)
	assert.Same(t, a, b)
	assert.Equal(t, 1, bi.Len())
	assert.Equal(t, int32(-1), a.Height)
}

func TestContainsAndGet(t *testing.T) {
	bi := NewBlockIndex()
	hash := randomID()

	assert.False(t, bi.Contains(hash))
	_, ok := bi.Get(hash)
	assert.False(t, ok)

	bi.GetOrCreate(hash)
	assert.True(t, bi.Contains(hash))
	r, ok := bi.Get(hash)
	assert.True(t, ok)
	assert.Equal(t, hash, r.Hash)
}

func TestLinkAssignsHeightAndWork(t *testing.T) {
	bi := NewBlockIndex()
	chain := buildChain(t, bi, 5)

	for i, r := range chain {
		assert.Equal(t, int32(i), r.Height)
		assert.Equal(t, int64(i+1), r.Work.Int64())
	}
}

func TestAncestorWalksSkipAndPrevious(t *testing.T) {
	bi := NewBlockIndex()
	chain := buildChain(t, bi, 200)

	tip := chain[len(chain)-1]
	for h := int32(0); h < int32(len(chain)); h++ {
		anc := tip.Ancestor(h)
		if assert.NotNil(t, anc, "height %d", h) {
			assert.Same(t, chain[h], anc)
		}
	}

	assert.Nil(t, tip.Ancestor(-1))
	assert.Nil(t, tip.Ancestor(tip.Height+1))
}

func TestAllByHeightOmitsUnlinked(t *testing.T) {
	bi := NewBlockIndex()
	chain := buildChain(t, bi, 3)
	bi.GetOrCreate(randomID()) // unlinked, Height == -1

	all := bi.AllByHeight()
	assert.Len(t, all, 3)
	for i, r := range all {
		assert.Same(t, chain[i], r)
	}
}

func TestFileIndicesWithData(t *testing.T) {
	bi := NewBlockIndex()
	chain := buildChain(t, bi, 3)
	chain[0].FileNum = 0
	chain[0].Status |= StatusHaveData
	chain[1].FileNum = 1
	chain[1].Status |= StatusHaveData
	chain[2].FileNum = 1 // no data flag, should not appear

	idx := bi.FileIndicesWithData()
	assert.Len(t, idx, 2)
	_, ok0 := idx[0]
	_, ok1 := idx[1]
	assert.True(t, ok0)
	assert.True(t, ok1)
}

func TestReconsiderClearsAncestorsAndDescendants(t *testing.T) {
	bi := NewBlockIndex()
	chain := buildChain(t, bi, 5)

	chain[2].Status |= StatusFailed
	chain[3].Status |= StatusFailedChild
	chain[4].Status |= StatusFailedChild

	var unsaved []*BlockIndexRecord
	bi.Reconsider(chain[2], func(r *BlockIndexRecord) {
		unsaved = append(unsaved, r)
	})

	for _, r := range chain[2:] {
		assert.False(t, r.Failed(), "height %d should no longer be failed", r.Height)
	}
	for _, r := range chain[:2] {
		assert.False(t, r.Failed())
	}
	assert.Len(t, unsaved, 3)
}

func TestReconsiderIsIdempotent(t *testing.T) {
	bi := NewBlockIndex()
	chain := buildChain(t, bi, 3)
	chain[1].Status |= StatusFailed
	chain[2].Status |= StatusFailedChild

	var firstPass []*BlockIndexRecord
	bi.Reconsider(chain[1], func(r *BlockIndexRecord) { firstPass = append(firstPass, r) })
	assert.Len(t, firstPass, 2)

	var secondPass []*BlockIndexRecord
	bi.Reconsider(chain[1], func(r *BlockIndexRecord) { secondPass = append(secondPass, r) })
	assert.Len(t, secondPass, 0)
}

func TestUnloadClearsIndex(t *testing.T) {
	bi := NewBlockIndex()
	buildChain(t, bi, 4)
	assert.Equal(t, 4, bi.Len())

	bi.Unload()
	assert.Equal(t, 0, bi.Len())
}
