// Copyright (c) 2022 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package blockchain

import (
	"math/big"
)

// HeaderChain tracks every known tip and the single best chain among
// them. The best chain is the densely-indexed-by-height array other
// components read from; everything else is a candidate branch kept
// alive only by its tip record's Previous chain into the shared
// BlockIndex.
type HeaderChain struct {
	mainChain []*BlockIndexRecord // index i holds the record at height i
	tips      map[*BlockIndexRecord]struct{}
	best      *BlockIndexRecord
}

// NewHeaderChain returns an empty tracker seeded with a genesis
// record. genesis must already be linked (Link(nil, work)) before
// being passed in.
func NewHeaderChain(genesis *BlockIndexRecord) *HeaderChain {
	hc := &HeaderChain{
		mainChain: []*BlockIndexRecord{genesis},
		tips:      map[*BlockIndexRecord]struct{}{genesis: {}},
		best:      genesis,
	}
	return hc
}

// Tip returns the current best-chain tip.
func (hc *HeaderChain) Tip() *BlockIndexRecord {
	return hc.best
}

// Tips returns every known chain tip, including the best one.
func (hc *HeaderChain) Tips() []*BlockIndexRecord {
	out := make([]*BlockIndexRecord, 0, len(hc.tips))
	for t := range hc.tips {
		out = append(out, t)
	}
	return out
}

// AtHeight returns the best-chain record at height, or nil if height
// is out of range.
func (hc *HeaderChain) AtHeight(height int32) *BlockIndexRecord {
	if height < 0 || int(height) >= len(hc.mainChain) {
		return nil
	}
	return hc.mainChain[height]
}

// Height returns the best chain's current height.
func (hc *HeaderChain) Height() int32 {
	return int32(len(hc.mainChain) - 1)
}

// workLess reports whether a's cumulative work is strictly less than
// b's, the tie-break used throughout: a newly-arrived chain only
// displaces the incumbent best chain on strictly greater work, so
// equal-work races keep whichever chain got there first.
func workLess(a, b *BlockIndexRecord) bool {
	return a.Work.Cmp(b.Work) < 0
}

// Append links record onto its parent (already present in the shared
// BlockIndex via previous) and folds it into the tip/best-chain
// bookkeeping. It returns whether the best chain changed as a result.
//
// The decision tree:
//  1. If previous was invalid (Failed), record inherits StatusFailedChild
//     and is not added to the tip set at all.
//  2. If previous is itself in the tip set, record replaces it there;
//     otherwise record is added as a new tip. Only previous is
//     checked: a tip further back in record's ancestry is not looked
//     up and stays in the tip set.
//  3. If record itself carries FailedMask, nothing else changes.
//  4. Cumulative work is already computed by the caller via Link.
//  5. Compare record's work against the current best; strictly greater
//     work promotes it.
//  6. On promotion, call setTip to rewind/refill mainChain.
//  7. Return whether the promotion happened.
func (hc *HeaderChain) Append(record *BlockIndexRecord) bool {
	previous := record.Previous

	if previous != nil && previous.Failed() {
		record.Status |= StatusFailedChild
		return false
	}

	if previous != nil {
		if _, wasTip := hc.tips[previous]; wasTip {
			delete(hc.tips, previous)
		}
	}
	hc.tips[record] = struct{}{}

	if record.Failed() {
		return false
	}

	if !workLess(record, hc.best) {
		if record.Work.Cmp(hc.best.Work) == 0 {
			return false
		}
		log.Debug("Best chain tip changed", log.Args("hash", record.Hash, "height", record.Height))
		hc.setTip(record)
		return true
	}
	return false
}

// setTip rewinds mainChain to the fork point with record's ancestry
// and refills it up to record's height, then makes record the best
// tip. It is also used directly by Reconsider/Invalidate callers that
// need to pick a new best tip from the surviving candidates.
func (hc *HeaderChain) setTip(record *BlockIndexRecord) {
	height := record.Height
	chain := make([]*BlockIndexRecord, height+1)
	n := record
	for n != nil {
		chain[n.Height] = n
		n = n.Previous
	}
	hc.mainChain = chain
	hc.best = record
}

// InvalidateTip removes every known tip descending from record
// (record included) from the tip set and re-selects the best chain
// from whatever tips remain. record is not necessarily a tip itself --
// it may already have known descendants, in which case those
// descendants' tips are the ones actually removed. It is the caller's
// responsibility to have already set StatusFailed on record and
// StatusFailedChild on its known descendants (BlockIndex.Fail) before
// calling this.
func (hc *HeaderChain) InvalidateTip(record *BlockIndexRecord) {
	var failedTips []*BlockIndexRecord
	for t := range hc.tips {
		if t == record || (t.Height > record.Height && t.Ancestor(record.Height) == record) {
			failedTips = append(failedTips, t)
		}
	}
	for _, t := range failedTips {
		delete(hc.tips, t)
	}
	if len(failedTips) > 0 && record.Previous != nil && !record.Previous.Failed() {
		hc.tips[record.Previous] = struct{}{}
	}

	bestFailed := hc.best != nil && (hc.best == record || (hc.best.Height > record.Height && hc.best.Ancestor(record.Height) == record))
	if bestFailed {
		hc.best = hc.bestCandidate()
		if hc.best != nil {
			hc.setTip(hc.best)
		} else {
			hc.mainChain = nil
		}
	}
}

// RestoreTip re-admits record as a tip candidate (used after
// BlockIndex.Reconsider has cleared FailedMask) and re-selects the
// best chain if record now outweighs the incumbent.
func (hc *HeaderChain) RestoreTip(record *BlockIndexRecord) {
	if record.Failed() {
		return
	}
	hc.tips[record] = struct{}{}
	if hc.best == nil || !workLess(record, hc.best) {
		if hc.best == nil || record.Work.Cmp(hc.best.Work) > 0 {
			hc.setTip(record)
		}
	}
}

// bestCandidate returns the tip with the greatest cumulative work
// among surviving (non-failed) tips, or nil if none remain.
func (hc *HeaderChain) bestCandidate() *BlockIndexRecord {
	var best *BlockIndexRecord
	var bestWork *big.Int
	for t := range hc.tips {
		if t.Failed() {
			continue
		}
		if best == nil || t.Work.Cmp(bestWork) > 0 {
			best = t
			bestWork = t.Work
		}
	}
	return best
}
