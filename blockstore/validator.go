// Copyright (c) 2024 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package blockstore

import (
	"context"

	"github.com/project-illium/ilxd/types"
)

// Validator is the external collaborator the Reindex Driver hands the
// block bytes it finds in forward files to; the ordinary block-append
// path does not call it. The storage engine itself never parses or
// validates a block body; it only frames, positions, and persists the
// bytes.
type Validator interface {
	// AddBlock submits one block's raw bytes, as read from a forward
	// file during a reindex scan, for validation. It may block if the
	// validator's own backlog is full; callers should prefer WaitForSpace before calling AddBlock
	// in a tight scanning loop.
	AddBlock(ctx context.Context, pos DiskPosition, payload []byte) error

	// WaitForSpace blocks until the validator's backlog has room for
	// another AddBlock call, or ctx is done.
	WaitForSpace(ctx context.Context) error

	// WaitValidationFinished blocks until every block submitted via
	// AddBlock so far has been fully validated, or ctx is done.
	WaitValidationFinished(ctx context.Context) error
}

// Notifier receives asynchronous notice of chain-state changes caused
// by the storage engine's own operations (an appended block, a tip
// reorg), decoupling it from whatever subsystem cares about them
// (indexers, RPC subscribers).
type Notifier interface {
	// NotifyBlockConnected is called once a block's bytes and header
	// have both been durably appended.
	NotifyBlockConnected(hash types.ID, height int32)

	// NotifyTipChanged is called whenever the Header Chain Tracker's
	// best tip changes, including reorgs.
	NotifyTipChanged(oldTip, newTip types.ID)
}
