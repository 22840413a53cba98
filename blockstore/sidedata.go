// Copyright (c) 2024 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package blockstore

import (
	dsbadger "github.com/ipfs/go-ds-badger"

	"github.com/project-illium/ilxd/repo"
)

// SideData is the auxiliary key-value space callers use for anything
// outside the engine's own fixed key table (peer address books, chain
// selection state, checkpoints) — data the engine itself never reads,
// but which belongs next to it on disk. It is a thin wrapper over
// ipfs/go-ds-badger rather than the metadata store's raw badger
// handle, so callers get the full datastore.Batching/TxnDatastore
// surface without reaching into the engine's own key prefixes.
type SideData struct {
	*dsbadger.Datastore
}

var _ repo.Datastore = (*SideData)(nil)

// openSideData opens (creating if needed) the side-data store rooted
// at dir.
func openSideData(dir string, cacheBytes int64) (*SideData, error) {
	opts := dsbadger.DefaultOptions
	if cacheBytes > 0 {
		opts.MaxTableSize = cacheBytes
	}
	ds, err := dsbadger.NewDatastore(dir, &opts)
	if err != nil {
		return nil, storageErr(ErrIO, "blockstore: open side-data store", err)
	}
	return &SideData{Datastore: ds}, nil
}
