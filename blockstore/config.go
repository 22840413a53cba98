// Copyright (c) 2024 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package blockstore

import (
	"github.com/project-illium/ilxd/params"
)

// Config configures a Store instance. It is validated eagerly by
// createInstance: missing or contradictory fields that are a
// programmer error panic via AssertError; anything environment
// dependent (a directory that can't be created) is returned as an
// error.
type Config struct {
	// DataDir is the base data directory; the network's blocks/ and
	// index/ subdirectories are created beneath it.
	DataDir string

	// Params selects the chain's magic bytes and file-size limits.
	Params *params.NetworkParams

	// AltDataDirs are additional read-only mirror directories the
	// File Mapper consults when a file is missing from DataDir.
	AltDataDirs []string

	// CacheBytes, when positive, is passed to badger as MaxTableSize
	// for both the metadata store and the side-data store. It does
	// not set a block-cache size.
	CacheBytes int64

	// Wipe, if true, deletes any existing metadata store, side-data
	// store and raw data files before opening.
	Wipe bool

	// StopAfterBlockImport requests an orderly shutdown once a
	// reindex started at startup finishes.
	StopAfterBlockImport bool
}

func (cfg *Config) assertValid() {
	if cfg.DataDir == "" {
		panic(AssertError("blockstore: Config.DataDir must not be empty"))
	}
	if cfg.Params == nil {
		panic(AssertError("blockstore: Config.Params must not be nil"))
	}
}

// AssertError identifies an internal code-consistency issue that
// should be treated as a critical, unrecoverable error, mirroring
// blockchain.AssertError.
type AssertError string

// Error satisfies the error interface.
func (e AssertError) Error() string {
	return "assertion failed: " + string(e)
}
