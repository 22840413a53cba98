// Copyright (c) 2024 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package blockstore

import "github.com/project-illium/ilxd/blockstore/internal/storeerr"

// ErrorCode identifies a class of storage-engine failure. It is a
// re-export of storeerr.ErrorCode so callers outside this module
// never need to import the internal package directly.
type ErrorCode = storeerr.ErrorCode

const (
	ErrCorruption      = storeerr.Corruption
	ErrIO              = storeerr.IO
	ErrNotFound        = storeerr.NotFound
	ErrInvalidArgument = storeerr.InvalidArgument
	ErrAlreadyClosing  = storeerr.AlreadyClosing
)

// StorageError identifies a storage-engine failure. Callers use
// ErrorIs to test for a specific ErrorCode without depending on the
// wrapped cause.
type StorageError = storeerr.StorageError

func storageErr(c ErrorCode, desc string, cause error) StorageError {
	return storeerr.New(c, desc, cause)
}

// ErrorIs reports whether err is a StorageError carrying the given
// code.
func ErrorIs(err error, code ErrorCode) bool {
	return storeerr.Is(err, code)
}
