// Copyright (c) 2024 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

// Package storeerr holds the storage engine's error taxonomy so the
// filemap, recordio, and metadb subpackages can raise typed errors
// without importing the blockstore package itself (which imports
// them). The blockstore package re-exports these names.
package storeerr

import "fmt"

// ErrorCode identifies a class of storage-engine failure.
type ErrorCode int

const (
	// Corruption covers framing, length, or checksum mismatches, and
	// values that fail to decode out of the metadata store.
	Corruption ErrorCode = iota
	// IO covers file open/read/write/resize failures.
	IO
	// NotFound covers positions into a pruned or unknown file.
	NotFound
	// InvalidArgument covers malformed caller input.
	InvalidArgument
	// AlreadyClosing is observed via the cancellation flag mid-loop.
	AlreadyClosing
)

var codeStrings = map[ErrorCode]string{
	Corruption:      "ErrCorruption",
	IO:              "ErrIO",
	NotFound:        "ErrNotFound",
	InvalidArgument: "ErrInvalidArgument",
	AlreadyClosing:  "ErrAlreadyClosing",
}

// String returns the ErrorCode as a human-readable name.
func (e ErrorCode) String() string {
	if s := codeStrings[e]; s != "" {
		return s
	}
	return fmt.Sprintf("Unknown ErrorCode (%d)", int(e))
}

// StorageError identifies a storage-engine failure, mirroring the
// blockchain package's StorageError shape.
type StorageError struct {
	ErrorCode   ErrorCode
	Description string
	Cause       error
}

// Error satisfies the error interface.
func (e StorageError) Error() string {
	if e.Cause != nil {
		return e.Description + ": " + e.Cause.Error()
	}
	return e.Description
}

// Unwrap exposes the wrapped cause to errors.Is/errors.As.
func (e StorageError) Unwrap() error {
	return e.Cause
}

// New builds a StorageError with the given code, description, and
// optional wrapped cause.
func New(code ErrorCode, desc string, cause error) StorageError {
	return StorageError{ErrorCode: code, Description: desc, Cause: cause}
}

// NotFoundErr builds an ErrNotFound StorageError.
func NotFoundErr(desc string) StorageError {
	return New(NotFound, desc, nil)
}

// IOErr builds an ErrIO StorageError.
func IOErr(desc string, cause error) StorageError {
	return New(IO, desc, cause)
}

// CorruptionErr builds an ErrCorruption StorageError.
func CorruptionErr(desc string) StorageError {
	return New(Corruption, desc, nil)
}

// InvalidArgumentErr builds an ErrInvalidArgument StorageError.
func InvalidArgumentErr(desc string) StorageError {
	return New(InvalidArgument, desc, nil)
}

// Is reports whether err is a StorageError carrying the given code.
func Is(err error, code ErrorCode) bool {
	if se, ok := err.(StorageError); ok && se.ErrorCode == code {
		return true
	}
	return false
}
