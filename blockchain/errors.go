// Copyright (c) 2022 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package blockchain

import (
	"fmt"
)

// AssertError identifies an error that indicates an internal code consistency
// issue and should be treated as a critical and unrecoverable error.
type AssertError string

// Error returns the assertion error as a human-readable string and satisfies
// the error interface.
func (e AssertError) Error() string {
	return "assertion failed: " + string(e)
}

type ErrorCode int

const (
	// ErrCorruption covers framing, length, or checksum mismatches and
	// values that fail to decode out of the metadata store.
	ErrCorruption ErrorCode = iota
	// ErrIO covers file open/read/write/resize failures.
	ErrIO
	// ErrNotFound covers positions into a pruned or unknown file.
	ErrNotFound
	// ErrInvalidArgument covers a null hash, a negative height, or any
	// other malformed caller input.
	ErrInvalidArgument
	// ErrAlreadyClosing is observed via the cancellation flag mid-loop;
	// it is a benign termination, not a failure.
	ErrAlreadyClosing
)

// Map of ErrorCode values back to their constant names for pretty printing.
var errorCodeStrings = map[ErrorCode]string{
	ErrCorruption:      "ErrCorruption",
	ErrIO:              "ErrIO",
	ErrNotFound:        "ErrNotFound",
	ErrInvalidArgument: "ErrInvalidArgument",
	ErrAlreadyClosing:  "ErrAlreadyClosing",
}

// String returns the ErrorCode as a human-readable name.
func (e ErrorCode) String() string {
	if s := errorCodeStrings[e]; s != "" {
		return s
	}
	return fmt.Sprintf("Unknown ErrorCode (%d)", int(e))
}

// StorageError identifies a storage-engine failure. The caller can use type
// assertions to determine if a failure was specifically due to a given
// ErrorCode.
type StorageError struct {
	ErrorCode   ErrorCode // Describes the kind of error
	Description string    // Human-readable description of the issue
	Cause       error     // The underlying error, if any
}

// Error satisfies the error interface and prints human-readable errors.
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

// storageError creates a StorageError given a set of arguments.
func storageError(c ErrorCode, desc string) StorageError {
	return StorageError{ErrorCode: c, Description: desc}
}

// storageErrorWrap creates a StorageError wrapping an underlying cause.
func storageErrorWrap(c ErrorCode, desc string, cause error) StorageError {
	return StorageError{ErrorCode: c, Description: desc, Cause: cause}
}

// ErrorIs reports whether err is a StorageError carrying the given code.
func ErrorIs(err error, code ErrorCode) bool {
	if storageErr, ok := err.(StorageError); ok && storageErr.ErrorCode == code {
		return true
	}
	return false
}
