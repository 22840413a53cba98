// Copyright (c) 2024 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package blockstore

import (
	"context"

	"github.com/cenkalti/backoff/v4"

	"github.com/project-illium/ilxd/blockstore/filemap"
	"github.com/project-illium/ilxd/blockstore/recordio"
)

// ReindexState is the reindex driver's persisted phase, stored under
// the metadata store's 'R' key.
type ReindexState byte

const (
	// NoReindex is the steady state: no scan is in progress.
	NoReindex ReindexState = 0
	// ScanningFiles is set while the driver is walking forward files
	// looking for block frames.
	ScanningFiles ReindexState = 1
	// ParsingBlocks is set once scanning has finished and the driver
	// is waiting for the validator to finish processing everything it
	// was handed.
	ParsingBlocks ReindexState = 2
)

// runReindex drives the reindex state machine to completion:
//
//  1. if the persisted state is NoReindex, nothing to do
//  2. if ScanningFiles, linearly scan every forward file from 0
//     upward, looking for magic bytes at each offset and handing
//     whatever's found to the validator, applying backpressure via
//     WaitForSpace
//  3. once scanning reaches a file number that does not exist,
//     transition to ParsingBlocks and call WaitValidationFinished
//  4. transition back to NoReindex
//
// The loop polls s.closing() and ctx between files so a shutdown
// request or a cancelled ctx interrupts a long scan promptly without
// corrupting the persisted phase (it simply stops mid-ScanningFiles
// and resumes there on the next startBlockImporter call).
func (s *Store) runReindex(ctx context.Context) error {
	state, err := s.reindexing()
	if err != nil {
		return err
	}

	if state == NoReindex {
		return nil
	}

	if state == ScanningFiles {
		if err := s.scanBlockFiles(ctx); err != nil {
			return err
		}
		if s.closing() {
			return storageErr(ErrAlreadyClosing, "blockstore: reindex interrupted by shutdown", nil)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.setReindexing(ParsingBlocks); err != nil {
			return err
		}
	}

	if s.validator != nil {
		if err := s.validator.WaitValidationFinished(ctx); err != nil {
			return err
		}
	}

	return s.setReindexing(NoReindex)
}

// scanBlockFiles walks forward files 0, 1, 2, ... until it hits a file
// that doesn't exist, scanning each one byte-by-byte for the block
// magic and handing every frame it finds to the validator.
func (s *Store) scanBlockFiles(ctx context.Context) error {
	for fileNum := uint32(0); ; fileNum++ {
		if s.closing() || ctx.Err() != nil {
			return nil
		}

		view, size, err := s.openForScan(fileNum)
		if err != nil {
			if storeErrIs(err, ErrNotFound) {
				return nil
			}
			return err
		}

		if err := s.scanOneFile(ctx, fileNum, view.Bytes(), size); err != nil {
			view.Release()
			return err
		}
		view.Release()
	}
}

// openForScan opens a forward file with a single transient-error
// retry via backoff, since a file can be mid-creation by the write
// coordinator on a live system.
func (s *Store) openForScan(fileNum uint32) (*filemap.View, int, error) {
	var view *filemap.View
	var size int
	op := func() error {
		v, sz, _, err := s.mapper.Map(fileNum, filemap.Forward)
		if err != nil {
			return err
		}
		view, size = v, sz
		return nil
	}

	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 1)
	err := backoff.Retry(func() error {
		err := op()
		if err != nil && storeErrIs(err, ErrNotFound) {
			return backoff.Permanent(err)
		}
		return err
	}, policy)
	if err != nil {
		return nil, 0, err
	}
	return view, size, nil
}

// scanOneFile walks every frame in a file's bytes, handing each one to
// the validator, advancing past gaps one byte at a time until the next
// magic match as the codec's scanner contract specifies.
func (s *Store) scanOneFile(ctx context.Context, fileNum uint32, data []byte, size int) error {
	offset := uint32(0)
	for int(offset)+8 <= size {
		if !recordio.ScanMagic(data, offset, s.cfg.Params.BlockMagic) {
			offset++
			continue
		}

		payload, err := recordio.ReadForward(data, offset+8, s.cfg.Params.BlockMagic)
		if err != nil {
			// A magic match that doesn't frame correctly is corruption
			// at this position; stop scanning this file.
			return nil
		}

		if s.validator != nil {
			if err := s.validator.WaitForSpace(ctx); err != nil {
				return err
			}
			pos := DiskPosition{File: fileNum, Offset: offset + 8}
			if err := s.validator.AddBlock(ctx, pos, payload); err != nil {
				return err
			}
		}

		offset += uint32(recordio.FrameSize(false, len(payload)))
	}
	return nil
}

// storeErrIs reports whether err is a StorageError carrying code.
func storeErrIs(err error, code ErrorCode) bool {
	return ErrorIs(err, code)
}
