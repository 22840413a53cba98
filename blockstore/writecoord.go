// Copyright (c) 2024 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package blockstore

import (
	"os"
	"sync"

	"github.com/project-illium/ilxd/blockstore/filemap"
	"github.com/project-illium/ilxd/blockstore/metadb"
	"github.com/project-illium/ilxd/blockstore/recordio"
	"github.com/project-illium/ilxd/params"
)

// writeCoordinator is the single writer of forward and revert data
// files. Every mutation of vinfo/lastFile happens under mu, which sits
// below blockIndexLock and above the File Mapper's own lock in the
// package-wide lock order (blockIndexLock > mu > filemap.Mapper.mu).
type writeCoordinator struct {
	mu sync.Mutex // cs_LastBlockFile equivalent

	mapper *filemap.Mapper
	meta   *metadb.DB
	params *params.NetworkParams

	vinfo    map[uint32]*FileInfoRecord
	lastFile uint32
}

func newWriteCoordinator(mapper *filemap.Mapper, meta *metadb.DB, p *params.NetworkParams) *writeCoordinator {
	return &writeCoordinator{
		mapper: mapper,
		meta:   meta,
		params: p,
		vinfo:  make(map[uint32]*FileInfoRecord),
	}
}

// loadLastFile restores lastFile and its FileInfoRecord from the
// metadata store at startup; a missing record means no blocks have
// ever been written.
func (w *writeCoordinator) loadLastFile() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	last, ok, err := w.meta.GetLastFile()
	if err != nil {
		return err
	}
	if !ok {
		w.lastFile = 0
		return nil
	}
	w.lastFile = last

	raw, err := w.meta.GetFileInfo(last)
	if err != nil {
		return err
	}
	if raw != nil {
		fi, err := DeserializeFileInfoRecord(raw)
		if err != nil {
			return err
		}
		w.vinfo[last] = fi
	} else {
		w.vinfo[last] = &FileInfoRecord{}
	}
	w.mapper.SetWritableFile(last)
	return nil
}

// writeBlock appends payload to the current forward file, rolling
// over to a fresh file when it would exceed Params.MaxFileBytes, and
// returns the position it was written at.
//
//  1. lock mu
//  2. look up (or create) the current file's FileInfoRecord
//  3. compute the frame size this payload will occupy
//  4. if the file already holds data and adding this frame would
//     exceed MaxFileBytes, roll over to a fresh file number
//  5. compute the fill-relative write offset (current size + header)
//  6. grow the file on disk (chunk-sized) until it can hold the frame
//  7. map it writable and write the frame
//  8. stamp the file's running statistics
//  9. persist the FileInfoRecord and the new last-file pointer
//
// If batch is non-nil, the file-info/last-file writes are staged into
// it instead of being committed on the spot, so a caller (AppendBlock)
// can add its own block-index write and commit everything as one
// atomic WriteBatchSync. A nil batch commits immediately, for callers
// writing block bytes with no accompanying index update.
func (w *writeCoordinator) writeBlock(blockHash [32]byte, payload []byte, height int32, blockTime uint32, batch *metadb.Batch) (DiskPosition, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	fi, ok := w.vinfo[w.lastFile]
	if !ok {
		fi = &FileInfoRecord{}
		w.vinfo[w.lastFile] = fi
	}

	frameSize := uint32(recordio.FrameSize(false, len(payload)))
	if fi.Count > 0 && fi.DataBytes+frameSize > w.params.MaxFileBytes {
		w.lastFile++
		fi = &FileInfoRecord{}
		w.vinfo[w.lastFile] = fi
		w.mapper.SetWritableFile(w.lastFile)
	} else if fi.Count == 0 {
		w.mapper.SetWritableFile(w.lastFile)
	}

	offset := fi.DataBytes + 8
	needed := int64(offset) + int64(len(payload))

	path := w.mapper.Path(w.lastFile, filemap.Forward)
	if err := growFile(w.mapper, path, w.lastFile, filemap.Forward, needed, int64(w.params.BlockFileChunkSize)); err != nil {
		return DiskPosition{}, err
	}

	view, _, writable, err := w.mapper.Map(w.lastFile, filemap.Forward)
	if err != nil {
		return DiskPosition{}, err
	}
	defer view.Release()
	if !writable {
		return DiskPosition{}, storageErr(ErrIO, "writecoord: forward file mapped read-only", nil)
	}

	if err := recordio.WriteForward(view.Bytes(), offset, w.params.BlockMagic, payload); err != nil {
		return DiskPosition{}, err
	}

	fi.addBlock(height, blockTime, frameSize)

	if batch != nil {
		w.stageLocked(batch)
	} else if err := w.persistLocked(); err != nil {
		return DiskPosition{}, err
	}

	return DiskPosition{File: w.lastFile, Offset: offset}, nil
}

// writeUndoBlock appends payload to the revert file matching fileNum
// (undo data for a block always lives alongside its forward data's
// file number), growing that file as needed. Revert files are never
// rolled over by size; they follow their forward file's lifetime.
func (w *writeCoordinator) writeUndoBlock(fileNum uint32, blockHash []byte, payload []byte) (DiskPosition, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if fileNum > w.lastFile {
		w.lastFile = fileNum
	}

	fi, ok := w.vinfo[fileNum]
	if !ok {
		fi = &FileInfoRecord{}
		w.vinfo[fileNum] = fi
	}

	offset := fi.UndoBytes + 8
	frameSize := uint32(recordio.FrameSize(true, len(payload)))
	needed := int64(offset) + int64(len(payload)) + int64(recordio.ChecksumSize)

	path := w.mapper.Path(fileNum, filemap.Revert)
	if err := growFile(w.mapper, path, fileNum, filemap.Revert, needed, int64(w.params.UndoFileChunkSize)); err != nil {
		return DiskPosition{}, err
	}

	view, _, writable, err := w.mapper.Map(fileNum, filemap.Revert)
	if err != nil {
		return DiskPosition{}, err
	}
	defer view.Release()
	if !writable {
		return DiskPosition{}, storageErr(ErrIO, "writecoord: revert file mapped read-only", nil)
	}

	if err := recordio.WriteRevert(view.Bytes(), offset, w.params.UndoMagic, payload, blockHash); err != nil {
		return DiskPosition{}, err
	}

	fi.addUndo(frameSize)
	if err := w.persistLocked(); err != nil {
		return DiskPosition{}, err
	}

	return DiskPosition{File: fileNum, Offset: offset}, nil
}

// stageLocked adds every FileInfoRecord and the last-file pointer to
// batch without committing it, so a caller can fold in further writes
// (a block-index record, for instance) and commit them all at once.
// Called with mu held.
func (w *writeCoordinator) stageLocked(batch *metadb.Batch) {
	for num, fi := range w.vinfo {
		batch.PutFileInfo(num, fi.Serialize())
	}
	batch.PutLastFile(w.lastFile)
}

// persistLocked stages and immediately commits every dirty
// FileInfoRecord and the last-file pointer. Called with mu held.
func (w *writeCoordinator) persistLocked() error {
	batch := w.meta.NewBatch()
	w.stageLocked(batch)
	return batch.Commit(false)
}

// growFile ensures the on-disk file at path is at least needed bytes,
// preallocating in chunkSize-rounded increments and invalidating the
// mapper's cached slot so the next Map call observes the new size.
func growFile(mapper *filemap.Mapper, path string, index uint32, kind filemap.Kind, needed, chunkSize int64) error {
	fi, err := os.Stat(path)
	var current int64
	if err == nil {
		current = fi.Size()
	}
	if current >= needed {
		return nil
	}
	grown := current
	for grown < needed {
		grown += chunkSize
	}
	if err := filemap.Preallocate(path, grown); err != nil {
		return err
	}
	mapper.Grow(index, kind)
	return nil
}
