// Copyright (c) 2024 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package blockstore

import "encoding/binary"

// FileInfoRecord tracks everything known about one numbered forward
// file: how many blocks it holds, how many bytes of block and undo
// data have been written for them, and the height/time range they
// span. It is the Write Coordinator's per-file statistics record and
// the metadata store's 'f'-prefixed value.
type FileInfoRecord struct {
	Count       uint32
	DataBytes   uint32
	UndoBytes   uint32
	HeightFirst int32
	HeightLast  int32
	TimeFirst   uint32
	TimeLast    uint32
}

const fileInfoRecordSize = 4 * 7

// Serialize encodes the record as a fixed-width little-endian buffer.
func (f *FileInfoRecord) Serialize() []byte {
	b := make([]byte, fileInfoRecordSize)
	binary.LittleEndian.PutUint32(b[0:4], f.Count)
	binary.LittleEndian.PutUint32(b[4:8], f.DataBytes)
	binary.LittleEndian.PutUint32(b[8:12], f.UndoBytes)
	binary.LittleEndian.PutUint32(b[12:16], uint32(f.HeightFirst))
	binary.LittleEndian.PutUint32(b[16:20], uint32(f.HeightLast))
	binary.LittleEndian.PutUint32(b[20:24], f.TimeFirst)
	binary.LittleEndian.PutUint32(b[24:28], f.TimeLast)
	return b
}

// DeserializeFileInfoRecord decodes the encoding produced by
// Serialize.
func DeserializeFileInfoRecord(b []byte) (*FileInfoRecord, error) {
	if len(b) < fileInfoRecordSize {
		return nil, storageErr(ErrCorruption, "short file info record", nil)
	}
	return &FileInfoRecord{
		Count:       binary.LittleEndian.Uint32(b[0:4]),
		DataBytes:   binary.LittleEndian.Uint32(b[4:8]),
		UndoBytes:   binary.LittleEndian.Uint32(b[8:12]),
		HeightFirst: int32(binary.LittleEndian.Uint32(b[12:16])),
		HeightLast:  int32(binary.LittleEndian.Uint32(b[16:20])),
		TimeFirst:   binary.LittleEndian.Uint32(b[20:24]),
		TimeLast:    binary.LittleEndian.Uint32(b[24:28]),
	}, nil
}

// addBlock folds one block's height/time/size contribution into the
// file's running statistics.
func (f *FileInfoRecord) addBlock(height int32, blockTime uint32, dataLen uint32) {
	if f.Count == 0 {
		f.HeightFirst = height
		f.TimeFirst = blockTime
	}
	f.Count++
	f.DataBytes += dataLen
	f.HeightLast = height
	f.TimeLast = blockTime
}

// addUndo folds one undo record's size contribution into the file's
// running statistics.
func (f *FileInfoRecord) addUndo(undoLen uint32) {
	f.UndoBytes += undoLen
}
