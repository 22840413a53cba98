// Copyright (c) 2024 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

// Package filemap opens, memory-maps, resizes, and unmaps the
// numbered forward (blkNNNNN.dat) and revert (revNNNNN.dat) data
// files, handing out reference-counted shared views whose final drop
// unmaps the file.
package filemap

import (
	"container/list"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/project-illium/ilxd/blockstore/internal/storeerr"
)

// Kind distinguishes a forward (block) file from a revert (undo)
// file.
type Kind int

const (
	Forward Kind = iota
	Revert
)

func (k Kind) String() string {
	if k == Forward {
		return "forward"
	}
	return "revert"
}

// maxCachedViews is the size of the mapper's cache of most recently
// handed out views, per the File Mapper's "ten most recently handed
// out views" contract.
const maxCachedViews = 10

// fileKey identifies a numbered data file by kind and index.
type fileKey struct {
	kind  Kind
	index uint32
}

func (k fileKey) fileName() string {
	if k.kind == Forward {
		return fmt.Sprintf("blk%05d.dat", k.index)
	}
	return fmt.Sprintf("rev%05d.dat", k.index)
}

// View is a reference-counted shared view over a mapped file's bytes.
// It has value semantics: Clone increments the refcount, Release
// decrements it, and the refcount reaching zero atomically unmaps and
// closes the underlying file. The mapper's own m.slots entry holds one
// of those references for as long as the file stays in the ten-entry
// LRU, so a mapping outlives any single caller's Release; only
// eviction or Grow drops the mapper's reference. Growing a file is
// implemented by invalidating the mapper's own cached slot and letting
// any surviving clones keep the old mapping alive until they Release.
type View struct {
	entry *mappedFile
}

// Bytes returns the mapped byte slice. The slice is valid until
// Release is called on every clone of this view.
func (v *View) Bytes() []byte {
	return v.entry.data
}

// Clone increments the view's refcount and returns an independent
// handle to the same mapping.
func (v *View) Clone() *View {
	atomic.AddInt32(&v.entry.refs, 1)
	return &View{entry: v.entry}
}

// Release decrements the refcount. When it reaches zero the file is
// unmapped and closed.
func (v *View) Release() {
	if atomic.AddInt32(&v.entry.refs, -1) == 0 {
		v.entry.unmap()
	}
}

// mappedFile is one mmap'd region plus its own refcount and a back
// pointer to the mapper slot so the final Release can clear it.
type mappedFile struct {
	mapper   *Mapper
	key      fileKey
	data     []byte
	refs     int32
	writable bool
	fd       *os.File
	mu       sync.Mutex // guards unmap-once
	unmapped bool
}

func (m *mappedFile) unmap() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.unmapped {
		return
	}
	m.unmapped = true
	if len(m.data) > 0 {
		_ = syscall.Munmap(m.data)
	}
	_ = m.fd.Close()

	m.mapper.mu.Lock()
	if cur, ok := m.mapper.slots[m.key]; ok && cur == m {
		delete(m.mapper.slots, m.key)
		if elem, ok := m.mapper.lruElems[m.key]; ok {
			m.mapper.lru.Remove(elem)
			delete(m.mapper.lruElems, m.key)
		}
	}
	m.mapper.mu.Unlock()
}

// Mapper opens, mmaps, and tracks the numbered data files under a
// primary data directory, consulting the configured alternate
// directories when a file is missing from the primary one.
//
// Lock ordering within this package: mu guards slots/lru/lruElems and
// must never be held across a syscall; it is the innermost lock named
// in the package-level lock order (blockIndexLock > cs_LastBlockFile
// > mu), matching the File Mapper's position in that order.
type Mapper struct {
	primaryDir string
	altDirs    []string

	mu       sync.Mutex
	slots    map[fileKey]*mappedFile
	lru      *list.List
	lruElems map[fileKey]*list.Element

	// writableLast, when non-negative, is the forward file index that
	// should be opened writable; every other forward file opens
	// read-only. Revert files always open writable.
	writableLast int64
}

// New returns a Mapper rooted at primaryDir, falling back to altDirs
// (in order) for reads of files missing from primaryDir.
func New(primaryDir string, altDirs []string) *Mapper {
	return &Mapper{
		primaryDir:   primaryDir,
		altDirs:      altDirs,
		slots:        make(map[fileKey]*mappedFile),
		lru:          list.New(),
		lruElems:     make(map[fileKey]*list.Element),
		writableLast: -1,
	}
}

// SetWritableFile marks which forward file index is currently the
// write target. All other forward files will be opened read-only on
// the next Map call.
func (m *Mapper) SetWritableFile(index uint32) {
	m.mu.Lock()
	m.writableLast = int64(index)
	m.mu.Unlock()
}

func (m *Mapper) resolvePath(key fileKey) (string, bool) {
	name := key.fileName()
	primary := filepath.Join(m.primaryDir, name)
	if _, err := os.Stat(primary); err == nil {
		return primary, true
	}
	for _, dir := range m.altDirs {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			return p, true
		}
	}
	// Nothing exists yet; callers that want to create the file use
	// the primary path.
	return primary, false
}

// Map returns a reference-counted shared view over the given file,
// its size, and whether the mapping is writable. A fresh open reopens
// the file at its current on-disk size; repeated Map calls for the
// same (kind, index) before the next Grow or eviction return clones
// of the same mapping.
func (m *Mapper) Map(index uint32, kind Kind) (*View, int, bool, error) {
	key := fileKey{kind: kind, index: index}

	m.mu.Lock()
	if entry, ok := m.slots[key]; ok {
		m.touchLocked(key)
		view := &View{entry: entry}
		atomic.AddInt32(&entry.refs, 1)
		size := len(entry.data)
		writable := entry.writable
		m.mu.Unlock()
		return view, size, writable, nil
	}
	m.mu.Unlock()

	path, exists := m.resolvePath(key)
	if !exists {
		return nil, 0, false, storeerr.NotFoundErr(fmt.Sprintf("filemap: %s not found", key.fileName()))
	}

	wantWritable := kind == Revert
	if kind == Forward {
		m.mu.Lock()
		wantWritable = m.writableLast >= 0 && uint32(m.writableLast) == index
		m.mu.Unlock()
	}

	entry, size, writable, err := m.openAndMap(path, key, wantWritable)
	if err != nil {
		return nil, 0, false, err
	}

	m.mu.Lock()
	m.slots[key] = entry
	m.touchLocked(key)
	evicted := m.evictIfNeededLocked()
	m.mu.Unlock()

	// The mapper's own slot reference on each evicted entry is gone;
	// release it now that m.mu is free, the same as Grow does. If
	// callers hold clones the mapping stays resident until they
	// release too.
	for _, e := range evicted {
		(&View{entry: e}).Release()
	}

	atomic.AddInt32(&entry.refs, 1)
	return &View{entry: entry}, size, writable, nil
}

// openAndMap opens path, retrying read-only if a writable open fails
// (e.g. a read-only medium), and mmaps the result.
func (m *Mapper) openAndMap(path string, key fileKey, writable bool) (*mappedFile, int, bool, error) {
	flags := os.O_RDONLY
	if writable {
		flags = os.O_RDWR | os.O_CREATE
	}
	fd, err := os.OpenFile(path, flags, 0644)
	if err != nil && writable {
		// Retry read-only.
		writable = false
		fd, err = os.OpenFile(path, os.O_RDONLY, 0644)
	}
	if err != nil {
		return nil, 0, false, storeerr.IOErr(fmt.Sprintf("filemap: open %s", path), err)
	}

	fi, err := fd.Stat()
	if err != nil {
		_ = fd.Close()
		return nil, 0, false, storeerr.IOErr(fmt.Sprintf("filemap: stat %s", path), err)
	}
	size := int(fi.Size())

	var data []byte
	if size > 0 {
		prot := syscall.PROT_READ
		if writable {
			prot |= syscall.PROT_WRITE
		}
		data, err = syscall.Mmap(int(fd.Fd()), 0, size, prot, syscall.MAP_SHARED)
		if err != nil {
			_ = fd.Close()
			return nil, 0, false, storeerr.IOErr(fmt.Sprintf("filemap: mmap %s", path), err)
		}
	}

	entry := &mappedFile{
		mapper:   m,
		key:      key,
		data:     data,
		writable: writable,
		fd:       fd,
		// refs starts at 1 for the mapper's own cache slot, which
		// evictIfNeededLocked/Grow release when the entry leaves
		// m.slots. Map adds a further ref for each caller-held View,
		// so the mapping outlives any single caller's Release as long
		// as it stays in the LRU.
		refs: 1,
	}
	return entry, size, writable, nil
}

// Grow invalidates the cached entry for (kind, index) without
// disturbing views already handed out; it does not touch the file on
// disk. Callers resize the file separately (e.g. via Preallocate)
// before calling Grow so the next Map sees the new size.
//
// This is the only safe way to observe a resize: POSIX memory maps
// are bound to the size at map time, and a writer must never mutate
// bytes beyond a live mapping's bound.
func (m *Mapper) Grow(index uint32, kind Kind) {
	key := fileKey{kind: kind, index: index}
	m.mu.Lock()
	entry, ok := m.slots[key]
	if ok {
		delete(m.slots, key)
		if elem, ok := m.lruElems[key]; ok {
			m.lru.Remove(elem)
			delete(m.lruElems, key)
		}
	}
	m.mu.Unlock()
	if ok {
		// Drop the mapper's own reference; surviving clones (if any)
		// keep the old mapping alive until they Release.
		(&View{entry: entry}).Release()
	}
}

// Preallocate grows or creates the file at path on disk to at least
// size bytes, without mapping it. The caller must call Grow
// afterward if the file was already mapped.
func Preallocate(path string, size int64) error {
	fd, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return storeerr.IOErr(fmt.Sprintf("filemap: preallocate open %s", path), err)
	}
	defer fd.Close()

	fi, err := fd.Stat()
	if err != nil {
		return storeerr.IOErr(fmt.Sprintf("filemap: preallocate stat %s", path), err)
	}
	if fi.Size() >= size {
		return nil
	}
	if err := fd.Truncate(size); err != nil {
		return storeerr.IOErr(fmt.Sprintf("filemap: preallocate truncate %s", path), err)
	}
	return nil
}

// touchLocked moves key to the front of the LRU list, adding it if it
// is not there yet. It does not evict anything; Map calls
// evictIfNeededLocked separately after a fresh open.
func (m *Mapper) touchLocked(key fileKey) {
	if elem, ok := m.lruElems[key]; ok {
		m.lru.MoveToFront(elem)
		return
	}
	m.lruElems[key] = m.lru.PushFront(key)
}

// evictIfNeededLocked drops slots over the LRU budget and returns the
// evicted entries so the caller can release them after unlocking m.mu.
// Release can run the entry's unmap, which re-locks m.mu, so it must
// never be called while m.mu is held.
func (m *Mapper) evictIfNeededLocked() []*mappedFile {
	var evicted []*mappedFile
	for m.lru.Len() > maxCachedViews {
		back := m.lru.Back()
		if back == nil {
			return evicted
		}
		key := back.Value.(fileKey)
		m.lru.Remove(back)
		delete(m.lruElems, key)
		entry, ok := m.slots[key]
		if !ok {
			continue
		}
		delete(m.slots, key)
		evicted = append(evicted, entry)
	}
	return evicted
}

// Path returns the on-disk path that would be used for (kind, index)
// under the primary directory, creating it if necessary is the
// caller's responsibility.
func (m *Mapper) Path(index uint32, kind Kind) string {
	return filepath.Join(m.primaryDir, fileKey{kind: kind, index: index}.fileName())
}
