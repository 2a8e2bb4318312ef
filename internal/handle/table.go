// Package handle manages the open-file handle table. File content is
// buffered whole in memory per handle and committed to the remote only
// when the handle is released.
package handle

import (
	"sync"
	"sync/atomic"

	"github.com/Mayank-software/dropboxfs/pkg/errors"
)

// OpenFile is the in-memory state of one open file handle.
type OpenFile struct {
	mu sync.Mutex

	path string
	buf  []byte
	// rev is the revision the buffer was downloaded at. Empty means the
	// file did not exist when the handle was opened.
	rev string
}

// Path returns the remote path the handle was opened on.
func (f *OpenFile) Path() string {
	return f.path
}

// Rev returns the base revision for the upload precondition.
func (f *OpenFile) Rev() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rev
}

// SetRev records a new base revision after a successful upload.
func (f *OpenFile) SetRev(rev string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rev = rev
}

// Len returns the current buffer length.
func (f *OpenFile) Len() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.buf))
}

// ReadAt copies buffer content starting at offset into p and returns the
// number of bytes copied. Reads at or past the end return 0.
func (f *OpenFile) ReadAt(p []byte, offset int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	if offset < 0 || offset >= int64(len(f.buf)) {
		return 0
	}
	return copy(p, f.buf[offset:])
}

// WriteAt overwrites buffer content at offset, growing the buffer with
// zero fill when the write starts or ends past the current length.
// Returns the number of bytes written.
func (f *OpenFile) WriteAt(p []byte, offset int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	if offset < 0 {
		return 0
	}
	end := offset + int64(len(p))
	if end > int64(len(f.buf)) {
		grown := make([]byte, end)
		copy(grown, f.buf)
		f.buf = grown
	}
	return copy(f.buf[offset:], p)
}

// Truncate resizes the buffer to size, zero-filling on growth.
func (f *OpenFile) Truncate(size int64) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if size < 0 {
		size = 0
	}
	cur := int64(len(f.buf))
	switch {
	case size < cur:
		f.buf = f.buf[:size]
	case size > cur:
		grown := make([]byte, size)
		copy(grown, f.buf)
		f.buf = grown
	}
}

// Snapshot returns a copy of the buffer for upload.
func (f *OpenFile) Snapshot() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]byte, len(f.buf))
	copy(out, f.buf)
	return out
}

// Table maps handle ids to open files and open directories. Ids come from
// a single atomic counter shared by both kinds, so an id is never reused
// for the lifetime of the mount.
type Table struct {
	next atomic.Uint64

	mu    sync.Mutex
	files map[uint64]*OpenFile
	dirs  map[uint64]string
}

// NewTable creates an empty handle table.
func NewTable() *Table {
	return &Table{
		files: make(map[uint64]*OpenFile),
		dirs:  make(map[uint64]string),
	}
}

// OpenFile registers a new file handle over the given buffer and returns
// its id. The buffer is owned by the handle after this call.
func (t *Table) OpenFile(path string, buf []byte, rev string) uint64 {
	id := t.next.Add(1)
	f := &OpenFile{path: path, buf: buf, rev: rev}

	t.mu.Lock()
	t.files[id] = f
	t.mu.Unlock()
	return id
}

// File returns the open file for id.
func (t *Table) File(id uint64) (*OpenFile, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	f, ok := t.files[id]
	if !ok {
		return nil, errors.NewError(errors.ErrCodeHandleNotFound, "no open file for handle")
	}
	return f, nil
}

// ReleaseFile removes the handle and returns its final state so the
// caller can commit the buffer. Removal happens regardless of whether the
// commit later succeeds.
func (t *Table) ReleaseFile(id uint64) (*OpenFile, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	f, ok := t.files[id]
	if !ok {
		return nil, errors.NewError(errors.ErrCodeHandleNotFound, "no open file for handle")
	}
	delete(t.files, id)
	return f, nil
}

// OpenDir registers a directory handle. Directory handles carry no state
// beyond the path; reads list the remote directly.
func (t *Table) OpenDir(path string) uint64 {
	id := t.next.Add(1)
	t.mu.Lock()
	t.dirs[id] = path
	t.mu.Unlock()
	return id
}

// ReleaseDir drops a directory handle.
func (t *Table) ReleaseDir(id uint64) {
	t.mu.Lock()
	delete(t.dirs, id)
	t.mu.Unlock()
}

// OpenCount returns the number of live file handles.
func (t *Table) OpenCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.files)
}
