// Package fdtable implements a process's open-file-descriptor table, per
// spec.md §4.F's file descriptors layered on top of the VFS. Grounded on
// original_source's fs/file_table.rs (a dense fd -> FileRef map with
// lowest-available-fd allocation) and the teacher's fuse handle table
// (handle.go), which keeps an analogous id -> handle map behind a mutex.
package fdtable

import (
	"sync"

	"github.com/golibos/libos/internal/errutil"
	"github.com/golibos/libos/internal/process"
	"github.com/golibos/libos/internal/vfs"
)

// File is one open file description: the inode it refers to, its current
// read/write cursor, and the flags fcntl(2)/open(2) attach to it. Several
// fd numbers (via dup/dup2/dup3 or fork) can reference the same File,
// matching POSIX's "open file description" sharing the cursor across
// dup'd descriptors while each fd number keeps its own close-on-exec bit.
type File struct {
	mu     sync.Mutex
	Inode  vfs.Inode
	offset int64
	status uint32 // O_* status flags (O_APPEND, O_NONBLOCK, ...)
}

// NewFile wraps inode as a freshly opened file description positioned at
// offset 0.
func NewFile(inode vfs.Inode) *File {
	return &File{Inode: inode}
}

// Seek implements lseek(2)'s SEEK_SET/SEEK_CUR/SEEK_END arithmetic against
// the file's current size.
func (f *File) Seek(offset int64, whence int) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	next := offset
	switch whence {
	case SeekSet:
		next = offset
	case SeekCur:
		next = f.offset + offset
	case SeekEnd:
		attr, err := f.Inode.GetAttr()
		if err != nil {
			return 0, err
		}
		next = attr.Size + offset
	default:
		return 0, errutil.New(errutil.EINVAL, "fdtable: unknown whence %d", whence)
	}
	if next < 0 {
		return 0, errutil.New(errutil.EINVAL, "fdtable: negative resulting offset")
	}
	f.offset = next
	return f.offset, nil
}

// Read reads into buf starting at the file's cursor, advancing it by the
// number of bytes returned, per read(2).
func (f *File) Read(buf []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, err := f.Inode.ReadAt(buf, f.offset)
	f.offset += int64(n)
	return n, err
}

// Write writes buf at the file's cursor (or at EOF first if O_APPEND is
// set), advancing the cursor by the number of bytes written, per write(2).
func (f *File) Write(buf []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.status&StatusAppend != 0 {
		attr, err := f.Inode.GetAttr()
		if err != nil {
			return 0, err
		}
		f.offset = attr.Size
	}
	n, err := f.Inode.WriteAt(buf, f.offset)
	f.offset += int64(n)
	return n, err
}

// PRead/PWrite service pread64(2)/pwrite64(2): an explicit offset that
// does not touch or depend on the file's own cursor.
func (f *File) PRead(buf []byte, offset int64) (int, error) {
	return f.Inode.ReadAt(buf, offset)
}

func (f *File) PWrite(buf []byte, offset int64) (int, error) {
	return f.Inode.WriteAt(buf, offset)
}

func (f *File) Offset() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.offset
}

func (f *File) StatusFlags() uint32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

func (f *File) SetStatusFlags(flags uint32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status = flags
}

// lseek(2) whence values.
const (
	SeekSet = 0
	SeekCur = 1
	SeekEnd = 2
)

// O_* status flags this package tracks directly (the rest pass through to
// fcntl's caller untouched).
const (
	StatusAppend   uint32 = 1 << 0
	StatusNonblock uint32 = 1 << 1
)

// entry is one fd slot: the shared File it points at plus this slot's own
// close-on-exec bit, matching FD_CLOEXEC being per-descriptor rather than
// per-open-file-description.
type entry struct {
	file     *File
	closeExec bool
}

// Table is a process's fd-number-indexed table of open files, implementing
// process.FileTable so it can be installed directly as a Process's file
// table.
type Table struct {
	mu      sync.Mutex
	entries map[int32]*entry
	next    int32
}

var _ process.FileTable = (*Table)(nil)

// New returns an empty table.
func New() *Table {
	return &Table{entries: make(map[int32]*entry)}
}

// lowestFreeLocked returns the smallest non-negative fd not currently in
// use, matching open(2)/dup(2)'s "lowest available" allocation rule.
func (t *Table) lowestFreeLocked() int32 {
	fd := t.next
	for {
		if _, used := t.entries[fd]; !used {
			return fd
		}
		fd++
	}
}

// Install adds f to the table under a freshly allocated fd and returns it.
func (t *Table) Install(f *File, closeExec bool) int32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	fd := t.lowestFreeLocked()
	t.entries[fd] = &entry{file: f, closeExec: closeExec}
	return fd
}

// InstallAt installs f at exactly fd, closing whatever was previously
// there, per dup2(2)/dup3(2)'s semantics.
func (t *Table) InstallAt(fd int32, f *File, closeExec bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[fd] = &entry{file: f, closeExec: closeExec}
}

// Get returns the File installed at fd, or EBADF if none is.
func (t *Table) Get(fd int32) (*File, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[fd]
	if !ok {
		return nil, errutil.New(errutil.EBADF, "fdtable: fd %d is not open", fd)
	}
	return e.file, nil
}

// Close removes fd from the table. Closing an unopened fd is EBADF, per
// close(2).
func (t *Table) Close(fd int32) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.entries[fd]; !ok {
		return errutil.New(errutil.EBADF, "fdtable: fd %d is not open", fd)
	}
	delete(t.entries, fd)
	return nil
}

// Dup installs a new fd referencing the same File as fd, per dup(2). The
// new fd never inherits fd's close-on-exec bit, matching dup(2)'s rule
// that FD_CLOEXEC is cleared on the copy.
func (t *Table) Dup(fd int32) (int32, error) {
	t.mu.Lock()
	e, ok := t.entries[fd]
	if !ok {
		t.mu.Unlock()
		return 0, errutil.New(errutil.EBADF, "fdtable: fd %d is not open", fd)
	}
	newFd := t.lowestFreeLocked()
	t.entries[newFd] = &entry{file: e.file}
	t.mu.Unlock()
	return newFd, nil
}

// Dup2 makes newFd reference the same File as oldFd, per dup2(2): a no-op
// returning newFd if oldFd == newFd and oldFd is open, otherwise closing
// whatever newFd previously held before installing the copy.
func (t *Table) Dup2(oldFd, newFd int32) (int32, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[oldFd]
	if !ok {
		return 0, errutil.New(errutil.EBADF, "fdtable: fd %d is not open", oldFd)
	}
	if oldFd == newFd {
		return newFd, nil
	}
	t.entries[newFd] = &entry{file: e.file}
	return newFd, nil
}

// Dup3 is Dup2 with an additional O_CLOEXEC flag on the new descriptor,
// per dup3(2); unlike dup2(2) it rejects oldFd == newFd.
func (t *Table) Dup3(oldFd, newFd int32, closeExec bool) (int32, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if oldFd == newFd {
		return 0, errutil.New(errutil.EINVAL, "fdtable: dup3 oldfd == newfd")
	}
	e, ok := t.entries[oldFd]
	if !ok {
		return 0, errutil.New(errutil.EBADF, "fdtable: fd %d is not open", oldFd)
	}
	t.entries[newFd] = &entry{file: e.file, closeExec: closeExec}
	return newFd, nil
}

// SetCloseExec toggles fd's own close-on-exec bit, used by fcntl(2)'s
// F_SETFD.
func (t *Table) SetCloseExec(fd int32, closeExec bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[fd]
	if !ok {
		return errutil.New(errutil.EBADF, "fdtable: fd %d is not open", fd)
	}
	e.closeExec = closeExec
	return nil
}

// CloseExec reports fd's close-on-exec bit, used by fcntl(2)'s F_GETFD.
func (t *Table) CloseExec(fd int32) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[fd]
	if !ok {
		return false, errutil.New(errutil.EBADF, "fdtable: fd %d is not open", fd)
	}
	return e.closeExec, nil
}

// Fork implements process.FileTable: clone(2) without CLONE_FILES gets an
// independent fd-number table whose entries still reference the same open
// File values (the cursor and status flags are shared across the fork,
// matching fork(2); only the fd-to-File mapping itself is copied).
func (t *Table) Fork() process.FileTable {
	t.mu.Lock()
	defer t.mu.Unlock()
	cp := New()
	for fd, e := range t.entries {
		cp.entries[fd] = &entry{file: e.file, closeExec: e.closeExec}
	}
	return cp
}

// CloseOnExec implements process.FileTable: execve(2) drops every fd whose
// FD_CLOEXEC bit is set, per exec.rs's do_exec.
func (t *Table) CloseOnExec() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for fd, e := range t.entries {
		if e.closeExec {
			delete(t.entries, fd)
		}
	}
}
