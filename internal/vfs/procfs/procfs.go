// Package procfs implements the process information pseudo file system of
// spec.md §4.F: /proc/self, /proc/<pid>/{cmdline,comm,exe,root,cwd,statm,
// stat}, /proc/meminfo, /proc/cpuinfo. Entries are generated on read from a
// ProcessInfo snapshot rather than stored, matching original_source's
// src/fs/procfs ProcINode::generate_data_in_bytes pattern: every read
// regenerates the file's bytes from live process state.
package procfs

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/golibos/libos/internal/errutil"
	"github.com/golibos/libos/internal/events"
	"github.com/golibos/libos/internal/vfs"
)

// ProcessInfo is the minimal view of a process procfs needs. It is
// satisfied by the process table's process handle; defined here (rather
// than imported from internal/process) to keep procfs independent of the
// process package's lifecycle.
type ProcessInfo interface {
	PID() int
	IsZombie() bool
	ExecPath() string
	MainThreadName() (string, bool)
	FSRoot() string
	FSCwd() string
	VirtualMemPages() uint64
	ResidentMemPages() uint64
	HeapStackPages() uint64
}

// SelfPID resolves the pid that "self" refers to: the calling process.
type SelfPID func() int

// MemStats reports system-wide memory figures for /proc/meminfo.
type MemStats struct {
	TotalKB, FreeKB uint64
}

// MemStatsFunc produces a fresh MemStats snapshot on every read.
type MemStatsFunc func() MemStats

// ProcessLister enumerates currently live processes, for the /proc root
// directory listing.
type ProcessLister func() []ProcessInfo

// FS is the procfs file system.
type FS struct {
	root *dirInode
}

// New builds a procfs rooted with /proc/self, /proc/meminfo, /proc/cpuinfo,
// and one /proc/<pid> subtree, built at lookup time, per pid that list returns.
func New(self SelfPID, list ProcessLister, mem MemStatsFunc, cpuinfo func() string) *FS {
	root := newDirInode()
	root.addStatic("self", newSymlinkInode(func() (string, error) {
		return strconv.Itoa(self()), nil
	}))
	root.addStatic("meminfo", newGeneratedFile(func() ([]byte, error) {
		m := mem()
		return []byte(fmt.Sprintf(
			"MemTotal:       %d kB\nMemFree:        %d kB\nMemAvailable:   %d kB\n",
			m.TotalKB, m.FreeKB, m.FreeKB,
		)), nil
	}))
	root.addStatic("cpuinfo", newGeneratedFile(func() ([]byte, error) {
		return []byte(cpuinfo()), nil
	}))
	root.list = list
	return &FS{root: root}
}

func (f *FS) Name() string    { return "procfs" }
func (f *FS) Root() vfs.Inode { return f.root }

func pidDir(p ProcessInfo) *dirInode {
	d := newDirInode()
	d.addStatic("cmdline", newGeneratedFile(func() ([]byte, error) {
		if p.IsZombie() {
			return nil, nil
		}
		return append([]byte(p.ExecPath()), 0), nil
	}))
	d.addStatic("comm", newGeneratedFile(func() ([]byte, error) {
		name, ok := p.MainThreadName()
		if !ok {
			return nil, errutil.New(errutil.ENOENT, "procfs: no main thread")
		}
		return append([]byte(name), '\n'), nil
	}))
	d.addStatic("exe", newSymlinkInode(func() (string, error) {
		return p.ExecPath(), nil
	}))
	d.addStatic("root", newSymlinkInode(func() (string, error) {
		return p.FSRoot(), nil
	}))
	d.addStatic("cwd", newSymlinkInode(func() (string, error) {
		return p.FSCwd(), nil
	}))
	d.addStatic("statm", newGeneratedFile(func() ([]byte, error) {
		vmem := p.VirtualMemPages()
		res := p.ResidentMemPages()
		data := p.HeapStackPages()
		return []byte(fmt.Sprintf("%d %d 0 0 0 %d 0\n", vmem, res, data)), nil
	}))
	d.addStatic("stat", newGeneratedFile(func() ([]byte, error) {
		name, _ := p.MainThreadName()
		state := "R"
		if p.IsZombie() {
			state = "Z"
		}
		return []byte(fmt.Sprintf("%d (%s) %s\n", p.PID(), name, state)), nil
	}))
	return d
}

// dirInode is a generated directory: static named entries plus, for the
// procfs root, a dynamic per-pid listing produced by list at lookup time.
type dirInode struct {
	entries map[string]vfs.Inode
	list    ProcessLister
}

func newDirInode() *dirInode {
	return &dirInode{entries: make(map[string]vfs.Inode)}
}

func (d *dirInode) addStatic(name string, inode vfs.Inode) {
	d.entries[name] = inode
}

func (d *dirInode) GetAttr() (vfs.Attr, error) {
	return vfs.Attr{Type: vfs.TypeDirectory, Mode: 0o555, ModifyAt: time.Time{}}, nil
}
func (d *dirInode) SetAttr(vfs.Attr, vfs.AttrMask) error {
	return errutil.New(errutil.EACCES, "procfs: read-only")
}

func (d *dirInode) Lookup(name string) (vfs.Inode, error) {
	if e, ok := d.entries[name]; ok {
		return e, nil
	}
	if d.list != nil {
		if pid, err := strconv.Atoi(name); err == nil {
			for _, p := range d.list() {
				if p.PID() == pid {
					return pidDir(p), nil
				}
			}
		}
	}
	return nil, errutil.New(errutil.ENOENT, "procfs: %s not found", name)
}

func (d *dirInode) Readdir() ([]vfs.DirEntry, error) {
	out := make([]vfs.DirEntry, 0, len(d.entries))
	names := make([]string, 0, len(d.entries))
	for name := range d.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		out = append(out, vfs.DirEntry{Name: name, Type: vfs.TypeRegular})
	}
	if d.list != nil {
		for _, p := range d.list() {
			out = append(out, vfs.DirEntry{Name: strconv.Itoa(p.PID()), Type: vfs.TypeDirectory})
		}
	}
	return out, nil
}

func (d *dirInode) Create(string, uint32) (vfs.Inode, error) {
	return nil, errutil.New(errutil.EACCES, "procfs: read-only")
}
func (d *dirInode) Mkdir(string, uint32) (vfs.Inode, error) {
	return nil, errutil.New(errutil.EACCES, "procfs: read-only")
}
func (d *dirInode) Unlink(string) error { return errutil.New(errutil.EACCES, "procfs: read-only") }
func (d *dirInode) Rmdir(string) error  { return errutil.New(errutil.EACCES, "procfs: read-only") }
func (d *dirInode) Rename(string, vfs.Inode, string) error {
	return errutil.New(errutil.EACCES, "procfs: read-only")
}
func (d *dirInode) Link(string, vfs.Inode) error {
	return errutil.New(errutil.EACCES, "procfs: read-only")
}
func (d *dirInode) Symlink(string, string) (vfs.Inode, error) {
	return nil, errutil.New(errutil.EACCES, "procfs: read-only")
}
func (d *dirInode) Readlink() (string, error) {
	return "", errutil.New(errutil.EINVAL, "procfs: not a symlink")
}
func (d *dirInode) ReadAt([]byte, int64) (int, error) {
	return 0, errutil.New(errutil.EISDIR, "procfs: is a directory")
}
func (d *dirInode) WriteAt([]byte, int64) (int, error) {
	return 0, errutil.New(errutil.EISDIR, "procfs: is a directory")
}
func (d *dirInode) Truncate(int64) error { return errutil.New(errutil.EACCES, "procfs: read-only") }
func (d *dirInode) Sync() error          { return nil }
func (d *dirInode) Poll(mask events.Mask, _ *events.Poller) events.Mask {
	return mask & events.AlwaysPoll
}
