// Package devfs implements the device pseudo file system of spec.md §4.F:
// null, zero, random, urandom, sgx, shm, fd, and optional named block
// devices. Grounded on original_source's src/fs/dev_fs/mod.rs (init_devfs)
// for the fixed entry set.
package devfs

import (
	"time"

	"github.com/golibos/libos/internal/errutil"
	"github.com/golibos/libos/internal/events"
	"github.com/golibos/libos/internal/hostbridge"
	"github.com/golibos/libos/internal/vfs"
)

// Entry is one named special file exposed under /dev.
type Entry struct {
	Name  string
	Inode *Inode
}

// FS is the devfs file system: a flat directory of special files plus a
// symlinked "fd" entry and any configured named block devices.
type FS struct {
	root *Inode
}

// New builds a devfs populated with the fixed entry set plus any extra
// named block-device inodes. bridge supplies the host entropy source for
// random/urandom; a nil bridge makes both report EAGAIN.
func New(bridge hostbridge.Bridge, extra ...Entry) *FS {
	root := &Inode{
		self:    0,
		isDir:   true,
		entries: make(map[string]*Inode),
	}
	root.addChild("null", newSpecial(vfs.TypeCharDevice, NullFile{}))
	root.addChild("zero", newSpecial(vfs.TypeCharDevice, ZeroFile{}))
	root.addChild("random", newSpecial(vfs.TypeCharDevice, NewRandomFile(bridge, false)))
	root.addChild("urandom", newSpecial(vfs.TypeCharDevice, NewRandomFile(bridge, true)))
	root.addChild("sgx", newSpecial(vfs.TypeCharDevice, SgxFile{}))
	root.addChild("shm", newShmDir())
	root.addChild("fd", newSymlink("/proc/self/fd"))

	for _, e := range extra {
		root.addChild(e.Name, e.Inode)
	}
	return &FS{root: root}
}

func (f *FS) Name() string     { return "devfs" }
func (f *FS) Root() vfs.Inode  { return f.root }

// Inode adapts a devfs entry (special file, directory, or symlink) to
// vfs.Inode. Directory operations (shm, the root) use entries; special
// files delegate I/O to an embedded vfs.SyncFile.
type Inode struct {
	self       uint64
	isDir      bool
	entries    map[string]*Inode
	symlinkTo  string
	fileType   vfs.FileType
	backing    vfs.SyncFile
}

func newSpecial(t vfs.FileType, backing vfs.SyncFile) *Inode {
	return &Inode{fileType: t, backing: backing}
}

func newSymlink(target string) *Inode {
	return &Inode{fileType: vfs.TypeSymlink, symlinkTo: target}
}

func newShmDir() *Inode {
	return &Inode{isDir: true, fileType: vfs.TypeDirectory, entries: make(map[string]*Inode)}
}

func (n *Inode) addChild(name string, child *Inode) {
	if n.entries == nil {
		n.entries = make(map[string]*Inode)
	}
	n.entries[name] = child
}

func (n *Inode) GetAttr() (vfs.Attr, error) {
	t := n.fileType
	if n.isDir {
		t = vfs.TypeDirectory
	}
	return vfs.Attr{
		Type:     t,
		Mode:     0o666,
		ModifyAt: time.Time{},
	}, nil
}

func (n *Inode) SetAttr(vfs.Attr, vfs.AttrMask) error { return nil }

func (n *Inode) Lookup(name string) (vfs.Inode, error) {
	if n.entries == nil {
		return nil, errutil.New(errutil.ENOENT, "devfs: %s not found", name)
	}
	c, ok := n.entries[name]
	if !ok {
		return nil, errutil.New(errutil.ENOENT, "devfs: %s not found", name)
	}
	return c, nil
}

func (n *Inode) Readdir() ([]vfs.DirEntry, error) {
	out := make([]vfs.DirEntry, 0, len(n.entries))
	for name, c := range n.entries {
		t := c.fileType
		if c.isDir {
			t = vfs.TypeDirectory
		}
		out = append(out, vfs.DirEntry{Name: name, Type: t})
	}
	return out, nil
}

func (n *Inode) Create(name string, _ uint32) (vfs.Inode, error) {
	if n.isDir && n.entries != nil {
		child := newSpecial(vfs.TypeRegular, &memFile{})
		n.addChild(name, child)
		return child, nil
	}
	return nil, errutil.New(errutil.EACCES, "devfs: read-only directory")
}

func (n *Inode) Mkdir(string, uint32) (vfs.Inode, error) {
	return nil, errutil.New(errutil.EACCES, "devfs: mkdir not supported")
}
func (n *Inode) Unlink(name string) error {
	if n.entries != nil {
		delete(n.entries, name)
		return nil
	}
	return errutil.New(errutil.EACCES, "devfs: unlink not supported")
}
func (n *Inode) Rmdir(string) error { return errutil.New(errutil.EACCES, "devfs: rmdir not supported") }
func (n *Inode) Rename(string, vfs.Inode, string) error {
	return errutil.New(errutil.EACCES, "devfs: rename not supported")
}
func (n *Inode) Link(string, vfs.Inode) error {
	return errutil.New(errutil.EACCES, "devfs: link not supported")
}
func (n *Inode) Symlink(string, string) (vfs.Inode, error) {
	return nil, errutil.New(errutil.EACCES, "devfs: symlink not supported")
}
func (n *Inode) Readlink() (string, error) {
	if n.fileType != vfs.TypeSymlink {
		return "", errutil.New(errutil.EINVAL, "devfs: not a symlink")
	}
	return n.symlinkTo, nil
}

func (n *Inode) ReadAt(buf []byte, offset int64) (int, error) {
	if n.backing == nil {
		return 0, errutil.New(errutil.EISDIR, "devfs: is a directory")
	}
	return n.backing.ReadAt(offset, buf)
}

func (n *Inode) WriteAt(buf []byte, offset int64) (int, error) {
	if n.backing == nil {
		return 0, errutil.New(errutil.EISDIR, "devfs: is a directory")
	}
	return n.backing.WriteAt(offset, buf)
}

func (n *Inode) Truncate(int64) error { return nil }
func (n *Inode) Sync() error          { return nil }

// Poll exposes the backing SyncFile's readiness, always-poll bits included.
func (n *Inode) Poll(mask events.Mask, poller *events.Poller) events.Mask {
	if n.backing == nil {
		return mask & events.AlwaysPoll
	}
	return n.backing.Poll(mask, poller)
}

// memFile is a trivial in-memory regular file, used for ad hoc entries
// created under devfs (e.g. test fixtures); it is not part of the fixed
// entry set.
type memFile struct {
	vfs.UnimplementedSyncFile
	data []byte
}

func (m *memFile) ReadAt(offset int64, buf []byte) (int, error) {
	if offset >= int64(len(m.data)) {
		return 0, nil
	}
	return copy(buf, m.data[offset:]), nil
}

func (m *memFile) WriteAt(offset int64, buf []byte) (int, error) {
	end := offset + int64(len(buf))
	if end > int64(len(m.data)) {
		grown := make([]byte, end)
		copy(grown, m.data)
		m.data = grown
	}
	return copy(m.data[offset:], buf), nil
}
