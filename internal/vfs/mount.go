package vfs

import (
	"sync"

	"github.com/golibos/libos/internal/errutil"
)

// FileSystem is implemented by every concrete backing store mountable into
// the namespace: sfs, jindisk-backed sfs, devfs, procfs.
type FileSystem interface {
	Name() string   // "sfs", "devfs", "procfs", ...
	Root() Inode
}

// Mount grafts a file system's root inode onto a target directory inode,
// per spec.md §4.F.
type Mount struct {
	fs         FileSystem
	targetPath string
	root       *Dentry
	hostParent *Dentry // the mounted-over dentry's parent, for ".." traversal
}

// MountTable tracks active mounts keyed by target path, protected by an
// rwlock per spec.md §5's "process/thread/file tables are protected by
// rwlocks."
type MountTable struct {
	mu     sync.RWMutex
	mounts map[string]*Mount
}

// NewMountTable builds an empty mount table.
func NewMountTable() *MountTable {
	return &MountTable{mounts: make(map[string]*Mount)}
}

// Mount grafts fs's root onto targetPath; the parent of targetPath's dentry
// becomes the mount's host-parent link.
func (mt *MountTable) Mount(targetPath string, targetDentry *Dentry, fs FileSystem) (*Mount, error) {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	if _, ok := mt.mounts[targetPath]; ok {
		return nil, errutil.New(errutil.EBUSY, "vfs: %s is already a mount point", targetPath)
	}
	root := NewRootDentry(fs.Root())
	m := &Mount{fs: fs, targetPath: targetPath, root: root}
	if targetDentry != nil {
		m.hostParent = targetDentry.Parent()
	}
	root.mount = m
	mt.mounts[targetPath] = m
	return m, nil
}

// Unmount removes the mount at targetPath. Requires no descendants are in
// use; this implementation approximates that with a cached-children check
// since reference counting on dentries is not yet tracked.
func (mt *MountTable) Unmount(targetPath string) error {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	m, ok := mt.mounts[targetPath]
	if !ok {
		return errutil.New(errutil.EINVAL, "vfs: %s is not a mount point", targetPath)
	}
	m.root.mu.RLock()
	inUse := len(m.root.children) > 0
	m.root.mu.RUnlock()
	if inUse {
		return errutil.New(errutil.EBUSY, "vfs: %s has descendants in use", targetPath)
	}
	delete(mt.mounts, targetPath)
	return nil
}

// Lookup returns the Mount grafted at targetPath, if any.
func (mt *MountTable) Lookup(targetPath string) (*Mount, bool) {
	mt.mu.RLock()
	defer mt.mu.RUnlock()
	m, ok := mt.mounts[targetPath]
	return m, ok
}

func (m *Mount) Root() *Dentry { return m.root }
