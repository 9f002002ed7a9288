// Package vfs implements the layered virtual file system of spec.md §4.F:
// a single hierarchical namespace composed of heterogeneous file systems
// and pseudo file systems, mount points, path resolution with a bounded
// symlink chain, and per-component permission checks. Grounded on
// original_source's src/fs/* (dentry.rs, access.rs, fs_ops/mount.rs) and
// the teacher's fs/inode package shape (lookup-count tracked references).
package vfs

import "time"

// FileType is the kind of one inode, per spec.md §3.
type FileType int

const (
	TypeRegular FileType = iota
	TypeDirectory
	TypeSymlink
	TypeSocket
	TypeFIFO
	TypeCharDevice
	TypeBlockDevice
)

// Attr holds an inode's stat-able attributes.
type Attr struct {
	Type      FileType
	Mode      uint32 // permission bits, rwxrwxrwx
	UID, GID  uint32
	Size      int64
	Links     uint32
	DeviceID  uint64
	InodeID   uint64
	AccessAt  time.Time
	ModifyAt  time.Time
	ChangeAt  time.Time
}

// DirEntry is one (name, inode-id, type) triple returned by Readdir.
type DirEntry struct {
	Name string
	ID   uint64
	Type FileType
}

// Inode is the core VFS entity. Every concrete file system (sfs, devfs,
// procfs, jindisk-backed) implements it for its own inode kind.
type Inode interface {
	// GetAttr returns this inode's current attributes.
	GetAttr() (Attr, error)
	// SetAttr applies a partial attribute update (mode/uid/gid/size/times).
	SetAttr(attr Attr, mask AttrMask) error

	// Lookup resolves one path component. Returns ENOENT if absent.
	Lookup(name string) (Inode, error)
	// Readdir lists directory entries in the file system's native order
	// (insertion order for sfs, per spec.md §4.F).
	Readdir() ([]DirEntry, error)

	// Create makes a new regular file named name in this directory.
	Create(name string, mode uint32) (Inode, error)
	// Mkdir makes a new subdirectory.
	Mkdir(name string, mode uint32) (Inode, error)
	// Unlink removes a non-directory entry.
	Unlink(name string) error
	// Rmdir removes an empty subdirectory entry.
	Rmdir(name string) error
	// Rename moves entry name from this directory to newName under newDir.
	Rename(name string, newDir Inode, newName string) error
	// Link creates a hard link named name pointing at target within this
	// directory.
	Link(name string, target Inode) error
	// Symlink creates a symlink entry named name pointing at linkTarget.
	Symlink(name string, linkTarget string) (Inode, error)
	// Readlink returns a symlink inode's target.
	Readlink() (string, error)

	// ReadAt/WriteAt service regular-file I/O.
	ReadAt(buf []byte, offset int64) (int, error)
	WriteAt(buf []byte, offset int64) (int, error)
	// Truncate resizes a regular file.
	Truncate(size int64) error
	// Sync flushes any buffered state to the backing device.
	Sync() error
}

// AttrMask selects which Attr fields SetAttr should apply.
type AttrMask uint32

const (
	AttrMode AttrMask = 1 << iota
	AttrUID
	AttrGID
	AttrSize
	AttrAccessTime
	AttrModifyTime
)
