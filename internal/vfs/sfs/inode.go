package sfs

import (
	"time"

	"github.com/golibos/libos/internal/blockdev"
	"github.com/golibos/libos/internal/errutil"
	"github.com/golibos/libos/internal/events"
	"github.com/golibos/libos/internal/vfs"
)

// Inode is one SFS on-disk inode, loaded into memory on first access and
// kept in the owning FS's inode cache so repeated lookups return the same
// handle (hard links share one Inode).
type Inode struct {
	fs     *FS
	record *inodeRecord
}

func (n *Inode) GetAttr() (vfs.Attr, error) {
	r := n.record
	return vfs.Attr{
		Type:     sfsToFileType(r.Type),
		Mode:     r.Mode,
		UID:      r.UID,
		GID:      r.GID,
		Size:     int64(r.Size),
		Links:    r.Links,
		InodeID:  r.ID,
		AccessAt: unixNanoToTime(r.Atime),
		ModifyAt: unixNanoToTime(r.Mtime),
		ChangeAt: unixNanoToTime(r.Ctime),
	}, nil
}

func (n *Inode) SetAttr(attr vfs.Attr, mask vfs.AttrMask) error {
	n.fs.mu.Lock()
	defer n.fs.mu.Unlock()
	if mask&vfs.AttrMode != 0 {
		n.record.Mode = attr.Mode
	}
	if mask&vfs.AttrUID != 0 {
		n.record.UID = attr.UID
	}
	if mask&vfs.AttrGID != 0 {
		n.record.GID = attr.GID
	}
	if mask&vfs.AttrSize != 0 {
		if err := n.truncateLocked(attr.Size); err != nil {
			return err
		}
	}
	if mask&vfs.AttrAccessTime != 0 {
		n.record.Atime = timeToUnixNano(attr.AccessAt)
	}
	if mask&vfs.AttrModifyTime != 0 {
		n.record.Mtime = timeToUnixNano(attr.ModifyAt)
	}
	n.record.Ctime = timeToUnixNano(time.Now())
	return n.fs.writeInodeRecord(n.record)
}

func (n *Inode) requireDir() error {
	if sfsToFileType(n.record.Type) != vfs.TypeDirectory {
		return errutil.New(errutil.ENOTDIR, "sfs: not a directory")
	}
	return nil
}

func (n *Inode) Lookup(name string) (vfs.Inode, error) {
	n.fs.mu.Lock()
	defer n.fs.mu.Unlock()
	if err := n.requireDir(); err != nil {
		return nil, err
	}
	entries, err := n.readDirEntriesLocked()
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if e.Type != dirEntryDeleted && e.Name == name {
			return n.fs.loadInodeLocked(e.InodeID), nil
		}
	}
	return nil, errutil.New(errutil.ENOENT, "sfs: %s not found", name)
}

func (n *Inode) Readdir() ([]vfs.DirEntry, error) {
	n.fs.mu.Lock()
	defer n.fs.mu.Unlock()
	if err := n.requireDir(); err != nil {
		return nil, err
	}
	entries, err := n.readDirEntriesLocked()
	if err != nil {
		return nil, err
	}
	out := make([]vfs.DirEntry, 0, len(entries))
	for _, e := range entries {
		if e.Type == dirEntryDeleted {
			continue
		}
		out = append(out, vfs.DirEntry{Name: e.Name, ID: e.InodeID, Type: sfsTypeToVFS(e.Type)})
	}
	return out, nil
}

func (n *Inode) readDirEntriesLocked() ([]rawDirEntry, error) {
	size := int64(n.record.Size)
	slots := int(size / dirEntrySize)
	out := make([]rawDirEntry, 0, slots)
	buf := make([]byte, dirEntrySize)
	for i := 0; i < slots; i++ {
		if err := n.readAtLocked(buf, int64(i)*dirEntrySize); err != nil {
			return nil, err
		}
		out = append(out, decodeDirEntry(buf))
	}
	return out, nil
}

func (n *Inode) appendDirEntryLocked(e rawDirEntry) error {
	if len(e.Name) > maxNameLen {
		return errutil.New(errutil.ENAMETOOLONG, "sfs: name %q too long", e.Name)
	}
	offset := int64(n.record.Size)
	buf := encodeDirEntry(e)
	if err := n.writeAtLocked(buf, offset); err != nil {
		return err
	}
	return nil
}

func (n *Inode) Create(name string, mode uint32) (vfs.Inode, error) {
	return n.createEntry(name, vfs.TypeRegular, mode)
}

func (n *Inode) Mkdir(name string, mode uint32) (vfs.Inode, error) {
	child, err := n.createEntry(name, vfs.TypeDirectory, mode)
	return child, err
}

func (n *Inode) createEntry(name string, t vfs.FileType, mode uint32) (vfs.Inode, error) {
	n.fs.mu.Lock()
	defer n.fs.mu.Unlock()
	if err := n.requireDir(); err != nil {
		return nil, err
	}
	entries, err := n.readDirEntriesLocked()
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if e.Type != dirEntryDeleted && e.Name == name {
			return nil, errutil.New(errutil.EEXIST, "sfs: %s already exists", name)
		}
	}
	child := n.fs.newInodeLocked(t, mode, 0, 0)
	if err := n.fs.writeInodeRecord(child.record); err != nil {
		return nil, err
	}
	if err := n.appendDirEntryLocked(rawDirEntry{Type: fileTypeToSFS(t), InodeID: child.record.ID, Name: name}); err != nil {
		return nil, err
	}
	return child, nil
}

func (n *Inode) Unlink(name string) error { return n.removeEntry(name, false) }
func (n *Inode) Rmdir(name string) error  { return n.removeEntry(name, true) }

func (n *Inode) removeEntry(name string, wantDir bool) error {
	n.fs.mu.Lock()
	defer n.fs.mu.Unlock()
	if err := n.requireDir(); err != nil {
		return err
	}
	slots := int(n.record.Size / dirEntrySize)
	buf := make([]byte, dirEntrySize)
	for i := 0; i < slots; i++ {
		off := int64(i) * dirEntrySize
		if err := n.readAtLocked(buf, off); err != nil {
			return err
		}
		e := decodeDirEntry(buf)
		if e.Type == dirEntryDeleted || e.Name != name {
			continue
		}
		isDir := sfsToFileType(e.Type) == vfs.TypeDirectory
		if isDir != wantDir {
			if wantDir {
				return errutil.New(errutil.ENOTDIR, "sfs: %s is not a directory", name)
			}
			return errutil.New(errutil.EISDIR, "sfs: %s is a directory", name)
		}
		target := n.fs.loadInodeLocked(e.InodeID)
		if isDir {
			childEntries, err := target.readDirEntriesLocked()
			if err != nil {
				return err
			}
			for _, ce := range childEntries {
				if ce.Type != dirEntryDeleted {
					return errutil.New(errutil.ENOTEMPTY, "sfs: %s not empty", name)
				}
			}
		}
		target.record.Links--
		if err := n.fs.writeInodeRecord(target.record); err != nil {
			return err
		}
		tomb := encodeDirEntry(rawDirEntry{Type: dirEntryDeleted, InodeID: e.InodeID, Name: e.Name})
		return n.writeAtLocked(tomb, off)
	}
	return errutil.New(errutil.ENOENT, "sfs: %s not found", name)
}

func (n *Inode) Rename(name string, newDir vfs.Inode, newName string) error {
	dst, ok := newDir.(*Inode)
	if !ok {
		return errutil.New(errutil.EINVAL, "sfs: rename across file systems not supported")
	}
	n.fs.mu.Lock()
	defer n.fs.mu.Unlock()
	slots := int(n.record.Size / dirEntrySize)
	buf := make([]byte, dirEntrySize)
	for i := 0; i < slots; i++ {
		off := int64(i) * dirEntrySize
		if err := n.readAtLocked(buf, off); err != nil {
			return err
		}
		e := decodeDirEntry(buf)
		if e.Type == dirEntryDeleted || e.Name != name {
			continue
		}
		tomb := encodeDirEntry(rawDirEntry{Type: dirEntryDeleted, InodeID: e.InodeID, Name: e.Name})
		if err := n.writeAtLocked(tomb, off); err != nil {
			return err
		}
		return dst.appendDirEntryLocked(rawDirEntry{Type: e.Type, InodeID: e.InodeID, Name: newName})
	}
	return errutil.New(errutil.ENOENT, "sfs: %s not found", name)
}

func (n *Inode) Link(name string, target vfs.Inode) error {
	t, ok := target.(*Inode)
	if !ok {
		return errutil.New(errutil.EINVAL, "sfs: link across file systems not supported")
	}
	n.fs.mu.Lock()
	defer n.fs.mu.Unlock()
	if err := n.requireDir(); err != nil {
		return err
	}
	t.record.Links++
	if err := n.fs.writeInodeRecord(t.record); err != nil {
		return err
	}
	return n.appendDirEntryLocked(rawDirEntry{Type: t.record.Type, InodeID: t.record.ID, Name: name})
}

func (n *Inode) Symlink(name string, linkTarget string) (vfs.Inode, error) {
	if len(linkTarget) > len(n.record.SymlinkTarget) {
		return nil, errutil.New(errutil.ENAMETOOLONG, "sfs: symlink target too long")
	}
	child, err := n.createEntry(name, vfs.TypeSymlink, 0o777)
	if err != nil {
		return nil, err
	}
	sym := child.(*Inode)
	n.fs.mu.Lock()
	copy(sym.record.SymlinkTarget[:], linkTarget)
	sym.record.SymlinkLen = uint16(len(linkTarget))
	err = n.fs.writeInodeRecord(sym.record)
	n.fs.mu.Unlock()
	return sym, err
}

func (n *Inode) Readlink() (string, error) {
	if sfsToFileType(n.record.Type) != vfs.TypeSymlink {
		return "", errutil.New(errutil.EINVAL, "sfs: not a symlink")
	}
	return string(n.record.SymlinkTarget[:n.record.SymlinkLen]), nil
}

func (n *Inode) ReadAt(buf []byte, offset int64) (int, error) {
	n.fs.mu.Lock()
	defer n.fs.mu.Unlock()
	if err := n.readAtLocked(buf, offset); err != nil {
		return 0, err
	}
	return len(buf), nil
}

func (n *Inode) readAtLocked(buf []byte, offset int64) error {
	size := int64(n.record.Size)
	if offset >= size {
		for i := range buf {
			buf[i] = 0
		}
		return nil
	}
	extents, err := n.fs.allExtents(n.record)
	if err != nil {
		return err
	}
	remaining := buf
	pos := offset
	for len(remaining) > 0 {
		if pos >= size {
			for i := range remaining {
				remaining[i] = 0
			}
			return nil
		}
		blockIdx := pos / blockdev.BlockSize
		inBlockOff := pos % blockdev.BlockSize
		start, ok := blockForIndex(extents, blockIdx)
		if !ok {
			for i := range remaining {
				remaining[i] = 0
			}
			return nil
		}
		chunk := blockdev.NewBuf(1)
		sub, err := n.fs.dev.Submit(&blockdev.Request{Op: blockdev.OpRead, StartID: start, Buf: chunk})
		if err != nil {
			return err
		}
		if err := sub.Wait(); err != nil {
			return err
		}
		take := int64(blockdev.BlockSize) - inBlockOff
		if take > int64(len(remaining)) {
			take = int64(len(remaining))
		}
		copy(remaining[:take], chunk[inBlockOff:])
		remaining = remaining[take:]
		pos += take
	}
	return nil
}

func (n *Inode) WriteAt(buf []byte, offset int64) (int, error) {
	n.fs.mu.Lock()
	defer n.fs.mu.Unlock()
	if err := n.writeAtLocked(buf, offset); err != nil {
		return 0, err
	}
	return len(buf), nil
}

func (n *Inode) writeAtLocked(buf []byte, offset int64) error {
	needed := offset + int64(len(buf))
	if err := n.growToLocked(needed); err != nil {
		return err
	}
	extents, err := n.fs.allExtents(n.record)
	if err != nil {
		return err
	}
	remaining := buf
	pos := offset
	for len(remaining) > 0 {
		blockIdx := pos / blockdev.BlockSize
		inBlockOff := pos % blockdev.BlockSize
		start, ok := blockForIndex(extents, blockIdx)
		if !ok {
			return errutil.New(errutil.EIO, "sfs: missing block for offset %d", pos)
		}
		chunk := blockdev.NewBuf(1)
		if inBlockOff != 0 || int64(len(remaining)) < blockdev.BlockSize {
			sub, err := n.fs.dev.Submit(&blockdev.Request{Op: blockdev.OpRead, StartID: start, Buf: chunk})
			if err != nil {
				return err
			}
			if err := sub.Wait(); err != nil {
				return err
			}
		}
		take := int64(blockdev.BlockSize) - inBlockOff
		if take > int64(len(remaining)) {
			take = int64(len(remaining))
		}
		copy(chunk[inBlockOff:inBlockOff+take], remaining[:take])
		sub, err := n.fs.dev.Submit(&blockdev.Request{Op: blockdev.OpWrite, StartID: start, Buf: chunk})
		if err != nil {
			return err
		}
		if err := sub.Wait(); err != nil {
			return err
		}
		remaining = remaining[take:]
		pos += take
	}
	if uint64(needed) > n.record.Size {
		n.record.Size = uint64(needed)
	}
	n.record.Mtime = timeToUnixNano(time.Now())
	return n.fs.writeInodeRecord(n.record)
}

// growToLocked ensures the inode has enough allocated blocks to cover
// size bytes, appending new extents as needed.
func (n *Inode) growToLocked(size int64) error {
	extents, err := n.fs.allExtents(n.record)
	if err != nil {
		return err
	}
	have := int64(0)
	for _, e := range extents {
		have += int64(e.Count) * blockdev.BlockSize
	}
	for have < size {
		want := uint32((size - have + blockdev.BlockSize - 1) / blockdev.BlockSize)
		if want == 0 {
			want = 1
		}
		start, err := n.fs.allocBlocksLocked(want)
		if err != nil {
			return err
		}
		if err := n.fs.appendExtent(n.record, extent{Start: start, Count: want}); err != nil {
			return err
		}
		have += int64(want) * blockdev.BlockSize
	}
	return nil
}

func (n *Inode) Truncate(size int64) error {
	n.fs.mu.Lock()
	defer n.fs.mu.Unlock()
	return n.truncateLocked(size)
}

func (n *Inode) truncateLocked(size int64) error {
	if uint64(size) <= n.record.Size {
		n.record.Size = uint64(size)
		n.record.Mtime = timeToUnixNano(time.Now())
		return n.fs.writeInodeRecord(n.record)
	}
	return n.growToLocked(size)
}

func (n *Inode) Sync() error {
	n.fs.mu.Lock()
	defer n.fs.mu.Unlock()
	return n.fs.writeInodeRecord(n.record)
}

func (n *Inode) Poll(mask events.Mask, _ *events.Poller) events.Mask {
	return alwaysReady(mask)
}

func blockForIndex(extents []extent, blockIdx int64) (blockdev.BlockID, bool) {
	cursor := int64(0)
	for _, e := range extents {
		span := int64(e.Count)
		if blockIdx < cursor+span {
			return e.Start + blockdev.BlockID(blockIdx-cursor), true
		}
		cursor += span
	}
	return 0, false
}
