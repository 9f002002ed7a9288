package sfs

import (
	"sync"
	"time"

	"github.com/golibos/libos/internal/blockdev"
	"github.com/golibos/libos/internal/errutil"
	"github.com/golibos/libos/internal/events"
	"github.com/golibos/libos/internal/vfs"
)

// dirEntryDeleted marks a tombstoned directory entry; insertion order is
// preserved by never compacting the entry list, per spec.md §4.F
// "directory listings in insertion order."
const dirEntryDeleted = 0xff

// FS is one mounted SFS volume.
type FS struct {
	dev  blockdev.Device
	sb   *superblock
	name string

	mu        sync.Mutex
	bitmap    []byte // 1 bit per block, in-memory mirror of the on-disk bitmap
	nextInode uint64
	inodes    map[uint64]*Inode
}

// Format initializes a fresh SFS volume on dev: writes the superblock,
// zeroed bitmap, and an empty root directory inode.
func Format(dev blockdev.Device, name string) (*FS, error) {
	total := dev.TotalBlocks()
	bitmapBlocks := (total + 8*blockdev.BlockSize - 1) / (8 * blockdev.BlockSize)
	inodeTableStart := blockdev.BlockID(1) + blockdev.BlockID(bitmapBlocks)

	sb := &superblock{
		Magic:           Magic,
		Version:         formatVersion,
		TotalBlocks:     total,
		InodeCount:      0,
		BitmapStart:     1,
		InodeTableStart: inodeTableStart,
		RootInodeID:     1,
	}

	f := &FS{dev: dev, sb: sb, name: name, inodes: make(map[uint64]*Inode)}
	f.bitmap = make([]byte, bitmapBlocks*blockdev.BlockSize)
	f.markUsed(0) // superblock
	for i := blockdev.BlockID(0); i < blockdev.BlockID(bitmapBlocks); i++ {
		f.markUsed(uint64(sb.BitmapStart) + uint64(i))
	}

	if err := f.writeSuperblock(); err != nil {
		return nil, err
	}
	if err := f.writeBitmap(); err != nil {
		return nil, err
	}

	f.nextInode = 2
	root := f.newInodeLocked(vfs.TypeDirectory, 0o755, 0, 0)
	root.record.ID = sb.RootInodeID
	f.nextInode = 2
	if err := f.writeInodeRecord(root.record); err != nil {
		return nil, err
	}
	f.inodes[root.record.ID] = root
	sb.InodeCount = 1
	if err := f.writeSuperblock(); err != nil {
		return nil, err
	}
	return f, nil
}

// Open mounts an already-formatted SFS volume from dev.
func Open(dev blockdev.Device, name string) (*FS, error) {
	buf := blockdev.NewBuf(1)
	sub, err := dev.Submit(&blockdev.Request{Op: blockdev.OpRead, StartID: 0, Buf: buf})
	if err != nil {
		return nil, err
	}
	if err := sub.Wait(); err != nil {
		return nil, err
	}
	sb, err := decodeSuperblock(buf)
	if err != nil {
		return nil, err
	}
	f := &FS{dev: dev, sb: sb, name: name, inodes: make(map[uint64]*Inode)}
	bitmapBlocks := uint64(sb.InodeTableStart - sb.BitmapStart)
	f.bitmap = make([]byte, bitmapBlocks*blockdev.BlockSize)
	bitBuf := blockdev.NewBuf(int(bitmapBlocks))
	sub2, err := dev.Submit(&blockdev.Request{Op: blockdev.OpRead, StartID: sb.BitmapStart, Buf: bitBuf})
	if err != nil {
		return nil, err
	}
	if err := sub2.Wait(); err != nil {
		return nil, err
	}
	copy(f.bitmap, bitBuf)
	f.nextInode = sb.InodeCount + 1
	return f, nil
}

func (f *FS) Name() string { return f.name }

func (f *FS) Root() vfs.Inode {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loadInodeLocked(f.sb.RootInodeID)
}

func (f *FS) writeSuperblock() error {
	sub, err := f.dev.Submit(&blockdev.Request{Op: blockdev.OpWrite, StartID: 0, Buf: f.sb.encode()})
	if err != nil {
		return err
	}
	return sub.Wait()
}

func (f *FS) writeBitmap() error {
	buf := blockdev.Buf(f.bitmap)
	sub, err := f.dev.Submit(&blockdev.Request{Op: blockdev.OpWrite, StartID: f.sb.BitmapStart, Buf: buf})
	if err != nil {
		return err
	}
	return sub.Wait()
}

func (f *FS) markUsed(block uint64)   { f.bitmap[block/8] |= 1 << (block % 8) }
func (f *FS) markFree(block uint64)   { f.bitmap[block/8] &^= 1 << (block % 8) }
func (f *FS) isUsed(block uint64) bool { return f.bitmap[block/8]&(1<<(block%8)) != 0 }

// allocBlocksLocked finds n free contiguous blocks, marks them used, and
// persists the bitmap.
func (f *FS) allocBlocksLocked(n uint32) (blockdev.BlockID, error) {
	total := f.sb.TotalBlocks
	run := uint64(0)
	start := uint64(0)
	for b := uint64(f.sb.InodeTableStart) + f.inodeTableBlocks(); b < total; b++ {
		if !f.isUsed(b) {
			if run == 0 {
				start = b
			}
			run++
			if run == uint64(n) {
				for i := uint64(0); i < run; i++ {
					f.markUsed(start + i)
				}
				if err := f.writeBitmap(); err != nil {
					return 0, err
				}
				return blockdev.BlockID(start), nil
			}
		} else {
			run = 0
		}
	}
	return 0, errutil.New(errutil.ENOSPC, "sfs: no space left on device")
}

func (f *FS) freeBlocksLocked(start blockdev.BlockID, n uint32) error {
	for i := uint32(0); i < n; i++ {
		f.markFree(uint64(start) + uint64(i))
	}
	return f.writeBitmap()
}

func (f *FS) inodeTableBlocks() uint64 {
	// Rough upper bound on inode table extent so block allocation never
	// collides with it: one block per recordsPerBlock inodes, sized
	// generously relative to total device capacity.
	capacity := f.sb.TotalBlocks / 4
	blocks := capacity / uint64(recordsPerBlock)
	if blocks == 0 {
		blocks = 1
	}
	return blocks
}

func (f *FS) writeInodeRecord(r *inodeRecord) error {
	block, offset := recordLocation(r.ID, f.sb.InodeTableStart)
	buf := blockdev.NewBuf(1)
	sub, err := f.dev.Submit(&blockdev.Request{Op: blockdev.OpRead, StartID: block, Buf: buf})
	if err != nil {
		return err
	}
	if err := sub.Wait(); err != nil {
		return err
	}
	r.encodeInto(buf[offset : offset+inodeRecordSize])
	sub2, err := f.dev.Submit(&blockdev.Request{Op: blockdev.OpWrite, StartID: block, Buf: buf})
	if err != nil {
		return err
	}
	return sub2.Wait()
}

func (f *FS) readInodeRecord(id uint64) (*inodeRecord, error) {
	block, offset := recordLocation(id, f.sb.InodeTableStart)
	buf := blockdev.NewBuf(1)
	sub, err := f.dev.Submit(&blockdev.Request{Op: blockdev.OpRead, StartID: block, Buf: buf})
	if err != nil {
		return nil, err
	}
	if err := sub.Wait(); err != nil {
		return nil, err
	}
	return decodeInodeRecord(buf[offset : offset+inodeRecordSize]), nil
}

func (f *FS) loadInodeLocked(id uint64) *Inode {
	if n, ok := f.inodes[id]; ok {
		return n
	}
	rec, err := f.readInodeRecord(id)
	if err != nil {
		return nil
	}
	n := &Inode{fs: f, record: rec}
	f.inodes[id] = n
	return n
}

func (f *FS) newInodeLocked(t vfs.FileType, mode uint32, uid, gid uint32) *Inode {
	id := f.nextInode
	f.nextInode++
	now := timeToUnixNano(nowFunc())
	rec := &inodeRecord{
		ID: id, Type: fileTypeToSFS(t), Mode: mode, UID: uid, GID: gid,
		Links: 1, Mtime: now, Ctime: now, Atime: now,
	}
	n := &Inode{fs: f, record: rec}
	f.inodes[id] = n
	return n
}

// nowFunc is a package-level indirection so tests can stub time if needed;
// defaults to the real wall clock.
var nowFunc = time.Now

// alwaysReady is the readiness check Inode.Poll uses for SFS-backed
// files: regular files and directories are always ready, matching
// original_source's File/Dir kinds which never suspend on poll.
func alwaysReady(mask events.Mask) events.Mask { return mask }
