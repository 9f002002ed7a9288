// Package sfs implements the on-disk simple file system of spec.md §4.F:
// block-addressable, fixed-size inode records, extent-based data mapping,
// file types, hard links, rename, resize, and insertion-order directory
// listings. Grounded on original_source's async-sfs crate (storage.rs's
// load_struct/store_struct load-whole-record-from-block pattern) adapted
// to the blockdev.Device abstraction already used by internal/pagecache.
package sfs

import (
	"encoding/binary"

	"github.com/golibos/libos/internal/blockdev"
	"github.com/golibos/libos/internal/errutil"
)

// Magic identifies a valid superblock, per spec.md §6: "superblock at
// block 0 with magic, version, block count, inode count, free bitmap
// offset, root inode id, mac."
const Magic uint32 = 0x53465330 // "SFS0"

const formatVersion uint32 = 1

// superblockSize is the encoded size; the remainder of block 0 is unused.
const superblockSize = 4 + 4 + 8 + 8 + 8 + 8 + 8 + 16

// superblock is the first block of every SFS volume.
type superblock struct {
	Magic         uint32
	Version       uint32
	TotalBlocks   uint64
	InodeCount    uint64
	BitmapStart   blockdev.BlockID
	InodeTableStart blockdev.BlockID
	RootInodeID   uint64
	MAC           [16]byte // authentication tag, set when the encrypted variant is in use
}

func (sb *superblock) encode() blockdev.Buf {
	buf := blockdev.NewBuf(1)
	binary.LittleEndian.PutUint32(buf[0:4], sb.Magic)
	binary.LittleEndian.PutUint32(buf[4:8], sb.Version)
	binary.LittleEndian.PutUint64(buf[8:16], sb.TotalBlocks)
	binary.LittleEndian.PutUint64(buf[16:24], sb.InodeCount)
	binary.LittleEndian.PutUint64(buf[24:32], uint64(sb.BitmapStart))
	binary.LittleEndian.PutUint64(buf[32:40], uint64(sb.InodeTableStart))
	binary.LittleEndian.PutUint64(buf[40:48], sb.RootInodeID)
	copy(buf[48:64], sb.MAC[:])
	return buf
}

func decodeSuperblock(buf blockdev.Buf) (*superblock, error) {
	if len(buf) < superblockSize {
		return nil, errutil.New(errutil.EINVAL, "sfs: superblock buffer too small")
	}
	sb := &superblock{
		Magic:           binary.LittleEndian.Uint32(buf[0:4]),
		Version:         binary.LittleEndian.Uint32(buf[4:8]),
		TotalBlocks:     binary.LittleEndian.Uint64(buf[8:16]),
		InodeCount:      binary.LittleEndian.Uint64(buf[16:24]),
		BitmapStart:     blockdev.BlockID(binary.LittleEndian.Uint64(buf[24:32])),
		InodeTableStart: blockdev.BlockID(binary.LittleEndian.Uint64(buf[32:40])),
		RootInodeID:     binary.LittleEndian.Uint64(buf[40:48]),
	}
	copy(sb.MAC[:], buf[48:64])
	if sb.Magic != Magic {
		return nil, errutil.New(errutil.EINVAL, "sfs: corrupt superblock: bad magic %#x", sb.Magic)
	}
	if sb.Version != formatVersion {
		return nil, errutil.New(errutil.EINVAL, "sfs: unsupported format version %d", sb.Version)
	}
	return sb, nil
}
