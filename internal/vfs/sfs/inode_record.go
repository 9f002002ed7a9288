package sfs

import (
	"encoding/binary"
	"time"

	"github.com/golibos/libos/internal/blockdev"
	"github.com/golibos/libos/internal/vfs"
)

// maxExtents bounds the direct extent list each inode record carries
// in-line. A file needing more extents than this chains through
// overflowBlock overflow blocks (see extents.go).
const maxExtents = 12

// extent is one contiguous run of data blocks.
type extent struct {
	Start blockdev.BlockID
	Count uint32
}

const extentSize = 8 + 4

// inodeRecord is the fixed-size on-disk representation of one inode, per
// spec.md §6: "inode records are fixed size."
type inodeRecord struct {
	ID       uint64
	Type     uint8
	Mode     uint32
	UID      uint32
	GID      uint32
	Size     uint64
	Links    uint32
	Mtime    int64
	Ctime    int64
	Atime    int64
	NumExt   uint32
	Extents  [maxExtents]extent
	Overflow blockdev.BlockID // first overflow extent block, 0 if none
	// SymlinkTarget holds a short inline symlink target; longer targets
	// are not supported, matching the fixed-record-size constraint.
	SymlinkTarget [128]byte
	SymlinkLen    uint16
}

const inodeRecordSize = 8 + 1 + 4 + 4 + 4 + 8 + 4 + 8 + 8 + 8 + 4 + maxExtents*extentSize + 8 + 128 + 2

// recordsPerBlock is how many fixed-size inode records fit in one block.
const recordsPerBlock = blockdev.BlockSize / inodeRecordSize

func recordLocation(id uint64, tableStart blockdev.BlockID) (blockdev.BlockID, int) {
	block := tableStart + blockdev.BlockID(id/uint64(recordsPerBlock))
	offset := int(id%uint64(recordsPerBlock)) * inodeRecordSize
	return block, offset
}

func (r *inodeRecord) encodeInto(buf []byte) {
	b := buf
	binary.LittleEndian.PutUint64(b[0:8], r.ID)
	b[8] = r.Type
	binary.LittleEndian.PutUint32(b[9:13], r.Mode)
	binary.LittleEndian.PutUint32(b[13:17], r.UID)
	binary.LittleEndian.PutUint32(b[17:21], r.GID)
	binary.LittleEndian.PutUint64(b[21:29], r.Size)
	binary.LittleEndian.PutUint32(b[29:33], r.Links)
	binary.LittleEndian.PutUint64(b[33:41], uint64(r.Mtime))
	binary.LittleEndian.PutUint64(b[41:49], uint64(r.Ctime))
	binary.LittleEndian.PutUint64(b[49:57], uint64(r.Atime))
	binary.LittleEndian.PutUint32(b[57:61], r.NumExt)
	off := 61
	for i := 0; i < maxExtents; i++ {
		binary.LittleEndian.PutUint64(b[off:off+8], uint64(r.Extents[i].Start))
		binary.LittleEndian.PutUint32(b[off+8:off+12], r.Extents[i].Count)
		off += extentSize
	}
	binary.LittleEndian.PutUint64(b[off:off+8], uint64(r.Overflow))
	off += 8
	copy(b[off:off+128], r.SymlinkTarget[:])
	off += 128
	binary.LittleEndian.PutUint16(b[off:off+2], r.SymlinkLen)
}

func decodeInodeRecord(buf []byte) *inodeRecord {
	r := &inodeRecord{}
	r.ID = binary.LittleEndian.Uint64(buf[0:8])
	r.Type = buf[8]
	r.Mode = binary.LittleEndian.Uint32(buf[9:13])
	r.UID = binary.LittleEndian.Uint32(buf[13:17])
	r.GID = binary.LittleEndian.Uint32(buf[17:21])
	r.Size = binary.LittleEndian.Uint64(buf[21:29])
	r.Links = binary.LittleEndian.Uint32(buf[29:33])
	r.Mtime = int64(binary.LittleEndian.Uint64(buf[33:41]))
	r.Ctime = int64(binary.LittleEndian.Uint64(buf[41:49]))
	r.Atime = int64(binary.LittleEndian.Uint64(buf[49:57]))
	r.NumExt = binary.LittleEndian.Uint32(buf[57:61])
	off := 61
	for i := 0; i < maxExtents; i++ {
		r.Extents[i].Start = blockdev.BlockID(binary.LittleEndian.Uint64(buf[off : off+8]))
		r.Extents[i].Count = binary.LittleEndian.Uint32(buf[off+8 : off+12])
		off += extentSize
	}
	r.Overflow = blockdev.BlockID(binary.LittleEndian.Uint64(buf[off : off+8]))
	off += 8
	copy(r.SymlinkTarget[:], buf[off:off+128])
	off += 128
	r.SymlinkLen = binary.LittleEndian.Uint16(buf[off : off+2])
	return r
}

func fileTypeToSFS(t vfs.FileType) uint8 { return uint8(t) }
func sfsToFileType(t uint8) vfs.FileType { return vfs.FileType(t) }

func timeToUnixNano(t time.Time) int64 { return t.UnixNano() }
func unixNanoToTime(n int64) time.Time { return time.Unix(0, n) }
