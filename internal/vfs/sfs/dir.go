package sfs

import "github.com/golibos/libos/internal/vfs"

// dirEntrySize is the fixed slot size for one directory entry: 1 byte
// type/tombstone marker, 1 byte name length, 8 byte inode id, and up to
// 54 bytes of name. Entries are appended in order and never compacted, so
// Readdir naturally yields insertion order per spec.md §4.F.
const dirEntrySize = 1 + 1 + 8 + 54
const maxNameLen = 54

type rawDirEntry struct {
	Type    uint8
	NameLen uint8
	InodeID uint64
	Name    string
}

func encodeDirEntry(e rawDirEntry) []byte {
	buf := make([]byte, dirEntrySize)
	buf[0] = e.Type
	buf[1] = byte(len(e.Name))
	for i := 0; i < 8; i++ {
		buf[2+i] = byte(e.InodeID >> (8 * i))
	}
	copy(buf[10:], e.Name)
	return buf
}

func decodeDirEntry(buf []byte) rawDirEntry {
	var id uint64
	for i := 0; i < 8; i++ {
		id |= uint64(buf[2+i]) << (8 * i)
	}
	nameLen := int(buf[1])
	return rawDirEntry{
		Type:    buf[0],
		NameLen: buf[1],
		InodeID: id,
		Name:    string(buf[10 : 10+nameLen]),
	}
}

func sfsTypeToVFS(t uint8) vfs.FileType { return vfs.FileType(t) }
