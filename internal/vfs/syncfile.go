package vfs

import (
	"github.com/golibos/libos/internal/errutil"
	"github.com/golibos/libos/internal/events"
)

// SyncFile is the "file kind" for pseudo files whose I/O never suspends —
// devfs/procfs entries — as opposed to the page-cache-backed async files
// that back regular files. Grounded on original_source's
// async-io/src/file/kinds/sync.rs SyncFile trait: each operation has a
// sensible not-supported default so concrete files only override what they
// actually implement.
type SyncFile interface {
	Read(buf []byte) (int, error)
	ReadAt(offset int64, buf []byte) (int, error)
	Write(buf []byte) (int, error)
	WriteAt(offset int64, buf []byte) (int, error)
	Poll(mask events.Mask, poller *events.Poller) events.Mask
}

// UnimplementedSyncFile gives every SyncFile method a not-supported
// default; concrete files embed it and override only what they support.
type UnimplementedSyncFile struct{}

func (UnimplementedSyncFile) Read(_ []byte) (int, error) {
	return 0, errutil.New(errutil.EBADF, "operation not supported")
}

func (UnimplementedSyncFile) ReadAt(_ int64, _ []byte) (int, error) {
	return 0, errutil.New(errutil.ESPIPE, "seek not supported")
}

func (UnimplementedSyncFile) Write(_ []byte) (int, error) {
	return 0, errutil.New(errutil.EBADF, "operation not supported")
}

func (UnimplementedSyncFile) WriteAt(_ int64, _ []byte) (int, error) {
	return 0, errutil.New(errutil.ESPIPE, "seek not supported")
}

func (UnimplementedSyncFile) Poll(mask events.Mask, _ *events.Poller) events.Mask {
	return mask & events.AlwaysPoll
}
