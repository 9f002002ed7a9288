package devfs

import (
	"github.com/golibos/libos/internal/events"
	"github.com/golibos/libos/internal/vfs"
)

// ZeroFile implements /dev/zero: reads fill the buffer with zero bytes,
// writes discard and report full length. Grounded on original_source's
// src/fs/dev_fs/dev_zero.rs.
type ZeroFile struct {
	vfs.UnimplementedSyncFile
}

func (ZeroFile) Read(buf []byte) (int, error) {
	for i := range buf {
		buf[i] = 0
	}
	return len(buf), nil
}

func (ZeroFile) ReadAt(_ int64, buf []byte) (int, error) {
	for i := range buf {
		buf[i] = 0
	}
	return len(buf), nil
}

func (ZeroFile) Write(buf []byte) (int, error) { return len(buf), nil }

func (ZeroFile) WriteAt(_ int64, buf []byte) (int, error) { return len(buf), nil }

func (ZeroFile) Poll(mask events.Mask, _ *events.Poller) events.Mask {
	return mask & (events.In | events.Out | events.AlwaysPoll)
}
