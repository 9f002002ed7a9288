package devfs

import (
	"github.com/golibos/libos/internal/events"
	"github.com/golibos/libos/internal/vfs"
)

// NullFile implements /dev/null: reads report EOF, writes discard and
// report full length, always ready. Grounded on original_source's
// src/fs/dev_fs/dev_null.rs.
type NullFile struct {
	vfs.UnimplementedSyncFile
}

func (NullFile) Read(_ []byte) (int, error) { return 0, nil }

func (NullFile) ReadAt(_ int64, _ []byte) (int, error) { return 0, nil }

func (NullFile) Write(buf []byte) (int, error) { return len(buf), nil }

func (NullFile) WriteAt(_ int64, buf []byte) (int, error) { return len(buf), nil }

func (NullFile) Poll(mask events.Mask, _ *events.Poller) events.Mask {
	return mask & (events.In | events.Out | events.AlwaysPoll)
}
