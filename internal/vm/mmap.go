package vm

import (
	"github.com/golibos/libos/internal/errutil"
	"github.com/golibos/libos/internal/rangeset"
	"github.com/golibos/libos/internal/vfs"
)

// Mmap implements mmap(2)'s address-space side, per spec.md §4.I: anonymous
// or file-backed, fixed or hint placement. A MAP_FIXED request that
// overlaps existing areas unmaps the overlap first rather than failing,
// matching do_mmap's documented behavior. inode is nil for MAP_ANONYMOUS.
func (as *AddrSpace) Mmap(addr uint64, size uint64, perms Perms, flags MapFlags, inode vfs.Inode, offset int64) (uint64, error) {
	if size == 0 {
		return 0, errutil.New(errutil.EINVAL, "vm: mmap size 0")
	}
	if !flags.has(MapAnonymous) && inode == nil {
		return 0, errutil.New(errutil.EINVAL, "vm: file-backed mapping requires an inode")
	}
	if flags.has(MapAnonymous) && inode != nil {
		return 0, errutil.New(errutil.EINVAL, "vm: anonymous mapping must not carry an inode")
	}

	size = alignUp(size, PageSize)

	as.mu.Lock()
	defer as.mu.Unlock()

	var placed uint64
	if flags.has(MapFixed) {
		if addr == 0 || addr%PageSize != 0 {
			return 0, errutil.New(errutil.EINVAL, "vm: MAP_FIXED requires a page-aligned address")
		}
		as.unmapRangeLocked(rangeset.Range{Start: int64(addr), End: int64(addr + size)})
		placed = addr
	} else {
		found, err := as.findFreeLocked(addr, size)
		if err != nil {
			return 0, err
		}
		placed = found
	}

	area := &Area{
		Range: rangeset.Range{Start: int64(placed), End: int64(placed + size)},
		Perms: perms,
		Flags: flags,
	}
	if inode != nil {
		area.backing = &backing{inode: inode, offset: offset}
	}
	as.insertLocked(area)
	return placed, nil
}

// Munmap removes every area (or sub-range of an area) overlapping
// [addr, addr+size), per munmap(2)'s partial-unmap semantics.
func (as *AddrSpace) Munmap(addr uint64, size uint64) error {
	if size == 0 {
		return errutil.New(errutil.EINVAL, "vm: munmap size 0")
	}
	size = alignUp(size, PageSize)

	as.mu.Lock()
	defer as.mu.Unlock()
	as.unmapRangeLocked(rangeset.Range{Start: int64(addr), End: int64(addr + size)})
	return nil
}

// Msync flushes a file-backed mapping's dirty content to its backing inode,
// per spec.md §4.I's "sync only; async and invalidate are accepted with
// warnings or rejected", grounded on do_msync's MS_INVALIDATE rejection and
// MS_ASYNC warning.
func (as *AddrSpace) Msync(addr uint64, size uint64, flags SyncFlags) error {
	if flags.has(SyncInvalidate) {
		return errutil.New(errutil.EINVAL, "vm: msync MS_INVALIDATE is not supported")
	}
	if flags.has(SyncAsync) {
		log.Warn("vm: msync MS_ASYNC is not supported, treating as MS_SYNC")
	}

	size = alignUp(size, PageSize)
	r := rangeset.Range{Start: int64(addr), End: int64(addr + size)}

	as.mu.Lock()
	areas := as.overlappingLocked(r)
	as.mu.Unlock()

	for _, a := range areas {
		if a.backing == nil || a.backing.inode == nil || !a.Flags.has(MapShared) {
			continue
		}
		// The full-page contents of a shared file-backed area are assumed
		// already written through by the caller before invoking msync, since
		// this port keeps no separate dirty-page shadow for mmap'd regions
		// (unlike the page cache's own tracked dirty bit); Sync simply
		// forces the inode's buffered state out to its backing device.
		if err := a.backing.inode.Sync(); err != nil {
			return err
		}
	}
	return nil
}
