package vm

import (
	"github.com/golibos/libos/internal/rangeset"
	"github.com/golibos/libos/internal/vfs"
)

// MapFlags mirrors the mmap(2) flag bits spec.md §4.I names: "anonymous or
// file-backed, fixed or hint".
type MapFlags uint32

const (
	MapShared MapFlags = 1 << iota
	MapPrivate
	MapFixed
	MapAnonymous
	MapGrowsDown // stack-style areas that extend toward lower addresses
)

func (f MapFlags) has(bit MapFlags) bool { return f&bit != 0 }

// RemapFlags mirrors mremap(2)'s "may-move / fixed / don't-unmap" modes.
type RemapFlags uint32

const (
	RemapMayMove RemapFlags = 1 << iota
	RemapFixed
	RemapDontUnmap
)

func (f RemapFlags) has(bit RemapFlags) bool { return f&bit != 0 }

// SyncFlags mirrors msync(2)'s flags; spec.md §4.I only implements the
// synchronous flush, accepting MS_ASYNC with a warning and rejecting
// MS_INVALIDATE outright, per original_source's do_msync.
type SyncFlags uint32

const (
	SyncSync SyncFlags = 1 << iota
	SyncAsync
	SyncInvalidate
)

func (f SyncFlags) has(bit SyncFlags) bool { return f&bit != 0 }

// backing describes a file-backed mapping's source, nil for anonymous
// areas.
type backing struct {
	inode  vfs.Inode
	offset int64
}

// Area is one mapped region of a process's address space, per
// sgx-untrusted-alloc's vm_area.rs VMArea, generalized from its bare
// range-wrapper into something that also carries permissions and
// file-backing, since this port has no separate VMManager layer holding
// that state alongside the range.
type Area struct {
	Range   rangeset.Range
	Perms   Perms
	Flags   MapFlags
	backing *backing
}

// overlaps reports whether a and other's ranges share any byte.
func (a *Area) overlaps(other rangeset.Range) bool {
	return a.Range.Overlaps(other)
}

// clone returns a value copy of a, safe to mutate independently (used when
// splitting an area around a fixed mapping that overlaps part of it).
func (a *Area) clone() *Area {
	cp := *a
	if a.backing != nil {
		b := *a.backing
		cp.backing = &b
	}
	return &cp
}
