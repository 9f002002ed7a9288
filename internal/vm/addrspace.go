package vm

import (
	"sort"
	"sync"

	"github.com/golibos/libos/internal/errutil"
	"github.com/golibos/libos/internal/hostbridge"
	"github.com/golibos/libos/internal/logger"
	"github.com/golibos/libos/internal/rangeset"
)

var log = logger.New("vm")

// PageSize is the unit of alignment for every address-space operation,
// matching spec.md §6's block size and vm/mod.rs's PAGE_SIZE.
const PageSize = 4096

func alignDown(addr, align uint64) uint64 {
	return addr &^ (align - 1)
}

func alignUp(addr, align uint64) uint64 {
	return alignDown(addr+align-1, align)
}

// Config carries the per-process address space's startup parameters, per
// spec.md §6's `user_space_init_size`/`user_space_max_size` configuration
// fields.
type Config struct {
	Bridge   hostbridge.Bridge
	InitSize uint64
	MaxSize  uint64
}

// AddrSpace is a process's user-space virtual memory manager, per spec.md
// §4.I: "A user-space range is carved from a large contiguous region at
// startup... A process has heap and stack sub-ranges; anonymous and
// file-backed mappings are tracked as VM areas." Grounded on
// user_space_vm.rs's UserSpaceVMManager and vm_space.rs's VMSpace,
// collapsed into one type since this port has no SGX platform layer
// allocating the backing region separately from the space that manages it.
//
// One big lock per AddrSpace, matching spec.md §5's "the VM manager uses a
// single big lock per process VM for simplicity."
type AddrSpace struct {
	mu sync.Mutex

	bridge hostbridge.Bridge
	token  uint64

	base    uint64
	size    uint64
	maxSize uint64

	maxPerms Perms

	areas []*Area // sorted by Range.Start, pairwise disjoint

	heapRange rangeset.Range
	brk       uint64

	stackRange rangeset.Range
}

// reservedLocked returns the ranges no mmap placement or mremap growth may
// encroach on: the stack reservation carved out at startup/reset, and the
// heap's current [start, brk) extent.
func (as *AddrSpace) reservedLocked() []rangeset.Range {
	return []rangeset.Range{as.stackRange, as.heapRange}
}

// baseAddr is an arbitrary non-zero starting address so printed addresses
// look like real user-space pointers rather than raw offsets.
const baseAddr = 0x1000_0000

// New reserves a fresh address space backed by cfg.Bridge's untrusted
// memory, per user_space_vm.rs's UserSpaceVMManager::new. The backing
// allocation is cfg.MaxSize bytes, but the usable range is the first
// cfg.InitSize bytes and does not grow: once it is full, brk and mmap fail
// with ENOMEM. (This port has no separate gap-range gesture since
// AllocUntrusted already hands back isolated memory.)
func New(cfg Config) (*AddrSpace, error) {
	if cfg.InitSize == 0 || cfg.InitSize > cfg.MaxSize {
		return nil, errutil.New(errutil.EINVAL, "vm: invalid init/max size %d/%d", cfg.InitSize, cfg.MaxSize)
	}
	token, err := cfg.Bridge.AllocUntrusted(int(cfg.MaxSize))
	if err != nil {
		return nil, errutil.Wrap(errutil.ENOMEM, err, "vm: reserving user address space")
	}

	as := &AddrSpace{
		bridge:   cfg.Bridge,
		token:    token,
		base:     baseAddr,
		size:     cfg.InitSize,
		maxSize:  cfg.MaxSize,
		maxPerms: PermAll,
	}
	as.resetLayoutLocked()
	log.Info("vm: user space allocated", "base", as.base, "size", as.size)
	return as, nil
}

// resetLayoutLocked discards every area and re-establishes empty heap/stack
// sub-ranges at the low and high ends of the reservation. Caller holds mu.
func (as *AddrSpace) resetLayoutLocked() {
	as.areas = nil
	heapStart := as.base
	as.heapRange = rangeset.Range{Start: int64(heapStart), End: int64(heapStart)}
	as.brk = heapStart
	stackSize := uint64(8 * 1024 * 1024)
	if stackSize > as.size/4 {
		stackSize = as.size / 4
	}
	stackEnd := as.base + as.size
	as.stackRange = rangeset.Range{Start: int64(stackEnd - stackSize), End: int64(stackEnd)}
}

// Reset implements internal/process's VMSpace interface: execve(2) tears
// down every mapping and starts the new program with a fresh layout, per
// spec.md §4.H's "exec resets the VM to a fresh layout." The backing
// untrusted-memory token is kept and reused rather than freed and
// reallocated.
func (as *AddrSpace) Reset() error {
	as.mu.Lock()
	defer as.mu.Unlock()
	as.resetLayoutLocked()
	return nil
}

// Close releases the address space's backing untrusted memory, per
// user_space_vm.rs's free_user_space, called once the owning process has
// fully exited.
func (as *AddrSpace) Close() error {
	as.mu.Lock()
	token := as.token
	as.mu.Unlock()
	return as.bridge.FreeUntrusted(token)
}

// TotalSize returns the reservation's current size, per
// UserSpaceVMManager::get_total_size.
func (as *AddrSpace) TotalSize() uint64 {
	as.mu.Lock()
	defer as.mu.Unlock()
	return as.size
}

// Areas returns a snapshot of the currently mapped areas, sorted by start
// address, for introspection (e.g. /proc/pid/maps).
func (as *AddrSpace) Areas() []Area {
	as.mu.Lock()
	defer as.mu.Unlock()
	out := make([]Area, len(as.areas))
	for i, a := range as.areas {
		out[i] = *a
	}
	return out
}

func (as *AddrSpace) indexAtOrAfterLocked(start int64) int {
	return sort.Search(len(as.areas), func(i int) bool {
		return as.areas[i].Range.Start >= start
	})
}

// overlappingLocked returns every area overlapping r, in ascending order.
func (as *AddrSpace) overlappingLocked(r rangeset.Range) []*Area {
	var out []*Area
	for _, a := range as.areas {
		if a.overlaps(r) {
			out = append(out, a)
		}
	}
	return out
}

// insertLocked adds area to the sorted area list. Caller must have already
// ensured area.Range doesn't overlap anything kept in the list.
func (as *AddrSpace) insertLocked(area *Area) {
	i := as.indexAtOrAfterLocked(area.Range.Start)
	as.areas = append(as.areas, nil)
	copy(as.areas[i+1:], as.areas[i:])
	as.areas[i] = area
}

func (as *AddrSpace) removeLocked(area *Area) {
	for i, a := range as.areas {
		if a == area {
			as.areas = append(as.areas[:i], as.areas[i+1:]...)
			return
		}
	}
}

// unmapRangeLocked removes (possibly truncating) every area overlapping r,
// per spec.md §4.I's "fixed mappings that overlap existing areas unmap the
// overlap first" and munmap's own documented partial-unmap behavior.
func (as *AddrSpace) unmapRangeLocked(r rangeset.Range) {
	for _, a := range as.overlappingLocked(r) {
		remainder := splitAround(a, r)
		as.removeLocked(a)
		for _, rem := range remainder {
			as.insertLocked(rem)
		}
	}
}

// splitAround returns the sub-areas of a that remain after removing r from
// it: zero, one, or two pieces depending on whether r covers all, one end,
// or the middle of a's range.
func splitAround(a *Area, r rangeset.Range) []*Area {
	var out []*Area
	if a.Range.Start < r.Start {
		left := a.clone()
		left.Range = rangeset.Range{Start: a.Range.Start, End: r.Start}
		out = append(out, left)
	}
	if r.End < a.Range.End {
		right := a.clone()
		right.Range = rangeset.Range{Start: r.End, End: a.Range.End}
		if right.backing != nil {
			right.backing.offset += r.End - a.Range.Start
		}
		out = append(out, right)
	}
	return out
}

// findFreeLocked searches for a size-byte gap aligned to PageSize, starting
// its search at hint if non-zero, else from the base of the reservation.
// This is the Go-native analogue of vm_range.rs's free-range search inside
// alloc_subrange, simplified to a linear scan over the sorted area list
// since a process's area count stays small in practice.
func (as *AddrSpace) findFreeLocked(hint uint64, size uint64) (uint64, error) {
	limit := as.base + as.size
	candidates := []uint64{}
	if hint != 0 {
		candidates = append(candidates, alignDown(hint, PageSize))
	}
	candidates = append(candidates, as.base)

	blockers := make([]rangeset.Range, 0, len(as.areas)+1)
	for _, a := range as.areas {
		blockers = append(blockers, a.Range)
	}
	blockers = append(blockers, as.reservedLocked()...)
	sort.Slice(blockers, func(i, j int) bool { return blockers[i].Start < blockers[j].Start })

	for _, start := range candidates {
		addr := start
		for _, b := range blockers {
			blockerStart := uint64(b.Start)
			blockerEnd := uint64(b.End)
			if addr+size <= blockerStart {
				break
			}
			if addr < blockerEnd {
				addr = alignUp(blockerEnd, PageSize)
			}
		}
		if addr+size <= limit {
			return addr, nil
		}
	}
	return 0, errutil.New(errutil.ENOMEM, "vm: no free range of size %d", size)
}
