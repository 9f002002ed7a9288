package vm

import (
	"github.com/golibos/libos/internal/errutil"
	"github.com/golibos/libos/internal/rangeset"
)

// Brk implements brk(2): addr == 0 queries the current break, otherwise the
// heap area is resized to end at addr (rounded up to a page), per spec.md
// §4.I's "A process has heap and stack sub-ranges", grounded on
// vm_domain.rs's resize_area used by the heap domain.
func (as *AddrSpace) Brk(addr uint64) (uint64, error) {
	as.mu.Lock()
	defer as.mu.Unlock()

	if addr == 0 {
		return as.brk, nil
	}

	newBrk := alignUp(addr, PageSize)
	heapStart := uint64(as.heapRange.Start)
	if newBrk < heapStart {
		return as.brk, errutil.New(errutil.EINVAL, "vm: brk below heap start")
	}

	newRange := rangeset.Range{Start: as.heapRange.Start, End: int64(newBrk)}
	if newBrk > uint64(as.heapRange.End) {
		grow := rangeset.Range{Start: as.heapRange.End, End: int64(newBrk)}
		if !as.freeLocked(grow) {
			return as.brk, errutil.New(errutil.ENOMEM, "vm: brk growth collides with an existing mapping")
		}
	}

	as.heapRange = newRange
	as.brk = addr
	return as.brk, nil
}
