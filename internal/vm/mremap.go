package vm

import (
	"github.com/golibos/libos/internal/errutil"
	"github.com/golibos/libos/internal/rangeset"
)

// Mremap implements mremap(2)'s may-move and don't-unmap modes, grounded on
// process_vm.rs's MRemapFlags (generalized onto this package's own Area
// tracking rather than the teacher's single contiguous region). A call with
// RemapFixed that cannot grow in place returns ENOSYS; no caller-chosen
// target address is supported.
func (as *AddrSpace) Mremap(oldAddr uint64, oldSize uint64, newSize uint64, flags RemapFlags) (uint64, error) {
	if oldSize == 0 || newSize == 0 {
		return 0, errutil.New(errutil.EINVAL, "vm: mremap with zero size")
	}
	oldSize = alignUp(oldSize, PageSize)
	newSize = alignUp(newSize, PageSize)
	oldRange := rangeset.Range{Start: int64(oldAddr), End: int64(oldAddr + oldSize)}

	as.mu.Lock()
	defer as.mu.Unlock()

	existing := as.overlappingLocked(oldRange)
	if !fullyCovers(existing, oldRange) || len(existing) != 1 {
		return 0, errutil.New(errutil.EFAULT, "vm: mremap source range is not one fully-mapped area")
	}
	orig := existing[0]

	if newSize <= oldSize {
		// Shrinking in place always succeeds: drop the tail.
		tail := rangeset.Range{Start: int64(oldAddr + newSize), End: oldRange.End}
		as.unmapRangeLocked(tail)
		return oldAddr, nil
	}

	// Growing: try to extend in place first, by checking the bytes right
	// after the old area are free.
	grown := rangeset.Range{Start: oldRange.Start, End: oldRange.Start + int64(newSize)}
	if as.freeLocked(rangeset.Range{Start: oldRange.End, End: grown.End}) {
		as.removeLocked(orig)
		orig.Range = grown
		as.insertLocked(orig)
		return oldAddr, nil
	}

	if !flags.has(RemapMayMove) {
		return 0, errutil.New(errutil.ENOMEM, "vm: mremap cannot grow in place and MREMAP_MAYMOVE is not set")
	}

	if flags.has(RemapFixed) {
		// Callers using MREMAP_FIXED are expected to pick their own target
		// and place it via a subsequent fixed Mmap; this port's mremap only
		// implements the kernel-chosen-address move.
		return 0, errutil.New(errutil.ENOSYS, "vm: mremap MREMAP_FIXED target selection is not implemented")
	}
	newAddr, err := as.findFreeLocked(0, newSize)
	if err != nil {
		return 0, err
	}

	moved := orig.clone()
	moved.Range = rangeset.Range{Start: int64(newAddr), End: int64(newAddr) + int64(newSize)}
	as.insertLocked(moved)

	if !flags.has(RemapDontUnmap) {
		as.removeLocked(orig)
	}
	return newAddr, nil
}

// freeLocked reports whether every byte of r is unmapped and outside any
// reserved sub-range (e.g. the stack reservation).
func (as *AddrSpace) freeLocked(r rangeset.Range) bool {
	if r.IsEmpty() {
		return true
	}
	if int64(as.base) > r.Start || r.End > int64(as.base+as.size) {
		return false
	}
	if len(as.overlappingLocked(r)) != 0 {
		return false
	}
	for _, res := range as.reservedLocked() {
		if r.Overlaps(res) {
			return false
		}
	}
	return true
}
