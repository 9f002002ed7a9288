package vm

import (
	"github.com/golibos/libos/internal/errutil"
	"github.com/golibos/libos/internal/rangeset"
)

// Mprotect changes the permissions of every area overlapping
// [addr, addr+size), splitting areas at the range's edges as needed, per
// spec.md §4.I: "permission changes never relax beyond the process's
// allowed maximum" and "mprotect(r, p); mprotect(r, p) is idempotent."
func (as *AddrSpace) Mprotect(addr uint64, size uint64, perms Perms) error {
	size = alignUp(size, PageSize)
	r := rangeset.Range{Start: int64(addr), End: int64(addr + size)}

	as.mu.Lock()
	defer as.mu.Unlock()

	if !as.maxPerms.Subsumes(perms) {
		return errutil.New(errutil.EACCES, "vm: mprotect requests %s beyond the process maximum %s", perms, as.maxPerms)
	}

	covered := as.overlappingLocked(r)
	if !fullyCovers(covered, r) {
		return errutil.New(errutil.ENOMEM, "vm: mprotect range is not fully mapped")
	}

	for _, a := range covered {
		pieces := splitAround(a, r)
		as.removeLocked(a)
		for _, p := range pieces {
			as.insertLocked(p)
		}
		mid := a.clone()
		intersect := a.Range.Intersect(r)
		if mid.backing != nil {
			mid.backing.offset += intersect.Start - a.Range.Start
		}
		mid.Range = intersect
		mid.Perms = perms
		as.insertLocked(mid)
	}
	return nil
}

// fullyCovers reports whether the union of areas' ranges covers every byte
// of r, with no gaps.
func fullyCovers(areas []*Area, r rangeset.Range) bool {
	if len(areas) == 0 {
		return r.IsEmpty()
	}
	cursor := r.Start
	for _, a := range areas {
		if int64(a.Range.Start) > cursor {
			return false
		}
		if int64(a.Range.End) > cursor {
			cursor = a.Range.End
		}
	}
	return cursor >= r.End
}
