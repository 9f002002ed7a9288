// Package vm implements the per-process virtual memory manager of
// spec.md §4.I: a user-space address range carved from a large contiguous
// region at startup, VM area (VMA) tracking, the mmap family, brk, msync,
// and SysV shared memory. Grounded on original_source's vm/{mod,
// user_space_vm,vm_domain,vm_layout,vm_perms,vm_space}.rs and the
// sgx-untrusted-alloc crate's vm_area.rs/vm_util.rs, adapted from its
// enclave-reserved-memory model onto internal/hostbridge's AllocUntrusted
// as the backing-region allocator.
package vm

import "github.com/golibos/libos/internal/errutil"

// Perms is a VM area's read/write/execute permission bitmask, per
// vm_perms.rs's VMPerms.
type Perms uint32

const (
	PermRead Perms = 1 << iota
	PermWrite
	PermExec
)

// PermDefault matches vm_perms.rs's DEFAULT (read+write, no exec).
const PermDefault = PermRead | PermWrite

// PermAll is every bit this package models.
const PermAll = PermDefault | PermExec

// FromU32 validates bits as a Perms value, rejecting any bit outside
// PermAll, per VMPerms::from_u32's from_bits rejection of unknown bits.
func FromU32(bits uint32) (Perms, error) {
	if Perms(bits)&^PermAll != 0 {
		return 0, errutil.New(errutil.EINVAL, "vm: invalid permission bits %#x", bits)
	}
	return Perms(bits), nil
}

func (p Perms) CanRead() bool  { return p&PermRead != 0 }
func (p Perms) CanWrite() bool { return p&PermWrite != 0 }
func (p Perms) CanExec() bool  { return p&PermExec != 0 }

// Subsumes reports whether p grants at least every permission in other,
// used by Mprotect's "never relax beyond the process's allowed maximum"
// rule (spec.md §4.I).
func (p Perms) Subsumes(other Perms) bool {
	return other&^p == 0
}

func (p Perms) String() string {
	out := [3]byte{'-', '-', '-'}
	if p.CanRead() {
		out[0] = 'r'
	}
	if p.CanWrite() {
		out[1] = 'w'
	}
	if p.CanExec() {
		out[2] = 'x'
	}
	return string(out[:])
}
