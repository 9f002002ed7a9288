// Package context implements the CPU context snapshot and the common
// syscall/interrupt/fault dispatcher of spec.md §4.H, grounded on
// original_source's entry/context_switch/cpu_context.rs and
// entry/exception/{exception,syscall}.rs.
package context

// GPRegs holds the general-purpose register file saved/restored across a
// context switch, matching entry/context_switch (its Rust counterpart is
// kept binary-compatible with assembly; this port only needs field names).
type GPRegs struct {
	R8, R9, R10, R11, R12, R13, R14, R15 uint64
	RDI, RSI, RBP, RBX, RDX, RAX, RCX    uint64
	RSP, RIP                             uint64
}

// FPRegsSize is the fixed, 16-byte-aligned size of the floating-point
// register area, per spec.md §4.H.
const FPRegsSize = 512

// FPRegs is the optional floating-point register area: a fixed-size
// buffer plus a validity flag, since a thread that has never touched the
// FPU has nothing worth saving.
type FPRegs struct {
	Valid bool
	Data  [FPRegsSize]byte
}

// CPUContext is a full register snapshot: general-purpose registers,
// selected segment bases, rflags, and an optional floating-point area, per
// cpu_context.rs's CpuContext struct.
type CPUContext struct {
	GP     GPRegs
	FSBase uint64
	GSBase uint64
	RFlags uint64
	FP     *FPRegs
}

// NewCPUContext returns a zeroed context with no floating-point area
// allocated yet.
func NewCPUContext() *CPUContext {
	return &CPUContext{}
}

// EnsureFP lazily allocates the floating-point area on first use, matching
// the "optional pointer to a separately allocated floating-point area"
// wording of spec.md §4.H.
func (c *CPUContext) EnsureFP() *FPRegs {
	if c.FP == nil {
		c.FP = &FPRegs{}
	}
	return c.FP
}

// Clone returns a deep copy, used when a cloned thread starts from its
// parent's register state (CLONE_VM without a fresh entry point).
func (c *CPUContext) Clone() *CPUContext {
	cp := *c
	if c.FP != nil {
		fp := *c.FP
		cp.FP = &fp
	}
	return &cp
}
