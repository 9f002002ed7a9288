package signal

import "github.com/golibos/libos/internal/errutil"

// MINSIGSTKSZ is the minimum alternate signal stack size, per spec.md
// §4.H and original_source's sig_stack.rs.
const MINSIGSTKSZ = 2048

// StackFlags mirrors sig_stack.rs's SigStackFlags.
type StackFlags uint32

const (
	StackActive     StackFlags = 0
	StackOnStack    StackFlags = 1
	StackDisable    StackFlags = 2
	StackAutoDisarm StackFlags = 1 << 31
)

// Stack is a thread's alternate signal stack, per sig_stack.rs's SigStack.
type Stack struct {
	SP    uint64
	Flags StackFlags
	Size  uint64
}

// Contains reports whether addr falls within the stack's range.
func (s Stack) Contains(addr uint64) bool {
	return addr >= s.SP && addr-s.SP < s.Size
}

// DefaultStack is the zero-value stack: disabled, per sig_stack.rs's
// Default impl.
func DefaultStack() Stack { return Stack{Flags: StackDisable} }

// ValidateFlags rejects any bit pattern sig_stack.rs's from_u32 would
// reject: only StackOnStack/StackDisable/StackAutoDisarm are meaningful.
func ValidateFlags(bits uint32) (StackFlags, error) {
	if bits > uint32(StackDisable) && bits != uint32(StackAutoDisarm) {
		return 0, errutil.New(errutil.EINVAL, "signal: invalid sigaltstack flags %#x", bits)
	}
	return StackFlags(bits), nil
}

// SetAltStack installs a new alternate stack for a thread that is not
// currently executing on the old one, per spec.md §4.H: "cannot be
// disabled while the current execution is on it". SS_AUTODISARM is
// accepted but never acted on, matching the explicit "the source warns and
// ignores it" decision recorded in DESIGN.md.
func SetAltStack(current Stack, onCurrentStack bool, next Stack, warn func(string, ...any)) (Stack, error) {
	if onCurrentStack && current.Flags != StackDisable {
		return current, errutil.New(errutil.EPERM, "signal: cannot change sigaltstack while executing on it")
	}
	if next.Flags&StackAutoDisarm != 0 && warn != nil {
		warn("signal: SS_AUTODISARM requested but not honored")
	}
	if next.Flags != StackDisable && next.Size < MINSIGSTKSZ {
		return current, errutil.New(errutil.ENOMEM, "signal: sigaltstack size %d below MINSIGSTKSZ", next.Size)
	}
	return next, nil
}
