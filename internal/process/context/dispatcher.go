package context

// EntryKind distinguishes how control entered the dispatcher, per
// entry/exception/{exception,syscall}.rs and entry/interrupt/mod.rs.
type EntryKind int

const (
	EntrySyscall EntryKind = iota
	EntryInterrupt
	EntryFault
)

// Resolver maps the raw entry (an EntryKind plus whatever vector/syscall
// number the trap carried) to the handler that should run. Callers keep
// their own lookup tables (syscall dispatch table, fault vector table);
// Resolver just narrows EntryKind to a runnable closure.
type Resolver func(kind EntryKind, number uint64, ctx *CPUContext) (Handler, error)

// Handler executes the resolved syscall/interrupt/fault body.
type Handler func(ctx *CPUContext) error

// SignalCheckpoint is called after the handler runs and before the
// context is restored, covering two of spec.md §4.H's three delivery
// checkpoints ("before resuming user space after an interrupt" and
// "return to user space after a syscall" both route through here; the
// third, entering an interruptible blocking wait, is checked at the wait
// site itself rather than here).
type SignalCheckpoint func(ctx *CPUContext) error

// Dispatcher implements the common syscall/interrupt/fault entry path of
// spec.md §4.H: (1) snapshot context, (2) resolve the entry kind, (3) run
// the handler, (4) deliver pending signals, (5) restore context.
type Dispatcher struct {
	Resolve Resolver
	Deliver SignalCheckpoint
}

// NewDispatcher builds a Dispatcher from its two required hooks.
func NewDispatcher(resolve Resolver, deliver SignalCheckpoint) *Dispatcher {
	return &Dispatcher{Resolve: resolve, Deliver: deliver}
}

// Enter runs one full dispatch cycle for a trap that carried number
// (syscall number, or fault/interrupt vector) against the live register
// state live. It snapshots live into a fresh CPUContext, runs the
// resolved handler against the snapshot, delivers any pending signal, and
// returns the context to restore into the CPU on return to user space.
func (d *Dispatcher) Enter(kind EntryKind, number uint64, live CPUContext) (*CPUContext, error) {
	ctx := live.Clone()

	handler, err := d.Resolve(kind, number, ctx)
	if err != nil {
		return ctx, err
	}

	if herr := handler(ctx); herr != nil {
		// A failed handler still goes through signal delivery and context
		// restore; the error is returned to the caller for the syscall
		// return-value slot or fault escalation, not swallowed here.
		if d.Deliver != nil {
			_ = d.Deliver(ctx)
		}
		return ctx, herr
	}

	if d.Deliver != nil {
		if derr := d.Deliver(ctx); derr != nil {
			return ctx, derr
		}
	}

	return ctx, nil
}
