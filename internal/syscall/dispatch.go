package syscall

import (
	"github.com/golibos/libos/internal/errutil"
	"github.com/golibos/libos/internal/process/context"
)

// Resolver builds a context.Resolver bound to env, wiring t into a
// thread's trap path per spec.md §6 — pass the result to
// process.NewThreadDispatcher alongside that same thread. Faults and
// interrupts are outside this table's scope; Resolver refuses anything
// but context.EntrySyscall, leaving those vectors to whatever fault/
// interrupt table the caller wires in alongside it.
func (t *Table) Resolver(env *Env) context.Resolver {
	return func(kind context.EntryKind, number uint64, ctx *context.CPUContext) (context.Handler, error) {
		if kind != context.EntrySyscall {
			return nil, errutil.New(errutil.ENOSYS, "syscall: resolver only handles EntrySyscall entries")
		}

		fn, ok := t.Lookup(Num(number))
		if !ok {
			return func(ctx *context.CPUContext) error {
				ctx.GP.RAX = errnoReturn(errutil.ENOSYS)
				return nil
			}, nil
		}

		return func(ctx *context.CPUContext) error {
			args := Args{
				A0: ctx.GP.RDI,
				A1: ctx.GP.RSI,
				A2: ctx.GP.RDX,
				A3: ctx.GP.R10,
				A4: ctx.GP.R8,
				A5: ctx.GP.R9,
			}
			ret, err := fn(env, ctx, args)
			if err != nil {
				ctx.GP.RAX = errnoReturn(errutil.KindOf(err))
				return nil
			}
			ctx.GP.RAX = ret
			return nil
		}, nil
	}
}

// errnoReturn encodes a Kind as the raw uint64 a syscall-return-value
// register carries: the two's-complement bit pattern of its negated
// errno, matching the x86-64 syscall ABI's "negative return value in
// [-4095, -1] means -errno" convention.
func errnoReturn(k errutil.Kind) uint64 {
	return uint64(int64(k.Errno()))
}
