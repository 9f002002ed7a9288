package process

import "github.com/golibos/libos/internal/process/context"

// NewThreadDispatcher builds a context.Dispatcher wired to t: entries
// resolve through resolve (the syscall table or fault vector table the
// caller supplies), and the signal checkpoint after the handler runs
// delivers t's next pending, unblocked signal, per spec.md §4.H's common
// dispatcher description.
func NewThreadDispatcher(t *Thread, resolve context.Resolver) *context.Dispatcher {
	return context.NewDispatcher(resolve, func(*context.CPUContext) error {
		return DeliverPending(t)
	})
}
