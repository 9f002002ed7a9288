package rt

import "sync/atomic"

// Waker re-enqueues the task that registered it. It is safe to call Wake
// concurrently and more than once; only the first call after the task was
// last polled has an effect ("double-unpark is safe" per spec.md §4.C).
type Waker struct {
	fired  atomic.Bool
	wake   func()
}

func newWaker(wake func()) *Waker {
	return &Waker{wake: wake}
}

// Wake schedules the owning task to be polled again. Idempotent between
// polls.
func (w *Waker) Wake() {
	if w == nil {
		return
	}
	if w.fired.CompareAndSwap(false, true) {
		w.wake()
	}
}
