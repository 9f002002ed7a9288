package rt

import (
	"context"
	"sync/atomic"
)

// Cx is handed to every Future.Poll call: the cancellation context, the
// Waker to register if the future is not yet ready, and a handle back to
// the owning task (task-local storage, cancellation flag). Passing it
// explicitly is the idiomatic-Go substitute for the vCPU-local "current
// thread" global pointer design note in spec.md §9 — a single concrete
// value threaded to readers, rather than ambient mutable state with one
// writer.
type Cx struct {
	Ctx   context.Context
	Waker *Waker
	Task  *TaskHandle
}

// TaskHandle is the subset of a Task's identity and state visible to the
// future it's running: id, cooperative-cancellation flag, and locals.
type TaskHandle struct {
	id       TaskID
	locals   *LocalsMap
	canceled *cancelFlag
}

func (h *TaskHandle) ID() TaskID { return h.id }

func (h *TaskHandle) Locals() *LocalsMap { return h.locals }

// Canceled reports whether the task has been asked to cancel. Checking this
// is the cooperative-cancellation mechanism of spec.md §4.C /
// §5 "Cancellation is cooperative": the task itself decides where it is
// safe to observe the flag and unwind early.
func (h *TaskHandle) Canceled() bool { return h.canceled.isSet() }

type cancelFlag struct {
	v atomic.Bool
}

func (c *cancelFlag) isSet() bool { return c.v.Load() }
func (c *cancelFlag) set()        { c.v.Store(true) }
