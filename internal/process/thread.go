package process

import (
	"sync"

	"github.com/golibos/libos/internal/process/context"
	"github.com/golibos/libos/internal/process/signal"
)

// ThreadStatus mirrors the subset of thread lifecycle states this package
// tracks (job-control Stopped/Running is left out, per process.go's
// Status docstring).
type ThreadStatus int

const (
	ThreadRunning ThreadStatus = iota
	ThreadExited
)

// Thread is one schedulable LibOS thread: a tid, the process (thread
// group) it belongs to, its own signal mask/queue/altstack, and its CPU
// context. Grounded on process/mod.rs's Process struct before its
// thread/process split and signal/mod.rs's per-thread signal state.
type Thread struct {
	mu sync.Mutex

	tid     uint32
	process *Process

	status     ThreadStatus
	termStatus *Status
	forced     ForcedExit

	sigMask    signal.Set
	sigQueue   *signal.Queue
	altStack   signal.Stack
	onAltStack bool

	clearChildTID uint64 // guest address to zero+futex_wake on exit, 0 if unset

	ctx         *context.CPUContext
	signalState signalState
}

func newThread(tid uint32, proc *Process) *Thread {
	return &Thread{
		tid:      tid,
		process:  proc,
		sigQueue: signal.NewQueue(),
		altStack: signal.DefaultStack(),
		ctx:      context.NewCPUContext(),
	}
}

func (t *Thread) TID() uint32                  { return t.tid }
func (t *Thread) Process() *Process            { return t.process }
func (t *Thread) Context() *context.CPUContext { return t.ctx }

func (t *Thread) Status() ThreadStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

func (t *Thread) SigMask() signal.Set {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sigMask
}

// SetSigMask applies op/set per rt_sigprocmask's semantics and returns the
// previous mask, matching do_sigprocmask.rs's do_rt_sigprocmask.
func (t *Thread) SetSigMask(op signal.MaskOp, set signal.Set) signal.Set {
	t.mu.Lock()
	defer t.mu.Unlock()
	old := t.sigMask
	t.sigMask = signal.ApplyMask(t.sigMask, op, set)
	return old
}

func (t *Thread) SigQueue() *signal.Queue { return t.sigQueue }

// AltStack returns the thread's alternate signal stack.
func (t *Thread) AltStack() signal.Stack {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.altStack
}

// SetAltStack installs a new alternate signal stack, per sig_stack.rs's
// rules (cannot disable while executing on it; MINSIGSTKSZ floor).
func (t *Thread) SetAltStack(next signal.Stack) (signal.Stack, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	got, err := signal.SetAltStack(t.altStack, t.onAltStack, next, func(msg string, args ...any) {
		log.Warn(msg, args...)
	})
	if err != nil {
		return t.altStack, err
	}
	t.altStack = got
	return got, nil
}

// EnterAltStack/LeaveAltStack track whether the thread is currently
// executing on its alternate stack, consulted by SetAltStack.
func (t *Thread) EnterAltStack() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onAltStack = true
}

func (t *Thread) LeaveAltStack() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onAltStack = false
}

// ClearChildTID returns the guest address set via set_tid_address(2) /
// CLONE_CHILD_CLEARTID, or 0 if unset.
func (t *Thread) ClearChildTID() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.clearChildTID
}

func (t *Thread) SetClearChildTID(addr uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.clearChildTID = addr
}

// Forced exposes the thread's forced-exit flag/status, per spec.md §4.H's
// "a forced-exit flag allows an external actor to request termination".
func (t *Thread) Forced() *ForcedExit { return &t.forced }

// Exit implements exit(2)'s thread-level effect (exit_group(2) is the
// same call repeated across every thread in the process by the caller),
// per spec.md §4.H.
func (t *Thread) Exit(status Status) {
	t.markExited(status)
}

// markExited records the thread's termination status exactly once and
// removes it from its process's thread table. If it was the
// last thread in the process, the process becomes a Zombie with the same
// status, per exit.rs's do_exit.
func (t *Thread) markExited(status Status) {
	t.mu.Lock()
	if t.status == ThreadExited {
		t.mu.Unlock()
		return
	}
	t.status = ThreadExited
	s := status
	t.termStatus = &s
	t.mu.Unlock()

	t.process.removeThread(t.tid)
	if t.process.threadCount() == 0 {
		t.process.markExited(status)
	}
}

// TermStatus reports the thread's own recorded termination status.
func (t *Thread) TermStatus() (Status, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.termStatus == nil {
		return Status{}, false
	}
	return *t.termStatus, true
}
