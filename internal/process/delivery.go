package process

import (
	"github.com/golibos/libos/internal/errutil"
	"github.com/golibos/libos/internal/process/context"
	"github.com/golibos/libos/internal/process/signal"
)

// DefaultAction is what happens when a signal with DispositionDefault is
// delivered, per spec.md §4.H: "raises the default action (terminate/
// stop/continue/ignore/core)".
type DefaultAction int

const (
	ActionTerminate DefaultAction = iota
	ActionIgnore
	ActionStop
	ActionContinue
	ActionCore
)

// defaultActionFor reports the standard POSIX default disposition for a
// signal number, per signal/signals/{kernel,fault}.rs's classification.
func defaultActionFor(n signal.Num) DefaultAction {
	switch n {
	case signal.SIGCHLD, signal.SIGURG, signal.SIGWINCH:
		return ActionIgnore
	case signal.SIGSTOP, signal.SIGTSTP, signal.SIGTTIN, signal.SIGTTOU:
		return ActionStop
	case signal.SIGCONT:
		return ActionContinue
	case signal.SIGQUIT, signal.SIGILL, signal.SIGABRT, signal.SIGFPE,
		signal.SIGSEGV, signal.SIGBUS, signal.SIGTRAP, signal.SIGSYS,
		signal.SIGXCPU, signal.SIGXFSZ:
		return ActionCore
	default:
		return ActionTerminate
	}
}

// savedFrame is what sigreturn(2) needs to restore: the context the
// handler interrupted, and whether that context had the thread on its
// alternate stack.
type savedFrame struct {
	ctx        *context.CPUContext
	wasOnStack bool
	prevMask   signal.Set
}

// signalState is the delivery-related fields a Thread carries beyond its
// mask/queue/altstack: the stack of interrupted contexts a nested handler
// invocation must unwind through on sigreturn. Held separately so
// thread.go's struct stays focused on identity/status.
type signalState struct {
	frames []savedFrame
}

// DeliverPending is the signal-delivery checkpoint of spec.md §4.H, run at
// "(a) return to user space after a syscall, (b) before resuming user
// space after an interrupt, (c) entering a blocking wait marked
// interruptible". It dequeues the next deliverable signal (thread-private
// queue first, then the process-wide one), then either applies the
// default action, drops it (Ignore), or redirects ctx into the installed
// handler, saving the interrupted context for a later sigreturn.
func DeliverPending(t *Thread) error {
	mask := t.SigMask()

	p, ok := t.sigQueue.Dequeue(mask)
	if !ok {
		p, ok = t.process.SigQueue().Dequeue(mask)
	}
	if !ok {
		return nil
	}

	action := t.process.Dispositions().Get(p.Num)
	switch action.Disposition {
	case DispositionIgnore:
		return nil
	case DispositionHandler:
		return dispatchToHandler(t, p.Num, action)
	default:
		return applyDefaultAction(t, p.Num)
	}
}

// DispositionIgnore/DispositionHandler re-exported for callers that only
// import this package, without needing internal/process/signal directly.
const (
	DispositionDefault = signal.DispositionDefault
	DispositionIgnore  = signal.DispositionIgnore
	DispositionHandler = signal.DispositionHandler
)

func applyDefaultAction(t *Thread, n signal.Num) error {
	switch defaultActionFor(n) {
	case ActionIgnore:
		return nil
	case ActionStop, ActionContinue:
		log.Warn("process: job control signal delivered but stop/continue is not implemented", "signal", n)
		return nil
	case ActionCore:
		t.markExited(Killed(n))
		return nil
	default: // ActionTerminate
		t.markExited(Killed(n))
		return nil
	}
}

// dispatchToHandler redirects the thread's context to run the installed
// handler: it pushes the current context onto the thread's unwind stack,
// switches to the alternate stack if SA_ONSTACK is set and a valid
// altstack is installed, and points the context at the handler entry with
// the restorer as its return address, per spec.md §4.H's "saves the CPU
// context and switches to the handler on the normal stack or the
// alternate signal stack if SA_ONSTACK and the stack is valid".
func dispatchToHandler(t *Thread, n signal.Num, action signal.Action) error {
	t.mu.Lock()
	saved := t.ctx.Clone()
	wasOnStack := t.onAltStack
	prevMask := t.sigMask
	t.mu.Unlock()

	useAltStack := action.Flags&signal.SA_ONSTACK != 0 && !wasOnStack &&
		t.altStack.Flags != signal.StackDisable && t.altStack.Size >= signal.MINSIGSTKSZ

	t.mu.Lock()
	t.signalState.frames = append(t.signalState.frames, savedFrame{ctx: saved, wasOnStack: wasOnStack, prevMask: prevMask})
	if useAltStack {
		t.onAltStack = true
		t.ctx.GP.RSP = t.altStack.SP + t.altStack.Size
	}
	t.ctx.GP.RIP = action.Handler
	t.ctx.GP.RDI = uint64(n)
	t.ctx.GP.RCX = action.Restorer // used as the return address convention for this LibOS's trampoline
	if action.Flags&signal.SA_NODEFER == 0 {
		t.sigMask = t.sigMask.Add(n)
	}
	t.sigMask = t.sigMask.Union(action.Mask)
	if action.Flags&signal.SA_RESETHAND != 0 {
		_, _ = t.process.Dispositions().Set(n, signal.Action{Disposition: signal.DispositionDefault})
	}
	t.mu.Unlock()
	return nil
}

// SigReturn restores the most recently interrupted context, per
// spec.md §4.H's "sigreturn restores the saved context", undoing the
// alternate-stack switch and signal-mask changes dispatchToHandler made.
func (t *Thread) SigReturn() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := len(t.signalState.frames)
	if n == 0 {
		return errutil.New(errutil.EINVAL, "sigreturn: no signal frame to restore")
	}
	frame := t.signalState.frames[n-1]
	t.signalState.frames = t.signalState.frames[:n-1]
	t.ctx = frame.ctx
	t.onAltStack = frame.wasOnStack
	t.sigMask = frame.prevMask
	return nil
}
