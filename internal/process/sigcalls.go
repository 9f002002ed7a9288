package process

import (
	"github.com/golibos/libos/internal/errutil"
	"github.com/golibos/libos/internal/process/signal"
	"github.com/golibos/libos/internal/rt"
)

// RTSigaction implements rt_sigaction(2): installs newAction (if non-nil)
// for signum and returns the previous action. SIGKILL/SIGSTOP cannot be
// changed, per do_sigaction.rs.
func RTSigaction(t *Thread, signum signal.Num, newAction *signal.Action) (signal.Action, error) {
	if (signum == signal.SIGKILL || signum == signal.SIGSTOP) && newAction != nil {
		return signal.Action{}, errutil.New(errutil.EINVAL, "rt_sigaction: disposition for SIGKILL/SIGSTOP cannot be changed")
	}
	disp := t.process.Dispositions()
	old := disp.Get(signum)
	if newAction != nil {
		if _, err := disp.Set(signum, *newAction); err != nil {
			return signal.Action{}, err
		}
	}
	return old, nil
}

// RTSigprocmask implements rt_sigprocmask(2) against t's own mask, per
// do_sigprocmask.rs.
func RTSigprocmask(t *Thread, op *signal.MaskOp, set signal.Set) signal.Set {
	if op == nil {
		return t.SigMask()
	}
	return t.SetSigMask(*op, set)
}

// Sigpending implements sigpending(2): the set of signals queued but
// blocked from delivery, per do_sigpending.rs.
func Sigpending(t *Thread) signal.Set {
	mask := t.SigMask()
	return t.sigQueue.Pending(mask).Union(t.process.SigQueue().Pending(mask))
}

// Sigaltstack implements sigaltstack(2) against t's alternate stack.
func Sigaltstack(t *Thread, next *signal.Stack) (signal.Stack, error) {
	if next == nil {
		return t.AltStack(), nil
	}
	return t.SetAltStack(*next)
}

// Sigsuspend implements sigsuspend(2): temporarily replaces t's mask with
// tempMask, then blocks until a deliverable signal arrives, restoring the
// original mask before returning — per do_sigsuspend.rs's "atomically
// replace mask and wait for a signal".
func Sigsuspend(t *Thread, tempMask signal.Set) rt.Future[struct{}] {
	original := t.SigMask()
	t.SetSigMask(signal.MaskSetMask, tempMask)
	return &sigsuspendFuture{t: t, original: original}
}

type sigsuspendFuture struct {
	t        *Thread
	original signal.Set
	waiting  rt.Future[struct{}]
}

func (f *sigsuspendFuture) Poll(cx *rt.Cx) rt.PollResult[struct{}] {
	mask := f.t.SigMask()
	if f.t.sigQueue.HasDeliverable(mask) || f.t.process.SigQueue().HasDeliverable(mask) {
		f.t.SetSigMask(signal.MaskSetMask, f.original)
		return rt.Done(struct{}{}, errutil.New(errutil.EINTR, "sigsuspend: interrupted by signal"))
	}
	if f.waiting == nil {
		f.waiting = f.t.process.waitQueue.Wait()
	}
	if res := f.waiting.Poll(cx); !res.Ready {
		return rt.Pending[struct{}]()
	}
	f.waiting = nil
	return rt.Pending[struct{}]()
}
