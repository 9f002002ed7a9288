package process

import (
	"sync"

	"github.com/golibos/libos/internal/process/signal"
)

// Status is how a thread's termination is recorded, per spec.md §4.H:
// "one of {Exited(code), Killed(signum)}". Grounded on original_source's
// process/term_status.rs TermStatus enum.
type Status struct {
	exited bool
	code   uint8
	signum signal.Num
}

// Exited builds a Status for a normal exit(2)/exit_group(2) with the given
// 8-bit exit code.
func Exited(code uint8) Status { return Status{exited: true, code: code} }

// Killed builds a Status for a thread terminated by an unhandled signal.
func Killed(n signal.Num) Status { return Status{signum: n} }

// AsU32 encodes the status into the 32-bit wait status wait(2) returns,
// per term_status.rs's as_u32: exit code in bits 8-15, signal number in
// bits 0-7 when killed.
func (s Status) AsU32() uint32 {
	if s.exited {
		return uint32(s.code) << 8
	}
	return uint32(s.signum)
}

// ExitCode reports whether the thread exited normally, and if so its code.
func (s Status) ExitCode() (uint8, bool) {
	return s.code, s.exited
}

// Signal reports the terminating signal, if any.
func (s Status) Signal() (signal.Num, bool) {
	return s.signum, !s.exited && s.signum != 0
}

// ForcedExit lets an external actor (kill -9 from another process, a fatal
// fault) request that a thread terminate, with the actual status set
// exactly once — grounded on term_status.rs's ForcedExitStatus, which
// deliberately sets its "exited" flag only after the status is recorded so
// a racing reader never observes exited=true with no status yet.
type ForcedExit struct {
	mu     sync.Mutex
	status *Status
	forced bool
}

// IsForced reports whether termination has been requested.
func (f *ForcedExit) IsForced() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.forced
}

// Force records status as the termination status, if none has been set
// yet, and marks the thread as forced to exit.
func (f *ForcedExit) Force(status Status) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.status == nil {
		s := status
		f.status = &s
	}
	f.forced = true
}

// Status returns the recorded termination status, if any.
func (f *ForcedExit) Status() (Status, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.status == nil {
		return Status{}, false
	}
	return *f.status, true
}
