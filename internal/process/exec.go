package process

import "github.com/golibos/libos/internal/process/signal"

// Exec implements execve(2)'s process-level side effects, per spec.md
// §4.H: "exec resets the VM to a fresh layout per the loaded program's
// ELF segments, clears non-inherited file descriptors, and keeps
// pid/tid". Grounded on process/task/exec.rs's call sequence, adapted
// from its host-thread-handoff mechanics (out of scope for this port, see
// DESIGN.md) onto just the state transition.
//
// vm is the VMSpace that will hold the new program's segments (built by
// internal/vm from the loaded ELF before Exec is called); Exec itself only
// resets it and does not parse ELF segments, which is internal/vm's and
// the loader's concern.
func Exec(t *Thread, vm VMSpace) error {
	p := t.process

	if vm != nil {
		if err := vm.Reset(); err != nil {
			return err
		}
	}

	p.mu.Lock()
	p.vm = vm
	if p.files != nil {
		p.files.CloseOnExec()
	}
	p.mu.Unlock()

	// Dispositions for caught signals reset to default; ignored signals
	// stay ignored, per execve(2)'s documented rule.
	p.Dispositions().ResetOnExec()

	// The alternate signal stack is disabled at the start of a new
	// program, per sigaltstack(2)'s "disabled across an execve(2)".
	t.mu.Lock()
	t.onAltStack = false
	t.mu.Unlock()
	_, err := t.SetAltStack(signal.DefaultStack())
	return err
}
