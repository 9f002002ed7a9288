package signal

import (
	"sync"

	"github.com/golibos/libos/internal/errutil"
)

// Dispositions is the per-process sig-disposition table of spec.md §4.H,
// grounded on do_sigaction.rs's rt_sigaction: SIGKILL and SIGSTOP can never
// be changed away from the default action.
type Dispositions struct {
	mu    sync.RWMutex
	table map[Num]Action
}

// NewDispositions builds a table where every signal defaults to
// DispositionDefault.
func NewDispositions() *Dispositions {
	return &Dispositions{table: make(map[Num]Action)}
}

// Get returns the current action for n (the zero Action, i.e. Default, if
// never set).
func (d *Dispositions) Get(n Num) Action {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.table[n]
}

// Set installs a new action for n, returning the previous one. Matches
// do_sigaction.rs's "the actions for SIGKILL or SIGSTOP cannot be changed".
func (d *Dispositions) Set(n Num, action Action) (Action, error) {
	if n == SIGKILL || n == SIGSTOP {
		return Action{}, errutil.New(errutil.EINVAL, "signal: disposition for %d cannot be changed", n)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	old := d.table[n]
	d.table[n] = action
	return old, nil
}

// Fork returns a copy of d, for use when a child process is cloned without
// CLONE_SIGHAND (dispositions are copied, not shared, per clone(2)).
func (d *Dispositions) Fork() *Dispositions {
	d.mu.RLock()
	defer d.mu.RUnlock()
	cp := NewDispositions()
	for n, a := range d.table {
		cp.table[n] = a
	}
	return cp
}

// ResetOnExec clears every handler disposition back to Default, matching
// execve(2)'s "dispositions of handled signals are reset to the default;
// ignored signals stay ignored".
func (d *Dispositions) ResetOnExec() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for n, a := range d.table {
		if a.Disposition == DispositionHandler {
			delete(d.table, n)
		}
	}
}
