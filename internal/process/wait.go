package process

import (
	"github.com/golibos/libos/internal/errutil"
	"github.com/golibos/libos/internal/rt"
)

// FilterKind selects which children Wait4 considers, per spec.md §4.H:
// "wait-4 supports filters {any child, by pid, by pgid}". Grounded on
// exit.rs's ChildProcessFilter / do_kill.rs's ProcessFilter shape, merged
// into one type since both pick among the same three cases.
type FilterKind int

const (
	FilterAnyChild FilterKind = iota
	FilterByPID
	FilterByPGID
)

// Filter selects a subset of processes/children for Wait4 or for signal
// delivery's process-group targeting (do_kill.rs's ProcessFilter).
type Filter struct {
	Kind FilterKind
	PID  uint32
	PGID uint32
}

func (f Filter) matches(child *Process) bool {
	switch f.Kind {
	case FilterByPID:
		return child.pid == f.PID
	case FilterByPGID:
		return child.pgid == f.PGID
	default:
		return true
	}
}

// WaitResult is what a successful Wait4 reports.
type WaitResult struct {
	PID    uint32
	Status Status
}

// Wait4 resolves once a child of parent matching filter becomes a Zombie,
// reaps it (removing it from table and waking no one else), and returns
// its pid and Status. If parent has no child matching filter at all, it
// resolves immediately with ECHILD. If nonBlocking is set and no matching
// child is currently a zombie, it resolves immediately with EAGAIN rather
// than waiting, mirroring wait4(2)'s WNOHANG. Grounded on original_source's exit.rs do_wait4, adapted from
// its synchronous WaitQueue onto this package's rt.Future surface so
// callers can await it alongside other async operations.
func Wait4(table *Table, parent *Process, filter Filter, nonBlocking bool) rt.Future[WaitResult] {
	if !hasMatchingChild(parent, filter) {
		return rt.FutureFunc[WaitResult](func(*rt.Cx) rt.PollResult[WaitResult] {
			return rt.Done(WaitResult{}, errutil.New(errutil.ECHILD, "wait4: no matching child"))
		})
	}

	return &wait4Future{table: table, parent: parent, filter: filter, nonBlocking: nonBlocking}
}

func hasMatchingChild(parent *Process, filter Filter) bool {
	for _, c := range parent.Children() {
		if filter.matches(c) {
			return true
		}
	}
	return false
}

func matchingZombie(parent *Process, filter Filter) (*Process, bool) {
	for _, c := range parent.Children() {
		if !filter.matches(c) {
			continue
		}
		if c.Status() == StatusZombie {
			return c, true
		}
	}
	return nil, false
}

type wait4Future struct {
	table       *Table
	parent      *Process
	filter      Filter
	nonBlocking bool
	waiting     rt.Future[struct{}]
}

func (f *wait4Future) Poll(cx *rt.Cx) rt.PollResult[WaitResult] {
	if child, ok := matchingZombie(f.parent, f.filter); ok {
		status, _ := child.TermStatus()
		f.reap(child)
		return rt.Done(WaitResult{PID: child.pid, Status: status}, nil)
	}

	if f.nonBlocking {
		return rt.Done(WaitResult{}, errutil.New(errutil.EAGAIN, "wait4: no exited child yet"))
	}

	if f.waiting == nil {
		f.waiting = f.parent.waitQueue.Wait()
	}
	if res := f.waiting.Poll(cx); !res.Ready {
		return rt.Pending[WaitResult]()
	}
	f.waiting = nil
	// Re-check: WakeAll can fire for an unrelated child; loop by polling
	// again next time the caller drives us (the Future contract allows
	// returning Pending again immediately).
	if child, ok := matchingZombie(f.parent, f.filter); ok {
		status, _ := child.TermStatus()
		f.reap(child)
		return rt.Done(WaitResult{PID: child.pid, Status: status}, nil)
	}
	return rt.Pending[WaitResult]()
}

// reap detaches child from its parent and drops it (and its long-exited
// thread ids) from the global table, per exit.rs's post-wait4 cleanup.
func (f *wait4Future) reap(child *Process) {
	f.parent.reap(child)
	for _, tid := range child.drainExitedTIDs() {
		f.table.RemoveThread(tid)
	}
	f.table.RemoveProcess(child.pid)
}
