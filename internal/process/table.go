package process

import (
	"sync"

	"github.com/golibos/libos/internal/idgen"
)

// Table is the process/thread/pgroup registry of spec.md §4.H: "maps pid
// → process; thread table maps tid → thread; process-group table maps
// pgid → group". Grounded on process_table.rs, generalized from its
// single pid→Process map into the three tables spec.md names.
type Table struct {
	mu        sync.Mutex
	processes map[uint32]*Process
	threads   map[uint32]*Thread
	groups    map[uint32]map[uint32]struct{} // pgid -> set of pid

	tidGen *idgen.Generator

	idle *Process
}

// NewTable builds an empty table, plus the idle process (pid 0), which per
// spec.md §4.H "exists but is not registered in any externally visible
// table" — so it is held directly on Table rather than in the processes
// map.
func NewTable() *Table {
	t := &Table{
		processes: make(map[uint32]*Process),
		threads:   make(map[uint32]*Thread),
		groups:    make(map[uint32]map[uint32]struct{}),
		tidGen:    idgen.NewGenerator(),
	}
	t.idle = newProcess(0, 0, nil, nil, nil)
	t.idle.threads[0] = newThread(0, t.idle)
	return t
}

// Idle returns the idle process (pid 0).
func (t *Table) Idle() *Process { return t.idle }

// NewProcess allocates a pid, creates a Process (its own new process
// group unless joinPGID is non-nil), registers it, and links it as a
// child of parent (nil for the first process).
func (t *Table) NewProcess(parent *Process, vm VMSpace, files FileTable, joinPGID *uint32) *Process {
	pid := allocPID()
	pgid := pid
	if joinPGID != nil {
		pgid = *joinPGID
	}
	p := newProcess(pid, pgid, parent, vm, files)

	t.mu.Lock()
	t.processes[pid] = p
	if t.groups[pgid] == nil {
		t.groups[pgid] = make(map[uint32]struct{})
	}
	t.groups[pgid][pid] = struct{}{}
	t.mu.Unlock()

	if parent != nil {
		parent.addChild(p)
	}
	return p
}

// NewThread allocates a tid and registers a new thread under proc.
func (t *Table) NewThread(proc *Process) *Thread {
	tid := uint32(t.tidGen.Next())
	th := newThread(tid, proc)

	t.mu.Lock()
	t.threads[tid] = th
	t.mu.Unlock()

	proc.addThread(th)
	return th
}

// GetProcess looks up a process by pid, per process_table.rs's get().
func (t *Table) GetProcess(pid uint32) (*Process, error) {
	if pid == 0 {
		return t.idle, nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.processes[pid]
	if !ok {
		return nil, errNoSuchProcess(pid)
	}
	return p, nil
}

// GetThread looks up a thread by tid.
func (t *Table) GetThread(tid uint32) (*Thread, error) {
	if tid == 0 {
		return t.idle.threads[0], nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	th, ok := t.threads[tid]
	if !ok {
		return nil, errNoSuchProcess(tid)
	}
	return th, nil
}

// AllProcesses returns every registered process, for ProcessFilter's
// WithAnyPid/WithPgid cases, per do_kill.rs's table::get_all_processes.
func (t *Table) AllProcesses() []*Process {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*Process, 0, len(t.processes))
	for _, p := range t.processes {
		out = append(out, p)
	}
	return out
}

// ProcessGroup returns every process sharing pgid.
func (t *Table) ProcessGroup(pgid uint32) []*Process {
	t.mu.Lock()
	pids := t.groups[pgid]
	out := make([]*Process, 0, len(pids))
	for pid := range pids {
		if p, ok := t.processes[pid]; ok {
			out = append(out, p)
		}
	}
	t.mu.Unlock()
	return out
}

// RemoveProcess drops pid from every table, per process_table.rs's
// remove(); called once a zombie has been reaped by wait4.
func (t *Table) RemoveProcess(pid uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.processes[pid]
	if !ok {
		return
	}
	delete(t.processes, pid)
	if group := t.groups[p.pgid]; group != nil {
		delete(group, pid)
		if len(group) == 0 {
			delete(t.groups, p.pgid)
		}
	}
}

// RemoveThread drops tid from the thread table once its process has
// reaped it (it stays reachable through Process.threads until then for
// tgkill targeting, but out of the global table once exited).
func (t *Table) RemoveThread(tid uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.threads, tid)
}
