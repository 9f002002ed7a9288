// Package process implements the process/thread model, signal delivery,
// and CPU context switch of spec.md §4.H. Grounded on original_source's
// process/{mod,process_table,term_status}.rs, process/process/idle.rs, and
// signal/{do_kill,do_sigaction,do_sigprocmask}.rs, adapted from their
// Arc<SgxMutex<...>> reference-counted shared-state idiom onto Go pointer
// receivers guarded by sync.Mutex.
package process

import (
	"sync"

	"github.com/golibos/libos/internal/errutil"
	"github.com/golibos/libos/internal/idgen"
	"github.com/golibos/libos/internal/logger"
	"github.com/golibos/libos/internal/process/signal"
	"github.com/golibos/libos/internal/rt"
)

var log = logger.New("process")

// Status is a process's lifecycle state, per process/process/mod.rs's
// Status enum (the original also has a Stopped state for job-control
// SIGSTOP/SIGCONT, left out here since spec.md does not name job control
// as an in-scope feature).
type Status int

const (
	StatusRunning Status = iota
	StatusZombie
)

func (s Status) String() string {
	if s == StatusZombie {
		return "zombie"
	}
	return "running"
}

// VMSpace is the subset of internal/vm's address space this package needs:
// resetting to a fresh layout on exec, and nothing else. Kept narrow so
// this package compiles against any VM implementation, per the teacher's
// general "accept interfaces" convention.
type VMSpace interface {
	Reset() error
}

// FileTable is the subset of a process's open-file table this package
// needs: forking on clone (sharing or copying depending on CLONE_FILES)
// and closing close-on-exec descriptors on exec.
type FileTable interface {
	Fork() FileTable
	CloseOnExec()
}

// Process is one LibOS process: a pid, a process-group id, a thread
// group, a parent/children graph, and the shared resources (VM, file
// table, signal dispositions) its threads see. Grounded on
// process/mod.rs's Process struct.
type Process struct {
	mu sync.Mutex

	pid  uint32
	pgid uint32

	status     Status
	termStatus *Status

	cwd string
	uid uint32
	gid uint32

	parent   *Process
	children []*Process

	vm        VMSpace
	files     FileTable
	sigDisp   *signal.Dispositions
	sigQueue  *signal.Queue
	waitQueue *rt.WaiterQueue

	threads    map[uint32]*Thread
	exitedTIDs []uint32 // tids that have exited, kept for Table cleanup once this process is reaped
}

func newProcess(pid, pgid uint32, parent *Process, vm VMSpace, files FileTable) *Process {
	p := &Process{
		pid:       pid,
		pgid:      pgid,
		cwd:       "/",
		parent:    parent,
		vm:        vm,
		files:     files,
		sigDisp:   signal.NewDispositions(),
		sigQueue:  signal.NewQueue(),
		waitQueue: rt.NewWaiterQueue(),
		threads:   make(map[uint32]*Thread),
	}
	if parent != nil {
		p.uid, p.gid = parent.UID(), parent.GID()
	}
	return p
}

func (p *Process) PID() uint32  { return p.pid }
func (p *Process) PGID() uint32 { return p.pgid }

func (p *Process) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

func (p *Process) Parent() *Process {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.parent
}

func (p *Process) Children() []*Process {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*Process, len(p.children))
	copy(out, p.children)
	return out
}

func (p *Process) Cwd() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cwd
}

func (p *Process) SetCwd(path string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cwd = path
}

// UID and GID report the credentials path resolution and permission
// checks run under. No syscall in spec.md §6's surface changes them
// (setuid/setgid aren't in-scope), so every process keeps whatever it
// inherited at fork from pid 1's root/root default.
func (p *Process) UID() uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.uid
}

func (p *Process) GID() uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.gid
}

func (p *Process) Dispositions() *signal.Dispositions { return p.sigDisp }
func (p *Process) SigQueue() *signal.Queue             { return p.sigQueue }

// VM returns the process's address space, for callers (the syscall
// dispatcher) that need to reach past the narrow VMSpace interface down to
// a concrete implementation's full API.
func (p *Process) VM() VMSpace {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.vm
}

// Files returns the process's open-file table.
func (p *Process) Files() FileTable {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.files
}

func (p *Process) addChild(child *Process) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.children = append(p.children, child)
}

// reap removes child from p.children once it has been waited for,
// matching exit.rs's post-wait4 cleanup.
func (p *Process) reap(child *Process) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, c := range p.children {
		if c == child {
			p.children = append(p.children[:i], p.children[i+1:]...)
			return
		}
	}
}

func (p *Process) addThread(t *Thread) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.threads[t.tid] = t
}

func (p *Process) removeThread(tid uint32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.threads, tid)
	p.exitedTIDs = append(p.exitedTIDs, tid)
}

// drainExitedTIDs returns and clears the tids recorded by removeThread,
// for Table to drop from its global thread table once this process is
// reaped by wait4.
func (p *Process) drainExitedTIDs() []uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := p.exitedTIDs
	p.exitedTIDs = nil
	return out
}

// threadCount reports how many threads remain in this thread group; the
// process becomes a Zombie once it drops to zero.
func (p *Process) threadCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.threads)
}

// markExited transitions the process to Zombie with the given status and
// wakes anyone parked in the parent's wait4, per exit.rs's do_exit.
func (p *Process) markExited(status Status) {
	p.mu.Lock()
	p.status = StatusZombie
	s := status
	p.termStatus = &s
	parent := p.parent
	p.mu.Unlock()

	if parent != nil {
		parent.waitQueue.WakeAll()
	}
}

// TermStatus reports the process's recorded termination status, if any.
func (p *Process) TermStatus() (Status, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.termStatus == nil {
		return Status{}, false
	}
	return *p.termStatus, true
}

// pidGen and allocPID back the process table's pid allocation: idgen's
// 64-bit generator, with allocPID panicking once a value no longer fits
// pid_t's 32 bits (process/mod.rs), in line with idgen's
// wraparound-is-fatal convention. A pgid is not allocated separately.
var pidGen = idgen.NewGenerator()

func allocPID() uint32 {
	id := pidGen.Next()
	if id > 0xffffffff {
		panic("process: pid counter exceeded 32 bits")
	}
	return uint32(id)
}

// errNoSuchProcess is returned by table lookups, per process_table.rs's
// get() returning ENOENT for a missing pid.
func errNoSuchProcess(pid uint32) error {
	return errutil.New(errutil.ESRCH, "process: no such process %d", pid)
}
