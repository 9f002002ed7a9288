package process

import "github.com/golibos/libos/internal/errutil"

// CloneFlags selects what a cloned thread shares with its parent, a
// subset of Linux's clone(2) flags per spec.md §4.H: "selects sharing of
// VM, file table, fs view, signal handlers, and pid namespace". Grounded
// on process/mod.rs's re-export of thread::CloneFlags; only the flags
// spec.md names are modeled, the rest of Linux's clone surface
// (CLONE_NEWPID namespaces proper, CLONE_PTRACE, ...) is out of scope.
type CloneFlags uint32

const (
	CloneVM            CloneFlags = 1 << 0
	CloneFS            CloneFlags = 1 << 1
	CloneFiles         CloneFlags = 1 << 2
	CloneSighand       CloneFlags = 1 << 3
	CloneThread        CloneFlags = 1 << 4
	CloneParentSettid  CloneFlags = 1 << 5
	CloneChildCleartid CloneFlags = 1 << 6
	CloneChildSettid   CloneFlags = 1 << 7
)

func (f CloneFlags) has(bit CloneFlags) bool { return f&bit != 0 }

// CloneOptions carries the clone(2) arguments this package needs beyond
// the flag bitmask.
type CloneOptions struct {
	Flags         CloneFlags
	ParentTIDAddr uint64 // written with the new tid if CloneParentSettid
	ChildTIDAddr  uint64 // written with the new tid if CloneChildSettid; cleared+futex-woken on exit if CloneChildCleartid
}

// Clone creates a new thread of execution from parent, per spec.md §4.H.
// CLONE_THREAD keeps the new thread in parent's own process (a new tid,
// same pid/tgid); otherwise it starts a brand new process (new pid,
// becomes a child of parent's process). CLONE_VM/CLONE_FILES/
// CLONE_SIGHAND decide whether the new thread's process shares those
// resources with the parent's or gets an independent copy.
func Clone(table *Table, parent *Thread, opts CloneOptions) (*Thread, error) {
	if opts.Flags.has(CloneThread) && !opts.Flags.has(CloneSighand) {
		// Linux itself rejects this combination: threads in one process
		// must share a signal-disposition table.
		return nil, errutil.New(errutil.EINVAL, "clone: CLONE_THREAD requires CLONE_SIGHAND")
	}

	var child *Thread
	if opts.Flags.has(CloneThread) {
		child = table.NewThread(parent.process)
	} else {
		vm := parent.process.vm
		if !opts.Flags.has(CloneVM) && vm != nil {
			// A real fork() copy-on-writes the VM; this LibOS core has no
			// standalone "duplicate address space" primitive yet, so an
			// un-shared VM is left nil for the caller to populate before
			// the child runs (see DESIGN.md's Open Question decisions).
			vm = nil
		}

		files := parent.process.files
		if !opts.Flags.has(CloneFiles) && files != nil {
			files = files.Fork()
		}

		var pgid *uint32
		g := parent.process.pgid
		pgid = &g

		newProc := table.NewProcess(parent.process, vm, files, pgid)
		if opts.Flags.has(CloneSighand) {
			// Share the same disposition table (CLONE_SIGHAND without
			// CLONE_THREAD is unusual but valid per clone(2)).
			newProc.sigDisp = parent.process.sigDisp
		} else {
			// fork(2) semantics: the child starts with a copy of the
			// parent's dispositions, not the defaults.
			newProc.sigDisp = parent.process.Dispositions().Fork()
		}
		newProc.SetCwd(parent.process.Cwd())
		child = table.NewThread(newProc)
	}

	child.mu.Lock()
	child.sigMask = parent.SigMask()
	child.mu.Unlock()

	if opts.Flags.has(CloneChildCleartid) {
		child.SetClearChildTID(opts.ChildTIDAddr)
	}

	return child, nil
}
