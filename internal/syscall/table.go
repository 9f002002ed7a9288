package syscall

import (
	"github.com/golibos/libos/internal/hostbridge"
	"github.com/golibos/libos/internal/metrics"
	"github.com/golibos/libos/internal/process"
	"github.com/golibos/libos/internal/process/context"
	"github.com/golibos/libos/internal/vfs"
	"github.com/golibos/libos/internal/vm"
)

// Args is the raw six-register argument list of the x86-64 syscall ABI
// (RDI, RSI, RDX, R10, R8, R9), per spec.md §6's "six-argument raw
// register convention" — the table never interprets these beyond what an
// individual Func chooses to do with them.
type Args struct {
	A0, A1, A2, A3, A4, A5 uint64
}

// Env is what a Func needs beyond its raw arguments: the calling thread,
// the shared process table, and the shared SysV shared-memory manager
// (kept separate from any one process's address space, since segments
// outlive and are shared across processes).
type Env struct {
	Thread *process.Thread
	Table  *process.Table
	Shm    *vm.ShmManager
	VFS    *vfs.VFS

	// Bridge and Metrics are plumbed into every socket this process opens
	// (internal/socket.Config); nil Metrics falls back to a no-op registry
	// via Config.withDefaults, but Bridge must be set for socket(2) to work.
	Bridge  hostbridge.Bridge
	Metrics *metrics.Registry
}

// Func is one syscall's implementation. It returns the value to place in
// RAX on success; a non-nil error's errutil.Kind becomes RAX's negated
// errno instead, per spec.md §6's Linux-compatible return convention.
type Func func(env *Env, ctx *context.CPUContext, args Args) (uint64, error)

// Table maps syscall numbers to their implementation, reporting "no such
// system call" for any number it doesn't recognize, per spec.md §6.
// Grounded on spec.md §6's description of a numbered dispatch table;
// no single original_source file holds this shape since the teacher's own
// x86-64 syscall entry is compiled assembly, not a Go-reachable table.
type Table struct {
	entries map[Num]Func
}

// NewTable builds an empty table; callers populate it via Register or
// RegisterCore.
func NewTable() *Table {
	return &Table{entries: make(map[Num]Func)}
}

// Register installs fn as the handler for n, overwriting any previous
// registration.
func (t *Table) Register(n Num, fn Func) {
	t.entries[n] = fn
}

// Lookup returns n's handler, or false if no syscall with that number has
// been registered.
func (t *Table) Lookup(n Num) (Func, bool) {
	fn, ok := t.entries[n]
	return fn, ok
}

// NewCoreTable builds a Table with every syscall this package implements
// already registered: the internal/vm address-space family, the process
// model (including clone/fork/execve/wait4), internal/fdtable's fd
// operations (both fd-number-only and guest-buffer ones), the
// path-argument syscalls built on env.VFS, and internal/socket's stream
// and datagram lifecycle. The signal-struct-argument syscalls
// (rt_sigaction, rt_sigprocmask, sigaltstack) and the polling/scheduling/
// time/remaining file-op syscalls numbers.go reserves aren't wired yet
// (see DESIGN.md).
func NewCoreTable() *Table {
	t := NewTable()
	registerVM(t)
	registerProcess(t)
	registerFile(t)
	registerPath(t)
	registerSocket(t)
	return t
}
