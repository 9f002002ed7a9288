package syscall

import (
	"encoding/binary"

	"golang.org/x/sys/unix"

	"github.com/golibos/libos/internal/errutil"
	"github.com/golibos/libos/internal/process"
	"github.com/golibos/libos/internal/process/context"
	"github.com/golibos/libos/internal/process/signal"
	"github.com/golibos/libos/internal/rt"
	"github.com/golibos/libos/internal/vfs"
)

// The following handlers cover every process-model syscall whose
// arguments are plain scalars under the x86-64 ABI, plus clone/fork/
// execve/wait4 (below), which take a guest-memory pointer or two but
// don't need a struct decoder — clone/wait4's pointers are a bare tid or
// status word internal/vm.AddrSpace.CopyOut already moves, and execve's
// path is internal/vm.AddrSpace.CopyInString's job; argv/envp are not
// decoded (see doExecve). rt_sigaction, rt_sigprocmask, and sigaltstack
// still take a guest-memory pointer to a struct this package has no
// decoder for (nothing here yet maps raw bytes onto process/signal's
// Action/Set wire format), so those stay unregistered until that decoder
// exists; calling them reports ENOSYS like any other unknown number.

func sysGetpid(env *Env, _ *context.CPUContext, _ Args) (uint64, error) {
	return uint64(env.Thread.Process().PID()), nil
}

func sysGettid(env *Env, _ *context.CPUContext, _ Args) (uint64, error) {
	return uint64(env.Thread.TID()), nil
}

func sysGetppid(env *Env, _ *context.CPUContext, _ Args) (uint64, error) {
	parent := env.Thread.Process().Parent()
	if parent == nil {
		return 0, nil
	}
	return uint64(parent.PID()), nil
}

func sysGetpgid(env *Env, _ *context.CPUContext, args Args) (uint64, error) {
	pid := uint32(args.A0)
	if pid == 0 {
		return uint64(env.Thread.Process().PGID()), nil
	}
	p, err := env.Table.GetProcess(pid)
	if err != nil {
		return 0, err
	}
	return uint64(p.PGID()), nil
}

func sysSchedYield(*Env, *context.CPUContext, Args) (uint64, error) {
	// Cooperative yielding is this LibOS's async runtime's job (spec.md
	// §4.A); from the syscall table's side there is nothing to do beyond
	// succeeding, matching sched_yield(2)'s "always succeeds".
	return 0, nil
}

func sysKill(env *Env, _ *context.CPUContext, args Args) (uint64, error) {
	filter, err := killFilter(int64(args.A0), env.Thread.Process().PGID())
	if err != nil {
		return 0, err
	}
	signum := signal.Num(args.A1)
	srcPID := env.Thread.Process().PID()
	return 0, process.Kill(env.Table, filter, signum, srcPID, srcPID)
}

// killFilter maps kill(2)'s overloaded pid argument (positive: one pid,
// 0/negative: process group, per kill(2)) onto process.Filter. pid == -1
// ("every process this caller may signal") is not modeled distinctly from
// "every process" since this LibOS core has no permission model of its
// own yet (see DESIGN.md's process component notes).
func killFilter(pid int64, callerPGID uint32) (process.Filter, error) {
	switch {
	case pid > 0:
		return process.Filter{Kind: process.FilterByPID, PID: uint32(pid)}, nil
	case pid == 0:
		return process.Filter{Kind: process.FilterByPGID, PGID: callerPGID}, nil
	case pid == -1:
		return process.Filter{Kind: process.FilterAnyChild}, nil
	default:
		return process.Filter{Kind: process.FilterByPGID, PGID: uint32(-pid)}, nil
	}
}

func sysTgkill(env *Env, _ *context.CPUContext, args Args) (uint64, error) {
	tgid := uint32(args.A0)
	srcPID := env.Thread.Process().PID()
	return 0, process.Tgkill(env.Table, &tgid, uint32(args.A1), signal.Num(args.A2), srcPID, srcPID)
}

func sysExit(env *Env, _ *context.CPUContext, args Args) (uint64, error) {
	env.Thread.Exit(process.Exited(uint8(args.A0)))
	return 0, nil
}

// sysExitGroup implements exit_group(2)'s caller-visible effect. A full
// thread-group-wide exit additionally needs to tear down every sibling
// thread, which this package leaves to the same signal-delivery path that
// already forces thread exit on a fatal signal (see delivery.go);
// registered here is just the calling thread's own termination.
func sysExitGroup(env *Env, _ *context.CPUContext, args Args) (uint64, error) {
	env.Thread.Exit(process.Exited(uint8(args.A0)))
	return 0, nil
}

// cloneFlagsFromRaw translates clone(2)'s raw flags word onto
// process.CloneFlags. The low byte of raw is the child's exit signal
// (unused here, since signal.Num delivery to the parent on child exit is
// already handled at the process-exit/wait4 layer rather than decoded from
// this argument); the CLONE_* bits all live above it so no masking is
// needed before testing them.
func cloneFlagsFromRaw(raw uint64) process.CloneFlags {
	var f process.CloneFlags
	set := func(bit uint64, out process.CloneFlags) {
		if raw&bit != 0 {
			f |= out
		}
	}
	set(unix.CLONE_VM, process.CloneVM)
	set(unix.CLONE_FS, process.CloneFS)
	set(unix.CLONE_FILES, process.CloneFiles)
	set(unix.CLONE_SIGHAND, process.CloneSighand)
	set(unix.CLONE_THREAD, process.CloneThread)
	set(unix.CLONE_PARENT_SETTID, process.CloneParentSettid)
	set(unix.CLONE_CHILD_CLEARTID, process.CloneChildCleartid)
	set(unix.CLONE_CHILD_SETTID, process.CloneChildSettid)
	return f
}

// doClone is clone(2)/fork(2)'s shared body: build the child thread via
// process.Clone, seed its CPU context from the caller's (so a future
// scheduling loop can run it with RAX already zeroed, matching clone(2)'s
// "0 in the child, child's tid in the parent" return convention), point
// its stack at child_stack when the caller supplied one, and service
// CLONE_PARENT_SETTID/CLONE_CHILD_SETTID by writing the new tid out to
// guest memory.
func doClone(env *Env, ctx *context.CPUContext, opts process.CloneOptions, childStack uint64) (*process.Thread, error) {
	child, err := process.Clone(env.Table, env.Thread, opts)
	if err != nil {
		return nil, err
	}
	*child.Context() = *ctx
	child.Context().GP.RAX = 0
	if childStack != 0 {
		child.Context().GP.RSP = childStack
	}

	if opts.Flags&(process.CloneParentSettid|process.CloneChildSettid) == 0 {
		return child, nil
	}
	space, err := addrSpace(env)
	if err != nil {
		return child, nil
	}
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], child.TID())
	if opts.Flags&process.CloneParentSettid != 0 && opts.ParentTIDAddr != 0 {
		_ = space.CopyOut(opts.ParentTIDAddr, buf[:])
	}
	if opts.Flags&process.CloneChildSettid != 0 && opts.ChildTIDAddr != 0 {
		_ = space.CopyOut(opts.ChildTIDAddr, buf[:])
	}
	return child, nil
}

// sysClone implements clone(2)'s x86-64 ABI: flags, child_stack, ptid,
// ctid, tls (RDI/RSI/RDX/R10/R8). Returns the new thread's tid for a
// CLONE_THREAD clone, or the new process's pid when clone creates a new
// process entirely, matching clone(2)'s return value in each case.
func sysClone(env *Env, ctx *context.CPUContext, args Args) (uint64, error) {
	opts := process.CloneOptions{
		Flags:         cloneFlagsFromRaw(args.A0),
		ParentTIDAddr: args.A2,
		ChildTIDAddr:  args.A3,
	}
	child, err := doClone(env, ctx, opts, args.A1)
	if err != nil {
		return 0, err
	}
	if opts.Flags&process.CloneThread != 0 {
		return uint64(child.TID()), nil
	}
	return uint64(child.Process().PID()), nil
}

// sysFork implements fork(2): clone with no flags at all, a new process
// sharing nothing but a forked fd table and copied signal dispositions,
// returning the new process's pid.
func sysFork(env *Env, ctx *context.CPUContext, _ Args) (uint64, error) {
	child, err := doClone(env, ctx, process.CloneOptions{}, 0)
	if err != nil {
		return 0, err
	}
	return uint64(child.Process().PID()), nil
}

// sysExecve implements execve(2)'s process-level side effects: resolving
// the target path and checking it is a regular, executable file, then
// resetting the calling process's VM and exec-sensitive state via
// process.Exec. Parsing argv/envp and loading the target's ELF segments
// onto the reset VM needs a loader this package doesn't have yet (see
// DESIGN.md's internal/syscall Open Questions), so this only validates the
// target and applies exec's bookkeeping to the existing address space.
func sysExecve(env *Env, _ *context.CPUContext, args Args) (uint64, error) {
	space, err := addrSpace(env)
	if err != nil {
		return 0, err
	}
	p, err := space.CopyInString(args.A0)
	if err != nil {
		return 0, err
	}
	cwd, uid, gid, err := cwdDentry(env)
	if err != nil {
		return 0, err
	}
	dentry, err := env.VFS.Resolve(p, cwd, uid, gid)
	if err != nil {
		return 0, err
	}
	attr, err := dentry.Inode().GetAttr()
	if err != nil {
		return 0, err
	}
	if attr.Type != vfs.TypeRegular {
		return 0, errutil.New(errutil.EACCES, "syscall: execve: %s is not a regular file", p)
	}
	if err := vfs.Check(attr, uid, gid, vfs.XOK); err != nil {
		return 0, err
	}
	return 0, process.Exec(env.Thread, env.Thread.Process().VM())
}

// waitFilter maps wait4(2)'s overloaded pid argument onto process.Filter:
// positive is one pid, -1 is any child, 0 is the caller's own pgid, and any
// other negative value is that process group, per wait4(2).
func waitFilter(env *Env, pid int64) process.Filter {
	switch {
	case pid > 0:
		return process.Filter{Kind: process.FilterByPID, PID: uint32(pid)}
	case pid == -1:
		return process.Filter{Kind: process.FilterAnyChild}
	case pid == 0:
		return process.Filter{Kind: process.FilterByPGID, PGID: env.Thread.Process().PGID()}
	default:
		return process.Filter{Kind: process.FilterByPGID, PGID: uint32(-pid)}
	}
}

// sysWait4 drives process.Wait4's Future to completion with rt.BlockOn,
// the same primitive background (non-vCPU) callers use to consume an
// async result synchronously, and packs the reaped child's status into
// wait4(2)'s wire format at the caller's status pointer, if non-NULL.
func sysWait4(env *Env, _ *context.CPUContext, args Args) (uint64, error) {
	filter := waitFilter(env, int64(int32(args.A0)))
	nonBlocking := args.A2&unix.WNOHANG != 0
	res, err := rt.BlockOn(process.Wait4(env.Table, env.Thread.Process(), filter, nonBlocking))
	if err != nil {
		return 0, err
	}
	if args.A1 != 0 {
		space, serr := addrSpace(env)
		if serr != nil {
			return 0, serr
		}
		var buf [4]byte
		binary.LittleEndian.PutUint32(buf[:], res.Status.AsU32())
		if cerr := space.CopyOut(args.A1, buf[:]); cerr != nil {
			return 0, cerr
		}
	}
	return uint64(res.PID), nil
}

func sysRTSigreturn(env *Env, ctx *context.CPUContext, _ Args) (uint64, error) {
	if err := env.Thread.SigReturn(); err != nil {
		return 0, err
	}
	*ctx = *env.Thread.Context()
	return ctx.GP.RAX, nil
}

// registerProcess installs every scalar-argument process-model syscall
// into t.
func registerProcess(t *Table) {
	t.Register(Getpid, sysGetpid)
	t.Register(Gettid, sysGettid)
	t.Register(Getppid, sysGetppid)
	t.Register(Getpgid, sysGetpgid)
	t.Register(SchedYield, sysSchedYield)
	t.Register(Kill, sysKill)
	t.Register(Tgkill, sysTgkill)
	t.Register(Exit, sysExit)
	t.Register(ExitGroup, sysExitGroup)
	t.Register(RTSigreturn, sysRTSigreturn)
	t.Register(Clone, sysClone)
	t.Register(Fork, sysFork)
	t.Register(Execve, sysExecve)
	t.Register(Wait4, sysWait4)
}
