package syscall

import (
	"golang.org/x/sys/unix"

	"github.com/golibos/libos/internal/errutil"
	"github.com/golibos/libos/internal/process/context"
	"github.com/golibos/libos/internal/vfs"
	"github.com/golibos/libos/internal/vm"
)

// addrSpace resolves env's calling thread down to the concrete address
// space internal/vm provides, past process.VMSpace's narrow interface.
func addrSpace(env *Env) (*vm.AddrSpace, error) {
	space, ok := env.Thread.Process().VM().(*vm.AddrSpace)
	if !ok || space == nil {
		return nil, errutil.New(errutil.EFAULT, "syscall: process has no address space")
	}
	return space, nil
}

func toPerms(prot uint64) (vm.Perms, error) {
	var p vm.Perms
	if prot&unix.PROT_READ != 0 {
		p |= vm.PermRead
	}
	if prot&unix.PROT_WRITE != 0 {
		p |= vm.PermWrite
	}
	if prot&unix.PROT_EXEC != 0 {
		p |= vm.PermExec
	}
	return vm.FromU32(uint32(p))
}

func toMapFlags(flags uint64) vm.MapFlags {
	var f vm.MapFlags
	if flags&unix.MAP_SHARED != 0 {
		f |= vm.MapShared
	}
	if flags&unix.MAP_PRIVATE != 0 {
		f |= vm.MapPrivate
	}
	if flags&unix.MAP_FIXED != 0 {
		f |= vm.MapFixed
	}
	if flags&unix.MAP_ANONYMOUS != 0 {
		f |= vm.MapAnonymous
	}
	if flags&unix.MAP_GROWSDOWN != 0 {
		f |= vm.MapGrowsDown
	}
	return f
}

// sysMmap implements mmap(2). Anonymous mappings carry no inode; a
// file-backed request resolves args.A4's fd through the process's fd
// table down to the vfs.Inode internal/vm's Mmap wants.
func sysMmap(env *Env, _ *context.CPUContext, args Args) (uint64, error) {
	flags := toMapFlags(args.A3)
	perms, err := toPerms(args.A2)
	if err != nil {
		return 0, err
	}
	space, err := addrSpace(env)
	if err != nil {
		return 0, err
	}

	var inode vfs.Inode
	if !flags.has(vm.MapAnonymous) {
		t, err := files(env)
		if err != nil {
			return 0, err
		}
		f, err := t.Get(int32(args.A4))
		if err != nil {
			return 0, err
		}
		inode = f.Inode
	}

	addr, err := space.Mmap(args.A0, args.A1, perms, flags, inode, int64(args.A5))
	if err != nil {
		return 0, err
	}
	return addr, nil
}

func sysMunmap(env *Env, _ *context.CPUContext, args Args) (uint64, error) {
	space, err := addrSpace(env)
	if err != nil {
		return 0, err
	}
	return 0, space.Munmap(args.A0, args.A1)
}

func sysMprotect(env *Env, _ *context.CPUContext, args Args) (uint64, error) {
	perms, err := toPerms(args.A2)
	if err != nil {
		return 0, err
	}
	space, err := addrSpace(env)
	if err != nil {
		return 0, err
	}
	return 0, space.Mprotect(args.A0, args.A1, perms)
}

func sysMremap(env *Env, _ *context.CPUContext, args Args) (uint64, error) {
	var flags vm.RemapFlags
	if args.A3&unix.MREMAP_MAYMOVE != 0 {
		flags |= vm.RemapMayMove
	}
	if args.A3&unix.MREMAP_FIXED != 0 {
		flags |= vm.RemapFixed
	}
	if args.A3&unix.MREMAP_DONTUNMAP != 0 {
		flags |= vm.RemapDontUnmap
	}
	space, err := addrSpace(env)
	if err != nil {
		return 0, err
	}
	return space.Mremap(args.A0, args.A1, args.A2, flags)
}

func sysBrk(env *Env, _ *context.CPUContext, args Args) (uint64, error) {
	space, err := addrSpace(env)
	if err != nil {
		return 0, err
	}
	return space.Brk(args.A0)
}

func sysMsync(env *Env, _ *context.CPUContext, args Args) (uint64, error) {
	var flags vm.SyncFlags
	if args.A2&unix.MS_SYNC != 0 {
		flags |= vm.SyncSync
	}
	if args.A2&unix.MS_ASYNC != 0 {
		flags |= vm.SyncAsync
	}
	if args.A2&unix.MS_INVALIDATE != 0 {
		flags |= vm.SyncInvalidate
	}
	space, err := addrSpace(env)
	if err != nil {
		return 0, err
	}
	return 0, space.Msync(args.A0, args.A1, flags)
}

func sysShmget(env *Env, _ *context.CPUContext, args Args) (uint64, error) {
	var flags vm.ShmCreateFlags
	if args.A2&unix.IPC_CREAT != 0 {
		flags |= vm.ShmCreate
	}
	if args.A2&unix.IPC_EXCL != 0 {
		flags |= vm.ShmExclusive
	}
	id, err := env.Shm.Get(int32(args.A0), args.A1, flags)
	return uint64(id), err
}

func sysShmat(env *Env, _ *context.CPUContext, args Args) (uint64, error) {
	perms, err := toPerms(args.A2)
	if err != nil {
		return 0, err
	}
	space, err := addrSpace(env)
	if err != nil {
		return 0, err
	}
	return env.Shm.At(space, uint32(args.A0), args.A1, perms)
}

func sysShmdt(env *Env, _ *context.CPUContext, args Args) (uint64, error) {
	space, err := addrSpace(env)
	if err != nil {
		return 0, err
	}
	return 0, env.Shm.Dt(space, args.A0)
}

// sysShmctl only implements IPC_RMID, per spec.md §4.I's "control"
// verb; IPC_STAT/IPC_SET need a struct shmid_ds layout this package hasn't
// defined yet (CopyOut itself would serve it fine, unlike the earlier gap).
func sysShmctl(env *Env, _ *context.CPUContext, args Args) (uint64, error) {
	if args.A1 != unix.IPC_RMID {
		return 0, errutil.New(errutil.ENOSYS, "syscall: shmctl only implements IPC_RMID")
	}
	return 0, env.Shm.RmID(uint32(args.A0))
}

// registerVM installs every internal/vm-backed syscall into t.
func registerVM(t *Table) {
	t.Register(Mmap, sysMmap)
	t.Register(Munmap, sysMunmap)
	t.Register(Mprotect, sysMprotect)
	t.Register(Mremap, sysMremap)
	t.Register(Brk, sysBrk)
	t.Register(Msync, sysMsync)
	t.Register(Shmget, sysShmget)
	t.Register(Shmat, sysShmat)
	t.Register(Shmdt, sysShmdt)
	t.Register(Shmctl, sysShmctl)
}
