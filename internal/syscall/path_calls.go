package syscall

import (
	"path"

	"golang.org/x/sys/unix"

	"github.com/golibos/libos/internal/errutil"
	"github.com/golibos/libos/internal/fdtable"
	"github.com/golibos/libos/internal/process/context"
	"github.com/golibos/libos/internal/vfs"
)

// open(2), unlink(2), mkdir(2), rmdir(2), stat(2)/lstat(2), and access(2)
// are the path-argument syscalls that needed both a guest-memory string
// reader (internal/vm.AddrSpace.CopyInString) and somewhere to resolve the
// path against (env.VFS, a process's cwd, and its credentials) — the two
// pieces file_calls.go's doc comment used to list as the remaining gap.
// Every process currently runs as uid/gid 0 (see process.Process.UID),
// so vfs.Check never actually rejects anything yet; the call is wired in
// anyway since a future credential syscall (setuid(2) and friends) isn't
// in spec.md §6's surface and would otherwise have nothing to plug into.

// cwdDentry resolves env's calling process's cwd string down to the
// *vfs.Dentry vfs.VFS.Resolve wants as a starting point, along with the
// credentials every resolution and permission check runs under.
func cwdDentry(env *Env) (*vfs.Dentry, uint32, uint32, error) {
	if env.VFS == nil {
		return nil, 0, 0, errutil.New(errutil.ENOSYS, "syscall: no vfs namespace configured")
	}
	proc := env.Thread.Process()
	uid, gid := proc.UID(), proc.GID()
	cwd, err := env.VFS.Resolve(proc.Cwd(), env.VFS.Root(), uid, gid)
	if err != nil {
		return nil, 0, 0, err
	}
	return cwd, uid, gid, nil
}

// flagsToAccess maps open(2)'s O_RDONLY/O_WRONLY/O_RDWR onto the
// read/write bits vfs.Check enforces; O_WRONLY and O_RDWR both demand
// write access, matching access(2)'s own treatment of an open mode.
func flagsToAccess(flags uint64) vfs.AccessMode {
	switch flags & unix.O_ACCMODE {
	case unix.O_WRONLY:
		return vfs.WOK
	case unix.O_RDWR:
		return vfs.ROK | vfs.WOK
	default:
		return vfs.ROK
	}
}

func sysOpen(env *Env, _ *context.CPUContext, args Args) (uint64, error) {
	space, err := addrSpace(env)
	if err != nil {
		return 0, err
	}
	p, err := space.CopyInString(args.A0)
	if err != nil {
		return 0, err
	}
	return doOpen(env, p, args.A1, uint32(args.A2))
}

func doOpen(env *Env, p string, flags uint64, mode uint32) (uint64, error) {
	cwd, uid, gid, err := cwdDentry(env)
	if err != nil {
		return 0, err
	}

	dentry, err := env.VFS.Resolve(p, cwd, uid, gid)
	switch {
	case err != nil && flags&unix.O_CREAT != 0 && errutil.KindOf(err) == errutil.ENOENT:
		dir, base := path.Split(p)
		if dir == "" {
			dir = "."
		}
		parent, perr := env.VFS.Resolve(dir, cwd, uid, gid)
		if perr != nil {
			return 0, perr
		}
		inode, cerr := parent.Inode().Create(base, mode)
		if cerr != nil {
			return 0, cerr
		}
		dentry = parent.Child(base, inode)
	case err != nil:
		return 0, err
	case flags&(unix.O_CREAT|unix.O_EXCL) == unix.O_CREAT|unix.O_EXCL:
		return 0, errutil.New(errutil.EEXIST, "syscall: open: %s already exists", p)
	}

	attr, err := dentry.Inode().GetAttr()
	if err != nil {
		return 0, err
	}
	if err := vfs.Check(attr, uid, gid, flagsToAccess(flags)); err != nil {
		return 0, err
	}
	if flags&unix.O_TRUNC != 0 && attr.Type == vfs.TypeRegular {
		if err := dentry.Inode().Truncate(0); err != nil {
			return 0, err
		}
	}

	t, err := files(env)
	if err != nil {
		return 0, err
	}
	f := fdtable.NewFile(dentry.Inode())
	var status uint32
	if flags&unix.O_APPEND != 0 {
		status |= fdtable.StatusAppend
	}
	if flags&unix.O_NONBLOCK != 0 {
		status |= fdtable.StatusNonblock
	}
	f.SetStatusFlags(status)
	fd := t.Install(f, flags&unix.O_CLOEXEC != 0)
	return uint64(fd), nil
}

func sysUnlink(env *Env, _ *context.CPUContext, args Args) (uint64, error) {
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
	dir, base := path.Split(p)
	if dir == "" {
		dir = "."
	}
	parent, err := env.VFS.Resolve(dir, cwd, uid, gid)
	if err != nil {
		return 0, err
	}
	return 0, parent.Inode().Unlink(base)
}

func sysMkdir(env *Env, _ *context.CPUContext, args Args) (uint64, error) {
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
	dir, base := path.Split(p)
	if dir == "" {
		dir = "."
	}
	parent, err := env.VFS.Resolve(dir, cwd, uid, gid)
	if err != nil {
		return 0, err
	}
	_, err = parent.Inode().Mkdir(base, uint32(args.A1))
	return 0, err
}

func sysRmdir(env *Env, _ *context.CPUContext, args Args) (uint64, error) {
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
	dir, base := path.Split(p)
	if dir == "" {
		dir = "."
	}
	parent, err := env.VFS.Resolve(dir, cwd, uid, gid)
	if err != nil {
		return 0, err
	}
	return 0, parent.Inode().Rmdir(base)
}

// statPath is stat(2)/lstat(2)'s shared body; lstat's Resolve call would
// need a "don't follow the final symlink" variant this package's
// vfs.VFS.Resolve doesn't expose yet (it always fully resolves, per its
// own doc comment), so lstat currently reports the target's attributes
// same as stat rather than the symlink's own.
func statPath(env *Env, pathAddr, statAddr uint64) (uint64, error) {
	space, err := addrSpace(env)
	if err != nil {
		return 0, err
	}
	p, err := space.CopyInString(pathAddr)
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
	return 0, space.CopyOut(statAddr, packStat(attr))
}

func sysStat(env *Env, _ *context.CPUContext, args Args) (uint64, error) {
	return statPath(env, args.A0, args.A1)
}

func sysLstat(env *Env, _ *context.CPUContext, args Args) (uint64, error) {
	return statPath(env, args.A0, args.A1)
}

func sysAccess(env *Env, _ *context.CPUContext, args Args) (uint64, error) {
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
	mode := args.A1
	var want vfs.AccessMode
	if mode&unix.R_OK != 0 {
		want |= vfs.ROK
	}
	if mode&unix.W_OK != 0 {
		want |= vfs.WOK
	}
	if mode&unix.X_OK != 0 {
		want |= vfs.XOK
	}
	if want == 0 {
		return 0, nil // F_OK: existence alone, already established by Resolve
	}
	return 0, vfs.Check(attr, uid, gid, want)
}

// registerPath installs every path-argument syscall into t.
func registerPath(t *Table) {
	t.Register(Open, sysOpen)
	t.Register(Unlink, sysUnlink)
	t.Register(Mkdir, sysMkdir)
	t.Register(Rmdir, sysRmdir)
	t.Register(Stat, sysStat)
	t.Register(Lstat, sysLstat)
	t.Register(Access, sysAccess)
}
