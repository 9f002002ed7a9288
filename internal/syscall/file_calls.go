package syscall

import (
	"encoding/binary"

	"golang.org/x/sys/unix"

	"github.com/golibos/libos/internal/errutil"
	"github.com/golibos/libos/internal/fdtable"
	"github.com/golibos/libos/internal/process/context"
	"github.com/golibos/libos/internal/vfs"
)

// read(2)/write(2)/pread64(2)/pwrite64(2)/fstat(2) copy a guest buffer or
// output struct through internal/vm.AddrSpace's CopyIn/CopyOut, the
// hostbridge-backed guest-memory accessor. open(2) and the rest of the
// path-argument syscalls are path_calls.go's, built on the same primitive
// plus env.VFS.

// bufSyscallChunk bounds a single read/write's guest-memory round trip, so
// a guest-supplied count doesn't force one unbounded allocation.
const bufSyscallChunk = 1 << 20

// files returns env's process's concrete fd table, type-asserted down
// from the narrow process.FileTable interface the same way addrSpace does
// for VMSpace.
func files(env *Env) (*fdtable.Table, error) {
	t, ok := env.Thread.Process().Files().(*fdtable.Table)
	if !ok {
		return nil, errutil.New(errutil.ENOSYS, "syscall: process file table is not an fdtable.Table")
	}
	return t, nil
}

func sysClose(env *Env, _ *context.CPUContext, args Args) (uint64, error) {
	t, err := files(env)
	if err != nil {
		return 0, err
	}
	return 0, t.Close(int32(args.A0))
}

func sysLseek(env *Env, _ *context.CPUContext, args Args) (uint64, error) {
	t, err := files(env)
	if err != nil {
		return 0, err
	}
	f, err := t.Get(int32(args.A0))
	if err != nil {
		return 0, err
	}
	off, err := f.Seek(int64(args.A1), int(args.A2))
	return uint64(off), err
}

func sysDup(env *Env, _ *context.CPUContext, args Args) (uint64, error) {
	t, err := files(env)
	if err != nil {
		return 0, err
	}
	fd, err := t.Dup(int32(args.A0))
	return uint64(fd), err
}

func sysDup2(env *Env, _ *context.CPUContext, args Args) (uint64, error) {
	t, err := files(env)
	if err != nil {
		return 0, err
	}
	fd, err := t.Dup2(int32(args.A0), int32(args.A1))
	return uint64(fd), err
}

func sysDup3(env *Env, _ *context.CPUContext, args Args) (uint64, error) {
	t, err := files(env)
	if err != nil {
		return 0, err
	}
	fd, err := t.Dup3(int32(args.A0), int32(args.A1), args.A2&unix.O_CLOEXEC != 0)
	return uint64(fd), err
}

func sysFtruncate(env *Env, _ *context.CPUContext, args Args) (uint64, error) {
	t, err := files(env)
	if err != nil {
		return 0, err
	}
	f, err := t.Get(int32(args.A0))
	if err != nil {
		return 0, err
	}
	return 0, f.Inode.Truncate(int64(args.A1))
}

func sysFsync(env *Env, _ *context.CPUContext, args Args) (uint64, error) {
	t, err := files(env)
	if err != nil {
		return 0, err
	}
	f, err := t.Get(int32(args.A0))
	if err != nil {
		return 0, err
	}
	return 0, f.Inode.Sync()
}

// clampCount bounds a guest-requested byte count to bufSyscallChunk, the
// same short-read/short-write behavior a real read(2)/write(2) exhibits
// for oversized requests rather than an outright rejection.
func clampCount(count uint64) int {
	if count > bufSyscallChunk {
		return bufSyscallChunk
	}
	return int(count)
}

func sysRead(env *Env, _ *context.CPUContext, args Args) (uint64, error) {
	t, err := files(env)
	if err != nil {
		return 0, err
	}
	f, err := t.Get(int32(args.A0))
	if err != nil {
		return 0, err
	}
	space, err := addrSpace(env)
	if err != nil {
		return 0, err
	}
	buf := make([]byte, clampCount(args.A2))
	n, err := f.Read(buf)
	if n > 0 {
		if cerr := space.CopyOut(args.A1, buf[:n]); cerr != nil {
			return 0, cerr
		}
	}
	return uint64(n), err
}

func sysWrite(env *Env, _ *context.CPUContext, args Args) (uint64, error) {
	t, err := files(env)
	if err != nil {
		return 0, err
	}
	f, err := t.Get(int32(args.A0))
	if err != nil {
		return 0, err
	}
	space, err := addrSpace(env)
	if err != nil {
		return 0, err
	}
	buf := make([]byte, clampCount(args.A2))
	if err := space.CopyIn(args.A1, buf); err != nil {
		return 0, err
	}
	n, err := f.Write(buf)
	return uint64(n), err
}

func sysPread64(env *Env, _ *context.CPUContext, args Args) (uint64, error) {
	t, err := files(env)
	if err != nil {
		return 0, err
	}
	f, err := t.Get(int32(args.A0))
	if err != nil {
		return 0, err
	}
	space, err := addrSpace(env)
	if err != nil {
		return 0, err
	}
	buf := make([]byte, clampCount(args.A2))
	n, err := f.PRead(buf, int64(args.A3))
	if n > 0 {
		if cerr := space.CopyOut(args.A1, buf[:n]); cerr != nil {
			return 0, cerr
		}
	}
	return uint64(n), err
}

func sysPwrite64(env *Env, _ *context.CPUContext, args Args) (uint64, error) {
	t, err := files(env)
	if err != nil {
		return 0, err
	}
	f, err := t.Get(int32(args.A0))
	if err != nil {
		return 0, err
	}
	space, err := addrSpace(env)
	if err != nil {
		return 0, err
	}
	buf := make([]byte, clampCount(args.A2))
	if err := space.CopyIn(args.A1, buf); err != nil {
		return 0, err
	}
	n, err := f.PWrite(buf, int64(args.A3))
	return uint64(n), err
}

// statSize is the x86-64 Linux struct stat's packed size (matching
// unix.Stat_t's field layout: dev, ino, nlink, mode, uid, gid, pad, rdev,
// size, blksize, blocks, atime, atime_nsec, mtime, mtime_nsec, ctime,
// ctime_nsec, then 3 reserved int64 words).
const statSize = 144

func typeToIFMT(t vfs.FileType) uint32 {
	switch t {
	case vfs.TypeDirectory:
		return unix.S_IFDIR
	case vfs.TypeSymlink:
		return unix.S_IFLNK
	case vfs.TypeSocket:
		return unix.S_IFSOCK
	case vfs.TypeFIFO:
		return unix.S_IFIFO
	case vfs.TypeCharDevice:
		return unix.S_IFCHR
	case vfs.TypeBlockDevice:
		return unix.S_IFBLK
	default:
		return unix.S_IFREG
	}
}

// packStat renders attr as a guest-visible struct stat, little-endian, the
// same fixed-offset binary.LittleEndian packing internal/vfs/sfs uses for
// its own on-disk inode record.
func packStat(attr vfs.Attr) []byte {
	b := make([]byte, statSize)
	binary.LittleEndian.PutUint64(b[0:8], attr.DeviceID)
	binary.LittleEndian.PutUint64(b[8:16], attr.InodeID)
	binary.LittleEndian.PutUint64(b[16:24], uint64(attr.Links))
	binary.LittleEndian.PutUint32(b[24:28], attr.Mode|typeToIFMT(attr.Type))
	binary.LittleEndian.PutUint32(b[28:32], attr.UID)
	binary.LittleEndian.PutUint32(b[32:36], attr.GID)
	binary.LittleEndian.PutUint64(b[48:56], uint64(attr.Size))
	binary.LittleEndian.PutUint64(b[56:64], 4096) // st_blksize
	binary.LittleEndian.PutUint64(b[64:72], uint64((attr.Size+511)/512))
	binary.LittleEndian.PutUint64(b[72:80], uint64(attr.AccessAt.Unix()))
	binary.LittleEndian.PutUint64(b[80:88], uint64(attr.AccessAt.Nanosecond()))
	binary.LittleEndian.PutUint64(b[88:96], uint64(attr.ModifyAt.Unix()))
	binary.LittleEndian.PutUint64(b[96:104], uint64(attr.ModifyAt.Nanosecond()))
	binary.LittleEndian.PutUint64(b[104:112], uint64(attr.ChangeAt.Unix()))
	binary.LittleEndian.PutUint64(b[112:120], uint64(attr.ChangeAt.Nanosecond()))
	return b
}

func sysFstat(env *Env, _ *context.CPUContext, args Args) (uint64, error) {
	t, err := files(env)
	if err != nil {
		return 0, err
	}
	f, err := t.Get(int32(args.A0))
	if err != nil {
		return 0, err
	}
	space, err := addrSpace(env)
	if err != nil {
		return 0, err
	}
	attr, err := f.Inode.GetAttr()
	if err != nil {
		return 0, err
	}
	return 0, space.CopyOut(args.A1, packStat(attr))
}

func registerFile(t *Table) {
	t.Register(Close, sysClose)
	t.Register(Lseek, sysLseek)
	t.Register(Dup, sysDup)
	t.Register(Dup2, sysDup2)
	t.Register(Dup3, sysDup3)
	t.Register(Ftruncate, sysFtruncate)
	t.Register(Fsync, sysFsync)
	t.Register(Fdatasync, sysFsync)
	t.Register(Read, sysRead)
	t.Register(Write, sysWrite)
	t.Register(Pread64, sysPread64)
	t.Register(Pwrite64, sysPwrite64)
	t.Register(Fstat, sysFstat)
}
