// Package syscall implements the Linux-compatible numbered syscall table
// of spec.md §6: a fixed-arity dispatch table resolved by number, with
// unknown numbers reporting "no such system call" (ENOSYS). Grounded on
// spec.md §6's named syscall list and golang.org/x/sys/unix's real x86-64
// syscall numbering, so the numbers this table answers to match actual
// Linux ABI values rather than an invented scheme.
package syscall

import "golang.org/x/sys/unix"

// Num is a syscall number, aliasing golang.org/x/sys/unix's SYS_* constants
// the same way internal/errutil.Kind aliases unix.Errno.
type Num uint64

// The subset of Linux's x86-64 syscall surface spec.md §6 names as
// "relevant to the core". Numbers are the real ABI values; a guest binary
// compiled for Linux issues exactly these numbers unmodified.
const (
	Read        = Num(unix.SYS_READ)
	Write       = Num(unix.SYS_WRITE)
	Open        = Num(unix.SYS_OPEN)
	Close       = Num(unix.SYS_CLOSE)
	Stat        = Num(unix.SYS_STAT)
	Fstat       = Num(unix.SYS_FSTAT)
	Lstat       = Num(unix.SYS_LSTAT)
	Poll        = Num(unix.SYS_POLL)
	Lseek       = Num(unix.SYS_LSEEK)
	Mmap        = Num(unix.SYS_MMAP)
	Mprotect    = Num(unix.SYS_MPROTECT)
	Munmap      = Num(unix.SYS_MUNMAP)
	Brk         = Num(unix.SYS_BRK)
	RTSigaction = Num(unix.SYS_RT_SIGACTION)
	RTSigprocmask = Num(unix.SYS_RT_SIGPROCMASK)
	RTSigreturn = Num(unix.SYS_RT_SIGRETURN)
	Ioctl       = Num(unix.SYS_IOCTL)
	Pread64     = Num(unix.SYS_PREAD64)
	Pwrite64    = Num(unix.SYS_PWRITE64)
	Readv       = Num(unix.SYS_READV)
	Writev      = Num(unix.SYS_WRITEV)
	Access      = Num(unix.SYS_ACCESS)
	Select      = Num(unix.SYS_SELECT)
	SchedYield  = Num(unix.SYS_SCHED_YIELD)
	Mremap      = Num(unix.SYS_MREMAP)
	Msync       = Num(unix.SYS_MSYNC)
	Shmget      = Num(unix.SYS_SHMGET)
	Shmat       = Num(unix.SYS_SHMAT)
	Shmctl      = Num(unix.SYS_SHMCTL)
	Dup         = Num(unix.SYS_DUP)
	Dup2        = Num(unix.SYS_DUP2)
	Nanosleep   = Num(unix.SYS_NANOSLEEP)
	Getpid      = Num(unix.SYS_GETPID)
	Sendfile    = Num(unix.SYS_SENDFILE)
	Socket      = Num(unix.SYS_SOCKET)
	Connect     = Num(unix.SYS_CONNECT)
	Accept      = Num(unix.SYS_ACCEPT)
	Sendto      = Num(unix.SYS_SENDTO)
	Recvfrom    = Num(unix.SYS_RECVFROM)
	Sendmsg     = Num(unix.SYS_SENDMSG)
	Recvmsg     = Num(unix.SYS_RECVMSG)
	Shutdown    = Num(unix.SYS_SHUTDOWN)
	Bind        = Num(unix.SYS_BIND)
	Listen      = Num(unix.SYS_LISTEN)
	Socketpair  = Num(unix.SYS_SOCKETPAIR)
	Setsockopt  = Num(unix.SYS_SETSOCKOPT)
	Getsockopt  = Num(unix.SYS_GETSOCKOPT)
	Clone       = Num(unix.SYS_CLONE)
	Fork        = Num(unix.SYS_FORK)
	Execve      = Num(unix.SYS_EXECVE)
	Exit        = Num(unix.SYS_EXIT)
	Wait4       = Num(unix.SYS_WAIT4)
	Kill        = Num(unix.SYS_KILL)
	Shmdt       = Num(unix.SYS_SHMDT)
	Fcntl       = Num(unix.SYS_FCNTL)
	Flock       = Num(unix.SYS_FLOCK)
	Fsync       = Num(unix.SYS_FSYNC)
	Fdatasync   = Num(unix.SYS_FDATASYNC)
	Ftruncate   = Num(unix.SYS_FTRUNCATE)
	Rename      = Num(unix.SYS_RENAME)
	Mkdir       = Num(unix.SYS_MKDIR)
	Rmdir       = Num(unix.SYS_RMDIR)
	Unlink      = Num(unix.SYS_UNLINK)
	Symlink     = Num(unix.SYS_SYMLINK)
	Readlink    = Num(unix.SYS_READLINK)
	Chmod       = Num(unix.SYS_CHMOD)
	Chown       = Num(unix.SYS_CHOWN)
	Gettimeofday = Num(unix.SYS_GETTIMEOFDAY)
	Getppid     = Num(unix.SYS_GETPPID)
	Getpgid     = Num(unix.SYS_GETPGID)
	RTSigpending = Num(unix.SYS_RT_SIGPENDING)
	RTSigtimedwait = Num(unix.SYS_RT_SIGTIMEDWAIT)
	RTSigsuspend = Num(unix.SYS_RT_SIGSUSPEND)
	Sigaltstack = Num(unix.SYS_SIGALTSTACK)
	Getpriority = Num(unix.SYS_GETPRIORITY)
	Setpriority = Num(unix.SYS_SETPRIORITY)
	Prctl       = Num(unix.SYS_PRCTL)
	ArchPrctl   = Num(unix.SYS_ARCH_PRCTL)
	Gettid      = Num(unix.SYS_GETTID)
	SchedSetaffinity = Num(unix.SYS_SCHED_SETAFFINITY)
	SchedGetaffinity = Num(unix.SYS_SCHED_GETAFFINITY)
	SetTidAddress = Num(unix.SYS_SET_TID_ADDRESS)
	ClockGettime = Num(unix.SYS_CLOCK_GETTIME)
	ClockGetres = Num(unix.SYS_CLOCK_GETRES)
	ExitGroup   = Num(unix.SYS_EXIT_GROUP)
	EpollWait   = Num(unix.SYS_EPOLL_WAIT)
	EpollCtl    = Num(unix.SYS_EPOLL_CTL)
	Tgkill      = Num(unix.SYS_TGKILL)
	Ppoll       = Num(unix.SYS_PPOLL)
	TimerfdCreate = Num(unix.SYS_TIMERFD_CREATE)
	TimerfdSettime = Num(unix.SYS_TIMERFD_SETTIME)
	TimerfdGettime = Num(unix.SYS_TIMERFD_GETTIME)
	Accept4     = Num(unix.SYS_ACCEPT4)
	Eventfd2    = Num(unix.SYS_EVENTFD2)
	EpollCreate1 = Num(unix.SYS_EPOLL_CREATE1)
	Dup3        = Num(unix.SYS_DUP3)
	Sendmmsg    = Num(unix.SYS_SENDMMSG)
	Getcpu      = Num(unix.SYS_GETCPU)
	Getrandom   = Num(unix.SYS_GETRANDOM)
)
