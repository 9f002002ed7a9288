package syscall

import (
	"testing"

	"github.com/stretchr/testify/suite"
	"golang.org/x/sys/unix"

	"github.com/golibos/libos/internal/errutil"
	"github.com/golibos/libos/internal/hostbridge"
	"github.com/golibos/libos/internal/process"
	"github.com/golibos/libos/internal/process/context"
	"github.com/golibos/libos/internal/vm"
)

type fakeFiles struct{}

func (f *fakeFiles) Fork() process.FileTable { return &fakeFiles{} }
func (f *fakeFiles) CloseOnExec()            {}

type SyscallTest struct {
	suite.Suite
	table   *Table
	procs   *process.Table
	bridge  *hostbridge.Simulated
	shm     *vm.ShmManager
	proc    *process.Process
	thread  *process.Thread
	addrspc *vm.AddrSpace
	env     *Env
}

func TestSyscall(t *testing.T) {
	suite.Run(t, new(SyscallTest))
}

func (s *SyscallTest) SetupTest() {
	s.table = NewCoreTable()
	s.procs = process.NewTable()
	s.bridge = hostbridge.NewSimulated()
	s.shm = vm.NewShmManager(s.bridge)

	space, err := vm.New(vm.Config{Bridge: s.bridge, InitSize: 1 << 20, MaxSize: 1 << 20})
	s.Require().NoError(err)
	s.addrspc = space

	s.proc = s.procs.NewProcess(nil, space, &fakeFiles{}, nil)
	s.thread = s.procs.NewThread(s.proc)
	s.env = &Env{Thread: s.thread, Table: s.procs, Shm: s.shm}
}

func (s *SyscallTest) enter(num Num, args Args) (*context.CPUContext, error) {
	resolve := s.table.Resolver(s.env)
	var live context.CPUContext
	live.GP.RDI, live.GP.RSI, live.GP.RDX = args.A0, args.A1, args.A2
	live.GP.R10, live.GP.R8, live.GP.R9 = args.A3, args.A4, args.A5
	d := context.NewDispatcher(resolve, nil)
	return d.Enter(context.EntrySyscall, uint64(num), live)
}

func (s *SyscallTest) TestUnknownNumberReturnsENOSYS() {
	out, err := s.enter(Num(0xffffff), Args{})
	s.Require().NoError(err)
	s.Equal(errnoReturn(errutil.ENOSYS), out.GP.RAX)
}

func (s *SyscallTest) TestMmapAnonymousThenMunmap() {
	out, err := s.enter(Mmap, Args{
		A0: 0,
		A1: 4096,
		A2: unix.PROT_READ | unix.PROT_WRITE,
		A3: unix.MAP_PRIVATE | unix.MAP_ANONYMOUS,
	})
	s.Require().NoError(err)
	addr := out.GP.RAX
	s.NotZero(addr)
	s.Len(s.addrspc.Areas(), 1)

	out, err = s.enter(Munmap, Args{A0: addr, A1: 4096})
	s.Require().NoError(err)
	s.Equal(uint64(0), out.GP.RAX)
	s.Empty(s.addrspc.Areas())
}

// TestMmapFileBackedWithoutFdTableReportsENOSYS exercises a process whose
// file table isn't a real *fdtable.Table (this suite's fakeFiles double,
// standing in for a process built before one was wired in) asking for a
// file-backed mapping; see file_calls_test.go for the fdtable-backed path.
func (s *SyscallTest) TestMmapFileBackedWithoutFdTableReportsENOSYS() {
	out, err := s.enter(Mmap, Args{A0: 0, A1: 4096, A2: unix.PROT_READ, A3: unix.MAP_PRIVATE})
	s.Require().NoError(err)
	s.Equal(errnoReturn(errutil.ENOSYS), out.GP.RAX)
}

func (s *SyscallTest) TestBrkGrows() {
	out, err := s.enter(Brk, Args{A0: 0})
	s.Require().NoError(err)
	initial := out.GP.RAX

	out, err = s.enter(Brk, Args{A0: initial + 8192})
	s.Require().NoError(err)
	s.Equal(initial+8192, out.GP.RAX)
}

func (s *SyscallTest) TestShmgetAttachDetachRemove() {
	out, err := s.enter(Shmget, Args{A0: 42, A1: 4096, A2: unix.IPC_CREAT})
	s.Require().NoError(err)
	id := out.GP.RAX

	out, err = s.enter(Shmat, Args{A0: id, A1: 0, A2: unix.PROT_READ | unix.PROT_WRITE})
	s.Require().NoError(err)
	addr := out.GP.RAX
	s.NotZero(addr)

	out, err = s.enter(Shmctl, Args{A0: id, A1: unix.IPC_RMID})
	s.Require().NoError(err)
	s.Equal(uint64(0), out.GP.RAX)

	out, err = s.enter(Shmdt, Args{A0: addr})
	s.Require().NoError(err)
	s.Equal(uint64(0), out.GP.RAX)
}

func (s *SyscallTest) TestGetpidGettidGetppid() {
	out, err := s.enter(Getpid, Args{})
	s.Require().NoError(err)
	s.Equal(uint64(s.proc.PID()), out.GP.RAX)

	out, err = s.enter(Gettid, Args{})
	s.Require().NoError(err)
	s.Equal(uint64(s.thread.TID()), out.GP.RAX)

	out, err = s.enter(Getppid, Args{})
	s.Require().NoError(err)
	s.Equal(uint64(0), out.GP.RAX)
}

func (s *SyscallTest) TestKillInvalidSignalReturnsEINVAL() {
	out, err := s.enter(Kill, Args{A0: uint64(s.proc.PID()), A1: 0})
	s.Require().NoError(err)
	s.Equal(errnoReturn(errutil.EINVAL), out.GP.RAX)
}

func (s *SyscallTest) TestKillValidSignalEnqueues() {
	out, err := s.enter(Kill, Args{A0: uint64(s.proc.PID()), A1: 10})
	s.Require().NoError(err)
	s.Equal(uint64(0), out.GP.RAX)
	s.True(s.proc.SigQueue().HasDeliverable(0))
}

func (s *SyscallTest) TestExitMarksThreadExited() {
	out, err := s.enter(Exit, Args{A0: 7})
	s.Require().NoError(err)
	s.Equal(uint64(0), out.GP.RAX)
	s.Equal(process.ThreadExited, s.thread.Status())
}

func (s *SyscallTest) TestForkReturnsDistinctChildPID() {
	out, err := s.enter(Fork, Args{})
	s.Require().NoError(err)
	childPID := uint32(out.GP.RAX)
	s.NotZero(childPID)
	s.NotEqual(s.proc.PID(), childPID)

	_, err = s.procs.GetProcess(childPID)
	s.Require().NoError(err)
}

func (s *SyscallTest) TestWait4ReapsExitedChild() {
	childThread, err := process.Clone(s.procs, s.thread, process.CloneOptions{})
	s.Require().NoError(err)
	childThread.Exit(process.Exited(5))

	addr, err := s.addrspc.Mmap(0, 4096, vm.PermRead|vm.PermWrite, vm.MapPrivate|vm.MapAnonymous, nil, 0)
	s.Require().NoError(err)

	out, err := s.enter(Wait4, Args{A0: uint64(childThread.Process().PID()), A1: addr})
	s.Require().NoError(err)
	s.Equal(uint64(childThread.Process().PID()), out.GP.RAX)

	buf := make([]byte, 4)
	s.Require().NoError(s.addrspc.CopyIn(addr, buf))
	status := uint32(buf[0]) | uint32(buf[1])<<8 | uint32(buf[2])<<16 | uint32(buf[3])<<24
	s.Equal(uint32(5), (status>>8)&0xff)
}

func (s *SyscallTest) TestCloneThreadReturnsChildTID() {
	out, err := s.enter(Clone, Args{A0: uint64(unix.CLONE_THREAD | unix.CLONE_SIGHAND | unix.CLONE_VM)})
	s.Require().NoError(err)
	childTID := uint32(out.GP.RAX)
	s.NotZero(childTID)
	s.NotEqual(s.thread.TID(), childTID)

	childThread, err := s.procs.GetThread(childTID)
	s.Require().NoError(err)
	s.Equal(s.proc.PID(), childThread.Process().PID())
}
