package syscall

import (
	"testing"

	"github.com/stretchr/testify/suite"
	"golang.org/x/sys/unix"

	"github.com/golibos/libos/internal/errutil"
	"github.com/golibos/libos/internal/fdtable"
	"github.com/golibos/libos/internal/hostbridge"
	"github.com/golibos/libos/internal/process"
	"github.com/golibos/libos/internal/process/context"
	"github.com/golibos/libos/internal/vfs"
	"github.com/golibos/libos/internal/vm"
)

// memInode is a minimal in-memory vfs.Inode exercising only the methods
// file_calls.go's handlers touch (ReadAt/WriteAt/GetAttr/Truncate/Sync).
type memInode struct {
	vfs.Inode
	data []byte
}

func (m *memInode) GetAttr() (vfs.Attr, error) { return vfs.Attr{Size: int64(len(m.data))}, nil }

func (m *memInode) ReadAt(buf []byte, offset int64) (int, error) {
	if offset >= int64(len(m.data)) {
		return 0, nil
	}
	return copy(buf, m.data[offset:]), nil
}

func (m *memInode) WriteAt(buf []byte, offset int64) (int, error) {
	end := offset + int64(len(buf))
	if end > int64(len(m.data)) {
		grown := make([]byte, end)
		copy(grown, m.data)
		m.data = grown
	}
	return copy(m.data[offset:end], buf), nil
}

func (m *memInode) Truncate(size int64) error {
	if size <= int64(len(m.data)) {
		m.data = m.data[:size]
		return nil
	}
	grown := make([]byte, size)
	copy(grown, m.data)
	m.data = grown
	return nil
}

func (m *memInode) Sync() error { return nil }

type FileCallsTest struct {
	suite.Suite
	table   *Table
	procs   *process.Table
	bridge  *hostbridge.Simulated
	addrspc *vm.AddrSpace
	files   *fdtable.Table
	thread  *process.Thread
	env     *Env
}

func TestFileCalls(t *testing.T) {
	suite.Run(t, new(FileCallsTest))
}

func (s *FileCallsTest) SetupTest() {
	s.table = NewCoreTable()
	s.procs = process.NewTable()
	s.bridge = hostbridge.NewSimulated()
	s.files = fdtable.New()

	space, err := vm.New(vm.Config{Bridge: s.bridge, InitSize: 1 << 20, MaxSize: 1 << 20})
	s.Require().NoError(err)
	s.addrspc = space

	proc := s.procs.NewProcess(nil, space, s.files, nil)
	s.thread = s.procs.NewThread(proc)
	s.env = &Env{Thread: s.thread, Table: s.procs}
}

func (s *FileCallsTest) enter(num Num, args Args) (*context.CPUContext, error) {
	resolve := s.table.Resolver(s.env)
	var live context.CPUContext
	live.GP.RDI, live.GP.RSI, live.GP.RDX = args.A0, args.A1, args.A2
	live.GP.R10, live.GP.R8, live.GP.R9 = args.A3, args.A4, args.A5
	d := context.NewDispatcher(resolve, nil)
	return d.Enter(context.EntrySyscall, uint64(num), live)
}

func (s *FileCallsTest) TestCloseThenUseReportsEBADF() {
	fd := s.files.Install(fdtable.NewFile(&memInode{}), false)

	out, err := s.enter(Close, Args{A0: uint64(fd)})
	s.Require().NoError(err)
	s.Equal(uint64(0), out.GP.RAX)

	out, err = s.enter(Lseek, Args{A0: uint64(fd)})
	s.Require().NoError(err)
	s.Equal(errnoReturn(errutil.EBADF), out.GP.RAX)
}

func (s *FileCallsTest) TestLseekSetCurEnd() {
	inode := &memInode{data: []byte("hello world")}
	fd := s.files.Install(fdtable.NewFile(inode), false)

	out, err := s.enter(Lseek, Args{A0: uint64(fd), A1: 5, A2: fdtable.SeekSet})
	s.Require().NoError(err)
	s.Equal(uint64(5), out.GP.RAX)

	out, err = s.enter(Lseek, Args{A0: uint64(fd), A1: 0, A2: fdtable.SeekEnd})
	s.Require().NoError(err)
	s.Equal(uint64(len(inode.data)), out.GP.RAX)
}

func (s *FileCallsTest) TestDup2ThenFtruncateAffectsBoth() {
	fd := s.files.Install(fdtable.NewFile(&memInode{data: []byte("0123456789")}), false)

	out, err := s.enter(Dup2, Args{A0: uint64(fd), A1: 9})
	s.Require().NoError(err)
	s.Equal(uint64(9), out.GP.RAX)

	out, err = s.enter(Ftruncate, Args{A0: 9, A1: 3})
	s.Require().NoError(err)
	s.Equal(uint64(0), out.GP.RAX)

	f, err := s.files.Get(fd)
	s.Require().NoError(err)
	attr, err := f.Inode.GetAttr()
	s.Require().NoError(err)
	s.Equal(int64(3), attr.Size)
}

func (s *FileCallsTest) TestDup3RejectsSameFd() {
	fd := s.files.Install(fdtable.NewFile(&memInode{}), false)
	out, err := s.enter(Dup3, Args{A0: uint64(fd), A1: uint64(fd)})
	s.Require().NoError(err)
	s.Equal(errnoReturn(errutil.EINVAL), out.GP.RAX)
}

func (s *FileCallsTest) TestFsyncUnopenedReturnsEBADF() {
	out, err := s.enter(Fsync, Args{A0: 99})
	s.Require().NoError(err)
	s.Equal(errnoReturn(errutil.EBADF), out.GP.RAX)
}

func (s *FileCallsTest) TestMmapFileBackedUsesFdInode() {
	inode := &memInode{data: make([]byte, 4096)}
	fd := s.files.Install(fdtable.NewFile(inode), false)

	out, err := s.enter(Mmap, Args{
		A0: 0,
		A1: 4096,
		A2: unix.PROT_READ,
		A3: unix.MAP_PRIVATE,
		A4: uint64(fd),
	})
	s.Require().NoError(err)
	s.NotZero(out.GP.RAX)
	s.Len(s.addrspc.Areas(), 1)
}

func (s *FileCallsTest) TestMmapAnonymousIgnoresFd() {
	out, err := s.enter(Mmap, Args{
		A0: 0,
		A1: 4096,
		A2: unix.PROT_READ | unix.PROT_WRITE,
		A3: unix.MAP_PRIVATE | unix.MAP_ANONYMOUS,
	})
	s.Require().NoError(err)
	s.NotZero(out.GP.RAX)
}

// guestScratch mmaps an anonymous page to stand in for a guest-owned
// buffer, for tests that need a real address read/write can CopyIn/CopyOut
// against.
func (s *FileCallsTest) guestScratch() uint64 {
	addr, err := s.addrspc.Mmap(0, 4096, vm.PermRead|vm.PermWrite, vm.MapPrivate|vm.MapAnonymous, nil, 0)
	s.Require().NoError(err)
	return addr
}

func (s *FileCallsTest) TestWriteThenReadRoundTripsThroughGuestBuffer() {
	inode := &memInode{}
	fd := s.files.Install(fdtable.NewFile(inode), false)
	guestAddr := s.guestScratch()

	s.Require().NoError(s.addrspc.CopyOut(guestAddr, []byte("round trip")))

	out, err := s.enter(Write, Args{A0: uint64(fd), A1: guestAddr, A2: uint64(len("round trip"))})
	s.Require().NoError(err)
	s.Equal(uint64(len("round trip")), out.GP.RAX)
	s.Equal("round trip", string(inode.data))

	// A fresh fd over the same inode starts its cursor at 0, since the
	// write above already advanced fd's own cursor to EOF.
	readFd := s.files.Install(fdtable.NewFile(inode), false)
	out, err = s.enter(Read, Args{A0: uint64(readFd), A1: guestAddr + 4096/2, A2: uint64(len("round trip"))})
	s.Require().NoError(err)
	s.Equal(uint64(len("round trip")), out.GP.RAX)

	got := make([]byte, len("round trip"))
	s.Require().NoError(s.addrspc.CopyIn(guestAddr+4096/2, got))
	s.Equal("round trip", string(got))
}

func (s *FileCallsTest) TestPwriteThenPreadIgnoreCursor() {
	inode := &memInode{data: make([]byte, 8)}
	fd := s.files.Install(fdtable.NewFile(inode), false)
	guestAddr := s.guestScratch()

	s.Require().NoError(s.addrspc.CopyOut(guestAddr, []byte("ABCD")))
	out, err := s.enter(Pwrite64, Args{A0: uint64(fd), A1: guestAddr, A2: 4, A3: 2})
	s.Require().NoError(err)
	s.Equal(uint64(4), out.GP.RAX)
	s.Equal("ABCD", string(inode.data[2:6]))

	out, err = s.enter(Pread64, Args{A0: uint64(fd), A1: guestAddr + 1024, A2: 4, A3: 2})
	s.Require().NoError(err)
	s.Equal(uint64(4), out.GP.RAX)

	got := make([]byte, 4)
	s.Require().NoError(s.addrspc.CopyIn(guestAddr+1024, got))
	s.Equal("ABCD", string(got))
}

func (s *FileCallsTest) TestFstatCopiesSizeOut() {
	inode := &memInode{data: []byte("0123456789")}
	fd := s.files.Install(fdtable.NewFile(inode), false)
	guestAddr := s.guestScratch()

	out, err := s.enter(Fstat, Args{A0: uint64(fd), A1: guestAddr})
	s.Require().NoError(err)
	s.Equal(uint64(0), out.GP.RAX)

	statBuf := make([]byte, statSize)
	s.Require().NoError(s.addrspc.CopyIn(guestAddr, statBuf))
	gotSize := int64(statBuf[48]) | int64(statBuf[49])<<8 | int64(statBuf[50])<<16 | int64(statBuf[51])<<24
	s.Equal(int64(len(inode.data)), gotSize)
}

func (s *FileCallsTest) TestReadUnopenedReturnsEBADF() {
	out, err := s.enter(Read, Args{A0: 99, A1: s.guestScratch(), A2: 8})
	s.Require().NoError(err)
	s.Equal(errnoReturn(errutil.EBADF), out.GP.RAX)
}
