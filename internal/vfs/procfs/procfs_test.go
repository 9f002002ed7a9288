package procfs

import (
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/golibos/libos/internal/vfs"
)

type fakeProcess struct {
	pid      int
	zombie   bool
	exec     string
	comm     string
	root     string
	cwd      string
	vmem     uint64
	resident uint64
	data     uint64
}

func (p *fakeProcess) PID() int             { return p.pid }
func (p *fakeProcess) IsZombie() bool       { return p.zombie }
func (p *fakeProcess) ExecPath() string     { return p.exec }
func (p *fakeProcess) MainThreadName() (string, bool) {
	if p.comm == "" {
		return "", false
	}
	return p.comm, true
}
func (p *fakeProcess) FSRoot() string            { return p.root }
func (p *fakeProcess) FSCwd() string              { return p.cwd }
func (p *fakeProcess) VirtualMemPages() uint64    { return p.vmem }
func (p *fakeProcess) ResidentMemPages() uint64   { return p.resident }
func (p *fakeProcess) HeapStackPages() uint64     { return p.data }

type ProcFSTest struct {
	suite.Suite
	proc *fakeProcess
	fs   *FS
}

func (s *ProcFSTest) SetupTest() {
	s.proc = &fakeProcess{
		pid: 42, exec: "/bin/app", comm: "app",
		root: "/", cwd: "/home", vmem: 100, resident: 80, data: 20,
	}
	s.fs = New(
		func() int { return s.proc.pid },
		func() []ProcessInfo { return []ProcessInfo{s.proc} },
		func() MemStats { return MemStats{TotalKB: 1024, FreeKB: 512} },
		func() string { return "processor\t: 0\n" },
	)
}

func TestProcFS(t *testing.T) {
	suite.Run(t, new(ProcFSTest))
}

func readAll(t *suite.Suite, n vfs.Inode) string {
	buf := make([]byte, 4096)
	nRead, err := n.ReadAt(buf, 0)
	t.Require().NoError(err)
	return string(buf[:nRead])
}

func (s *ProcFSTest) TestSelfResolvesToCallingPID() {
	self, err := s.fs.Root().Lookup("self")
	s.Require().NoError(err)
	target, err := self.Readlink()
	s.Require().NoError(err)
	s.Equal(strconv.Itoa(s.proc.pid), target)
}

func (s *ProcFSTest) TestPidDirCmdlineIsNulTerminated() {
	pidDirNode, err := s.fs.Root().Lookup(strconv.Itoa(s.proc.pid))
	s.Require().NoError(err)
	cmdline, err := pidDirNode.Lookup("cmdline")
	s.Require().NoError(err)
	buf := make([]byte, 64)
	n, err := cmdline.ReadAt(buf, 0)
	s.Require().NoError(err)
	s.True(strings.HasSuffix(string(buf[:n-1]), "/bin/app"))
	s.Equal(byte(0), buf[n-1])
}

func (s *ProcFSTest) TestZombieCmdlineIsEmpty() {
	s.proc.zombie = true
	pidDirNode, _ := s.fs.Root().Lookup(strconv.Itoa(s.proc.pid))
	cmdline, _ := pidDirNode.Lookup("cmdline")
	buf := make([]byte, 16)
	n, err := cmdline.ReadAt(buf, 0)
	s.Require().NoError(err)
	s.Equal(0, n)
}

func (s *ProcFSTest) TestStatmReportsPageCounts() {
	pidDirNode, _ := s.fs.Root().Lookup(strconv.Itoa(s.proc.pid))
	statm, _ := pidDirNode.Lookup("statm")
	s.Equal("100 80 0 0 0 20 0\n", readAll(&s.Suite, statm))
}

func (s *ProcFSTest) TestMeminfoReflectsCurrentStats() {
	meminfo, err := s.fs.Root().Lookup("meminfo")
	s.Require().NoError(err)
	out := readAll(&s.Suite, meminfo)
	s.Contains(out, "MemTotal:       1024 kB")
	s.Contains(out, "MemFree:        512 kB")
}

func (s *ProcFSTest) TestWritesToGeneratedFilesFail() {
	meminfo, _ := s.fs.Root().Lookup("meminfo")
	_, err := meminfo.WriteAt([]byte("x"), 0)
	s.Error(err)
}

func (s *ProcFSTest) TestUnknownPidFails() {
	_, err := s.fs.Root().Lookup("999")
	s.Error(err)
}
