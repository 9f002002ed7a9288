package devfs

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/golibos/libos/internal/errutil"
	"github.com/golibos/libos/internal/hostbridge"
	"github.com/golibos/libos/internal/vfs"
)

type DevFSTest struct {
	suite.Suite
	fs *FS
}

func (s *DevFSTest) SetupTest() {
	s.fs = New(hostbridge.NewSimulated())
}

func TestDevFS(t *testing.T) {
	suite.Run(t, new(DevFSTest))
}

func (s *DevFSTest) TestNullReadsEOFAndDiscardsWrites() {
	root := s.fs.Root()
	null, err := root.Lookup("null")
	s.Require().NoError(err)

	buf := make([]byte, 16)
	n, err := null.ReadAt(buf, 0)
	require.NoError(s.T(), err)
	s.Equal(0, n)

	n, err = null.WriteAt([]byte("hello"), 0)
	require.NoError(s.T(), err)
	s.Equal(5, n)
}

func (s *DevFSTest) TestZeroFillsBuffer() {
	root := s.fs.Root()
	zero, err := root.Lookup("zero")
	s.Require().NoError(err)

	buf := make([]byte, 8)
	for i := range buf {
		buf[i] = 0xff
	}
	n, err := zero.ReadAt(buf, 0)
	require.NoError(s.T(), err)
	s.Equal(8, n)
	for _, b := range buf {
		s.Equal(byte(0), b)
	}
}

func (s *DevFSTest) TestRandomFillsBufferFromBridge() {
	root := s.fs.Root()
	random, err := root.Lookup("urandom")
	s.Require().NoError(err)

	buf := make([]byte, 32)
	n, err := random.ReadAt(buf, 0)
	require.NoError(s.T(), err)
	s.Equal(32, n)
}

func (s *DevFSTest) TestRandomSurfacesErrorAfterRetriesExhausted() {
	random := NewRandomFile(failingBridge{}, true)
	buf := make([]byte, 4)
	_, err := random.fill(buf)
	s.Error(err)
}

func (s *DevFSTest) TestFdIsSymlinkToProcSelfFd() {
	root := s.fs.Root()
	fd, err := root.Lookup("fd")
	s.Require().NoError(err)
	attr, err := fd.GetAttr()
	s.Require().NoError(err)
	s.Equal(vfs.TypeSymlink, attr.Type)
	target, err := fd.Readlink()
	s.Require().NoError(err)
	s.Equal("/proc/self/fd", target)
}

func (s *DevFSTest) TestShmIsWritableDirectory() {
	root := s.fs.Root()
	shm, err := root.Lookup("shm")
	s.Require().NoError(err)
	attr, err := shm.GetAttr()
	s.Require().NoError(err)
	s.Equal(vfs.TypeDirectory, attr.Type)

	_, err = shm.Create("seg0", 0o600)
	s.Require().NoError(err)
	_, err = shm.Lookup("seg0")
	s.NoError(err)
}

// failingBridge always fails ReadRandom, to exercise the retry-exhaustion
// path without spinning 50 real retries against a working bridge.
type failingBridge struct {
	hostbridge.Bridge
}

func (failingBridge) ReadRandom(_ []byte) error {
	return errutil.New(errutil.EAGAIN, "simulated entropy source failure")
}
