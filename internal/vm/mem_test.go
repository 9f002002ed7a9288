package vm

import "github.com/golibos/libos/internal/errutil"

func (s *VMTest) TestCopyOutThenCopyInRoundTrips() {
	as := s.newSpace()
	addr, err := as.Mmap(0, PageSize, PermDefault, MapPrivate|MapAnonymous, nil, 0)
	s.Require().NoError(err)

	want := []byte("hello guest memory")
	s.Require().NoError(as.CopyOut(addr, want))

	got := make([]byte, len(want))
	s.Require().NoError(as.CopyIn(addr, got))
	s.Equal(want, got)
}

func (s *VMTest) TestCopyInRejectsOutOfBounds() {
	as := s.newSpace()
	buf := make([]byte, 16)
	err := as.CopyIn(as.base+as.size, buf)
	s.Require().Error(err)
	s.Equal(errutil.EFAULT, errutil.KindOf(err))
}

func (s *VMTest) TestCopyOutRejectsOutOfBounds() {
	as := s.newSpace()
	err := as.CopyOut(as.base-PageSize, []byte("x"))
	s.Require().Error(err)
}

func (s *VMTest) TestCopyInStringReadsUntilNUL() {
	as := s.newSpace()
	addr, err := as.Mmap(0, PageSize, PermDefault, MapPrivate|MapAnonymous, nil, 0)
	s.Require().NoError(err)

	path := append([]byte("/mnt/data/file.txt"), 0, 'g', 'a', 'r', 'b', 'a', 'g', 'e')
	s.Require().NoError(as.CopyOut(addr, path))

	got, err := as.CopyInString(addr)
	s.Require().NoError(err)
	s.Equal("/mnt/data/file.txt", got)
}

func (s *VMTest) TestCopyInStringReportsUnterminated() {
	as := s.newSpace()
	addr, err := as.Mmap(0, 2*maxCStringLen, PermDefault, MapPrivate|MapAnonymous, nil, 0)
	s.Require().NoError(err)

	filler := make([]byte, maxCStringLen+1)
	for i := range filler {
		filler[i] = 'a'
	}
	s.Require().NoError(as.CopyOut(addr, filler))

	_, err = as.CopyInString(addr)
	s.Require().Error(err)
}
