package socket

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"golang.org/x/sys/unix"

	"github.com/golibos/libos/internal/errutil"
	"github.com/golibos/libos/internal/hostbridge"
	"github.com/golibos/libos/internal/rt"
)

type SocketTest struct {
	suite.Suite
	cfg Config
}

func TestSocket(t *testing.T) {
	suite.Run(t, new(SocketTest))
}

func (s *SocketTest) SetupTest() {
	s.cfg = Config{Bridge: hostbridge.NewSimulated()}
}

func boundPort(s *SocketTest, listener *StreamSocket) uint16 {
	sa, err := unix.Getsockname(listener.host)
	s.Require().NoError(err)
	in4, ok := sa.(*unix.SockaddrInet4)
	s.Require().True(ok)
	return uint16(in4.Port)
}

func (s *SocketTest) TestStreamListenConnectAcceptSendRecv() {
	listener, err := NewStreamSocket(DomainIPv4, s.cfg)
	s.Require().NoError(err)
	loopback, err := NewIPv4Addr("127.0.0.1", 0)
	s.Require().NoError(err)
	s.Require().NoError(listener.Bind(loopback))
	s.Require().NoError(listener.Listen(4))
	s.Equal(StreamListening, listener.State())

	port := boundPort(s, listener)

	type acceptOutcome struct {
		conn *StreamSocket
		err  error
	}
	acceptCh := make(chan acceptOutcome, 1)
	go func() {
		conn, err := rt.BlockOn(listener.Accept())
		acceptCh <- acceptOutcome{conn, err}
	}()

	client, err := NewStreamSocket(DomainIPv4, s.cfg)
	s.Require().NoError(err)
	target, err := NewIPv4Addr("127.0.0.1", port)
	s.Require().NoError(err)
	_, err = rt.BlockOn(client.Connect(target))
	s.Require().NoError(err)
	s.Equal(StreamConnected, client.State())

	outcome := <-acceptCh
	s.Require().NoError(outcome.err)
	server := outcome.conn
	s.Equal(StreamConnected, server.State())

	n, err := rt.BlockOn(client.Send([]byte("hello"), false))
	s.Require().NoError(err)
	s.Equal(5, n)

	buf := make([]byte, 16)
	n, err = rt.BlockOn(server.Recv(buf))
	s.Require().NoError(err)
	s.Equal("hello", string(buf[:n]))

	s.Require().NoError(client.Close())
	s.Require().NoError(server.Close())
	s.Require().NoError(listener.Close())
}

func (s *SocketTest) TestBindAfterListenFails() {
	sock, err := NewStreamSocket(DomainIPv4, s.cfg)
	s.Require().NoError(err)
	defer sock.Close()
	loopback, _ := NewIPv4Addr("127.0.0.1", 0)
	s.Require().NoError(sock.Bind(loopback))
	s.Require().NoError(sock.Listen(1))
	s.Error(sock.Bind(loopback))
}

func (s *SocketTest) TestShutdownThenSendFails() {
	listener, err := NewStreamSocket(DomainIPv4, s.cfg)
	s.Require().NoError(err)
	defer listener.Close()
	loopback, _ := NewIPv4Addr("127.0.0.1", 0)
	s.Require().NoError(listener.Bind(loopback))
	s.Require().NoError(listener.Listen(1))
	port := boundPort(s, listener)

	acceptCh := make(chan *StreamSocket, 1)
	go func() {
		conn, _ := rt.BlockOn(listener.Accept())
		acceptCh <- conn
	}()

	client, err := NewStreamSocket(DomainIPv4, s.cfg)
	s.Require().NoError(err)
	target, _ := NewIPv4Addr("127.0.0.1", port)
	_, err = rt.BlockOn(client.Connect(target))
	s.Require().NoError(err)
	server := <-acceptCh
	defer server.Close()

	s.Require().NoError(client.Shutdown(ShutdownWrite))
	s.Equal(StreamShutdownWrite, client.State())
	_, err = rt.BlockOn(client.Send([]byte("x"), false))
	s.Error(err)
	s.Require().NoError(client.Close())
}

func (s *SocketTest) TestNonBlockingAcceptWithNoPendingConnReturnsWouldBlock() {
	listener, err := NewStreamSocket(DomainIPv4, s.cfg)
	s.Require().NoError(err)
	defer listener.Close()
	loopback, _ := NewIPv4Addr("127.0.0.1", 0)
	s.Require().NoError(listener.Bind(loopback))
	s.Require().NoError(listener.Listen(1))
	listener.setNonBlocking(true)

	_, err = rt.BlockOn(listener.Accept())
	s.Require().Error(err)
	s.Equal(errutil.EAGAIN, errutil.KindOf(err))
}

func (s *SocketTest) TestSockOptSndBufHalvingConvention() {
	sock, err := NewStreamSocket(DomainIPv4, s.cfg)
	s.Require().NoError(err)
	defer sock.Close()

	requested := make([]byte, 4)
	binary.LittleEndian.PutUint32(requested, 65536)
	s.Require().NoError(sock.SetSockOpt(unix.SOL_SOCKET, unix.SO_SNDBUF, requested))

	got, err := sock.GetSockOpt(unix.SOL_SOCKET, unix.SO_SNDBUF)
	s.Require().NoError(err)
	s.Require().Len(got, 4)
	// The kernel doubles whatever is set; GetSockOpt halves it back so the
	// caller sees what it originally asked for (spec.md's SO_SNDBUF/
	// SO_RCVBUF convention). We only assert it round-trips to a sane,
	// non-zero value rather than pin an exact kernel-dependent number.
	s.NotZero(binary.LittleEndian.Uint32(got))
}

func (s *SocketTest) TestIoctlFIONBIOTogglesNonBlocking() {
	sock, err := NewStreamSocket(DomainIPv4, s.cfg)
	s.Require().NoError(err)
	defer sock.Close()

	on := make([]byte, 4)
	binary.LittleEndian.PutUint32(on, 1)
	_, err = sock.Ioctl(FIONBIO, on)
	s.Require().NoError(err)
	s.True(sock.nonBlocking())
}

func (s *SocketTest) TestDatagramSendToRecvFrom() {
	recv, err := NewDatagramSocket(DomainIPv4, s.cfg)
	s.Require().NoError(err)
	defer recv.Close()
	loopback, _ := NewIPv4Addr("127.0.0.1", 0)
	s.Require().NoError(recv.Bind(loopback))

	sa, err := unix.Getsockname(recv.host)
	s.Require().NoError(err)
	in4 := sa.(*unix.SockaddrInet4)

	send, err := NewDatagramSocket(DomainIPv4, s.cfg)
	s.Require().NoError(err)
	defer send.Close()

	dest, err := NewIPv4Addr("127.0.0.1", uint16(in4.Port))
	s.Require().NoError(err)
	n, err := rt.BlockOn(send.SendTo([]byte("ping"), dest))
	s.Require().NoError(err)
	s.Equal(4, n)

	buf := make([]byte, 16)
	res, err := rt.BlockOn(recv.RecvFrom(buf))
	s.Require().NoError(err)
	s.Equal(4, res.n)
	s.Equal("ping", string(buf[:res.n]))
	s.NotNil(res.from)
}

func (s *SocketTest) TestDatagramConnectedSendRecv() {
	a, err := NewDatagramSocket(DomainIPv4, s.cfg)
	s.Require().NoError(err)
	defer a.Close()
	loopback, _ := NewIPv4Addr("127.0.0.1", 0)
	s.Require().NoError(a.Bind(loopback))
	saA, err := unix.Getsockname(a.host)
	s.Require().NoError(err)
	portA := uint16(saA.(*unix.SockaddrInet4).Port)

	b, err := NewDatagramSocket(DomainIPv4, s.cfg)
	s.Require().NoError(err)
	defer b.Close()
	s.Require().NoError(b.Bind(loopback))
	saB, err := unix.Getsockname(b.host)
	s.Require().NoError(err)
	portB := uint16(saB.(*unix.SockaddrInet4).Port)

	addrA, _ := NewIPv4Addr("127.0.0.1", portA)
	addrB, _ := NewIPv4Addr("127.0.0.1", portB)
	s.Require().NoError(a.Connect(addrB))
	s.Require().NoError(b.Connect(addrA))
	s.Equal(DatagramConnected, a.State())

	_, err = rt.BlockOn(a.Send([]byte("hi")))
	s.Require().NoError(err)
	buf := make([]byte, 8)
	n, err := rt.BlockOn(b.Recv(buf))
	s.Require().NoError(err)
	s.Equal("hi", string(buf[:n]))
}

func (s *SocketTest) TestUnixDatagramBindUnlinksOnClose() {
	dir := s.T().TempDir()
	path := filepath.Join(dir, "sock")

	sock, err := NewDatagramSocket(DomainUnix, s.cfg)
	s.Require().NoError(err)
	s.Require().NoError(sock.Bind(UnixAddr{Path: path}))

	_, statErr := os.Stat(path)
	s.Require().NoError(statErr)

	s.Require().NoError(sock.Close())
	_, statErr = os.Stat(path)
	s.Require().True(os.IsNotExist(statErr))
}

func (s *SocketTest) TestSendRecvTimeoutOnBlockingSocketWithNoPeer() {
	sock, err := NewDatagramSocket(DomainIPv4, s.cfg)
	s.Require().NoError(err)
	defer sock.Close()
	loopback, _ := NewIPv4Addr("127.0.0.1", 0)
	s.Require().NoError(sock.Bind(loopback))
	sock.SetTimeouts(Timeouts{Recv: 10 * time.Millisecond})

	buf := make([]byte, 8)
	_, err = rt.BlockOn(sock.RecvFrom(buf))
	s.Require().Error(err)
	s.Equal(errutil.ETIMEDOUT, errutil.KindOf(err))
}
