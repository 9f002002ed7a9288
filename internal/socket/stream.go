package socket

import (
	"context"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/golibos/libos/internal/errutil"
	"github.com/golibos/libos/internal/events"
	"github.com/golibos/libos/internal/hostbridge"
	"github.com/golibos/libos/internal/rt"
)

// StreamState is one node of the connection-oriented state machine of
// spec.md §4.G: Initial → Connecting → Connected → Shutdown{Read,Write,
// Both} → Closed, with a separate Listening branch out of Initial feeding
// per-accepted Connected sockets.
type StreamState int

const (
	StreamInitial StreamState = iota
	StreamConnecting
	StreamConnected
	StreamListening
	StreamShutdownRead
	StreamShutdownWrite
	StreamShutdownBoth
	StreamClosed
)

func (s StreamState) String() string {
	switch s {
	case StreamInitial:
		return "initial"
	case StreamConnecting:
		return "connecting"
	case StreamConnected:
		return "connected"
	case StreamListening:
		return "listening"
	case StreamShutdownRead:
		return "shutdown-read"
	case StreamShutdownWrite:
		return "shutdown-write"
	case StreamShutdownBoth:
		return "shutdown-both"
	case StreamClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// StreamSocket is a connection-oriented socket: TCP over IPv4/IPv6, or a
// Unix-domain stream socket. Grounded on host-socket's stream/states
// module (the Init→Connect→Connected state enum) and async-socket's
// StreamSocket facade, adapted from their io-uring-callback completion
// model onto this package's ring.
type StreamSocket struct {
	base
	mu    sync.Mutex
	state StreamState
	host  int // host fd, -1 once closed
}

// NewStreamSocket creates an unconnected, unbound stream socket in the
// given domain.
func NewStreamSocket(domain Domain, cfg Config) (*StreamSocket, error) {
	fd, err := unix.Socket(domainToAF(domain), unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, errutil.Wrap(errutil.EINVAL, err, "socket: create stream socket")
	}
	s := &StreamSocket{base: newBase(domain, TypeStream, cfg), state: StreamInitial, host: fd}
	return s, nil
}

// NewConnectedStream wraps an already-connected host fd (one half of a
// socketpair(2), or the result of some other non-accept handshake) as a
// Connected StreamSocket, skipping Initial/Connecting entirely.
func NewConnectedStream(domain Domain, cfg Config, fd int) *StreamSocket {
	s := &StreamSocket{base: newBase(domain, TypeStream, cfg), state: StreamConnected, host: fd}
	s.pollee.AddEvents(events.In | events.Out)
	return s
}

func (s *StreamSocket) fd() int                  { return s.host }
func (s *StreamSocket) bridge() hostbridge.Bridge { return s.cfg.Bridge }
func (s *StreamSocket) recvQueued() int {
	n, err := unix.IoctlGetInt(s.host, FIONREAD)
	if err != nil {
		return 0
	}
	return n
}
func (s *StreamSocket) setNonBlocking(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if on {
		s.flags |= FlagNonBlock
	} else {
		s.flags &^= FlagNonBlock
	}
}

// State reports the socket's current state.
func (s *StreamSocket) State() StreamState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Bind assigns a local address. Only legal from Initial, per spec.md
// §4.G's "disallowed operations fail with a domain-specific error".
func (s *StreamSocket) Bind(addr Addr) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StreamInitial {
		return errInvalidState("bind", s.state.String())
	}
	sa, err := addr.toSockaddr()
	if err != nil {
		return err
	}
	if err := unix.Bind(s.host, sa); err != nil {
		return errutil.Wrap(errutil.EINVAL, err, "socket: bind %s", addr)
	}
	s.localAddr = addr
	return nil
}

// Listen transitions Initial → Listening with the given backlog.
func (s *StreamSocket) Listen(backlog int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StreamInitial {
		return errInvalidState("listen", s.state.String())
	}
	if err := unix.Listen(s.host, backlog); err != nil {
		return errutil.Wrap(errutil.EINVAL, err, "socket: listen")
	}
	s.state = StreamListening
	s.pollee.AddEvents(events.In)
	return nil
}

// Connect transitions Initial → Connecting → Connected. A non-blocking
// socket returns immediately in Connecting state without waiting for the
// handshake to finish, matching EINPROGRESS semantics via EAGAIN.
func (s *StreamSocket) Connect(addr Addr) rt.Future[struct{}] {
	s.mu.Lock()
	if s.state != StreamInitial {
		err := errInvalidState("connect", s.state.String())
		s.mu.Unlock()
		return rt.FutureFunc[struct{}](func(*rt.Cx) rt.PollResult[struct{}] {
			return rt.Done(struct{}{}, err)
		})
	}
	s.state = StreamConnecting
	nonBlocking := s.nonBlocking()
	deadline := deadlineFor(s.timeouts.Send)
	s.mu.Unlock()

	sa, err := addr.toSockaddr()
	if err != nil {
		return rt.FutureFunc[struct{}](func(*rt.Cx) rt.PollResult[struct{}] {
			return rt.Done(struct{}{}, err)
		})
	}

	fut := s.ring.submit(func() (int, error) {
		cerr := unix.Connect(s.host, sa)
		if cerr != nil && cerr != unix.EINPROGRESS {
			return 0, errutil.Wrap(errutil.ECONNREFUSED, cerr, "socket: connect %s", addr)
		}
		if nonBlocking {
			if cerr == unix.EINPROGRESS {
				return 0, errutil.New(errutil.EAGAIN, "socket: connect %s in progress", addr)
			}
			return 0, nil
		}
		if perr := pollReady(s.host, unix.POLLOUT, deadline); perr != nil {
			return 0, perr
		}
		if v, gerr := unix.GetsockoptInt(s.host, unix.SOL_SOCKET, unix.SO_ERROR); gerr == nil && v != 0 {
			return 0, errutil.New(errutil.ECONNREFUSED, "socket: connect %s failed (SO_ERROR=%d)", addr, v)
		}
		return 0, nil
	})

	return &connectFuture{s: s, addr: addr, inner: fut}
}

type connectFuture struct {
	s     *StreamSocket
	addr  Addr
	inner rt.Future[int]
}

func (f *connectFuture) Poll(cx *rt.Cx) rt.PollResult[struct{}] {
	res := f.inner.Poll(cx)
	if !res.Ready {
		return rt.Pending[struct{}]()
	}
	f.s.mu.Lock()
	switch {
	case res.Err == nil:
		f.s.state = StreamConnected
		f.s.peerAddr = f.addr
		f.s.pollee.AddEvents(events.Out)
	case errutil.KindOf(res.Err) == errutil.EAGAIN:
		// Connect is still in progress on a non-blocking socket; stay in
		// Connecting so a later poll(2)/getsockopt(SO_ERROR) can resolve it.
	default:
		f.s.state = StreamInitial
	}
	f.s.mu.Unlock()
	return rt.Done(struct{}{}, res.Err)
}

// Accept pulls the next pending connection off a Listening socket.
func (s *StreamSocket) Accept() rt.Future[*StreamSocket] {
	s.mu.Lock()
	if s.state != StreamListening {
		err := errInvalidState("accept", s.state.String())
		s.mu.Unlock()
		return rt.FutureFunc[*StreamSocket](func(*rt.Cx) rt.PollResult[*StreamSocket] {
			return rt.Done[*StreamSocket](nil, err)
		})
	}
	nonBlocking := s.nonBlocking()
	deadline := deadlineFor(s.timeouts.Recv)
	s.mu.Unlock()

	var acceptedFD int
	var acceptedAddr unix.Sockaddr
	fut := s.ring.submit(func() (int, error) {
		for {
			fd, sa, err := unix.Accept4(s.host, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
			if err == nil {
				acceptedFD, acceptedAddr = fd, sa
				return fd, nil
			}
			if err != unix.EAGAIN && err != unix.EWOULDBLOCK {
				return 0, errutil.Wrap(errutil.EINVAL, err, "socket: accept")
			}
			if nonBlocking {
				return 0, blockingErr(true, "accept")
			}
			if perr := pollReady(s.host, unix.POLLIN, deadline); perr != nil {
				return 0, perr
			}
		}
	})

	return &acceptFuture{s: s, inner: fut, fd: &acceptedFD, addr: &acceptedAddr}
}

type acceptFuture struct {
	s     *StreamSocket
	inner rt.Future[int]
	fd    *int
	addr  *unix.Sockaddr
}

func (f *acceptFuture) Poll(cx *rt.Cx) rt.PollResult[*StreamSocket] {
	res := f.inner.Poll(cx)
	if !res.Ready {
		return rt.Pending[*StreamSocket]()
	}
	if res.Err != nil {
		return rt.Done[*StreamSocket](nil, res.Err)
	}
	peer, err := fromSockaddr(*f.addr)
	if err != nil {
		peer = nil
	}
	child := &StreamSocket{
		base:  newBase(f.s.domain, TypeStream, f.s.cfg),
		state: StreamConnected,
		host:  *f.fd,
	}
	child.peerAddr = peer
	child.pollee.AddEvents(events.In | events.Out)
	return rt.Done[*StreamSocket](child, nil)
}

// Send writes buf, looping until every byte is accepted when waitAll is
// set (MSG_WAITALL), otherwise returning as soon as at least one byte is
// accepted, per spec.md §4.G.
func (s *StreamSocket) Send(buf []byte, waitAll bool) rt.Future[int] {
	s.mu.Lock()
	if s.state != StreamConnected && s.state != StreamShutdownRead {
		err := errInvalidState("send", s.state.String())
		s.mu.Unlock()
		return rt.FutureFunc[int](func(*rt.Cx) rt.PollResult[int] { return rt.Done(0, err) })
	}
	nonBlocking := s.nonBlocking()
	deadline := deadlineFor(s.timeouts.Send)
	s.mu.Unlock()

	return s.ring.submit(func() (int, error) {
		total := 0
		for total < len(buf) {
			n, err := unix.Write(s.host, buf[total:])
			if err == nil {
				total += n
				s.cfg.Metrics.SocketBytesSent.Add(context.Background(), int64(n))
				if !waitAll || total == len(buf) {
					return total, nil
				}
				continue
			}
			if err != unix.EAGAIN && err != unix.EWOULDBLOCK {
				return total, errutil.Wrap(errutil.EPIPE, err, "socket: send")
			}
			if total > 0 && !waitAll {
				return total, nil
			}
			if nonBlocking {
				return total, blockingErr(true, "send")
			}
			if perr := pollReady(s.host, unix.POLLOUT, deadline); perr != nil {
				return total, perr
			}
		}
		return total, nil
	})
}

// Recv reads into buf, returning as soon as at least one byte arrives
// (MSG_WAITALL is not meaningful for receive in this implementation,
// matching the common read(2) "short read is not an error" contract).
func (s *StreamSocket) Recv(buf []byte) rt.Future[int] {
	s.mu.Lock()
	if s.state != StreamConnected && s.state != StreamShutdownWrite {
		err := errInvalidState("recv", s.state.String())
		s.mu.Unlock()
		return rt.FutureFunc[int](func(*rt.Cx) rt.PollResult[int] { return rt.Done(0, err) })
	}
	nonBlocking := s.nonBlocking()
	deadline := deadlineFor(s.timeouts.Recv)
	s.mu.Unlock()

	return s.ring.submit(func() (int, error) {
		for {
			n, err := unix.Read(s.host, buf)
			if err == nil {
				s.mu.Lock()
				if n == 0 {
					s.pollee.AddEvents(events.RdHup)
				}
				s.mu.Unlock()
				s.cfg.Metrics.SocketBytesRecv.Add(context.Background(), int64(n))
				return n, nil
			}
			if err != unix.EAGAIN && err != unix.EWOULDBLOCK {
				return 0, errutil.Wrap(errutil.ECONNRESET, err, "socket: recv")
			}
			if nonBlocking {
				return 0, blockingErr(true, "recv")
			}
			if perr := pollReady(s.host, unix.POLLIN, deadline); perr != nil {
				return 0, perr
			}
		}
	})
}

// Shutdown transitions toward ShutdownRead/Write/Both. Shutting down a
// half that is already shut down succeeds while the other half is still
// open; once the socket is in ShutdownBoth, every further Shutdown fails
// with EINVAL.
func (s *StreamSocket) Shutdown(how Shutdown) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StreamConnected && s.state != StreamShutdownRead && s.state != StreamShutdownWrite {
		return errInvalidState("shutdown", s.state.String())
	}

	var sysHow int
	switch how {
	case ShutdownRead:
		sysHow = unix.SHUT_RD
	case ShutdownWrite:
		sysHow = unix.SHUT_WR
	case ShutdownBoth:
		sysHow = unix.SHUT_RDWR
	}
	if err := unix.Shutdown(s.host, sysHow); err != nil {
		return errutil.Wrap(errutil.EINVAL, err, "socket: shutdown")
	}

	switch {
	case how == ShutdownBoth || (s.state == StreamShutdownRead && how == ShutdownWrite) || (s.state == StreamShutdownWrite && how == ShutdownRead):
		s.state = StreamShutdownBoth
	case how == ShutdownRead:
		s.state = StreamShutdownRead
	case how == ShutdownWrite:
		s.state = StreamShutdownWrite
	}
	s.pollee.AddEvents(events.Hup)
	return nil
}

// Close releases the host fd. Closing an already-closed socket is a no-op,
// matching the teacher's general "Close is idempotent" convention.
func (s *StreamSocket) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StreamClosed {
		return nil
	}
	err := unix.Close(s.host)
	s.state = StreamClosed
	s.host = -1
	s.pollee.AddEvents(events.Hup)
	if err != nil {
		return errutil.Wrap(errutil.EIO, err, "socket: close")
	}
	return nil
}

// GetSockOpt/SetSockOpt/Ioctl satisfy the shared dispatch helpers in
// options.go/ioctl.go.
func (s *StreamSocket) GetSockOpt(level, optname int) ([]byte, error) {
	return GetSockOpt(s, level, optname)
}
func (s *StreamSocket) SetSockOpt(level, optname int, val []byte) error {
	return SetSockOpt(s, level, optname, val)
}
func (s *StreamSocket) Ioctl(req uint, arg []byte) ([]byte, error) {
	return Ioctl(s, req, arg)
}

// LocalAddr/PeerAddr report the addresses recorded at bind/connect/accept
// time.
func (s *StreamSocket) LocalAddr() Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.localAddr
}
func (s *StreamSocket) PeerAddr() Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peerAddr
}

// SetTimeouts replaces the socket's per-direction send/recv timeouts.
func (s *StreamSocket) SetTimeouts(t Timeouts) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timeouts = t
}
