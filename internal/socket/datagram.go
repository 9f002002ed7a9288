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

// DatagramState is the connectionless counterpart of StreamState, per
// spec.md §4.G: Init → Bound/Connected → Closed. Datagram sockets may
// send/receive addressed messages while unconnected, or be "connected"
// to fix a default peer for plain Send/Recv.
type DatagramState int

const (
	DatagramInit DatagramState = iota
	DatagramBound
	DatagramConnected
	DatagramClosed
)

func (s DatagramState) String() string {
	switch s {
	case DatagramInit:
		return "init"
	case DatagramBound:
		return "bound"
	case DatagramConnected:
		return "connected"
	case DatagramClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// DatagramSocket is a connectionless socket: UDP over IPv4/IPv6, or a
// Unix-domain datagram socket. Grounded on async-socket's datagram module
// (datagram/mod.rs's bind/connect/sendto/recvfrom surface).
type DatagramSocket struct {
	base
	mu    sync.Mutex
	state DatagramState
	host  int
}

// NewDatagramSocket creates an unbound datagram socket in the given
// domain.
func NewDatagramSocket(domain Domain, cfg Config) (*DatagramSocket, error) {
	fd, err := unix.Socket(domainToAF(domain), unix.SOCK_DGRAM, 0)
	if err != nil {
		return nil, errutil.Wrap(errutil.EINVAL, err, "socket: create datagram socket")
	}
	return &DatagramSocket{base: newBase(domain, TypeDatagram, cfg), state: DatagramInit, host: fd}, nil
}

func (s *DatagramSocket) fd() int                  { return s.host }
func (s *DatagramSocket) bridge() hostbridge.Bridge { return s.cfg.Bridge }
func (s *DatagramSocket) recvQueued() int {
	n, err := unix.IoctlGetInt(s.host, FIONREAD)
	if err != nil {
		return 0
	}
	return n
}
func (s *DatagramSocket) setNonBlocking(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if on {
		s.flags |= FlagNonBlock
	} else {
		s.flags &^= FlagNonBlock
	}
}

// State reports the socket's current state.
func (s *DatagramSocket) State() DatagramState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Bind assigns a local address, legal from Init only.
func (s *DatagramSocket) Bind(addr Addr) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != DatagramInit {
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
	s.state = DatagramBound
	s.pollee.AddEvents(events.Out)
	return nil
}

// Connect fixes a default peer address that subsequent Send/Recv use.
// SendTo's explicit address is not checked against it; it is passed to
// the host as given.
func (s *DatagramSocket) Connect(addr Addr) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != DatagramInit && s.state != DatagramBound {
		return errInvalidState("connect", s.state.String())
	}
	sa, err := addr.toSockaddr()
	if err != nil {
		return err
	}
	if err := unix.Connect(s.host, sa); err != nil {
		return errutil.Wrap(errutil.ECONNREFUSED, err, "socket: connect %s", addr)
	}
	s.peerAddr = addr
	s.state = DatagramConnected
	s.pollee.AddEvents(events.Out)
	return nil
}

// SendTo writes one datagram to addr (or the connected peer if addr is
// nil), per spec.md §4.G's "send pipeline" contract: returns once the
// whole datagram is accepted by the host (datagrams are not split).
func (s *DatagramSocket) SendTo(buf []byte, addr Addr) rt.Future[int] {
	s.mu.Lock()
	if s.state == DatagramClosed {
		err := errClosed("sendto")
		s.mu.Unlock()
		return rt.FutureFunc[int](func(*rt.Cx) rt.PollResult[int] { return rt.Done(0, err) })
	}
	nonBlocking := s.nonBlocking()
	deadline := deadlineFor(s.timeouts.Send)
	s.mu.Unlock()

	var sa unix.Sockaddr
	if addr != nil {
		var err error
		sa, err = addr.toSockaddr()
		if err != nil {
			return rt.FutureFunc[int](func(*rt.Cx) rt.PollResult[int] { return rt.Done(0, err) })
		}
	}

	return s.ring.submit(func() (int, error) {
		for {
			var err error
			if sa != nil {
				err = unix.Sendto(s.host, buf, 0, sa)
			} else {
				_, err = unix.Write(s.host, buf)
			}
			if err == nil {
				s.cfg.Metrics.SocketBytesSent.Add(context.Background(), int64(len(buf)))
				return len(buf), nil
			}
			if err != unix.EAGAIN && err != unix.EWOULDBLOCK {
				return 0, errutil.Wrap(errutil.EPIPE, err, "socket: sendto")
			}
			if nonBlocking {
				return 0, blockingErr(true, "sendto")
			}
			if perr := pollReady(s.host, unix.POLLOUT, deadline); perr != nil {
				return 0, perr
			}
		}
	})
}

// recvFromResult carries the sender address alongside the byte count,
// since rt.Future is single-valued.
type recvFromResult struct {
	n    int
	from Addr
}

// N and From expose recvFromResult's fields to callers outside this
// package (internal/syscall's recvfrom(2) handler in particular), which
// can hold a value of this unexported type via := without ever naming it.
func (r recvFromResult) N() int     { return r.n }
func (r recvFromResult) From() Addr { return r.from }

// RecvFrom reads one datagram, reporting the sender's address.
func (s *DatagramSocket) RecvFrom(buf []byte) rt.Future[recvFromResult] {
	s.mu.Lock()
	if s.state == DatagramClosed {
		err := errClosed("recvfrom")
		s.mu.Unlock()
		return rt.FutureFunc[recvFromResult](func(*rt.Cx) rt.PollResult[recvFromResult] {
			return rt.Done(recvFromResult{}, err)
		})
	}
	nonBlocking := s.nonBlocking()
	deadline := deadlineFor(s.timeouts.Recv)
	s.mu.Unlock()

	var from unix.Sockaddr
	fut := s.ring.submit(func() (int, error) {
		for {
			n, sa, err := unix.Recvfrom(s.host, buf, 0)
			if err == nil {
				from = sa
				s.cfg.Metrics.SocketBytesRecv.Add(context.Background(), int64(n))
				return n, nil
			}
			if err != unix.EAGAIN && err != unix.EWOULDBLOCK {
				return 0, errutil.Wrap(errutil.ECONNRESET, err, "socket: recvfrom")
			}
			if nonBlocking {
				return 0, blockingErr(true, "recvfrom")
			}
			if perr := pollReady(s.host, unix.POLLIN, deadline); perr != nil {
				return 0, perr
			}
		}
	})

	return &recvFromFuture{inner: fut, from: &from}
}

type recvFromFuture struct {
	inner rt.Future[int]
	from  *unix.Sockaddr
}

func (f *recvFromFuture) Poll(cx *rt.Cx) rt.PollResult[recvFromResult] {
	res := f.inner.Poll(cx)
	if !res.Ready {
		return rt.Pending[recvFromResult]()
	}
	if res.Err != nil {
		return rt.Done(recvFromResult{}, res.Err)
	}
	var addr Addr
	if *f.from != nil {
		addr, _ = fromSockaddr(*f.from)
	}
	return rt.Done(recvFromResult{n: res.Value, from: addr}, nil)
}

// Send/Recv are the connected-peer conveniences over SendTo/RecvFrom.
func (s *DatagramSocket) Send(buf []byte) rt.Future[int] {
	s.mu.Lock()
	connected := s.state == DatagramConnected
	s.mu.Unlock()
	if !connected {
		return rt.FutureFunc[int](func(*rt.Cx) rt.PollResult[int] {
			return rt.Done(0, errInvalidState("send", s.State().String()))
		})
	}
	return s.SendTo(buf, nil)
}

func (s *DatagramSocket) Recv(buf []byte) rt.Future[int] {
	inner := s.RecvFrom(buf)
	return rt.FutureFunc[int](func(cx *rt.Cx) rt.PollResult[int] {
		res := inner.Poll(cx)
		if !res.Ready {
			return rt.Pending[int]()
		}
		return rt.Done(res.Value.n, res.Err)
	})
}

// Close releases the host fd and unlinks a bound pathname Unix-domain
// address, per spec.md §4.G's "unlink on socket close".
func (s *DatagramSocket) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == DatagramClosed {
		return nil
	}
	err := unix.Close(s.host)
	if ua, ok := s.localAddr.(UnixAddr); ok && !ua.Abstract && ua.Path != "" {
		if uerr := s.cfg.Bridge.Unlink(ua.Path); uerr != nil {
			log.Warn("socket: failed to unlink unix socket path", "path", ua.Path, "error", uerr)
		}
	}
	s.state = DatagramClosed
	s.host = -1
	s.pollee.AddEvents(events.Hup)
	if err != nil {
		return errutil.Wrap(errutil.EIO, err, "socket: close")
	}
	return nil
}

func (s *DatagramSocket) GetSockOpt(level, optname int) ([]byte, error) {
	return GetSockOpt(s, level, optname)
}
func (s *DatagramSocket) SetSockOpt(level, optname int, val []byte) error {
	return SetSockOpt(s, level, optname, val)
}
func (s *DatagramSocket) Ioctl(req uint, arg []byte) ([]byte, error) {
	return Ioctl(s, req, arg)
}

func (s *DatagramSocket) LocalAddr() Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.localAddr
}
func (s *DatagramSocket) PeerAddr() Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peerAddr
}

func (s *DatagramSocket) SetTimeouts(t Timeouts) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timeouts = t
}
