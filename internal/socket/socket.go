// Package socket implements the stream and datagram socket subsystem of
// spec.md §4.G: sockets whose data path runs over a host submission/
// completion ring (internal/socket/uring.go, mirroring the eventfd-backed
// completion signaling internal/rt.EventCounter already provides for disk
// I/O), with a pollee-integrated send/receive path, (level, optname)
// sockopt dispatch, and a handful of ioctls.
//
// Grounded on original_source's async-socket crate (lib.rs's module split
// into stream/datagram/ioctl/sockopt/runtime) and host-socket crate
// (common/operation.rs's per-direction async op, stream/states/init.rs's
// state machine, sockopt/set.rs's (level, optname) dispatch), adapted from
// their SGX io_uring-callback runtime into golang.org/x/sys/unix syscalls
// run through this package's own ring.
package socket

import (
	"time"

	"github.com/golibos/libos/internal/errutil"
	"github.com/golibos/libos/internal/events"
	"github.com/golibos/libos/internal/hostbridge"
	"github.com/golibos/libos/internal/logger"
	"github.com/golibos/libos/internal/metrics"
)

var log = logger.New("socket")

// Domain is the address family a socket was created in.
type Domain int

const (
	DomainIPv4 Domain = iota
	DomainIPv6
	DomainUnix
)

// Type is the socket's transport discipline.
type Type int

const (
	TypeStream Type = iota
	TypeDatagram
)

// Shutdown selects which half of a connection to shut down, per spec.md
// §4.G's "Shutdown Read|Write|Both".
type Shutdown int

const (
	ShutdownRead Shutdown = iota
	ShutdownWrite
	ShutdownBoth
)

// StatusFlags are the subset of host open-file status flags sockets care
// about. Only NonBlock exists today; it is this package's own bit, not
// unix.O_NONBLOCK's value, and Ioctl(FIONBIO) sets and clears it.
type StatusFlags uint32

const (
	FlagNonBlock StatusFlags = 1 << iota
)

// Config bundles the dependencies every socket needs: the host bridge for
// opaque sockopt/ioctl forwarding, a metrics registry for byte counters,
// and the ring depth bounding concurrent in-flight operations.
type Config struct {
	Bridge   hostbridge.Bridge
	Metrics  *metrics.Registry
	RingSize int
}

func (c Config) withDefaults() Config {
	if c.Metrics == nil {
		c.Metrics = metrics.Noop()
	}
	if c.RingSize <= 0 {
		c.RingSize = 128
	}
	return c
}

// base is the state every concrete socket type embeds: its pollee, status
// flags, per-direction timeouts, and the shared ring used to submit host
// operations.
type base struct {
	domain Domain
	typ    Type

	pollee *events.Pollee
	ring   *ring
	cfg    Config

	flags     StatusFlags
	timeouts  Timeouts
	localAddr Addr
	peerAddr  Addr
}

func newBase(domain Domain, typ Type, cfg Config) base {
	cfg = cfg.withDefaults()
	return base{
		domain: domain,
		typ:    typ,
		pollee: events.NewPollee(),
		ring:   newRing(cfg.RingSize),
		cfg:    cfg,
	}
}

// Pollee exposes the socket's readiness state to internal/events.
func (b *base) Pollee() *events.Pollee { return b.pollee }

// StatusFlags returns the socket's current flags.
func (b *base) StatusFlags() StatusFlags { return b.flags }

// SetStatusFlags replaces the socket's flags; setting/clearing NonBlock is
// atomic from the caller's point of view (b.flags is only ever touched
// under the embedding type's own mutex).
func (b *base) SetStatusFlags(flags StatusFlags) { b.flags = flags }

func (b *base) nonBlocking() bool { return b.flags&FlagNonBlock != 0 }

// deadlineFor computes the absolute deadline for one op given a per-direction
// timeout, per spec.md §4.G: a zero Duration means no timeout.
func deadlineFor(d time.Duration) time.Time {
	if d <= 0 {
		return time.Time{}
	}
	return time.Now().Add(d)
}

// blockingErr converts a poll timeout into the error spec.md names for
// each mode: "would block" (EAGAIN) for non-blocking sockets that could
// not make progress without waiting, "timed out" (ETIMEDOUT) for blocking
// sockets whose configured timeout elapsed.
func blockingErr(nonBlocking bool, op string) error {
	if nonBlocking {
		return errutil.New(errutil.EAGAIN, "socket: %s would block", op)
	}
	return errutil.New(errutil.ETIMEDOUT, "socket: %s timed out", op)
}

func errClosed(op string) error {
	return errutil.New(errutil.EBADF, "socket: %s on closed socket", op)
}

func errInvalidState(op, state string) error {
	return errutil.New(errutil.EINVAL, "socket: %s not valid in state %s", op, state)
}
