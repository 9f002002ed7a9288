package socket

import (
	"encoding/binary"

	"golang.org/x/sys/unix"

	"github.com/golibos/libos/internal/errutil"
	"github.com/golibos/libos/internal/hostbridge"
)

// sockoptHost is implemented by the concrete socket types (stream, datagram)
// to give GetSockOpt/SetSockOpt access to the underlying host fd.
type sockoptHost interface {
	fd() int
	bridge() hostbridge.Bridge
}

// GetSockOpt dispatches (level, optname) the way host-socket's sockopt
// module does: SO_SNDBUF/SO_RCVBUF are read back doubled by the kernel, so
// the reported value is halved to match what the caller originally set
// (spec.md §4.G's "halves the value to match the kernel's doubling
// convention"); everything else is forwarded verbatim to the host fd.
func GetSockOpt(h sockoptHost, level, optname int) ([]byte, error) {
	if level == unix.SOL_SOCKET && (optname == unix.SO_SNDBUF || optname == unix.SO_RCVBUF) {
		v, err := unix.GetsockoptInt(h.fd(), level, optname)
		if err != nil {
			return nil, errutil.Wrap(errutil.EINVAL, err, "socket: getsockopt(%d,%d)", level, optname)
		}
		buf := make([]byte, 4)
		binary.LittleEndian.PutUint32(buf, uint32(v/2))
		return buf, nil
	}

	v, err := unix.GetsockoptInt(h.fd(), level, optname)
	if err == nil {
		buf := make([]byte, 4)
		binary.LittleEndian.PutUint32(buf, uint32(v))
		return buf, nil
	}

	return h.bridge().Getsockopt(h.fd(), level, optname)
}

// SetSockOpt is GetSockOpt's counterpart for SO_SNDBUF/SO_RCVBUF: the
// caller's value is passed to the host unchanged, the host kernel doubles
// it, and GetSockOpt's halving then reports the caller's value back.
func SetSockOpt(h sockoptHost, level, optname int, val []byte) error {
	if level == unix.SOL_SOCKET && (optname == unix.SO_SNDBUF || optname == unix.SO_RCVBUF) {
		if len(val) < 4 {
			return errutil.New(errutil.EINVAL, "socket: setsockopt(%d,%d) needs 4 bytes", level, optname)
		}
		v := binary.LittleEndian.Uint32(val)
		if err := unix.SetsockoptInt(h.fd(), level, optname, int(v)); err != nil {
			return errutil.Wrap(errutil.EINVAL, err, "socket: setsockopt(%d,%d)", level, optname)
		}
		return nil
	}

	if len(val) == 4 {
		v := binary.LittleEndian.Uint32(val)
		if err := unix.SetsockoptInt(h.fd(), level, optname, int(v)); err == nil {
			return nil
		}
	}

	return h.bridge().Setsockopt(h.fd(), level, optname, val)
}
