package socket

import (
	"encoding/binary"

	"github.com/golibos/libos/internal/errutil"
	"github.com/golibos/libos/internal/hostbridge"
)

// Ioctl requests this package special-cases before falling back to the
// host bridge, per spec.md §4.G. Numeric values are the fixed Linux ioctl
// request codes (asm-generic/ioctls.h, linux/sockios.h), spelled out here
// rather than sourced from golang.org/x/sys/unix since not every request
// this package forwards (SIOCGIFCONF/SIOCGIFADDR in particular) is
// exported by every platform build of that package.
const (
	FIONBIO     = 0x5421
	FIONREAD    = 0x541b
	TCGETS      = 0x5401
	TCSETS      = 0x5402
	TIOCGWINSZ  = 0x5413
	TIOCSWINSZ  = 0x5414
	SIOCGIFCONF = 0x8912
	SIOCGIFADDR = 0x8915
)

// ioctlHost is implemented by the concrete socket types so Ioctl can reach
// their fd, bridge, and non-blocking flag.
type ioctlHost interface {
	fd() int
	bridge() hostbridge.Bridge
	recvQueued() int
	setNonBlocking(bool)
}

// Ioctl dispatches req the way host-socket's ioctl module does: FIONREAD
// and FIONBIO are answered locally (they reflect state this package already
// tracks), SIOCGIFCONF/SIOCGIFADDR and the terminal ioctls
// (TCGETS/TCSETS/TIOCGWINSZ/TIOCSWINSZ) are forwarded to the host via
// GetIfReqWithRawCmd, since this process has no network-interface or tty
// state of its own to answer from.
func Ioctl(h ioctlHost, req uint, arg []byte) ([]byte, error) {
	switch req {
	case FIONREAD:
		buf := make([]byte, 4)
		binary.LittleEndian.PutUint32(buf, uint32(h.recvQueued()))
		return buf, nil

	case FIONBIO:
		if len(arg) < 4 {
			return nil, errutil.New(errutil.EINVAL, "socket: FIONBIO needs 4 bytes")
		}
		h.setNonBlocking(binary.LittleEndian.Uint32(arg) != 0)
		return nil, nil

	default:
		return GetIfReqWithRawCmd(h, req, arg)
	}
}

// GetIfReqWithRawCmd forwards an ifreq-shaped ioctl (interface
// configuration, address queries) or a terminal ioctl straight to the
// host, since this LibOS core does not model its own network-interface
// table or tty line discipline, per spec.md §4.G.
func GetIfReqWithRawCmd(h ioctlHost, req uint, arg []byte) ([]byte, error) {
	return h.bridge().Ioctl(h.fd(), req, arg)
}
