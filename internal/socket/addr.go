package socket

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"

	"github.com/golibos/libos/internal/errutil"
)

// Addr is a socket address in one of the three families spec.md §4.G
// names: IPv4, IPv6, or Unix-domain (pathname or abstract).
type Addr interface {
	Domain() Domain
	String() string

	toSockaddr() (unix.Sockaddr, error)
}

// IPv4Addr is a dotted-quad address and port.
type IPv4Addr struct {
	IP   [4]byte
	Port uint16
}

func (a IPv4Addr) Domain() Domain { return DomainIPv4 }

func (a IPv4Addr) String() string {
	return fmt.Sprintf("%d.%d.%d.%d:%d", a.IP[0], a.IP[1], a.IP[2], a.IP[3], a.Port)
}

func (a IPv4Addr) toSockaddr() (unix.Sockaddr, error) {
	return &unix.SockaddrInet4{Port: int(a.Port), Addr: a.IP}, nil
}

// NewIPv4Addr parses "a.b.c.d" plus a port into an IPv4Addr.
func NewIPv4Addr(ip string, port uint16) (IPv4Addr, error) {
	parsed := net.ParseIP(ip).To4()
	if parsed == nil {
		return IPv4Addr{}, errutil.New(errutil.EINVAL, "socket: %q is not an IPv4 address", ip)
	}
	var out IPv4Addr
	copy(out.IP[:], parsed)
	out.Port = port
	return out, nil
}

// IPv6Addr is a 16-byte address, port, and scope id.
type IPv6Addr struct {
	IP      [16]byte
	Port    uint16
	ScopeID uint32
}

func (a IPv6Addr) Domain() Domain { return DomainIPv6 }

func (a IPv6Addr) String() string {
	ip := net.IP(a.IP[:])
	return fmt.Sprintf("[%s]:%d", ip.String(), a.Port)
}

func (a IPv6Addr) toSockaddr() (unix.Sockaddr, error) {
	return &unix.SockaddrInet6{Port: int(a.Port), ZoneId: a.ScopeID, Addr: a.IP}, nil
}

// NewIPv6Addr parses an IPv6 literal plus a port into an IPv6Addr.
func NewIPv6Addr(ip string, port uint16, scopeID uint32) (IPv6Addr, error) {
	parsed := net.ParseIP(ip).To16()
	if parsed == nil {
		return IPv6Addr{}, errutil.New(errutil.EINVAL, "socket: %q is not an IPv6 address", ip)
	}
	var out IPv6Addr
	copy(out.IP[:], parsed)
	out.Port = port
	out.ScopeID = scopeID
	return out, nil
}

// UnixAddr is a Unix-domain address: either a file-system pathname (bound
// to a real path the host can unlink) or an abstract name (Linux's
// leading-NUL namespace, never backed by a file-system entry), per
// spec.md §4.G.
type UnixAddr struct {
	Path     string
	Abstract bool
}

func (a UnixAddr) Domain() Domain { return DomainUnix }

func (a UnixAddr) String() string {
	if a.Abstract {
		return "@" + a.Path
	}
	return a.Path
}

func (a UnixAddr) toSockaddr() (unix.Sockaddr, error) {
	if a.Abstract {
		return &unix.SockaddrUnix{Name: "\x00" + a.Path}, nil
	}
	return &unix.SockaddrUnix{Name: a.Path}, nil
}

// fromSockaddr recovers an Addr from a raw host sockaddr (e.g. the result
// of accept4 or getpeername), used to populate localAddr/peerAddr.
func fromSockaddr(sa unix.Sockaddr) (Addr, error) {
	switch v := sa.(type) {
	case *unix.SockaddrInet4:
		return IPv4Addr{IP: v.Addr, Port: uint16(v.Port)}, nil
	case *unix.SockaddrInet6:
		return IPv6Addr{IP: v.Addr, Port: uint16(v.Port), ScopeID: v.ZoneId}, nil
	case *unix.SockaddrUnix:
		if len(v.Name) > 0 && v.Name[0] == 0 {
			return UnixAddr{Path: v.Name[1:], Abstract: true}, nil
		}
		return UnixAddr{Path: v.Name}, nil
	default:
		return nil, errutil.New(errutil.EINVAL, "socket: unrecognized host sockaddr %T", sa)
	}
}

func domainToAF(d Domain) int {
	switch d {
	case DomainIPv4:
		return unix.AF_INET
	case DomainIPv6:
		return unix.AF_INET6
	case DomainUnix:
		return unix.AF_UNIX
	default:
		return unix.AF_UNSPEC
	}
}
