package syscall

import (
	"bytes"
	"encoding/binary"

	"golang.org/x/sys/unix"

	"github.com/golibos/libos/internal/errutil"
	"github.com/golibos/libos/internal/fdtable"
	"github.com/golibos/libos/internal/process/context"
	"github.com/golibos/libos/internal/rt"
	"github.com/golibos/libos/internal/socket"
	"github.com/golibos/libos/internal/vfs"
)

// socketInode adapts internal/socket's StreamSocket/DatagramSocket onto
// vfs.Inode (exactly one of the two fields is non-nil), the way
// internal/vfs/devfs.Inode adapts a vfs.SyncFile: every directory-shaped
// method reports ENOTDIR since a socket is never a directory, and
// ReadAt/WriteAt drive the socket's Future-returning Recv/Send through
// rt.BlockOn so read(2)/write(2) (already wired against any vfs.Inode in
// file_calls.go) work unmodified against a socket fd too.
type socketInode struct {
	stream *socket.StreamSocket
	dgram  *socket.DatagramSocket
}

var _ vfs.Inode = (*socketInode)(nil)

func (s *socketInode) GetAttr() (vfs.Attr, error) {
	return vfs.Attr{Type: vfs.TypeSocket, Mode: 0o666}, nil
}

func (s *socketInode) SetAttr(vfs.Attr, vfs.AttrMask) error { return nil }

func notDir(op string) error {
	return errutil.New(errutil.ENOTDIR, "syscall: socket: %s: not a directory", op)
}

func (s *socketInode) Lookup(string) (vfs.Inode, error)            { return nil, notDir("lookup") }
func (s *socketInode) Readdir() ([]vfs.DirEntry, error)            { return nil, notDir("readdir") }
func (s *socketInode) Create(string, uint32) (vfs.Inode, error)    { return nil, notDir("create") }
func (s *socketInode) Mkdir(string, uint32) (vfs.Inode, error)     { return nil, notDir("mkdir") }
func (s *socketInode) Unlink(string) error                        { return notDir("unlink") }
func (s *socketInode) Rmdir(string) error                         { return notDir("rmdir") }
func (s *socketInode) Rename(string, vfs.Inode, string) error     { return notDir("rename") }
func (s *socketInode) Link(string, vfs.Inode) error                { return notDir("link") }
func (s *socketInode) Symlink(string, string) (vfs.Inode, error)  { return nil, notDir("symlink") }
func (s *socketInode) Readlink() (string, error) {
	return "", errutil.New(errutil.EINVAL, "syscall: socket: not a symlink")
}

func (s *socketInode) ReadAt(buf []byte, _ int64) (int, error) {
	if s.stream != nil {
		return rt.BlockOn(s.stream.Recv(buf))
	}
	return rt.BlockOn(s.dgram.Recv(buf))
}

func (s *socketInode) WriteAt(buf []byte, _ int64) (int, error) {
	if s.stream != nil {
		return rt.BlockOn(s.stream.Send(buf, false))
	}
	return rt.BlockOn(s.dgram.Send(buf))
}

// Truncate/Sync are no-ops: a socket has no backing store to resize or
// flush, matching devfs's special files.
func (s *socketInode) Truncate(int64) error { return nil }
func (s *socketInode) Sync() error          { return nil }

func (s *socketInode) getSockOpt(level, optname int) ([]byte, error) {
	if s.stream != nil {
		return s.stream.GetSockOpt(level, optname)
	}
	return s.dgram.GetSockOpt(level, optname)
}

func (s *socketInode) setSockOpt(level, optname int, val []byte) error {
	if s.stream != nil {
		return s.stream.SetSockOpt(level, optname, val)
	}
	return s.dgram.SetSockOpt(level, optname, val)
}

// socketFromFd looks up fd's File and type-asserts its Inode down to
// *socketInode, reporting ENOTSOCK if fd is open but not a socket.
func socketFromFd(env *Env, fd int32) (*socketInode, error) {
	t, err := files(env)
	if err != nil {
		return nil, err
	}
	f, err := t.Get(fd)
	if err != nil {
		return nil, err
	}
	si, ok := f.Inode.(*socketInode)
	if !ok {
		return nil, errutil.New(errutil.ENOTSOCK, "syscall: fd %d is not a socket", fd)
	}
	return si, nil
}

func domainFromFamily(af int) (socket.Domain, error) {
	switch af {
	case unix.AF_INET:
		return socket.DomainIPv4, nil
	case unix.AF_INET6:
		return socket.DomainIPv6, nil
	case unix.AF_UNIX:
		return socket.DomainUnix, nil
	default:
		return 0, errutil.New(errutil.EINVAL, "syscall: unsupported address family %d", af)
	}
}

// decodeSockaddr parses a guest struct sockaddr (family-tagged, as laid
// out by socket(7)) into a socket.Addr. Only the three families spec.md
// §4.G names are understood. sockaddr_in/in6's port and address are in
// network byte order; the leading family word and sockaddr_in6's scope id
// are host-endian (little-endian on x86-64).
func decodeSockaddr(buf []byte) (socket.Addr, error) {
	if len(buf) < 2 {
		return nil, errutil.New(errutil.EINVAL, "syscall: sockaddr shorter than its family field")
	}
	family := binary.LittleEndian.Uint16(buf[0:2])
	switch int(family) {
	case unix.AF_INET:
		if len(buf) < 8 {
			return nil, errutil.New(errutil.EINVAL, "syscall: sockaddr_in too short")
		}
		var ip [4]byte
		copy(ip[:], buf[4:8])
		return socket.IPv4Addr{IP: ip, Port: binary.BigEndian.Uint16(buf[2:4])}, nil
	case unix.AF_INET6:
		if len(buf) < 28 {
			return nil, errutil.New(errutil.EINVAL, "syscall: sockaddr_in6 too short")
		}
		var ip [16]byte
		copy(ip[:], buf[8:24])
		return socket.IPv6Addr{
			IP:      ip,
			Port:    binary.BigEndian.Uint16(buf[2:4]),
			ScopeID: binary.LittleEndian.Uint32(buf[24:28]),
		}, nil
	case unix.AF_UNIX:
		raw := buf[2:]
		if len(raw) > 0 && raw[0] == 0 {
			return socket.UnixAddr{Path: string(raw[1:]), Abstract: true}, nil
		}
		if i := bytes.IndexByte(raw, 0); i >= 0 {
			raw = raw[:i]
		}
		return socket.UnixAddr{Path: string(raw)}, nil
	default:
		return nil, errutil.New(errutil.EINVAL, "syscall: unsupported sockaddr family %d", family)
	}
}

// encodeSockaddr is decodeSockaddr's inverse, used to fill in the
// caller's sockaddr out-parameter on accept(2)/recvfrom(2).
func encodeSockaddr(addr socket.Addr) []byte {
	switch a := addr.(type) {
	case socket.IPv4Addr:
		b := make([]byte, 8)
		binary.LittleEndian.PutUint16(b[0:2], unix.AF_INET)
		binary.BigEndian.PutUint16(b[2:4], a.Port)
		copy(b[4:8], a.IP[:])
		return b
	case socket.IPv6Addr:
		b := make([]byte, 28)
		binary.LittleEndian.PutUint16(b[0:2], unix.AF_INET6)
		binary.BigEndian.PutUint16(b[2:4], a.Port)
		copy(b[8:24], a.IP[:])
		binary.LittleEndian.PutUint32(b[24:28], a.ScopeID)
		return b
	case socket.UnixAddr:
		b := make([]byte, 2+len(a.Path)+1)
		binary.LittleEndian.PutUint16(b[0:2], unix.AF_UNIX)
		if a.Abstract {
			copy(b[3:], a.Path)
		} else {
			copy(b[2:], a.Path)
		}
		return b
	default:
		return nil
	}
}

func socketConfig(env *Env) socket.Config {
	return socket.Config{Bridge: env.Bridge, Metrics: env.Metrics}
}

func sysSocket(env *Env, _ *context.CPUContext, args Args) (uint64, error) {
	domain, err := domainFromFamily(int(args.A0))
	if err != nil {
		return 0, err
	}
	typ := args.A1 & 0xff
	nonBlock := args.A1&unix.SOCK_NONBLOCK != 0
	cloExec := args.A1&unix.SOCK_CLOEXEC != 0

	var inode *socketInode
	switch typ {
	case unix.SOCK_STREAM:
		s, serr := socket.NewStreamSocket(domain, socketConfig(env))
		if serr != nil {
			return 0, serr
		}
		if nonBlock {
			s.SetStatusFlags(socket.FlagNonBlock)
		}
		inode = &socketInode{stream: s}
	case unix.SOCK_DGRAM:
		s, serr := socket.NewDatagramSocket(domain, socketConfig(env))
		if serr != nil {
			return 0, serr
		}
		if nonBlock {
			s.SetStatusFlags(socket.FlagNonBlock)
		}
		inode = &socketInode{dgram: s}
	default:
		return 0, errutil.New(errutil.EINVAL, "syscall: unsupported socket type %d", typ)
	}

	t, err := files(env)
	if err != nil {
		return 0, err
	}
	f := fdtable.NewFile(inode)
	if nonBlock {
		f.SetStatusFlags(fdtable.StatusNonblock)
	}
	return uint64(t.Install(f, cloExec)), nil
}

func sysBind(env *Env, _ *context.CPUContext, args Args) (uint64, error) {
	si, err := socketFromFd(env, int32(args.A0))
	if err != nil {
		return 0, err
	}
	space, err := addrSpace(env)
	if err != nil {
		return 0, err
	}
	raw := make([]byte, args.A2)
	if err := space.CopyIn(args.A1, raw); err != nil {
		return 0, err
	}
	addr, err := decodeSockaddr(raw)
	if err != nil {
		return 0, err
	}
	if si.stream != nil {
		return 0, si.stream.Bind(addr)
	}
	return 0, si.dgram.Bind(addr)
}

func sysListen(env *Env, _ *context.CPUContext, args Args) (uint64, error) {
	si, err := socketFromFd(env, int32(args.A0))
	if err != nil {
		return 0, err
	}
	if si.stream == nil {
		return 0, errutil.New(errutil.EINVAL, "syscall: listen on a datagram socket")
	}
	return 0, si.stream.Listen(int(args.A1))
}

func sysConnect(env *Env, _ *context.CPUContext, args Args) (uint64, error) {
	si, err := socketFromFd(env, int32(args.A0))
	if err != nil {
		return 0, err
	}
	space, err := addrSpace(env)
	if err != nil {
		return 0, err
	}
	raw := make([]byte, args.A2)
	if err := space.CopyIn(args.A1, raw); err != nil {
		return 0, err
	}
	addr, err := decodeSockaddr(raw)
	if err != nil {
		return 0, err
	}
	if si.stream != nil {
		_, err := rt.BlockOn(si.stream.Connect(addr))
		return 0, err
	}
	return 0, si.dgram.Connect(addr)
}

// doAccept is accept(2)/accept4(2)'s shared body.
func doAccept(env *Env, args Args, nonBlock, cloExec bool) (uint64, error) {
	si, err := socketFromFd(env, int32(args.A0))
	if err != nil {
		return 0, err
	}
	if si.stream == nil {
		return 0, errutil.New(errutil.EINVAL, "syscall: accept on a datagram socket")
	}
	child, err := rt.BlockOn(si.stream.Accept())
	if err != nil {
		return 0, err
	}
	if nonBlock {
		child.SetStatusFlags(socket.FlagNonBlock)
	}
	if args.A1 != 0 {
		if space, serr := addrSpace(env); serr == nil {
			if enc := encodeSockaddr(child.PeerAddr()); enc != nil {
				_ = space.CopyOut(args.A1, enc)
			}
		}
	}

	t, err := files(env)
	if err != nil {
		return 0, err
	}
	f := fdtable.NewFile(&socketInode{stream: child})
	return uint64(t.Install(f, cloExec)), nil
}

func sysAccept(env *Env, _ *context.CPUContext, args Args) (uint64, error) {
	return doAccept(env, args, false, false)
}

func sysAccept4(env *Env, _ *context.CPUContext, args Args) (uint64, error) {
	return doAccept(env, args, args.A3&unix.SOCK_NONBLOCK != 0, args.A3&unix.SOCK_CLOEXEC != 0)
}

func sysSendto(env *Env, _ *context.CPUContext, args Args) (uint64, error) {
	si, err := socketFromFd(env, int32(args.A0))
	if err != nil {
		return 0, err
	}
	space, err := addrSpace(env)
	if err != nil {
		return 0, err
	}
	buf := make([]byte, clampCount(args.A2))
	if err := space.CopyIn(args.A1, buf); err != nil {
		return 0, err
	}

	var addr socket.Addr
	if args.A4 != 0 && args.A5 != 0 {
		raw := make([]byte, args.A5)
		if err := space.CopyIn(args.A4, raw); err != nil {
			return 0, err
		}
		if addr, err = decodeSockaddr(raw); err != nil {
			return 0, err
		}
	}

	if si.stream != nil {
		n, err := rt.BlockOn(si.stream.Send(buf, false))
		return uint64(n), err
	}
	n, err := rt.BlockOn(si.dgram.SendTo(buf, addr))
	return uint64(n), err
}

func sysRecvfrom(env *Env, _ *context.CPUContext, args Args) (uint64, error) {
	si, err := socketFromFd(env, int32(args.A0))
	if err != nil {
		return 0, err
	}
	space, err := addrSpace(env)
	if err != nil {
		return 0, err
	}
	buf := make([]byte, clampCount(args.A2))

	var n int
	var from socket.Addr
	if si.stream != nil {
		n, err = rt.BlockOn(si.stream.Recv(buf))
	} else {
		res, rerr := rt.BlockOn(si.dgram.RecvFrom(buf))
		n, from, err = res.N(), res.From(), rerr
	}
	if n > 0 {
		if cerr := space.CopyOut(args.A1, buf[:n]); cerr != nil {
			return 0, cerr
		}
	}
	if err != nil {
		return 0, err
	}
	if args.A4 != 0 && from != nil {
		if enc := encodeSockaddr(from); enc != nil {
			_ = space.CopyOut(args.A4, enc)
		}
	}
	return uint64(n), nil
}

func sysShutdown(env *Env, _ *context.CPUContext, args Args) (uint64, error) {
	si, err := socketFromFd(env, int32(args.A0))
	if err != nil {
		return 0, err
	}
	if si.stream == nil {
		return 0, errutil.New(errutil.EINVAL, "syscall: shutdown not supported on datagram sockets")
	}
	var how socket.Shutdown
	switch args.A1 {
	case unix.SHUT_RD:
		how = socket.ShutdownRead
	case unix.SHUT_WR:
		how = socket.ShutdownWrite
	default:
		how = socket.ShutdownBoth
	}
	return 0, si.stream.Shutdown(how)
}

func sysSetsockopt(env *Env, _ *context.CPUContext, args Args) (uint64, error) {
	si, err := socketFromFd(env, int32(args.A0))
	if err != nil {
		return 0, err
	}
	space, err := addrSpace(env)
	if err != nil {
		return 0, err
	}
	val := make([]byte, clampCount(args.A4))
	if len(val) > 0 {
		if err := space.CopyIn(args.A3, val); err != nil {
			return 0, err
		}
	}
	return 0, si.setSockOpt(int(args.A1), int(args.A2), val)
}

func sysGetsockopt(env *Env, _ *context.CPUContext, args Args) (uint64, error) {
	si, err := socketFromFd(env, int32(args.A0))
	if err != nil {
		return 0, err
	}
	space, err := addrSpace(env)
	if err != nil {
		return 0, err
	}

	var optlen uint32
	if args.A4 != 0 {
		lenBuf := make([]byte, 4)
		if err := space.CopyIn(args.A4, lenBuf); err != nil {
			return 0, err
		}
		optlen = binary.LittleEndian.Uint32(lenBuf)
	}

	out, err := si.getSockOpt(int(args.A1), int(args.A2))
	if err != nil {
		return 0, err
	}
	if uint32(len(out)) > optlen {
		out = out[:optlen]
	}
	if args.A3 != 0 && len(out) > 0 {
		if err := space.CopyOut(args.A3, out); err != nil {
			return 0, err
		}
	}
	if args.A4 != 0 {
		lenBuf := make([]byte, 4)
		binary.LittleEndian.PutUint32(lenBuf, uint32(len(out)))
		if err := space.CopyOut(args.A4, lenBuf); err != nil {
			return 0, err
		}
	}
	return 0, nil
}

// sysSocketpair only covers AF_UNIX SOCK_STREAM, the overwhelmingly common
// case (a local IPC pipe substitute) and the only one unix.Socketpair(2)
// itself supports.
func sysSocketpair(env *Env, _ *context.CPUContext, args Args) (uint64, error) {
	domain, err := domainFromFamily(int(args.A0))
	if err != nil {
		return 0, err
	}
	if domain != socket.DomainUnix {
		return 0, errutil.New(errutil.EINVAL, "syscall: socketpair only supports AF_UNIX")
	}
	if args.A1&0xff != unix.SOCK_STREAM {
		return 0, errutil.New(errutil.EINVAL, "syscall: socketpair only supports SOCK_STREAM")
	}
	nonBlock := args.A1&unix.SOCK_NONBLOCK != 0
	cloExec := args.A1&unix.SOCK_CLOEXEC != 0

	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		return 0, errutil.Wrap(errutil.EINVAL, err, "syscall: socketpair")
	}

	t, err := files(env)
	if err != nil {
		return 0, err
	}
	cfg := socketConfig(env)
	var guestFDs [2]int32
	for i, hostFD := range fds {
		s := socket.NewConnectedStream(domain, cfg, hostFD)
		if nonBlock {
			s.SetStatusFlags(socket.FlagNonBlock)
		}
		guestFDs[i] = t.Install(fdtable.NewFile(&socketInode{stream: s}), cloExec)
	}

	space, err := addrSpace(env)
	if err != nil {
		return 0, err
	}
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(guestFDs[0]))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(guestFDs[1]))
	return 0, space.CopyOut(args.A2, buf)
}

// registerSocket installs internal/socket's stream and datagram lifecycle
// onto t. sendmsg(2)/recvmsg(2) (iovec/ancillary-data decoding) and a raw
// ioctl(2) entry point stay unregistered; sendto/recvfrom already cover
// the common single-buffer send/receive path, per DESIGN.md.
func registerSocket(t *Table) {
	t.Register(Socket, sysSocket)
	t.Register(Bind, sysBind)
	t.Register(Listen, sysListen)
	t.Register(Connect, sysConnect)
	t.Register(Accept, sysAccept)
	t.Register(Accept4, sysAccept4)
	t.Register(Sendto, sysSendto)
	t.Register(Recvfrom, sysRecvfrom)
	t.Register(Shutdown, sysShutdown)
	t.Register(Setsockopt, sysSetsockopt)
	t.Register(Getsockopt, sysGetsockopt)
	t.Register(Socketpair, sysSocketpair)
}
