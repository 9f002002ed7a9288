package vm

import (
	"github.com/golibos/libos/internal/errutil"
)

// maxCStringLen bounds CopyInString's scan, matching Linux's PATH_MAX-style
// refusal to chase an unterminated guest buffer forever.
const maxCStringLen = 4096

// boundsLocked reports whether [addr, addr+length) falls entirely within
// the reservation backing this address space. Caller holds mu.
func (as *AddrSpace) boundsLocked(addr, length uint64) error {
	if length == 0 {
		return nil
	}
	end := addr + length
	if end < addr || addr < as.base || end > as.base+as.size {
		return errutil.New(errutil.EFAULT, "vm: address range [%#x,%#x) outside the %#x-byte reservation at %#x", addr, end, as.size, as.base)
	}
	return nil
}

// CopyIn reads len(buf) bytes from guest address addr into buf, the
// guest-memory read half of the copy_from_user primitive every pointer-
// argument syscall (read's output buffer pointer aside; that direction is
// CopyOut) needs, per spec.md §4.J's syscall ABI. Grounded on this port's
// AllocUntrusted-backed reservation: the whole address space shares one
// hostbridge token, so a guest address translates to a flat byte offset
// into it.
func (as *AddrSpace) CopyIn(addr uint64, buf []byte) error {
	as.mu.Lock()
	token := as.token
	base := as.base
	if err := as.boundsLocked(addr, uint64(len(buf))); err != nil {
		as.mu.Unlock()
		return err
	}
	as.mu.Unlock()
	return as.bridge.ReadUntrusted(token, int(addr-base), buf)
}

// CopyOut writes buf into guest address addr, the copy_to_user half.
func (as *AddrSpace) CopyOut(addr uint64, buf []byte) error {
	as.mu.Lock()
	token := as.token
	base := as.base
	if err := as.boundsLocked(addr, uint64(len(buf))); err != nil {
		as.mu.Unlock()
		return err
	}
	as.mu.Unlock()
	return as.bridge.WriteUntrusted(token, int(addr-base), buf)
}

// CopyInString reads a NUL-terminated string starting at guest address
// addr, used by syscalls that take a path argument (open, unlink, stat,
// execve's argv/envp). It stops at the first NUL byte or maxCStringLen,
// whichever comes first, reporting ENAMETOOLONG if no NUL is found in
// bounds.
func (as *AddrSpace) CopyInString(addr uint64) (string, error) {
	const chunk = 256
	var out []byte
	for len(out) < maxCStringLen {
		want := chunk
		if len(out)+want > maxCStringLen {
			want = maxCStringLen - len(out)
		}
		buf := make([]byte, want)
		if err := as.CopyIn(addr+uint64(len(out)), buf); err != nil {
			return "", err
		}
		if i := indexByte(buf, 0); i >= 0 {
			out = append(out, buf[:i]...)
			return string(out), nil
		}
		out = append(out, buf...)
	}
	return "", errutil.New(errutil.ENAMETOOLONG, "vm: guest string at %#x exceeds %d bytes without a NUL terminator", addr, maxCStringLen)
}

func indexByte(b []byte, c byte) int {
	for i, v := range b {
		if v == c {
			return i
		}
	}
	return -1
}
