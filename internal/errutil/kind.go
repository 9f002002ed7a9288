// Package errutil defines the error taxonomy shared by every component of
// the LibOS core. Internal callers build and wrap rich errors; only the
// syscall dispatcher (internal/syscall) converts a Kind into a negative
// errno on the way back to the guest program.
package errutil

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// Kind is a POSIX errno class, drawn from the Linux errno namespace named in
// spec.md §7. Values alias golang.org/x/sys/unix so the mapping back to a
// real errno is exact rather than reinvented.
type Kind unix.Errno

const (
	EINVAL        = Kind(unix.EINVAL)
	ENOENT        = Kind(unix.ENOENT)
	EPERM         = Kind(unix.EPERM)
	EACCES        = Kind(unix.EACCES)
	EAGAIN        = Kind(unix.EAGAIN)
	EBADF         = Kind(unix.EBADF)
	ENOSPC        = Kind(unix.ENOSPC)
	EIO           = Kind(unix.EIO)
	ENOMEM        = Kind(unix.ENOMEM)
	EEXIST        = Kind(unix.EEXIST)
	ENOTDIR       = Kind(unix.ENOTDIR)
	EISDIR        = Kind(unix.EISDIR)
	ESPIPE        = Kind(unix.ESPIPE)
	EBUSY         = Kind(unix.EBUSY)
	ETIMEDOUT     = Kind(unix.ETIMEDOUT)
	EINTR         = Kind(unix.EINTR)
	EFAULT        = Kind(unix.EFAULT)
	ESRCH         = Kind(unix.ESRCH)
	ERANGE        = Kind(unix.ERANGE)
	ENOSYS        = Kind(unix.ENOSYS)
	EOVERFLOW     = Kind(unix.EOVERFLOW)
	ENAMETOOLONG  = Kind(unix.ENAMETOOLONG)
	EPIPE         = Kind(unix.EPIPE)
	ECONNRESET    = Kind(unix.ECONNRESET)
	ENOTCONN      = Kind(unix.ENOTCONN)
	ECONNREFUSED  = Kind(unix.ECONNREFUSED)
	EHOSTUNREACH  = Kind(unix.EHOSTUNREACH)
	ENETUNREACH   = Kind(unix.ENETUNREACH)
	ESHUTDOWN     = Kind(unix.ESHUTDOWN)
	ELOOP         = Kind(unix.ELOOP) // too many levels of symbolic links
	ENOTEMPTY     = Kind(unix.ENOTEMPTY)
	EMFILE        = Kind(unix.EMFILE)
	EWOULDBLOCK   = Kind(unix.EWOULDBLOCK)
	ECHILD        = Kind(unix.ECHILD)
	EDEADLK       = Kind(unix.EDEADLK)
	ENOTSOCK      = Kind(unix.ENOTSOCK)
)

// String renders the conventional errno mnemonic.
func (k Kind) String() string {
	return unix.Errno(k).Error()
}

// Error is the rich, chained error type used by every internal API in the
// core. Only the syscall dispatcher unwraps it down to a bare negative
// errno; everyone else should keep propagating *Error (or wrap it further).
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is allows errors.Is(err, errutil.EAGAIN) style checks by comparing Kind.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Kind == other.Kind
	}
	return false
}

// New builds an *Error with no wrapped cause.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an *Error that chains an underlying cause, in the manner of
// the teacher's pervasive fmt.Errorf("...: %w", err) wrapping.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// KindOf extracts the Kind from err if it is (or wraps) an *Error, otherwise
// reports EIO as a conservative default — matching spec.md §7's rule that
// integrity violations and other unclassified faults still flow through the
// ordinary error path rather than panicking.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return EIO
}

// Errno converts a Kind to the negated int a syscall-return-value slot
// expects, per spec.md §6's "Linux-compatible numbered table" convention.
func (k Kind) Errno() int {
	return -int(k)
}
