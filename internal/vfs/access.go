package vfs

import "github.com/golibos/libos/internal/errutil"

// AccessMode mirrors the POSIX access(2) mode bits, per original_source's
// fs/access.rs AccessModes.
type AccessMode uint32

const (
	XOK AccessMode = 1
	WOK AccessMode = 2
	ROK AccessMode = 4
)

// Check performs a per-component permission check against attr for the
// given uid/gid, per spec.md §4.F "Permission and ownership checks are
// performed per component." The uid 0 (root) bypasses all checks.
func Check(attr Attr, uid, gid uint32, mode AccessMode) error {
	if uid == 0 {
		return nil
	}

	var bits uint32
	switch {
	case uid == attr.UID:
		bits = (attr.Mode >> 6) & 0o7
	case gid == attr.GID:
		bits = (attr.Mode >> 3) & 0o7
	default:
		bits = attr.Mode & 0o7
	}

	want := uint32(0)
	if mode&ROK != 0 {
		want |= 0o4
	}
	if mode&WOK != 0 {
		want |= 0o2
	}
	if mode&XOK != 0 {
		want |= 0o1
	}

	if bits&want != want {
		return errutil.New(errutil.EACCES, "permission denied")
	}
	return nil
}
