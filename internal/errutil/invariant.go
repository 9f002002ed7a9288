package errutil

import "sync/atomic"

// invariantsEnabled gates whether CheckInvariant panics (useful while
// debugging a new subsystem) or downgrades to an ordinary integrity Error.
// Mirrors the teacher's internal/locker.EnableInvariantsCheck() toggle
// (referenced by internal/cache/lru/lru_test.go), and implements Design Note
// "exception-like control flow for errors": state-machine and lock-ordering
// violations are programming errors, turned into debug assertions here and
// an integrity Kind in release builds.
var invariantsEnabled atomic.Bool

// EnableInvariantsCheck turns CheckInvariant violations into panics. Intended
// for tests and development builds, never production.
func EnableInvariantsCheck() { invariantsEnabled.Store(true) }

// DisableInvariantsCheck restores the release-build behavior.
func DisableInvariantsCheck() { invariantsEnabled.Store(false) }

// CheckInvariant panics with msg if invariant checking is enabled and ok is
// false; otherwise it returns an EIO *Error describing the violated
// invariant so the caller can fail the operation instead of crashing the
// process.
func CheckInvariant(ok bool, msg string) error {
	if ok {
		return nil
	}
	if invariantsEnabled.Load() {
		panic("invariant violated: " + msg)
	}
	return New(EIO, "invariant violated: %s", msg)
}
