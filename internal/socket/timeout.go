package socket

import "time"

// Timeouts holds the per-direction send/receive deadlines of spec.md
// §4.G. A zero Duration in either field means "no timeout", matching
// Linux's SO_SNDTIMEO/SO_RCVTIMEO convention (an all-zero timeval disables
// the timeout rather than making every call fail instantly).
type Timeouts struct {
	Send time.Duration
	Recv time.Duration
}

func (t Timeouts) forOp(write bool) time.Duration {
	if write {
		return t.Send
	}
	return t.Recv
}
