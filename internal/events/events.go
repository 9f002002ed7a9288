// Package events implements the poll/observer layer of spec.md §4.E: a
// Pollee holding a current event mask and a list of observers, an Epoll
// file multiplexing many pollees, and the WaiterQueue-backed observer that
// lets a task block on a single pollee. Grounded on original_source's
// async-io crate (event/events.rs, poll/observer.rs) and src/events/*
// (event.rs, observer.rs, waiter_queue_observer.rs).
package events

// Mask is a Linux-compatible poll event bitfield, matching async-io's
// Events bitflags (event/events.rs).
type Mask uint32

const (
	In    Mask = 0x0001
	Pri   Mask = 0x0002
	Out   Mask = 0x0004
	Err   Mask = 0x0008
	Hup   Mask = 0x0010
	Nval  Mask = 0x0020
	RdHup Mask = 0x2000

	// AlwaysPoll is ORed into every pollee's interest mask: Err and Hup are
	// always reported regardless of what the caller registered for, per
	// spec.md §4.E.
	AlwaysPoll = Err | Hup
)

func (m Mask) Has(bits Mask) bool { return m&bits != 0 }
func (m Mask) String() string {
	names := []struct {
		bit  Mask
		name string
	}{
		{In, "IN"}, {Pri, "PRI"}, {Out, "OUT"}, {Err, "ERR"},
		{Hup, "HUP"}, {Nval, "NVAL"}, {RdHup, "RDHUP"},
	}
	s := ""
	for _, n := range names {
		if m.Has(n.bit) {
			if s != "" {
				s += "|"
			}
			s += n.name
		}
	}
	if s == "" {
		return "0"
	}
	return s
}
