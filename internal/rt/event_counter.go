package rt

import "sync"

// EventCounter mirrors the host eventfd semantics used by spec.md's I/O
// completion signaling: Write adds to an internal counter and wakes every
// reader; Read blocks until the counter is non-zero, then atomically
// drains and returns it.
type EventCounter struct {
	mu      sync.Mutex
	count   uint64
	waiters *WaiterQueue
}

// NewEventCounter builds a counter starting at zero.
func NewEventCounter() *EventCounter {
	return &EventCounter{waiters: NewWaiterQueue()}
}

// Write adds n to the counter and wakes all pending readers.
func (e *EventCounter) Write(n uint64) {
	e.mu.Lock()
	e.count += n
	e.mu.Unlock()
	e.waiters.WakeAll()
}

// Read returns a future resolving to the counter's value once non-zero,
// resetting it to zero as part of the same operation.
func (e *EventCounter) Read() Future[uint64] {
	return &eventReadFuture{e: e}
}

func (e *EventCounter) tryDrain() (uint64, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.count == 0 {
		return 0, false
	}
	v := e.count
	e.count = 0
	return v, true
}

type eventReadFuture struct {
	e       *EventCounter
	waiting Future[struct{}]
}

func (f *eventReadFuture) Poll(cx *Cx) PollResult[uint64] {
	for {
		if v, ok := f.e.tryDrain(); ok {
			return Done(v, nil)
		}
		if f.waiting == nil {
			f.waiting = f.e.waiters.Wait()
		}
		if res := f.waiting.Poll(cx); !res.Ready {
			return Pending[uint64]()
		}
		f.waiting = nil
	}
}
