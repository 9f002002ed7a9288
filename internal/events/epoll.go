package events

import (
	"container/list"
	"sync"

	"github.com/golibos/libos/internal/errutil"
	"github.com/golibos/libos/internal/rt"
)

// Flags controls how one epoll entry reports readiness, per spec.md §4.E's
// "flags ∈ {edge-trigger, one-shot, exclusive, wake-up}".
type Flags uint32

const (
	EdgeTriggered Flags = 1 << iota
	OneShot
	// Exclusive restricts delivery of this entry's readiness to exactly one
	// waiter blocked in Wait, per spec.md §4.E, avoiding a thundering herd
	// when several threads share one epoll instance.
	Exclusive
	// WakeUp mirrors EPOLLWAKEUP's intent (keep the system from suspending
	// while this entry is pending) but has nothing to act on: this LibOS
	// has no suspend/resume concept, so the flag is accepted and stored for
	// EPOLL_CTL_MOD round-tripping but otherwise inert.
	WakeUp
)

// ReadyEvent is one entry returned from Epoll.Wait.
type ReadyEvent struct {
	FD     int
	Events Mask
}

type epollEntry struct {
	fd           int
	pollee       *Pollee
	mask         Mask
	flags        Flags
	lastReported Mask
	inReadyList  bool
	disabled     bool // set by OneShot after first delivery
	elem         *list.Element
}

// Epoll is the file object behind epoll_create: a map from watched fd to
// entry plus a ready list, per spec.md §4.E.
type Epoll struct {
	mu      sync.Mutex
	entries map[int]*epollEntry
	ready   *list.List // of *epollEntry
	wake    *WaiterObserver
}

// NewEpoll builds an empty epoll instance.
func NewEpoll() *Epoll {
	return &Epoll{
		entries: make(map[int]*epollEntry),
		ready:   list.New(),
		wake:    NewWaiterObserver(),
	}
}

// Add registers fd's pollee for mask under flags. Returns EEXIST if fd is
// already watched.
func (ep *Epoll) Add(fd int, pollee *Pollee, mask Mask, flags Flags) error {
	ep.mu.Lock()
	if _, ok := ep.entries[fd]; ok {
		ep.mu.Unlock()
		return errutil.New(errutil.EEXIST, "epoll: fd %d already registered", fd)
	}
	e := &epollEntry{fd: fd, pollee: pollee, mask: mask, flags: flags}
	ep.entries[fd] = e
	ep.mu.Unlock()

	pollee.Register(ObserverFunc(func(p *Pollee, active Mask) {
		ep.onEvent(e, active)
	}), mask|AlwaysPoll, nil)

	// Level-triggered entries pick up events already active at registration
	// time, since there is no edge to observe.
	if flags&EdgeTriggered == 0 {
		active := pollee.Poll(mask, nil)
		if active != 0 {
			ep.onEvent(e, active)
		}
	}
	return nil
}

// Mod updates an existing entry's mask and flags, re-enabling it if it had
// been disabled by OneShot.
func (ep *Epoll) Mod(fd int, mask Mask, flags Flags) error {
	ep.mu.Lock()
	e, ok := ep.entries[fd]
	if !ok {
		ep.mu.Unlock()
		return errutil.New(errutil.ENOENT, "epoll: fd %d not registered", fd)
	}
	e.mask = mask
	e.flags = flags
	e.disabled = false
	e.lastReported = 0
	ep.mu.Unlock()
	return nil
}

// Del drops fd from this epoll instance.
func (ep *Epoll) Del(fd int) error {
	ep.mu.Lock()
	defer ep.mu.Unlock()
	e, ok := ep.entries[fd]
	if !ok {
		return errutil.New(errutil.ENOENT, "epoll: fd %d not registered", fd)
	}
	delete(ep.entries, fd)
	e.disabled = true
	if e.inReadyList {
		ep.ready.Remove(e.elem)
	}
	return nil
}

func (ep *Epoll) onEvent(e *epollEntry, active Mask) {
	ep.mu.Lock()
	if e.disabled {
		ep.mu.Unlock()
		return
	}
	interested := active & (e.mask | AlwaysPoll)
	if interested == 0 {
		ep.mu.Unlock()
		return
	}
	if e.flags&EdgeTriggered != 0 {
		newBits := interested &^ e.lastReported
		if newBits == 0 {
			ep.mu.Unlock()
			return
		}
	}
	e.lastReported = interested
	if !e.inReadyList {
		e.inReadyList = true
		e.elem = ep.ready.PushBack(e)
	}
	exclusive := e.flags&Exclusive != 0
	ep.mu.Unlock()
	if exclusive {
		ep.wake.queue.WakeOne()
		return
	}
	ep.wake.queue.WakeAll()
}

// Wait returns a future resolving to up to maxEvents ready entries. It
// blocks (yielding control) until at least one entry is ready.
func (ep *Epoll) Wait(maxEvents int) rt.Future[[]ReadyEvent] {
	return &epollWaitFuture{ep: ep, maxEvents: maxEvents}
}

type epollWaitFuture struct {
	ep        *Epoll
	maxEvents int
	waiting   rt.Future[struct{}]
}

func (f *epollWaitFuture) Poll(cx *rt.Cx) rt.PollResult[[]ReadyEvent] {
	for {
		if out := f.ep.drain(f.maxEvents); len(out) > 0 {
			return rt.Done(out, nil)
		}
		if f.waiting == nil {
			f.waiting = f.ep.wake.Wait()
		}
		res := f.waiting.Poll(cx)
		if !res.Ready {
			return rt.Pending[[]ReadyEvent]()
		}
		f.waiting = nil
	}
}

// drain pulls up to n ready entries off the list, re-queuing
// level-triggered entries whose events remain active and disabling
// one-shot entries after delivery, per spec.md §4.E.
func (ep *Epoll) drain(n int) []ReadyEvent {
	ep.mu.Lock()
	defer ep.mu.Unlock()

	var out []ReadyEvent
	for len(out) < n {
		front := ep.ready.Front()
		if front == nil {
			break
		}
		e := front.Value.(*epollEntry)
		ep.ready.Remove(front)
		e.inReadyList = false

		out = append(out, ReadyEvent{FD: e.fd, Events: e.lastReported})

		switch {
		case e.flags&OneShot != 0:
			e.disabled = true
		case e.flags&EdgeTriggered == 0:
			// Level-triggered: re-check and re-queue if still active.
			if active := e.pollee.Poll(e.mask, nil); active != 0 {
				e.lastReported = active
				e.inReadyList = true
				e.elem = ep.ready.PushBack(e)
			}
		default:
			e.lastReported = 0
		}
	}
	return out
}
