package rt

import (
	"container/list"
	"sync"
	"sync/atomic"
	"time"
)

// WaiterQueue is a FIFO queue of parked wakers, the building block behind
// Mutex, RwLock and EventCounter, per spec.md §4.C/§5. It does not itself
// understand what condition callers are waiting on; callers re-check their
// own condition after being woken.
type WaiterQueue struct {
	mu   sync.Mutex
	list *list.List
}

type waiterEntry struct {
	waker *Waker
	done  *atomic.Bool
}

// NewWaiterQueue builds an empty queue.
func NewWaiterQueue() *WaiterQueue {
	return &WaiterQueue{list: list.New()}
}

func (q *WaiterQueue) enqueue(w *Waker, done *atomic.Bool) *list.Element {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.list.PushBack(&waiterEntry{waker: w, done: done})
}

// cancel removes elem from the queue if it is still present and not yet
// woken; used when a timed wait gives up.
func (q *WaiterQueue) cancel(elem *list.Element) {
	if elem == nil {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.list.Remove(elem)
}

// WakeOne wakes the longest-waiting entry, returning false if the queue was
// empty.
func (q *WaiterQueue) WakeOne() bool {
	q.mu.Lock()
	front := q.list.Front()
	if front == nil {
		q.mu.Unlock()
		return false
	}
	q.list.Remove(front)
	q.mu.Unlock()

	e := front.Value.(*waiterEntry)
	e.done.Store(true)
	e.waker.Wake()
	return true
}

// WakeAll wakes every currently queued waiter.
func (q *WaiterQueue) WakeAll() {
	q.mu.Lock()
	entries := make([]*waiterEntry, 0, q.list.Len())
	for e := q.list.Front(); e != nil; e = e.Next() {
		entries = append(entries, e.Value.(*waiterEntry))
	}
	q.list.Init()
	q.mu.Unlock()

	for _, e := range entries {
		e.done.Store(true)
		e.waker.Wake()
	}
}

// Len reports the number of parked waiters, for diagnostics.
func (q *WaiterQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.list.Len()
}

// Wait returns a future that resolves once this waiter is explicitly woken
// by WakeOne or WakeAll.
func (q *WaiterQueue) Wait() Future[struct{}] {
	return &waitFuture{q: q, done: new(atomic.Bool)}
}

type waitFuture struct {
	q    *WaiterQueue
	elem *list.Element
	done *atomic.Bool
}

func (f *waitFuture) Poll(cx *Cx) PollResult[struct{}] {
	if f.done.Load() {
		return Done(struct{}{}, nil)
	}
	if f.elem == nil {
		f.elem = f.q.enqueue(cx.Waker, f.done)
	}
	return Pending[struct{}]()
}

// WaitTimeout returns a future resolving to true if woken before the
// timeout elapses, false if the timeout wins the race. The elapsed time
// budget is tracked as an absolute deadline computed once at the first
// poll, per spec.md's "a mutable duration that accumulates elapsed time
// across repeated waits" — repeated Poll calls never extend the deadline.
func (q *WaiterQueue) WaitTimeout(s *Scheduler, timeout time.Duration) Future[bool] {
	return &waitTimeoutFuture{q: q, s: s, timeout: timeout, done: new(atomic.Bool)}
}

type waitTimeoutFuture struct {
	q       *WaiterQueue
	s       *Scheduler
	timeout time.Duration

	elem     *list.Element
	done     *atomic.Bool
	deadline time.Time
	timer    *Timer
	started  bool
}

func (f *waitTimeoutFuture) Poll(cx *Cx) PollResult[bool] {
	if !f.started {
		f.started = true
		f.deadline = time.Now().Add(f.timeout)
	}
	if f.done.Load() {
		return Done(true, nil)
	}
	if f.elem == nil {
		f.elem = f.q.enqueue(cx.Waker, f.done)
	}
	if f.timer == nil {
		f.timer = f.s.Deadline(f.deadline)
	}
	if res := f.timer.Poll(cx); res.Ready {
		if f.done.Load() {
			return Done(true, nil)
		}
		f.q.cancel(f.elem)
		return Done(false, nil)
	}
	return Pending[bool]()
}
