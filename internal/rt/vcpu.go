package rt

import (
	"container/list"
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// vcpu is one host worker goroutine running the cooperative scheduler loop,
// per spec.md §4.C. Each vCPU owns a local run queue (three FIFO lists, one
// per priority) and a parking cell.
type vcpu struct {
	id       int
	sched    *Scheduler
	mu       sync.Mutex
	local    [numPriorities]*list.List
	parked   atomic.Bool
	wake     chan struct{}
	stop     chan struct{}
	stopOnce sync.Once
}

func newVCPU(id int, s *Scheduler) *vcpu {
	v := &vcpu{
		id:    id,
		sched: s,
		wake:  make(chan struct{}, 1),
		stop:  make(chan struct{}),
	}
	for p := range v.local {
		v.local[p] = list.New()
	}
	return v
}

// push adds t to this vCPU's local run queue at its priority.
func (v *vcpu) push(t runnable) {
	v.mu.Lock()
	v.local[t.info().Priority].PushBack(t)
	v.mu.Unlock()
}

// localLen reports the total queued tasks across all priorities, used by
// the scheduler's shortest-queue placement heuristic.
func (v *vcpu) localLen() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	n := 0
	for _, q := range v.local {
		n += q.Len()
	}
	return n
}

func (v *vcpu) popLocal(p Priority) runnable {
	v.mu.Lock()
	defer v.mu.Unlock()
	q := v.local[p]
	front := q.Front()
	if front == nil {
		return nil
	}
	q.Remove(front)
	return front.Value.(runnable)
}

// pick implements spec.md's scan order: drain this vCPU's own queue at each
// priority in descending order, then steal from the injector at the same
// priority, before considering the next (lower) priority.
func (v *vcpu) pick() runnable {
	for p := Priority(0); p < numPriorities; p++ {
		if t := v.popLocal(p); t != nil {
			return t
		}
		if t := v.sched.injector.pop(p); t != nil {
			if v.sched.metrics != nil {
				v.sched.metrics.TasksStolen.Add(context.Background(), 1)
			}
			return t
		}
	}
	return nil
}

// unpark wakes the vCPU if parked; a no-op otherwise, per spec.md "Unpark on
// a vCPU that is not parked is a no-op."
func (v *vcpu) unpark() {
	if !v.parked.Load() {
		return
	}
	select {
	case v.wake <- struct{}{}:
	default:
	}
}

// park blocks with a timeout, the "timed futex-like wait" of spec.md §4.C.
// Returns true if woken by unpark, false on timeout.
func (v *vcpu) park(timeout time.Duration) bool {
	v.parked.Store(true)
	defer v.parked.Store(false)
	select {
	case <-v.wake:
		return true
	case <-time.After(timeout):
		return false
	case <-v.stop:
		return false
	}
}

// run is the vCPU's main loop: pick, step, or park when idle.
func (v *vcpu) run() {
	for {
		select {
		case <-v.stop:
			return
		default:
		}

		t := v.pick()
		if t == nil {
			v.sched.advanceTimersIfDue()
			if v.sched.metrics != nil {
				v.sched.metrics.TasksParked.Add(context.Background(), 1)
			}
			v.park(10 * time.Millisecond)
			continue
		}

		t.clearEnqueued()
		t.step(v.sched)
	}
}

func (v *vcpu) shutdown() {
	v.stopOnce.Do(func() { close(v.stop) })
}
