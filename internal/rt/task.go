package rt

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/golibos/libos/internal/bitset"
	"github.com/golibos/libos/internal/logger"
)

var taskLog = logger.New("rt")

// runnable is the scheduler's type-erased view of a Task[T]; it hides T so
// heterogeneous tasks can share one run queue.
type runnable interface {
	taskID() TaskID
	info() *SchedInfo
	// trySetEnqueued marks the task as present in some run queue, returning
	// false if it already was (de-duplicating concurrent Wake calls into at
	// most one queue entry, per spec.md "double-unpark is safe").
	trySetEnqueued() bool
	// clearEnqueued is called right before the task is polled, so a Wake
	// that fires during that poll can successfully re-enqueue it instead of
	// being lost.
	clearEnqueued()
	step(s *Scheduler)
}

// Task is a spawned unit of cooperative work over a boxed Future[T].
// Grounded on original_source's async-rt task/task.rs: task id, scheduling
// info, a mutex-protected option of the boxed future, and task-local
// storage.
type Task[T any] struct {
	tid    TaskID
	sched  SchedInfo
	ctx    context.Context
	cancel *cancelFlag
	locals *LocalsMap

	mu  sync.Mutex
	fut Future[T] // nil once completed

	enqueued atomic.Bool

	doneMu      sync.Mutex
	done        bool
	result      PollResult[T]
	doneWaiters []*Waker
	doneCh      chan struct{}
}

// SpawnOptions configures a new task at spawn time.
type SpawnOptions struct {
	Priority Priority
	Affinity *uint // nil means "all vCPUs"; otherwise a raw bitset value
	Nice     int
}

func newTask[T any](ctx context.Context, sched *Scheduler, fut Future[T], opts SpawnOptions) *Task[T] {
	info := DefaultSchedInfo(sched.numVCPU)
	info.Priority = opts.Priority
	info.Nice = opts.Nice
	if opts.Affinity != nil {
		info.Affinity = bitset.Set(*opts.Affinity)
	}
	t := &Task[T]{
		tid:    nextTaskID(),
		sched:  info,
		ctx:    ctx,
		cancel: &cancelFlag{},
		locals: NewLocalsMap(),
		fut:    fut,
		doneCh: make(chan struct{}),
	}
	return t
}

func (t *Task[T]) taskID() TaskID   { return t.tid }
func (t *Task[T]) info() *SchedInfo { return &t.sched }

func (t *Task[T]) trySetEnqueued() bool { return t.enqueued.CompareAndSwap(false, true) }
func (t *Task[T]) clearEnqueued()       { t.enqueued.Store(false) }

func (t *Task[T]) step(s *Scheduler) {
	t.mu.Lock()
	fut := t.fut
	t.mu.Unlock()
	if fut == nil {
		return // already completed; stale scheduling artifact
	}

	w := newWaker(func() { s.enqueue(t) })
	cx := &Cx{
		Ctx:   t.ctx,
		Waker: w,
		Task:  &TaskHandle{id: t.tid, locals: t.locals, canceled: t.cancel},
	}

	res := func() (res PollResult[T]) {
		defer func() {
			if r := recover(); r != nil {
				// "A panic in a task is caught at the task boundary and
				// logged; the vCPU continues" — spec.md §4.C failure
				// semantics.
				taskLog.Error("task panicked", "task_id", t.tid, "panic", r)
				var zero T
				res = Done(zero, panicError{r})
			}
		}()
		return fut.Poll(cx)
	}()

	if !res.Ready {
		return
	}

	t.mu.Lock()
	t.fut = nil
	t.mu.Unlock()
	t.finish(res)
}

func (t *Task[T]) finish(res PollResult[T]) {
	t.doneMu.Lock()
	t.done = true
	t.result = res
	waiters := t.doneWaiters
	t.doneWaiters = nil
	t.doneMu.Unlock()

	close(t.doneCh)
	t.locals.destroyAll()
	for _, w := range waiters {
		w.Wake()
	}
}

// Cancel sets the task's cooperative-cancellation flag; the task observes
// it via TaskHandle.Canceled() at whatever points it chooses.
func (t *Task[T]) Cancel() { t.cancel.set() }

type panicError struct{ v any }

func (p panicError) Error() string { return "task panic" }
