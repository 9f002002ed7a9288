package rt

// JoinHandle is returned by Spawn. It is itself awaitable as a Future[T]
// (so one task can await another's completion without blocking a vCPU), and
// also offers a blocking Wait for callers outside the scheduler (e.g. the
// process entry point joining the init task).
type JoinHandle[T any] struct {
	task *Task[T]
}

// ID returns the spawned task's id.
func (h *JoinHandle[T]) ID() TaskID { return h.task.taskID() }

// Cancel requests cooperative cancellation of the underlying task.
func (h *JoinHandle[T]) Cancel() { h.task.Cancel() }

// Poll implements Future[T]: ready once the task has completed.
func (h *JoinHandle[T]) Poll(cx *Cx) PollResult[T] {
	h.task.doneMu.Lock()
	if h.task.done {
		res := h.task.result
		h.task.doneMu.Unlock()
		return res
	}
	h.task.doneWaiters = append(h.task.doneWaiters, cx.Waker)
	h.task.doneMu.Unlock()
	return Pending[T]()
}

// Wait blocks the calling goroutine (not a vCPU) until the task completes,
// for use outside the scheduler's own tasks.
func (h *JoinHandle[T]) Wait() (T, error) {
	<-h.task.doneCh
	return h.task.result.Value, h.task.result.Err
}

// Spawn wraps fut into a task and enqueues it on s, per spec.md §4.C
// "Spawn and enqueue": picks a vCPU whose affinity bit is set and whose run
// queue is shortest, updates the last-vCPU hint, and unparks a parked
// target vCPU.
func Spawn[T any](s *Scheduler, fut Future[T], opts SpawnOptions) *JoinHandle[T] {
	t := newTask(s.ctx, s, fut, opts)
	s.enqueue(t)
	return &JoinHandle[T]{task: t}
}
