package socket

import (
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/golibos/libos/internal/errutil"
	"github.com/golibos/libos/internal/rt"
)

// ring submits blocking host operations onto a bounded worker pool and
// exposes each one's result as an rt.Future, the same submission/
// completion split blockdev.Device uses for disk I/O and the host
// io_uring submission/completion ring spec.md §4.G describes — completion
// is signaled through an rt.EventCounter, mirroring the eventfd semantics
// that primitive already models.
type ring struct {
	sem chan struct{}
}

func newRing(depth int) *ring {
	return &ring{sem: make(chan struct{}, depth)}
}

type opResult struct {
	mu   sync.Mutex
	n    int
	err  error
	done bool
}

func (r *opResult) set(n int, err error) {
	r.mu.Lock()
	r.n, r.err, r.done = n, err, true
	r.mu.Unlock()
}

func (r *opResult) get() (int, error, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.n, r.err, r.done
}

// submit runs op on a worker goroutine, bounded by the ring's configured
// depth, and returns a Future resolving to op's result.
func (r *ring) submit(op func() (int, error)) rt.Future[int] {
	result := &opResult{}
	sig := rt.NewEventCounter()

	r.sem <- struct{}{}
	go func() {
		defer func() { <-r.sem }()
		n, err := op()
		result.set(n, err)
		sig.Write(1)
	}()

	return &ringFuture{result: result, sig: sig}
}

type ringFuture struct {
	result  *opResult
	sig     *rt.EventCounter
	waiting rt.Future[uint64]
}

func (f *ringFuture) Poll(cx *rt.Cx) rt.PollResult[int] {
	if n, err, done := f.result.get(); done {
		return rt.Done(n, err)
	}
	if f.waiting == nil {
		f.waiting = f.sig.Read()
	}
	if res := f.waiting.Poll(cx); !res.Ready {
		return rt.Pending[int]()
	}
	f.waiting = nil
	n, err, _ := f.result.get()
	return rt.Done(n, err)
}

// pollReady blocks (the calling goroutine, meant to run inside a ring
// worker, not a vCPU) until fd is ready for the given poll events or
// deadline elapses, returning errutil.ETIMEDOUT on expiry. A zero deadline
// means wait indefinitely.
func pollReady(fd int, events int16, deadline time.Time) error {
	timeoutMS := -1
	if !deadline.IsZero() {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return errutil.New(errutil.ETIMEDOUT, "socket: deadline already passed")
		}
		timeoutMS = int(remaining.Milliseconds())
		if timeoutMS == 0 {
			timeoutMS = 1
		}
	}

	fds := []unix.PollFd{{Fd: int32(fd), Events: events}}
	for {
		n, err := unix.Poll(fds, timeoutMS)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return errutil.Wrap(errutil.EIO, err, "socket: poll fd %d", fd)
		}
		if n == 0 {
			return errutil.New(errutil.ETIMEDOUT, "socket: poll fd %d timed out", fd)
		}
		if fds[0].Revents&(unix.POLLERR|unix.POLLHUP|unix.POLLNVAL) != 0 && fds[0].Revents&events == 0 {
			return errutil.New(errutil.ECONNRESET, "socket: fd %d reported POLLERR/POLLHUP", fd)
		}
		return nil
	}
}
