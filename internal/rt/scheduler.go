package rt

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/golibos/libos/internal/bitset"
	"github.com/golibos/libos/internal/errutil"
	"github.com/golibos/libos/internal/metrics"
)

// Scheduler owns a fixed set of vCPUs and the shared priority injector, per
// spec.md §4.C. Parallelism is fixed at construction ("established at
// startup via a single set-parallelism call").
type Scheduler struct {
	ctx      context.Context
	cancel   context.CancelFunc
	numVCPU  int
	vcpus    []*vcpu
	injector *injector
	metrics  *metrics.Registry

	timers *timerWheel

	// group supervises the vCPU pool: each vcpu.run loop is one group
	// goroutine. vcpu.run never returns a non-nil error (a vCPU only exits
	// via shutdown's close(stop)), so group.Wait only ever blocks for the
	// slowest vCPU to notice cancellation, but errgroup still gives
	// Shutdown a single wait point instead of a bespoke WaitGroup.
	group *errgroup.Group
}

// New builds a Scheduler with the given parallelism (vCPU count), per
// spec.md §6 config option "parallelism". reg may be nil (metrics.Noop()
// used internally) — see internal/metrics.
func New(parallelism int, reg *metrics.Registry) (*Scheduler, error) {
	if parallelism < 1 {
		return nil, errutil.New(errutil.EINVAL, "rt: parallelism must be >= 1, got %d", parallelism)
	}
	if reg == nil {
		reg = metrics.Noop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		ctx:      ctx,
		cancel:   cancel,
		numVCPU:  parallelism,
		injector: newInjector(),
		metrics:  reg,
	}
	s.timers = newTimerWheel(s)
	s.vcpus = make([]*vcpu, parallelism)
	for i := range s.vcpus {
		s.vcpus[i] = newVCPU(i, s)
	}
	s.group = new(errgroup.Group)
	for _, v := range s.vcpus {
		v := v
		s.group.Go(func() error {
			v.run()
			return nil
		})
	}
	return s, nil
}

// Parallelism returns the configured vCPU count.
func (s *Scheduler) Parallelism() int { return s.numVCPU }

// Shutdown stops every vCPU loop and waits for them to exit. Tasks still
// pending are abandoned (not canceled forcibly — spec.md §4.C: "no thread
// preemption is used for task cancel").
func (s *Scheduler) Shutdown() {
	s.cancel()
	s.timers.stop()
	for _, v := range s.vcpus {
		v.shutdown()
	}
	_ = s.group.Wait()
}

// enqueue implements spec.md's placement rule: pick a vCPU whose affinity
// bit is set and whose run queue is shortest, update the last-vCPU hint,
// unpark it if parked.
func (s *Scheduler) enqueue(t runnable) {
	if !t.trySetEnqueued() {
		return
	}

	info := t.info()
	target := s.pickVCPU(info)
	info.lastVCPU = target

	s.vcpus[target].push(t)
	if s.metrics != nil {
		s.metrics.TasksScheduled.Add(s.ctx, 1)
		s.metrics.RunQueueDepth.Add(s.ctx, 1)
	}
	s.vcpus[target].unpark()
}

func (s *Scheduler) pickVCPU(info *SchedInfo) int {
	affinity := info.Affinity
	if affinity.IsEmpty() {
		affinity = bitset.Full(uint(s.numVCPU))
	}

	best := -1
	bestLen := -1
	// Prefer the last-used vCPU on ties, for locality, but only if it is
	// still in the affinity set and not strictly worse than the shortest.
	affinity.Iterate(func(i uint) {
		if int(i) >= s.numVCPU {
			return
		}
		l := s.vcpus[i].localLen()
		if best == -1 || l < bestLen || (l == bestLen && int(i) == info.lastVCPU) {
			best = int(i)
			bestLen = l
		}
	})
	if best == -1 {
		best = info.lastVCPU
		if best < 0 || best >= s.numVCPU {
			best = 0
		}
	}
	return best
}

// advanceTimersIfDue lets an idle vCPU help drive the timer wheel forward
// instead of relying solely on the dedicated advancer goroutine, reducing
// wakeup latency when the system is otherwise quiescent.
func (s *Scheduler) advanceTimersIfDue() {
	s.timers.tick()
}
