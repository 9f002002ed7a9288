package rt

import (
	"container/list"
	"sync"
	"time"
)

// timerWheel is a hashed wheel indexed by absolute tick modulo wheel size,
// per spec.md §4.C. A dedicated goroutine (the "wheel advancer") ticks it
// forward on a fixed resolution; expiring a bucket wakes all its waiters.
// Entries whose deadline is further away than one revolution carry a
// revolutions-left counter, decremented each time the advancer passes
// through their bucket.
type timerWheel struct {
	mu          sync.Mutex
	resolution  time.Duration
	size        int
	buckets     []*list.List
	currentTick int64
	lastAdvance time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

type timerEntry struct {
	waker           *Waker
	revolutionsLeft int64
}

const (
	wheelResolution = time.Millisecond
	wheelSize       = 4096
)

func newTimerWheel(_ *Scheduler) *timerWheel {
	w := &timerWheel{
		resolution:  wheelResolution,
		size:        wheelSize,
		buckets:     make([]*list.List, wheelSize),
		lastAdvance: time.Now(),
		stop:        make(chan struct{}),
	}
	for i := range w.buckets {
		w.buckets[i] = list.New()
	}
	go w.advance()
	return w
}

func (w *timerWheel) advance() {
	ticker := time.NewTicker(w.resolution)
	defer ticker.Stop()
	for {
		select {
		case <-w.stop:
			return
		case <-ticker.C:
			w.tick()
		}
	}
}

// tick catches the wheel up to wall-clock time, firing every bucket it
// passes through whose entries have no revolutions left.
func (w *timerWheel) tick() {
	for {
		w.mu.Lock()
		if time.Since(w.lastAdvance) < w.resolution {
			w.mu.Unlock()
			return
		}
		w.currentTick++
		idx := w.currentTick % int64(w.size)
		bucket := w.buckets[idx]

		var toFire []*Waker
		for e := bucket.Front(); e != nil; {
			next := e.Next()
			entry := e.Value.(*timerEntry)
			if entry.revolutionsLeft > 0 {
				entry.revolutionsLeft--
			} else {
				toFire = append(toFire, entry.waker)
				bucket.Remove(e)
			}
			e = next
		}
		w.lastAdvance = w.lastAdvance.Add(w.resolution)
		w.mu.Unlock()

		for _, waker := range toFire {
			waker.Wake()
		}
	}
}

// schedule registers waker to fire once deadline has elapsed.
func (w *timerWheel) schedule(deadline time.Time) *timerEntryHandle {
	w.mu.Lock()
	defer w.mu.Unlock()

	delay := time.Until(deadline)
	if delay < 0 {
		delay = 0
	}
	ticks := int64(delay / w.resolution)
	absoluteTick := w.currentTick + ticks
	idx := absoluteTick % int64(w.size)
	revs := (ticks - 1) / int64(w.size)
	if revs < 0 {
		revs = 0
	}

	entry := &timerEntry{revolutionsLeft: revs}
	elem := w.buckets[idx].PushBack(entry)
	return &timerEntryHandle{wheel: w, bucket: idx, elem: elem, entry: entry}
}

type timerEntryHandle struct {
	wheel  *timerWheel
	bucket int64
	elem   *list.Element
	entry  *timerEntry
}

func (h *timerEntryHandle) setWaker(w *Waker) {
	h.entry.waker = w
}

func (w *timerWheel) stop() {
	w.stopOnce.Do(func() { close(w.stop) })
}

// Timer is a Future that becomes ready once its deadline elapses.
// Duration::ZERO ("d <= 0") is permitted and resolves immediately, per
// spec.md §4.C.
type Timer struct {
	deadline time.Time
	wheel    *timerWheel
	handle   *timerEntryHandle
}

// Sleep returns a Timer future that resolves after d has elapsed.
func (s *Scheduler) Sleep(d time.Duration) *Timer {
	return &Timer{deadline: time.Now().Add(d), wheel: s.timers}
}

// Deadline returns a Timer future that resolves once wall-clock time
// reaches t.
func (s *Scheduler) Deadline(t time.Time) *Timer {
	return &Timer{deadline: t, wheel: s.timers}
}

func (t *Timer) Poll(cx *Cx) PollResult[struct{}] {
	if !time.Now().Before(t.deadline) {
		return Done(struct{}{}, nil)
	}
	if t.handle == nil {
		t.handle = t.wheel.schedule(t.deadline)
	}
	t.handle.setWaker(cx.Waker)
	return Pending[struct{}]()
}
