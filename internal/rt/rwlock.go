package rt

import "sync"

// RwLock is a writer-preferring async reader/writer lock, per spec.md
// §4.C: once a writer is queued, new readers block behind it, so a steady
// stream of readers cannot starve a writer.
type RwLock struct {
	mu             sync.Mutex
	readers        int
	writerActive   bool
	writersWaiting int
	readWaiters    *WaiterQueue
	writeWaiters   *WaiterQueue
}

// NewRwLock builds an unlocked RwLock.
func NewRwLock() *RwLock {
	return &RwLock{
		readWaiters:  NewWaiterQueue(),
		writeWaiters: NewWaiterQueue(),
	}
}

// RLockGuard releases one reader's hold on the lock.
type RLockGuard struct{ l *RwLock }

// WLockGuard releases the writer's exclusive hold on the lock.
type WLockGuard struct{ l *RwLock }

func (g *RLockGuard) Unlock() {
	l := g.l
	l.mu.Lock()
	l.readers--
	wake := l.readers == 0
	l.mu.Unlock()
	if wake {
		l.writeWaiters.WakeOne()
	}
}

func (g *WLockGuard) Unlock() {
	l := g.l
	l.mu.Lock()
	l.writerActive = false
	l.mu.Unlock()
	// Writer preference: give a queued writer first refusal, only waking
	// readers once no writer is waiting.
	if !l.writeWaiters.WakeOne() {
		l.readWaiters.WakeAll()
	}
}

func (l *RwLock) tryRLock() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.writerActive || l.writersWaiting > 0 {
		return false
	}
	l.readers++
	return true
}

func (l *RwLock) tryWLock() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.writerActive || l.readers > 0 {
		return false
	}
	l.writerActive = true
	return true
}

// RLock returns a future resolving to a read guard.
func (l *RwLock) RLock() Future[*RLockGuard] {
	return &rlockFuture{l: l}
}

// Lock returns a future resolving to an exclusive write guard.
func (l *RwLock) Lock() Future[*WLockGuard] {
	return &wlockFuture{l: l}
}

type rlockFuture struct {
	l       *RwLock
	waiting Future[struct{}]
}

func (f *rlockFuture) Poll(cx *Cx) PollResult[*RLockGuard] {
	for {
		if f.l.tryRLock() {
			return Done(&RLockGuard{l: f.l}, nil)
		}
		if f.waiting == nil {
			f.waiting = f.l.readWaiters.Wait()
		}
		if res := f.waiting.Poll(cx); !res.Ready {
			return Pending[*RLockGuard]()
		}
		f.waiting = nil
	}
}

type wlockFuture struct {
	l          *RwLock
	registered bool
	waiting    Future[struct{}]
}

func (f *wlockFuture) Poll(cx *Cx) PollResult[*WLockGuard] {
	if !f.registered {
		f.l.mu.Lock()
		f.l.writersWaiting++
		f.l.mu.Unlock()
		f.registered = true
	}
	for {
		if f.l.tryWLock() {
			f.l.mu.Lock()
			f.l.writersWaiting--
			f.l.mu.Unlock()
			return Done(&WLockGuard{l: f.l}, nil)
		}
		if f.waiting == nil {
			f.waiting = f.l.writeWaiters.Wait()
		}
		if res := f.waiting.Poll(cx); !res.Ready {
			return Pending[*WLockGuard]()
		}
		f.waiting = nil
	}
}
