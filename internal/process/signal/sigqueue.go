package signal

import "sync"

// Kind records why a signal was generated, per do_kill.rs's UserSignalKind
// (Kill = targeted a whole process group/process via kill(2), Tkill =
// targeted one thread via tgkill(2)) plus Fault for processor-raised
// signals (SIGSEGV, SIGFPE, ...).
type Kind int

const (
	KindKill Kind = iota
	KindTkill
	KindFault
)

// Pending is one queued, not-yet-delivered signal occurrence.
type Pending struct {
	Num    Num
	Kind   Kind
	SrcPID uint32
	SrcUID uint32
}

// Queue holds signals enqueued for a thread or process but not yet
// delivered, per spec.md §4.H: "preserves at-least-one-instance semantics
// for standard signals and FIFO order per RT number". A second SIGTERM
// queued while one is already pending collapses into the existing entry;
// each real-time number keeps its own FIFO list so repeated RT signals of
// the same number are not lost.
type Queue struct {
	mu      sync.Mutex
	std     map[Num]Pending   // at most one per standard signal
	rt      map[Num][]Pending // FIFO per RT signal number
	order   []Num             // insertion order of distinct standard numbers currently pending
	rtOrder []Num             // insertion order of RT numbers with at least one pending entry
}

// NewQueue builds an empty signal queue.
func NewQueue() *Queue {
	return &Queue{std: make(map[Num]Pending), rt: make(map[Num][]Pending)}
}

// Enqueue adds one occurrence of p.Num, per the queue's collapsing rule.
func (q *Queue) Enqueue(p Pending) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if p.Num.IsRT() {
		if _, ok := q.rt[p.Num]; !ok {
			q.rtOrder = append(q.rtOrder, p.Num)
		}
		q.rt[p.Num] = append(q.rt[p.Num], p)
		return
	}
	if _, already := q.std[p.Num]; !already {
		q.order = append(q.order, p.Num)
	}
	q.std[p.Num] = p
}

// Dequeue removes and returns the next deliverable signal not blocked by
// mask: standard signals first, in the order their numbers were first
// queued, then real-time signals, in the order their numbers were first
// queued and FIFO within a number — standard signals ahead of real-time
// ones, as on Linux.
func (q *Queue) Dequeue(mask Set) (Pending, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, n := range q.order {
		if mask.Has(n) {
			continue
		}
		p := q.std[n]
		delete(q.std, n)
		q.order = append(q.order[:i:i], q.order[i+1:]...)
		return p, true
	}

	for i, n := range q.rtOrder {
		if mask.Has(n) {
			continue
		}
		list := q.rt[n]
		p := list[0]
		if len(list) == 1 {
			delete(q.rt, n)
			q.rtOrder = append(q.rtOrder[:i:i], q.rtOrder[i+1:]...)
		} else {
			q.rt[n] = list[1:]
		}
		return p, true
	}

	return Pending{}, false
}

// Pending reports the set of signal numbers with at least one queued
// occurrence not blocked by mask, for sigpending(2).
func (q *Queue) Pending(mask Set) Set {
	q.mu.Lock()
	defer q.mu.Unlock()
	var s Set
	for n := range q.std {
		if !mask.Has(n) {
			s = s.Add(n)
		}
	}
	for n := range q.rt {
		if !mask.Has(n) {
			s = s.Add(n)
		}
	}
	return s
}

// HasDeliverable reports whether any queued signal is not blocked by mask,
// the condition checked at each of spec.md §4.H's three delivery
// checkpoints.
func (q *Queue) HasDeliverable(mask Set) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for n := range q.std {
		if !mask.Has(n) {
			return true
		}
	}
	for n := range q.rt {
		if !mask.Has(n) {
			return true
		}
	}
	return false
}
