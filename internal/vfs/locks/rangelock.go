// Package locks implements POSIX advisory byte-range locking
// (F_SETLK/F_SETLKW/F_GETLK), per spec.md §4.F/§4.I. Grounded on
// original_source's src/fs/locks/range_lock package.
package locks

import (
	"sort"
	"sync"

	"github.com/golibos/libos/internal/errutil"
	"github.com/golibos/libos/internal/rt"
)

// LockType is the kind of one range lock.
type LockType int

const (
	ReadLock LockType = iota
	WriteLock
	Unlock
)

// Range is a half-open byte range [Start, End); End == -1 means "to EOF".
type Range struct {
	Start, End int64
}

func (r Range) overlaps(o Range) bool {
	end := r.End
	oend := o.End
	if end < 0 {
		end = 1<<62 - 1
	}
	if oend < 0 {
		oend = 1<<62 - 1
	}
	return r.Start < oend && o.Start < end
}

// Lock is one entry in a file's range-lock list.
type Lock struct {
	Range Range
	Type  LockType
	Owner int64 // process identity
}

func conflicts(a, b Lock) bool {
	if a.Owner == b.Owner {
		return false
	}
	if a.Type == ReadLock && b.Type == ReadLock {
		return false
	}
	return a.Range.overlaps(b.Range)
}

// List is the per-file ordered-by-start lock list of spec.md §3, guarding
// a waiter queue for blocking acquires.
type List struct {
	mu      sync.Mutex
	locks   []Lock
	waiters *rt.WaiterQueue
}

// NewList builds an empty lock list.
func NewList() *List {
	return &List{waiters: rt.NewWaiterQueue()}
}

// TryLock attempts F_SETLK semantics: returns EAGAIN immediately on
// conflict instead of waiting.
func (l *List) TryLock(lk Lock) error {
	if lk.Type == Unlock {
		l.mu.Lock()
		l.removeLocked(lk)
		l.mu.Unlock()
		l.waiters.WakeAll()
		return nil
	}

	l.mu.Lock()
	for _, existing := range l.locks {
		if conflicts(existing, lk) {
			l.mu.Unlock()
			return errutil.New(errutil.EAGAIN, "range lock conflict")
		}
	}
	l.insertLocked(lk)
	l.mu.Unlock()
	return nil
}

// Lock returns a future implementing F_SETLKW: waits out conflicting locks
// instead of failing immediately.
func (l *List) Lock(lk Lock) rt.Future[struct{}] {
	return &lockFuture{l: l, lk: lk}
}

type lockFuture struct {
	l       *List
	lk      Lock
	waiting rt.Future[struct{}]
}

func (f *lockFuture) Poll(cx *rt.Cx) rt.PollResult[struct{}] {
	for {
		if err := f.l.TryLock(f.lk); err == nil {
			return rt.Done(struct{}{}, nil)
		} else if errutil.KindOf(err) != errutil.EAGAIN {
			return rt.Done(struct{}{}, err)
		}
		if f.waiting == nil {
			f.waiting = f.l.waiters.Wait()
		}
		res := f.waiting.Poll(cx)
		if !res.Ready {
			return rt.Pending[struct{}]()
		}
		f.waiting = nil
	}
}

// GetLock implements F_GETLK: reports the first conflicting lock, if any.
func (l *List) GetLock(lk Lock) (Lock, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, existing := range l.locks {
		if conflicts(existing, lk) {
			return existing, true
		}
	}
	return Lock{}, false
}

func (l *List) insertLocked(lk Lock) {
	l.locks = append(l.locks, lk)
	sort.Slice(l.locks, func(i, j int) bool { return l.locks[i].Range.Start < l.locks[j].Range.Start })
}

func (l *List) removeLocked(lk Lock) {
	out := l.locks[:0]
	for _, existing := range l.locks {
		if existing.Owner == lk.Owner && existing.Range == lk.Range {
			continue
		}
		out = append(out, existing)
	}
	l.locks = out
}
