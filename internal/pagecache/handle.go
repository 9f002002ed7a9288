package pagecache

import (
	"sync/atomic"

	"github.com/golibos/libos/internal/errutil"
	"github.com/golibos/libos/internal/logger"
	"github.com/golibos/libos/internal/rt"
)

var handleLog = logger.New("pagecache")

// Handle is a reference to a resident page obtained from Cache.Fetch. Per
// spec.md §4.D's release API, a handle must be released exactly once;
// letting one go out of scope unreleased is a programming error the cache
// surfaces through Cache.LiveHandles, a counter incremented on Fetch and
// decremented on Release that tests assert returns to zero (Go has no
// destructor to hook reliably, so there is no runtime enforcement).
type Handle struct {
	page     *Page
	cache    *Cache
	released atomic.Bool
}

// Data returns the page's bytes. Valid until Release is called.
func (h *Handle) Data() []byte {
	h.page.mu.Lock()
	defer h.page.mu.Unlock()
	return h.page.data
}

// Release gives up this handle's reference on the page. Calling Release
// twice on the same handle is itself a programming error and panics, the
// same stance the teacher's internal/locker invariants take.
func (h *Handle) Release() {
	if !h.released.CompareAndSwap(false, true) {
		panic("pagecache: handle released twice")
	}
	h.page.mu.Lock()
	h.page.refCount--
	n := h.page.refCount
	h.page.mu.Unlock()
	if n < 0 {
		handleLog.Error("page refcount went negative", "key", h.page.key)
	}
	h.cache.liveHandles.Add(-1)
	h.cache.afterRelease(h.page)
}

// MarkDirty transitions the page UpToDate→Dirty, waiting out any in-flight
// flush first, per spec.md: "a concurrent writer observes Flushing and
// awaits UpToDate before issuing the next Dirty transition."
func (h *Handle) MarkDirty() rt.Future[struct{}] {
	return &markDirtyFuture{h: h}
}

type markDirtyFuture struct {
	h       *Handle
	waiting rt.Future[struct{}]
}

func (f *markDirtyFuture) Poll(cx *rt.Cx) rt.PollResult[struct{}] {
	p := f.h.page
	for {
		p.mu.Lock()
		switch p.state {
		case UpToDate:
			p.state = Dirty
			p.mu.Unlock()
			f.h.cache.noteDirty(p)
			return rt.Done(struct{}{}, nil)
		case Dirty:
			p.mu.Unlock()
			return rt.Done(struct{}{}, nil)
		case Flushing:
			if f.waiting == nil {
				f.waiting = p.waiters.Wait()
			}
			p.mu.Unlock()
			res := f.waiting.Poll(cx)
			if !res.Ready {
				return rt.Pending[struct{}]()
			}
			f.waiting = nil
			continue
		default:
			p.mu.Unlock()
			return rt.Done(struct{}{}, errutil.New(errutil.EINVAL, "pagecache: page %+v not resident for write", p.key))
		}
	}
}
