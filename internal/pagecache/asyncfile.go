package pagecache

import (
	"sync/atomic"

	"github.com/golibos/libos/internal/blockdev"
	"github.com/golibos/libos/internal/rt"
)

// AsyncFile is a page-cache-backed view of one block device extent,
// addressed by a stable fd identity. Sequential reads trigger readahead
// fetches for the next ReadaheadPages pages, per spec.md §4.D.
type AsyncFile struct {
	fd    uint64
	cache *Cache

	lastPage atomic.Int64 // last page index read, -1 initially
}

// NewAsyncFile opens fd against cache. fd must be unique within the cache's
// keyspace for the lifetime of the file.
func NewAsyncFile(fd uint64, cache *Cache) *AsyncFile {
	f := &AsyncFile{fd: fd, cache: cache}
	f.lastPage.Store(-1)
	return f
}

func (f *AsyncFile) pageIndex(offset int64) int64 { return offset / PageSize }

func (f *AsyncFile) key(pageIdx int64) Key {
	return Key{FD: f.fd, Offset: pageIdx * PageSize}
}

// ReadAt returns a future resolving to the number of bytes copied into buf
// starting at offset, which must lie within a single page.
func (f *AsyncFile) ReadAt(buf []byte, offset int64) rt.Future[int] {
	return &readAtFuture{f: f, buf: buf, offset: offset}
}

type readAtFuture struct {
	f      *AsyncFile
	buf    []byte
	offset int64
	fetch  rt.Future[*Handle]
}

func (r *readAtFuture) Poll(cx *rt.Cx) rt.PollResult[int] {
	pageIdx := r.f.pageIndex(r.offset)
	if r.fetch == nil {
		r.fetch = r.f.cache.Fetch(r.f.key(pageIdx), blockdev.BlockID(pageIdx))
	}
	res := r.fetch.Poll(cx)
	if !res.Ready {
		return rt.Pending[int]()
	}
	if res.Err != nil {
		return rt.Done(0, res.Err)
	}
	h := res.Value
	within := int(r.offset % PageSize)
	n := copy(r.buf, h.Data()[within:])
	h.Release()

	r.f.maybeReadahead(pageIdx)
	return rt.Done(n, nil)
}

// maybeReadahead issues best-effort fetches for the next N pages when reads
// look sequential, discarding the resulting handles immediately — their
// only purpose is to warm the cache.
func (f *AsyncFile) maybeReadahead(pageIdx int64) {
	prev := f.lastPage.Swap(pageIdx)
	if prev != pageIdx-1 {
		return // not sequential; no readahead
	}
	n := f.cache.cfg.ReadaheadPages
	for i := int64(1); i <= int64(n); i++ {
		next := pageIdx + i
		go func(idx int64) {
			h, err := rt.BlockOn(f.cache.Fetch(f.key(idx), blockdev.BlockID(idx)))
			if err == nil {
				h.Release()
			}
		}(next)
	}
}

// WriteAt returns a future resolving to the number of bytes copied from buf
// into the page at offset, marking it dirty. offset must lie within a
// single page.
func (f *AsyncFile) WriteAt(buf []byte, offset int64) rt.Future[int] {
	return &writeAtFuture{f: f, buf: buf, offset: offset}
}

type writeAtFuture struct {
	f       *AsyncFile
	buf     []byte
	offset  int64
	fetch   rt.Future[*Handle]
	handle  *Handle
	marking rt.Future[struct{}]
}

func (w *writeAtFuture) Poll(cx *rt.Cx) rt.PollResult[int] {
	pageIdx := w.f.pageIndex(w.offset)
	if w.handle == nil {
		if w.fetch == nil {
			w.fetch = w.f.cache.Fetch(w.f.key(pageIdx), blockdev.BlockID(pageIdx))
		}
		res := w.fetch.Poll(cx)
		if !res.Ready {
			return rt.Pending[int]()
		}
		if res.Err != nil {
			return rt.Done(0, res.Err)
		}
		w.handle = res.Value
	}
	if w.marking == nil {
		w.marking = w.handle.MarkDirty()
	}
	res := w.marking.Poll(cx)
	if !res.Ready {
		return rt.Pending[int]()
	}
	if res.Err != nil {
		w.handle.Release()
		return rt.Done(0, res.Err)
	}
	within := int(w.offset % PageSize)
	data := w.handle.Data()
	n := copy(data[within:], w.buf)
	w.handle.Release()
	return rt.Done(n, nil)
}
