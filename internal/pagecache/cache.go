package pagecache

import (
	"container/list"
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golibos/libos/internal/blockdev"
	"github.com/golibos/libos/internal/errutil"
	"github.com/golibos/libos/internal/logger"
	"github.com/golibos/libos/internal/metrics"
	"github.com/golibos/libos/internal/rt"
)

var cacheLog = logger.New("pagecache")

// Config bounds residency and background writeback, grounded on spec.md
// §6's "page_cache_high_water / page_cache_low_water / page_cache_flush_batch".
type Config struct {
	HighWaterPages int
	LowWaterPages  int
	FlushBatch     int
	FlushInterval  time.Duration
	ReadaheadPages int
}

// DefaultConfig mirrors reasonable defaults for a modest-sized cache.
func DefaultConfig() Config {
	return Config{
		HighWaterPages: 4096,
		LowWaterPages:  3072,
		FlushBatch:     64,
		FlushInterval:  100 * time.Millisecond,
		ReadaheadPages: 4,
	}
}

// Cache is the page cache of spec.md §4.D: a map from (fd, offset) to page
// entry plus an LRU list, backed by a block device. The outer map lock is
// acquired before any individual page's state lock (lock ordering: map
// before entry, never reversed).
type Cache struct {
	cfg Config
	dev blockdev.Device
	reg *metrics.Registry

	mu    sync.RWMutex
	pages map[Key]*Page
	lru   *recencyList

	dirtyMu sync.Mutex
	dirty   *list.List // of *Page, insertion order

	stopFlusher chan struct{}
	flusherOnce sync.Once

	liveHandles atomic.Int64
}

// New builds a Cache over dev. reg may be nil (metrics.Noop() used).
func New(dev blockdev.Device, cfg Config, reg *metrics.Registry) *Cache {
	if reg == nil {
		reg = metrics.Noop()
	}
	c := &Cache{
		cfg:         cfg,
		dev:         dev,
		reg:         reg,
		pages:       make(map[Key]*Page),
		lru:         newRecencyList(),
		dirty:       list.New(),
		stopFlusher: make(chan struct{}),
	}
	go c.runFlusher()
	return c
}

// Close stops the background flusher. It does not flush remaining dirty
// pages; callers wanting a clean shutdown should drain dirty pages first.
func (c *Cache) Close() {
	c.flusherOnce.Do(func() { close(c.stopFlusher) })
}

// LiveHandles reports the number of Handles currently outstanding from
// this cache (fetched but not yet Released), per spec.md §4.D's "a handle
// must be released exactly once": a test driving a Fetch/Release pair to
// completion can assert this returns to zero, catching a leaked handle
// without a finalizer.
func (c *Cache) LiveHandles() int64 {
	return c.liveHandles.Load()
}

func (c *Cache) lookupOrCreate(key Key) *Page {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.pages[key]; ok {
		c.lru.touch(p)
		return p
	}
	p := newPage(key)
	c.pages[key] = p
	c.lru.touch(p)
	c.maybeEvictLocked()
	return p
}

// Fetch returns a future resolving to a Handle on the page for key, fetching
// it from the block device if not resident. Two callers racing on an Uninit
// page cooperate: the first drives Uninit→Fetching, the rest await
// UpToDate, per spec.md §4.D.
func (c *Cache) Fetch(key Key, blockID blockdev.BlockID) rt.Future[*Handle] {
	return &fetchFuture{c: c, key: key, blockID: blockID}
}

type fetchFuture struct {
	c       *Cache
	key     Key
	blockID blockdev.BlockID
	page    *Page
	waiting rt.Future[struct{}]
}

func (f *fetchFuture) Poll(cx *rt.Cx) rt.PollResult[*Handle] {
	if f.page == nil {
		f.page = f.c.lookupOrCreate(f.key)
	}
	p := f.page

	for {
		p.mu.Lock()
		switch p.state {
		case UpToDate, Dirty:
			p.refCount++
			p.mu.Unlock()
			f.c.mu.Lock()
			f.c.lru.touch(p)
			f.c.mu.Unlock()
			f.c.liveHandles.Add(1)
			return rt.Done(&Handle{page: p, cache: f.c}, nil)
		case Uninit:
			p.state = Fetching
			p.mu.Unlock()
			f.c.issueFetch(p, f.blockID)
			continue
		case Fetching, Flushing:
			if f.waiting == nil {
				f.waiting = p.waiters.Wait()
			}
			p.mu.Unlock()
			res := f.waiting.Poll(cx)
			if !res.Ready {
				return rt.Pending[*Handle]()
			}
			f.waiting = nil
			if p.state == Uninit && p.err != nil {
				err := p.err
				return rt.Done[*Handle](nil, err)
			}
			continue
		default:
			p.mu.Unlock()
			return rt.Done[*Handle](nil, errutil.New(errutil.EIO, "pagecache: page %+v in unexpected state", p.key))
		}
	}
}

// issueFetch performs the block read off the polling path; completion
// transitions the page and wakes every waiter, including failures which
// reset the page to Uninit per spec.md's "failed fetch transitions the
// page back to Uninit and wakes all waiters with the underlying I/O error."
func (c *Cache) issueFetch(p *Page, blockID blockdev.BlockID) {
	go func() {
		buf := blockdev.NewBuf(1)
		req := &blockdev.Request{Op: blockdev.OpRead, StartID: blockID, Buf: buf}
		sub, err := c.dev.Submit(req)
		if err == nil {
			err = sub.Wait()
		}
		p.mu.Lock()
		if err != nil {
			p.state = Uninit
			p.err = err
			c.reg.PageFetches.Add(context.Background(), 1)
		} else {
			copy(p.data, buf)
			p.state = UpToDate
			p.err = nil
			c.reg.PageFetches.Add(context.Background(), 1)
			c.reg.PageMisses.Add(context.Background(), 1)
		}
		p.mu.Unlock()
		p.waiters.WakeAll()
	}()
}

func (c *Cache) afterRelease(p *Page) {
	c.mu.Lock()
	c.maybeEvictLocked()
	c.mu.Unlock()
}

func (c *Cache) noteDirty(p *Page) {
	c.dirtyMu.Lock()
	c.dirty.PushBack(p)
	c.dirtyMu.Unlock()
}

// maybeEvictLocked evicts clean, unreferenced pages from the LRU tail once
// residency crosses the high-water mark, stopping at the low-water mark;
// dirty candidates are kicked to the flusher instead of evicted directly,
// per spec.md "dirty pages are flushed then evicted." Caller holds c.mu.
func (c *Cache) maybeEvictLocked() {
	if c.lru.len() <= c.cfg.HighWaterPages {
		return
	}
	for _, p := range c.lru.evictionOrder() {
		if c.lru.len() <= c.cfg.LowWaterPages {
			return
		}
		p.mu.Lock()
		switch {
		case p.refCount > 0:
			p.mu.Unlock()
			continue
		case p.state == Dirty:
			p.mu.Unlock()
			go c.flushOne(p)
			continue
		case p.state == UpToDate || p.state == Uninit:
			p.mu.Unlock()
			c.lru.remove(p)
			delete(c.pages, p.key)
		default:
			p.mu.Unlock()
		}
	}
}
