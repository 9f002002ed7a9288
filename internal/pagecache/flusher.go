package pagecache

import (
	"context"
	"time"

	"github.com/golibos/libos/internal/blockdev"
)

// runFlusher is the background writeback loop of spec.md §4.D: "a
// background flusher that drains up to K dirty pages per cycle, respecting
// per-page ordering (UpToDate before eviction)."
func (c *Cache) runFlusher() {
	interval := c.cfg.FlushInterval
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stopFlusher:
			return
		case <-ticker.C:
			c.flushBatch(c.cfg.FlushBatch)
		}
	}
}

func (c *Cache) flushBatch(k int) {
	if k <= 0 {
		k = 1
	}
	c.dirtyMu.Lock()
	batch := make([]*Page, 0, k)
	for e := c.dirty.Front(); e != nil && len(batch) < k; {
		next := e.Next()
		batch = append(batch, e.Value.(*Page))
		c.dirty.Remove(e)
		e = next
	}
	c.dirtyMu.Unlock()

	for _, p := range batch {
		c.flushOne(p)
	}
}

// flushOne drives Dirty→Flushing and issues the block write. A failed
// flush keeps the page Dirty and re-queues it for the flusher, per spec.md
// "a failed flush keeps the page Dirty and surfaces the error to the
// flusher."
func (c *Cache) flushOne(p *Page) {
	p.mu.Lock()
	if p.state != Dirty {
		p.mu.Unlock()
		return
	}
	p.state = Flushing
	blockID := blockdev.FromOffset(p.key.Offset)
	data := make([]byte, PageSize)
	copy(data, p.data)
	p.mu.Unlock()

	buf := blockdev.NewBuf(1)
	copy(buf, data)
	req := &blockdev.Request{Op: blockdev.OpWrite, StartID: blockID, Buf: buf}
	sub, err := c.dev.Submit(req)
	if err == nil {
		err = sub.Wait()
	}

	p.mu.Lock()
	if err != nil {
		p.state = Dirty
		p.err = err
		c.dirtyMu.Lock()
		c.dirty.PushBack(p)
		c.dirtyMu.Unlock()
	} else {
		p.state = UpToDate
		p.err = nil
		c.reg.PageFlushes.Add(context.Background(), 1)
	}
	p.mu.Unlock()
	p.waiters.WakeAll()

	c.mu.Lock()
	c.maybeEvictLocked()
	c.mu.Unlock()
}
