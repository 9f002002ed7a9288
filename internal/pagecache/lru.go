package pagecache

import "container/list"

// recencyList is the LRU ordering structure backing the cache, shaped
// after the teacher's internal/cache/lru.Cache (NewCache/Insert/LookUp)
// but tracking *Page entries directly rather than generic ValueType
// values, since pagecache.Cache already owns the key→*Page map.
type recencyList struct {
	list *list.List // front = most recently used
}

func newRecencyList() *recencyList {
	return &recencyList{list: list.New()}
}

// touch moves p to the front, inserting it if not already tracked.
func (r *recencyList) touch(p *Page) {
	if p.lruElem != nil {
		r.list.MoveToFront(p.lruElem)
		return
	}
	p.lruElem = r.list.PushFront(p)
}

func (r *recencyList) remove(p *Page) {
	if p.lruElem == nil {
		return
	}
	r.list.Remove(p.lruElem)
	p.lruElem = nil
}

func (r *recencyList) len() int { return r.list.Len() }

// evictionOrder returns pages from least- to most-recently used.
func (r *recencyList) evictionOrder() []*Page {
	out := make([]*Page, 0, r.list.Len())
	for e := r.list.Back(); e != nil; e = e.Prev() {
		out = append(out, e.Value.(*Page))
	}
	return out
}
