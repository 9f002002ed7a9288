package pagecache

import (
	"container/list"
	"sync"

	"github.com/golibos/libos/internal/rt"
)

// PageSize is the fixed page size backing every entry, matched to
// internal/blockdev.BlockSize so a page maps onto whole blocks.
const PageSize = 4096

// Key identifies a page by owning file descriptor and byte offset, per
// spec.md §4.D ("keyed by (fd, offset)").
type Key struct {
	FD     uint64
	Offset int64
}

// Page is one resident cache entry. All transitions are made under mu, the
// "state lock" of spec.md's concurrency contract.
type Page struct {
	mu       sync.Mutex
	key      Key
	state    State
	data     []byte
	err      error
	refCount int

	waiters *rt.WaiterQueue
	lruElem *list.Element
}

func newPage(key Key) *Page {
	return &Page{
		key:     key,
		state:   Uninit,
		data:    make([]byte, PageSize),
		waiters: rt.NewWaiterQueue(),
	}
}

func (p *Page) snapshot() (State, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state, p.err
}
