package events

import (
	"sync"

	"github.com/golibos/libos/internal/rt"
)

// Poller lets a caller block on readiness across several pollees at once
// (the "poller?" argument to Pollee.Poll in spec.md §4.E), implemented by
// registering one shared WaiterObserver with every tracked pollee.
type Poller struct {
	mu      sync.Mutex
	obs     *WaiterObserver
	tracked map[*Pollee]struct{}
}

// NewPoller builds an empty poller.
func NewPoller() *Poller {
	return &Poller{obs: NewWaiterObserver(), tracked: make(map[*Pollee]struct{})}
}

// track registers this poller's observer with p if not already tracking it.
func (po *Poller) track(p *Pollee, interest Mask) {
	po.mu.Lock()
	defer po.mu.Unlock()
	if _, ok := po.tracked[p]; ok {
		return
	}
	po.tracked[p] = struct{}{}
	p.Register(po.obs, interest, nil)
}

// Wait returns a future resolving the next time any tracked pollee changes
// state. Callers re-poll every tracked pollee after it resolves to find
// out which one(s) actually became ready.
func (po *Poller) Wait() rt.Future[struct{}] {
	return po.obs.Wait()
}

// Close unregisters this poller's observer from every pollee it tracked.
func (po *Poller) Close() {
	po.mu.Lock()
	tracked := make([]*Pollee, 0, len(po.tracked))
	for p := range po.tracked {
		tracked = append(tracked, p)
	}
	po.tracked = make(map[*Pollee]struct{})
	po.mu.Unlock()

	for _, p := range tracked {
		p.Unregister(po.obs)
	}
}
