package events

import "github.com/golibos/libos/internal/rt"

// WaiterObserver adapts a rt.WaiterQueue to the Observer interface: once it
// receives any event, it wakes every waiter currently queued, mirroring
// original_source's WaiterQueueObserver ("dequeue and wake up all Waiters").
// It is the bridge between the callback-based Pollee/Observer world and
// the poll-based Future world the rest of internal/rt lives in.
type WaiterObserver struct {
	queue *rt.WaiterQueue
}

// NewWaiterObserver builds an observer with a fresh, empty waiter queue.
func NewWaiterObserver() *WaiterObserver {
	return &WaiterObserver{queue: rt.NewWaiterQueue()}
}

func (w *WaiterObserver) OnEvents(_ *Pollee, _ Mask) {
	w.queue.WakeAll()
}

// Wait returns a future that resolves the next time this observer is
// notified of any event.
func (w *WaiterObserver) Wait() rt.Future[struct{}] {
	return w.queue.Wait()
}
