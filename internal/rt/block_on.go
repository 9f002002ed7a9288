package rt

import "context"

// BlockOn drives fut to completion on the calling goroutine, parking it
// between polls instead of busy-spinning. It exists for code that starts
// outside any vCPU — background readahead, best-effort warmup tasks — and
// needs a result from a Future without spawning a full task for it.
func BlockOn[T any](fut Future[T]) (T, error) {
	wakeCh := make(chan struct{}, 1)
	cx := &Cx{Ctx: context.Background()}
	for {
		cx.Waker = newWaker(func() {
			select {
			case wakeCh <- struct{}{}:
			default:
			}
		})
		res := fut.Poll(cx)
		if res.Ready {
			return res.Value, res.Err
		}
		<-wakeCh
	}
}
