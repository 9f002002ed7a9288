package rt

// Yield cooperatively re-enqueues the current task at the tail of its
// priority class, returning control to the scheduler exactly once before
// resuming, per spec.md §4.C.
func Yield() Future[struct{}] {
	return &yieldFuture{}
}

type yieldFuture struct {
	yielded bool
}

func (y *yieldFuture) Poll(cx *Cx) PollResult[struct{}] {
	if y.yielded {
		return Done(struct{}{}, nil)
	}
	y.yielded = true
	cx.Waker.Wake()
	return Pending[struct{}]()
}
