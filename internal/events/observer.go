package events

// Observer receives notifications of interesting events on a Pollee, per
// original_source's events/observer.rs. Implementations must keep on_events
// short and must not re-enter the pollee's own state lock, per spec.md
// §4.E.
type Observer interface {
	OnEvents(pollee *Pollee, active Mask)
}

// ObserverFunc adapts a plain function to Observer.
type ObserverFunc func(pollee *Pollee, active Mask)

func (f ObserverFunc) OnEvents(pollee *Pollee, active Mask) { f(pollee, active) }
