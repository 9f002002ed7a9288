package pagecache

// State is a page's position in the fetch/flush state machine, per
// spec.md §4.D.
type State int

const (
	// Uninit: no valid data, not being fetched.
	Uninit State = iota
	// Fetching: a block read is in flight; readers await UpToDate.
	Fetching
	// UpToDate: data matches the backing block device.
	UpToDate
	// Dirty: data has been modified and not yet written back.
	Dirty
	// Flushing: a block write is in flight; writers await UpToDate
	// before the next Dirty transition.
	Flushing
)

func (s State) String() string {
	switch s {
	case Uninit:
		return "uninit"
	case Fetching:
		return "fetching"
	case UpToDate:
		return "up_to_date"
	case Dirty:
		return "dirty"
	case Flushing:
		return "flushing"
	default:
		return "unknown"
	}
}
