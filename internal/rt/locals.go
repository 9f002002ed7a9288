package rt

import "sync"

// LocalsKey identifies one task-local slot. Callers typically define a
// package-level *int or similar unexported pointer type as a unique key,
// the same "typed key into a map" idiom as context.Context values.
type LocalsKey any

// Destroyer is implemented by task-local values that need cleanup when
// their owning task completes ("destruction of locals runs on task drop"
// per spec.md §4.C).
type Destroyer interface {
	Destroy()
}

// LocalsMap is a task's local storage, looked up in O(1) amortized time by
// key. Grounded on original_source's async-rt task/current.rs LocalsMap.
type LocalsMap struct {
	mu     sync.Mutex
	values map[LocalsKey]any
}

// NewLocalsMap returns an empty task-local store.
func NewLocalsMap() *LocalsMap {
	return &LocalsMap{values: make(map[LocalsKey]any)}
}

// Get returns the value stored under key, and whether it was present.
func (l *LocalsMap) Get(key LocalsKey) (any, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	v, ok := l.values[key]
	return v, ok
}

// Set stores value under key, replacing any previous value.
func (l *LocalsMap) Set(key LocalsKey, value any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.values[key] = value
}

// Delete removes the value stored under key, if any.
func (l *LocalsMap) Delete(key LocalsKey) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.values, key)
}

// destroyAll runs Destroy on every Destroyer value, called once when the
// owning task completes.
func (l *LocalsMap) destroyAll() {
	l.mu.Lock()
	values := l.values
	l.values = nil
	l.mu.Unlock()

	for _, v := range values {
		if d, ok := v.(Destroyer); ok {
			d.Destroy()
		}
	}
}
