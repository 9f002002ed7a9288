// Package idgen hands out the 64-bit object identifiers described in
// spec.md §3 ("Object ID"): monotonically increasing, a reserved null value
// of 0, and a fatal error on wraparound. Grounded on original_source's
// object-id crate (src/libos/crates/object-id/src/lib.rs).
package idgen

import (
	"sync/atomic"
)

// Null is the reserved "no object" identifier.
const Null uint64 = 0

// Generator hands out fresh, monotonically increasing object IDs.
type Generator struct {
	next atomic.Uint64
}

// NewGenerator returns a Generator whose first Next() call yields 1 (0 is
// reserved for Null).
func NewGenerator() *Generator {
	g := &Generator{}
	g.next.Store(1)
	return g
}

// Next returns a fresh object ID. It panics on 64-bit wraparound, matching
// spec.md's "wraparound is treated as a fatal error" rule — an LLM billions
// of IDs away from 2^64 is a programming error, not a recoverable condition.
func (g *Generator) Next() uint64 {
	id := g.next.Add(1) - 1
	if id == 0 {
		panic("idgen: object id counter wrapped around")
	}
	return id
}
