package jindisk

import "sort"

// MemTable absorbs writes before they are flushed to an immutable BIT, per
// spec.md §4.F: "in-memory mem-table absorbs writes." Grounded on the
// jindisk crate's index/mem_table module shape (declared in index/mod.rs,
// body not present in the retrieved source) as a simple LBA-keyed map with
// a capacity trigger.
type MemTable struct {
	capacity int
	records  map[LBA]Record
}

// NewMemTable builds an empty mem-table that reports full once it holds
// capacity records.
func NewMemTable(capacity int) *MemTable {
	return &MemTable{capacity: capacity, records: make(map[LBA]Record)}
}

// Put absorbs rec, overwriting any existing mapping for the same LBA
// (the newest version always wins within the mem-table). Returns true if
// the table has reached capacity and should be flushed.
func (m *MemTable) Put(rec Record) bool {
	m.records[rec.LBA] = rec
	return len(m.records) >= m.capacity
}

// Get looks up the current mapping for lba, if buffered.
func (m *MemTable) Get(lba LBA) (Record, bool) {
	r, ok := m.records[lba]
	return r, ok
}

func (m *MemTable) Len() int { return len(m.records) }

// Drain empties the table and returns its records sorted by LBA, ready to
// be written out as a new on-disk BIT (sorted order is what makes a BIT a
// "sorted run").
func (m *MemTable) Drain() []Record {
	out := make([]Record, 0, len(m.records))
	for _, r := range m.records {
		out = append(out, r)
	}
	m.records = make(map[LBA]Record)
	sort.Slice(out, func(i, j int) bool { return out[i].LBA < out[j].LBA })
	return out
}
