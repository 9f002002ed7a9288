package jindisk

// RangeQueryCtx tracks progress while resolving a multi-block read against
// the index, grounded on original_source's util/range_query_ctx.rs
// RangeQueryCtx: a fixed LBA range plus a completion bitmap, so a caller
// can issue lookups across mem-table and BIT levels in any order and know
// when every block in the range has been resolved.
type RangeQueryCtx struct {
	start     LBA
	count     int
	completed []bool
}

// NewRangeQueryCtx builds a context covering a byte range [offset, offset+
// len(buf)) in 4096-byte-aligned blocks, mirroring build_from's
// offset/len-to-LBA-range conversion.
func NewRangeQueryCtx(offset int64, length int, blockSize int) *RangeQueryCtx {
	start := LBA(offset / int64(blockSize))
	end := LBA((offset + int64(length) + int64(blockSize) - 1) / int64(blockSize))
	count := int(end - start)
	return &RangeQueryCtx{start: start, count: count, completed: make([]bool, count)}
}

func (c *RangeQueryCtx) NumQueriedBlocks() int { return c.count }

func (c *RangeQueryCtx) idx(lba LBA) int { return int(lba - c.start) }

// Complete marks lba as resolved.
func (c *RangeQueryCtx) Complete(lba LBA) {
	i := c.idx(lba)
	if i >= 0 && i < len(c.completed) {
		c.completed[i] = true
	}
}

// IsCompleted reports whether every block in the range has been resolved.
func (c *RangeQueryCtx) IsCompleted() bool {
	for _, done := range c.completed {
		if !done {
			return false
		}
	}
	return true
}

// CollectUncompleted returns the (index, lba) pairs not yet resolved, so a
// caller can issue further lookups only for what remains.
func (c *RangeQueryCtx) CollectUncompleted() []struct {
	Index int
	LBA   LBA
} {
	var out []struct {
		Index int
		LBA   LBA
	}
	for i, done := range c.completed {
		if !done {
			out = append(out, struct {
				Index int
				LBA   LBA
			}{i, c.start + LBA(i)})
		}
	}
	return out
}
