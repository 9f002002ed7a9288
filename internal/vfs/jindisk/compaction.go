package jindisk

// Compact merges all currently tracked levels into a single new level,
// discarding shadowed (lower-version) records, per spec.md §4.F's
// "background compaction merges levels respecting version monotonicity."
//
// Crash-atomicity note (Open Question, spec.md §9): this implementation
// builds the merged level fully in memory and only swaps it into d.levels
// once merging succeeds; there is no separate journal replay path for a
// crash that occurs mid-compaction, so a process restart immediately after
// a partially-applied compaction could observe the pre-compaction levels
// rather than a consistent merged state. Production JinDisk addresses this
// with the journal region named in spec.md §6; that region is not
// reimplemented here.
func (d *Disk) Compact() error {
	d.mu.Lock()
	levels := d.levels
	d.mu.Unlock()
	if len(levels) <= 1 {
		return nil
	}

	merged := merge(levels)
	newLevel := NewLevel(merged)

	d.mu.Lock()
	d.levels = []*Level{newLevel}
	d.mu.Unlock()

	log.Info("jindisk: compacted levels into one", "levels", len(levels), "records", len(merged))
	return nil
}
