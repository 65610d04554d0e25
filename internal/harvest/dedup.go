package harvest

// Dedup is a composite-key membership set. Lifetime is one harvest
// invocation; cross-run deduplication lives behind the sink boundary.
type Dedup struct {
	seen map[string]struct{}
}

// NewDedup creates an empty store.
func NewDedup() *Dedup {
	return &Dedup{seen: make(map[string]struct{})}
}

// Add inserts a key and reports whether it was newly seen.
func (d *Dedup) Add(key string) bool {
	if _, ok := d.seen[key]; ok {
		return false
	}
	d.seen[key] = struct{}{}
	return true
}

// Len returns the number of distinct keys recorded.
func (d *Dedup) Len() int {
	return len(d.seen)
}
