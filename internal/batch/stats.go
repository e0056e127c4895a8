package batch

// Stats aggregates terminal outcomes for one batch run. The four counters
// always sum to the number of items that reached a terminal outcome.
type Stats struct {
	// Successful counts freshly downloaded items.
	Successful int
	// Cached counts items skipped because the cache already held them.
	Cached int
	// NotFound counts items the archive has no payload for. Benign.
	NotFound int
	// Failed counts items whose retries were exhausted. These need operator
	// attention; re-running the same batch picks up only this subset.
	Failed int
}

// Total returns the number of items accounted for.
func (s Stats) Total() int {
	return s.Successful + s.Cached + s.NotFound + s.Failed
}
