package expensesync

// MergeBySyncState folds status-partitioned result sets into one record per
// external id, preserving first-seen order. A duplicate replaces the kept
// entry only when the incoming record carries a known sync-state
// classification and the kept one does not; otherwise first-seen wins. This
// keeps an id from being tagged "not synced" just because its unknown-state
// appearance happened to be processed first.
func MergeBySyncState(partitions ...[]RawRecord) []RawRecord {
	merged := make([]RawRecord, 0)
	index := make(map[string]int)

	for _, partition := range partitions {
		for _, rec := range partition {
			pos, seen := index[rec.ExternalId]
			if !seen {
				index[rec.ExternalId] = len(merged)
				merged = append(merged, rec)
				continue
			}
			if rec.SyncState != "" && merged[pos].SyncState == "" {
				merged[pos] = rec
			}
		}
	}
	return merged
}
