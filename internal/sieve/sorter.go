package sieve

import "sort"

// sortRows stably orders one group's accumulated rows by the compiled
// sort-key positions: compare by the first key, break ties with the
// next, and so on. Rows equal under every key keep their relative order,
// which after restoreInputOrder is the input order.
//
// Comparison is byte-wise string ordering, matching the filter bounds.
// The whole record set is held in memory for the duration of the sort;
// the scheduler bounds how many groups do this concurrently.
func sortRows(rows []taggedRow, keys []int) {
	if len(keys) == 0 {
		return
	}
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i].row, rows[j].row
		for _, k := range keys {
			if a[k] != b[k] {
				return a[k] < b[k]
			}
		}
		return false
	})
}
