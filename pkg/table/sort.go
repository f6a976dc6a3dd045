package table

import "slices"

// Sort orders entries in place by (Peer, From). slices.SortFunc is
// pattern-defeating quicksort; its recursion depth is bounded by O(log n) since
// it falls back to heapsort on bad pivots.
func Sort(entries []Entry) { slices.SortFunc(entries, Compare) }

// IsSorted reports whether entries are ordered by (Peer, From).
func IsSorted(entries []Entry) bool { return slices.IsSortedFunc(entries, Compare) }
