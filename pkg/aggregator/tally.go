package aggregator

import "slices"

// tallyEntry is one ranked key of a tally.
type tallyEntry struct {
	key   string
	count int
}

// tally counts occurrences per key and remembers the order in which keys
// were first seen so rankings break ties deterministically.
type tally struct {
	counts map[string]int
	order  []string
}

func newTally() *tally {
	return &tally{counts: make(map[string]int)}
}

func (t *tally) add(key string) {
	if _, seen := t.counts[key]; !seen {
		t.order = append(t.order, key)
	}

	t.counts[key]++
}

func (t *tally) len() int {
	return len(t.order)
}

// mostCommon returns all keys by descending count. Equal counts keep
// first-seen order.
func (t *tally) mostCommon() []tallyEntry {
	entries := make([]tallyEntry, 0, len(t.order))

	for _, key := range t.order {
		entries = append(entries, tallyEntry{key: key, count: t.counts[key]})
	}

	slices.SortStableFunc(entries, func(a, b tallyEntry) int {
		return b.count - a.count
	})

	return entries
}

// set is a string set.
type set map[string]struct{}

func (s set) add(key string) {
	s[key] = struct{}{}
}

func (s set) intersectionLen(other set) int {
	small, large := s, other
	if len(large) < len(small) {
		small, large = large, small
	}

	n := 0

	for key := range small {
		if _, ok := large[key]; ok {
			n++
		}
	}

	return n
}
