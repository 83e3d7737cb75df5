package cache

import (
	"slices"
	"strconv"
	"strings"
)

// Key identifies one cached result. Terms is the normalised query with its
// terms sorted and space-joined, so word order does not matter but repeated
// terms do. Scorer is the scorer's Name and K the result limit; results for
// different scorers or limits never share an entry.
type Key struct {
	Terms  string
	Scorer string
	K      int
}

// NewKey builds a Key from normalised query terms.
func NewKey(terms []string, scorer string, k int) Key {
	sorted := slices.Clone(terms)
	slices.Sort(sorted)
	return Key{Terms: strings.Join(sorted, " "), Scorer: scorer, K: k}
}

// String renders the key for logs and for the persisted tier.
func (k Key) String() string {
	return k.Scorer + "|" + strconv.Itoa(k.K) + "|" + k.Terms
}

// entryKey scopes a Key to the snapshot generation it was computed on.
type entryKey struct {
	generation uint64
	key        Key
}

func (e entryKey) flightKey() string {
	return strconv.FormatUint(e.generation, 10) + "#" + e.key.String()
}
