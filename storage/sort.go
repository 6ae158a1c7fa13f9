package storage

import (
	"cmp"
	"slices"

	"github.com/poiesic/capsearch/core"
)

// SortTagMatches orders matches by count descending, then id ascending.
func SortTagMatches(matches []core.TagMatch) {
	slices.SortFunc(matches, func(a, b core.TagMatch) int {
		if c := cmp.Compare(b.MatchCount, a.MatchCount); c != 0 {
			return c
		}
		return cmp.Compare(a.CapabilityID, b.CapabilityID)
	})
}

// MatchesKinds reports whether kind is in kinds. An empty filter matches every kind.
func MatchesKinds(kind core.Kind, kinds []core.Kind) bool {
	return len(kinds) == 0 || slices.Contains(kinds, kind)
}
