package feed

import (
	"slices"
	"strings"
)

// compareConfessions orders newest first. Equal timestamps fall back to the
// id so repeated merges never reorder ties.
func compareConfessions(a, b Confession) int {
	if n := b.CreatedAt.Compare(a.CreatedAt); n != 0 {
		return n
	}
	return strings.Compare(b.ID, a.ID)
}

// Merge combines incoming with existing and returns a new window that is
// strictly descending by (CreatedAt, ID) with unique ids, whatever the order
// or duplication of either input. existing is not modified.
//
// On an id collision the entry already in the window wins: it may carry
// loaded comments or a locally adjusted like count that the incoming shallow
// record lacks. MergeReplace ignores existing entirely. MergeUpsertOne takes
// a single entity; a longer incoming batch is merged as a union.
func Merge(existing, incoming []Confession, mode MergeMode) []Confession {
	switch mode {
	case MergeReplace:
		return union(nil, incoming)
	case MergeUpsertOne:
		if len(incoming) != 1 {
			return union(existing, incoming)
		}
		return upsert(existing, incoming[0])
	default:
		return union(existing, incoming)
	}
}

func union(existing, incoming []Confession) []Confession {
	seen := make(map[string]struct{}, len(existing)+len(incoming))
	out := make([]Confession, 0, len(existing)+len(incoming))
	for _, list := range [][]Confession{existing, incoming} {
		for _, c := range list {
			if _, dup := seen[c.ID]; dup {
				continue
			}
			seen[c.ID] = struct{}{}
			out = append(out, c.clone())
		}
	}
	slices.SortFunc(out, compareConfessions)
	return out
}

func upsert(existing []Confession, c Confession) []Confession {
	out := union(existing, nil)
	if slices.ContainsFunc(out, func(e Confession) bool { return e.ID == c.ID }) {
		return out
	}
	i, _ := slices.BinarySearchFunc(out, c, compareConfessions)
	return slices.Insert(out, i, c.clone())
}
