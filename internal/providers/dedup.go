package providers

import "math"

// WorstRank is the rank of a listing published by no preferred group.
const WorstRank = math.MaxInt

// Listing is what Dedup needs to know about one published version of a
// chapter.
type Listing struct {
	// Key identifies the chapter, compared as an exact string.
	Key       string
	Groups    []string
	Timestamp int64
}

// Rank returns the best position of any of groups in preferred.
func Rank(groups, preferred []string) int {
	rank := WorstRank
	for _, g := range groups {
		for i, p := range preferred {
			if i >= rank {
				break
			}
			if g == p {
				rank = i
				break
			}
		}
	}

	return rank
}

// Dedup keeps one item per listing key: the lowest rank wins, then the most
// recent timestamp, then the first seen. The result keeps the order in which
// keys first appeared.
func Dedup[T any](items []T, listing func(T) Listing, preferred []string) []T {
	type best struct {
		item      T
		rank      int
		timestamp int64
	}

	index := make(map[string]int, len(items))
	kept := make([]best, 0, len(items))

	for _, item := range items {
		l := listing(item)
		cand := best{item: item, rank: Rank(l.Groups, preferred), timestamp: l.Timestamp}

		i, seen := index[l.Key]
		if !seen {
			index[l.Key] = len(kept)
			kept = append(kept, cand)
			continue
		}

		cur := kept[i]
		if cand.rank < cur.rank || (cand.rank == cur.rank && cand.timestamp > cur.timestamp) {
			kept[i] = cand
		}
	}

	out := make([]T, len(kept))
	for i, b := range kept {
		out[i] = b.item
	}

	return out
}
