package retrieval

import (
	"sort"

	"github.com/shopdex-io/shopdex/internal/domain"
)

// originRank orders origins for the equal-distance tie break: vector
// beats keyword beats fallback.
func originRank(o domain.Origin) int {
	switch o {
	case domain.OriginVector:
		return 0
	case domain.OriginKeyword:
		return 1
	default:
		return 2
	}
}

// fuse merges ranked results from multiple sources into one list:
// duplicates collapse to the entry with the smallest distance (preferring
// the stronger origin on exact ties), and the result is sorted by
// ascending distance. Input order within a source is preserved for equal
// distances of the same origin.
func fuse(sources ...[]domain.RankedResult) []domain.RankedResult {
	byID := make(map[int64]domain.RankedResult)
	order := make([]int64, 0)

	for _, src := range sources {
		for _, res := range src {
			id := res.Record.ID
			prev, seen := byID[id]
			if !seen {
				byID[id] = res
				order = append(order, id)
				continue
			}
			if res.Distance < prev.Distance ||
				(res.Distance == prev.Distance && originRank(res.Origin) < originRank(prev.Origin)) {
				byID[id] = res
			}
		}
	}

	out := make([]domain.RankedResult, 0, len(order))
	for _, id := range order {
		out = append(out, byID[id])
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Distance != out[j].Distance {
			return out[i].Distance < out[j].Distance
		}
		return originRank(out[i].Origin) < originRank(out[j].Origin)
	})

	return out
}

// truncate caps a ranked list at limit without disturbing order.
func truncate(results []domain.RankedResult, limit int) []domain.RankedResult {
	if limit > 0 && len(results) > limit {
		return results[:limit]
	}
	return results
}
