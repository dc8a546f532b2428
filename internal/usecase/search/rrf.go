package search

import (
	"sort"

	"github.com/kailas-cloud/searchsync/internal/usecase/indexing"
)

// rrfK is the Reciprocal Rank Fusion constant (standard value from Cormack et al. 2009).
const rrfK = 60

// fuseRRF merges the rankings of several backends via Reciprocal Rank Fusion.
// score(d) = sum of 1/(k + rank_i(d)) for each ranking where d appears.
// Backend scores are not comparable, so only ranks are used.
func fuseRRF(rankings [][]indexing.Hit, topK int) []indexing.Hit {
	merged := make(map[string]float64)
	for _, hits := range rankings {
		for rank, h := range hits {
			merged[h.ID] += 1.0 / float64(rrfK+rank+1)
		}
	}

	results := make([]indexing.Hit, 0, len(merged))
	for id, score := range merged {
		results = append(results, indexing.Hit{ID: id, Score: score})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})

	if len(results) > topK {
		results = results[:topK]
	}

	return results
}
