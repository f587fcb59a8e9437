package similarity

import (
	"sort"

	"photo-catalog/internal/catalog"
	"photo-catalog/internal/metrics"
)

// Match is one ranked similarity result.
type Match struct {
	PhotoID string  `json:"photoId"`
	Score   float64 `json:"score"`
}

const (
	// DefaultTopK is the result count when the caller does not ask for one.
	DefaultTopK = 12
	// MaxTopK caps caller-supplied result counts.
	MaxTopK = 50
)

// ClampK normalizes a requested result count.
func ClampK(k int) int {
	if k <= 0 {
		return DefaultTopK
	}
	if k > MaxTopK {
		return MaxTopK
	}
	return k
}

// TopK ranks candidates by cosine similarity to the query vector and
// returns the k best, excluding the photo the query came from. The
// scan is exhaustive over all candidates; ties break on photo ID so
// results are deterministic.
func TopK(queryID string, query []float32, candidates []catalog.EmbeddingEntry, k int) []Match {
	metrics.SimilarityQueriesTotal.Inc()

	k = ClampK(k)
	matches := make([]Match, 0, len(candidates))
	for _, c := range candidates {
		if c.ID == queryID {
			continue
		}
		matches = append(matches, Match{PhotoID: c.ID, Score: Cosine(query, c.Vector)})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].PhotoID < matches[j].PhotoID
	})

	if len(matches) > k {
		matches = matches[:k]
	}
	return matches
}
