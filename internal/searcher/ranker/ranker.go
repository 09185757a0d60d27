// Package ranker scores candidate documents with linear field weights.
//
// A document earns a field's weight once if any query word matched that
// field, so with the default weights the best possible score is 6 no matter
// how many query words hit the same field.
package ranker

import (
	"sort"

	"github.com/Adithya-Monish-Kumar-K/catalog-search/internal/indexer/index"
)

type ScoredDoc struct {
	DocID string  `json:"doc_id"`
	Score float64 `json:"score"`
}

// Weights maps each field to the score a match in it contributes.
type Weights map[index.Field]float64

// DefaultWeights favours title matches, then tags, then body text.
func DefaultWeights() Weights {
	return Weights{
		index.FieldTitle:   3,
		index.FieldContent: 1,
		index.FieldTag:     2,
	}
}

// Score returns the weighted field indicator sum for one document.
func (w Weights) Score(m index.Matches, docID string) float64 {
	var s float64
	for _, f := range index.Fields {
		if m.Has(f, docID) {
			s += w[f]
		}
	}
	return s
}

// Rank scores every candidate in m and returns them by descending score,
// ties broken by ascending doc id. limit <= 0 keeps everything.
func Rank(m index.Matches, w Weights, limit int) []ScoredDoc {
	ids := m.Candidates()
	result := make([]ScoredDoc, 0, len(ids))
	for _, id := range ids {
		result = append(result, ScoredDoc{DocID: id, Score: w.Score(m, id)})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Score != result[j].Score {
			return result[i].Score > result[j].Score
		}
		return result[i].DocID < result[j].DocID
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result
}
