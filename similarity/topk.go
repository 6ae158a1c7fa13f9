package similarity

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/poiesic/capsearch/core"
)

// Candidate is one vector eligible for ranking.
type Candidate struct {
	ID     string
	Vector []float32
}

// Scored is a candidate id with its similarity to the query.
type Scored struct {
	ID    string
	Score float64
}

// SortScored orders by descending score, then ascending id.
func SortScored(scored []Scored) {
	slices.SortFunc(scored, func(a, b Scored) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}

// TopK ranks candidates by cosine similarity to query and returns at most k
// entries. A k of zero or less returns every comparable candidate.
// Candidates whose vector length differs from the query are skipped.
func TopK(query []float32, candidates []Candidate, k int) ([]Scored, error) {
	scored, _, err := scoreAll(query, candidates)
	if err != nil {
		return nil, err
	}
	return truncate(scored, k), nil
}

// scoreAll computes cosine similarity for every comparable candidate and
// reports how many were skipped for a length mismatch.
func scoreAll(query []float32, candidates []Candidate) ([]Scored, int, error) {
	if len(query) == 0 {
		return nil, 0, fmt.Errorf("%w: query vector is empty", core.ErrDimensionMismatch)
	}
	scored := make([]Scored, 0, len(candidates))
	skipped := 0
	for _, c := range candidates {
		score, ok := CosineChecked(query, c.Vector)
		if !ok {
			skipped++
			continue
		}
		scored = append(scored, Scored{ID: c.ID, Score: score})
	}
	return scored, skipped, nil
}

func truncate(scored []Scored, k int) []Scored {
	SortScored(scored)
	if k > 0 && len(scored) > k {
		scored = scored[:k]
	}
	return scored
}
