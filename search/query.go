package search

import (
	"fmt"
	"math"
	"strings"

	"github.com/poiesic/capsearch/core"
)

// Query describes one hybrid search.
type Query struct {
	// Text is the free-text query. It must not be blank.
	Text string
	// Weights are applied as a weighted sum. All-zero means equal thirds.
	Weights core.SearchWeights
	// Threshold discards results whose combined score is below it.
	Threshold float64
	// Limit is the maximum number of results. Zero or negative selects
	// Config.DefaultLimit; values above Config.MaxLimit are rejected.
	Limit int
	// Kinds restricts the candidate pool. Empty means every kind.
	Kinds []core.Kind
	// Overrides replaces the query text for individual dimensions, for
	// callers that have structured query metadata (see vectorize.QueryOverrides).
	Overrides map[core.Dimension]string
}

// Validate rejects queries that cannot be answered. Every error wraps core.ErrInvalidQuery.
func (q Query) Validate() error {
	if strings.TrimSpace(q.Text) == "" {
		return fmt.Errorf("%w: query text is empty", core.ErrInvalidQuery)
	}
	if err := q.Weights.Validate(); err != nil {
		return fmt.Errorf("%w: %w", core.ErrInvalidQuery, err)
	}
	if math.IsNaN(q.Threshold) {
		return fmt.Errorf("%w: threshold is NaN", core.ErrInvalidQuery)
	}
	for _, k := range q.Kinds {
		if err := core.ValidateKind(k); err != nil {
			return fmt.Errorf("%w: %w", core.ErrInvalidQuery, err)
		}
	}
	return nil
}

// activeDimensions returns the dimensions with a positive weight, in canonical order.
func activeDimensions(w core.SearchWeights) []core.Dimension {
	dims := make([]core.Dimension, 0, len(core.Dimensions))
	for _, d := range core.Dimensions {
		if w.Get(d) > 0 {
			dims = append(dims, d)
		}
	}
	return dims
}
