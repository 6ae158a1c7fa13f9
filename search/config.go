package search

import (
	"fmt"
	"math"

	"github.com/poiesic/capsearch/core"
)

const (
	// DefaultTagOverlapWeight is the tag boost applied when every query tag matches.
	DefaultTagOverlapWeight = 0.2
	// DefaultLimit is the result count used when a query sets none.
	DefaultLimit = 10
	// DefaultMaxLimit caps the result count of any query.
	DefaultMaxLimit = 100
)

// Config holds tuning parameters of the search engine.
type Config struct {
	// TagOverlapWeight scales the tag boost: weight * matched / max(1, queryTags).
	// Valid range 0..1. Default: 0.2
	TagOverlapWeight float64 `yaml:"tag_overlap_weight"`

	// DefaultLimit applies when Query.Limit is zero or negative.
	// Default: 10
	DefaultLimit int `yaml:"default_limit"`

	// MaxLimit is the largest Query.Limit accepted; larger limits are
	// rejected with core.ErrInvalidQuery.
	// Default: 100
	MaxLimit int `yaml:"max_limit"`
}

// DefaultConfig returns the default search configuration.
func DefaultConfig() Config {
	return Config{
		TagOverlapWeight: DefaultTagOverlapWeight,
		DefaultLimit:     DefaultLimit,
		MaxLimit:         DefaultMaxLimit,
	}
}

// Validate checks that all fields are in range.
func (c Config) Validate() error {
	if math.IsNaN(c.TagOverlapWeight) || c.TagOverlapWeight < 0 || c.TagOverlapWeight > 1 {
		return fmt.Errorf("%w: TagOverlapWeight must be between 0 and 1, got %v", ErrInvalidConfig, c.TagOverlapWeight)
	}
	if c.MaxLimit < 1 {
		return fmt.Errorf("%w: MaxLimit must be at least 1", ErrInvalidConfig)
	}
	if c.DefaultLimit < 1 || c.DefaultLimit > c.MaxLimit {
		return fmt.Errorf("%w: DefaultLimit must be between 1 and MaxLimit", ErrInvalidConfig)
	}
	return nil
}

// limit resolves the effective result count for a requested limit.
func (c Config) limit(requested int) (int, error) {
	if requested <= 0 {
		return c.DefaultLimit, nil
	}
	if requested > c.MaxLimit {
		return 0, fmt.Errorf("%w: limit %d exceeds the maximum of %d", core.ErrInvalidQuery, requested, c.MaxLimit)
	}
	return requested, nil
}
