package similarity

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/poiesic/capsearch/core"
)

// Strategy selects how the Engine computes similarities.
type Strategy int

const (
	// StrategyAuto uses the native scorer when one is configured and the manual path otherwise.
	StrategyAuto Strategy = iota
	// StrategyNative always asks the native scorer first.
	StrategyNative
	// StrategyManual always computes cosine similarity in process.
	StrategyManual
)

func (s Strategy) String() string {
	switch s {
	case StrategyAuto:
		return "auto"
	case StrategyNative:
		return "native"
	case StrategyManual:
		return "manual"
	default:
		return "unknown"
	}
}

// ParseStrategy converts a strategy name to a Strategy.
func ParseStrategy(name string) (Strategy, error) {
	switch name {
	case "", "auto":
		return StrategyAuto, nil
	case "native":
		return StrategyNative, nil
	case "manual":
		return StrategyManual, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
}

// NativeScorer is implemented by stores that can compute cosine similarity
// themselves. ScoreVectors returns a score for every listed id whose vector
// for dim is populated and has the query's length; others are omitted.
type NativeScorer interface {
	ScoreVectors(ctx context.Context, dim core.Dimension, query []float32, ids []string) ([]Scored, error)
}

// Engine ranks candidate pools for a single dimension.
// It holds no per-query state and is safe for concurrent use.
type Engine struct {
	native   NativeScorer
	strategy Strategy
	logger   *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) error {
		if logger == nil {
			logger = slog.Default()
		}
		e.logger = logger
		return nil
	}
}

// WithNativeScorer delegates similarity math to a store.
func WithNativeScorer(scorer NativeScorer) Option {
	return func(e *Engine) error {
		e.native = scorer
		return nil
	}
}

// WithStrategy selects the execution strategy.
// Default is StrategyAuto.
func WithStrategy(strategy Strategy) Option {
	return func(e *Engine) error {
		if strategy < StrategyAuto || strategy > StrategyManual {
			return fmt.Errorf("%w: %d", ErrUnknownStrategy, strategy)
		}
		e.strategy = strategy
		return nil
	}
}

// NewEngine creates a similarity engine.
func NewEngine(opts ...Option) (*Engine, error) {
	e := &Engine{
		strategy: StrategyAuto,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	if e.strategy == StrategyNative && e.native == nil {
		return nil, ErrNativeScorerRequired
	}
	e.logger = e.logger.With("component", "similarity")
	return e, nil
}

// Strategy reports the configured strategy.
func (e *Engine) Strategy() Strategy {
	return e.strategy
}

// TopK ranks candidates for one dimension and returns at most k entries
// (all when k <= 0), sorted by descending score and ascending id.
// Candidates with a vector of a different length than query are skipped.
// It fails with core.ErrDimensionMismatch only when query is empty.
func (e *Engine) TopK(ctx context.Context, dim core.Dimension, query []float32, candidates []Candidate, k int) ([]Scored, error) {
	if len(query) == 0 {
		return nil, fmt.Errorf("%w: empty %s query vector", core.ErrDimensionMismatch, dim)
	}
	if len(candidates) == 0 {
		return []Scored{}, nil
	}

	if e.useNative() {
		scored, err := e.nativeTopK(ctx, dim, query, candidates)
		if err == nil {
			return truncate(scored, k), nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		e.logger.Warn("native similarity failed, falling back to manual", "dimension", dim, "err", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	scored, skipped, err := scoreAll(query, candidates)
	if err != nil {
		return nil, err
	}
	if skipped > 0 {
		e.logger.Debug("skipped candidates with mismatched vector length",
			"dimension", dim, "skipped", skipped, "queryDims", len(query))
	}
	return truncate(scored, k), nil
}

func (e *Engine) useNative() bool {
	return e.native != nil && e.strategy != StrategyManual
}

func (e *Engine) nativeTopK(ctx context.Context, dim core.Dimension, query []float32, candidates []Candidate) ([]Scored, error) {
	ids := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if len(c.Vector) == 0 {
			continue
		}
		ids = append(ids, c.ID)
	}
	if len(ids) == 0 {
		return []Scored{}, nil
	}
	scored, err := e.native.ScoreVectors(ctx, dim, query, ids)
	if err != nil {
		return nil, err
	}
	for i := range scored {
		scored[i].Score = Clamp(scored[i].Score)
	}
	return scored, nil
}
