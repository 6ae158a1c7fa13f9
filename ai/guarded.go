package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/poiesic/capsearch/core"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// GuardedEmbedder enforces the embedding gateway contract around another Embedder.
//
// Blank input is rejected before any call is made. Responses whose vectors do
// not have the expected dimension are rejected rather than returned. Calls pass
// through a rate limiter and a circuit breaker. Every error wraps
// core.ErrEmbedding so callers can classify failures with errors.Is.
type GuardedEmbedder struct {
	inner   Embedder
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter
	dims    atomic.Int64
	fixed   bool
	logger  *slog.Logger
}

var _ Embedder = (*GuardedEmbedder)(nil)

// GuardOption configures a GuardedEmbedder.
type GuardOption func(*GuardedEmbedder) error

// WithGuardLogger sets a custom logger.
// Default is slog.Default().
func WithGuardLogger(logger *slog.Logger) GuardOption {
	return func(g *GuardedEmbedder) error {
		if logger == nil {
			logger = slog.Default()
		}
		g.logger = logger
		return nil
	}
}

// NewGuardedEmbedder wraps inner using the dimension, rate and breaker settings in cfg.
func NewGuardedEmbedder(inner Embedder, cfg *Config, opts ...GuardOption) (*GuardedEmbedder, error) {
	if inner == nil {
		return nil, ErrEmbedderRequired
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	g := &GuardedEmbedder{
		inner:  inner,
		fixed:  cfg.Dimensions > 0,
		logger: slog.Default(),
	}
	g.dims.Store(int64(cfg.Dimensions))

	for _, opt := range opts {
		if err := opt(g); err != nil {
			return nil, err
		}
	}
	g.logger = g.logger.With("component", "embedding-gateway")

	if cfg.RequestsPerSecond > 0 {
		g.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst)
	}

	failures := cfg.BreakerFailures
	logger := g.logger
	g.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "embedding-gateway",
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: func(err error) bool {
			// Caller cancellation says nothing about gateway health.
			return err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return g, nil
}

// Dimensions returns the enforced embedding length, or 0 if not yet known.
func (g *GuardedEmbedder) Dimensions() int {
	return int(g.dims.Load())
}

// EmbedText generates a vector for one non-blank text.
func (g *GuardedEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: %w", core.ErrEmbedding, ErrEmptyInput)
	}
	out, err := g.call(ctx, func() (interface{}, error) {
		return g.inner.EmbedText(ctx, text)
	})
	if err != nil {
		return nil, err
	}
	vec := out.([]float32)
	if err := g.checkDimension(vec); err != nil {
		return nil, err
	}
	return vec, nil
}

// EmbedTexts generates vectors for a batch of non-blank texts, in input order.
func (g *GuardedEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			return nil, fmt.Errorf("%w: %w: text %d", core.ErrEmbedding, ErrEmptyInput, i)
		}
	}
	out, err := g.call(ctx, func() (interface{}, error) {
		return g.inner.EmbedTexts(ctx, texts)
	})
	if err != nil {
		return nil, err
	}
	vecs := out.([][]float32)
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("%w: %w: got %d for %d texts", core.ErrEmbedding, ErrCountMismatch, len(vecs), len(texts))
	}
	for _, vec := range vecs {
		if err := g.checkDimension(vec); err != nil {
			return nil, err
		}
	}
	return vecs, nil
}

func (g *GuardedEmbedder) call(ctx context.Context, fn func() (interface{}, error)) (interface{}, error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: rate limiter: %w", core.ErrEmbedding, err)
		}
	}
	out, err := g.breaker.Execute(func() (interface{}, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return fn()
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %w", core.ErrEmbedding, ErrCircuitOpen)
		}
		g.logger.Debug("embedding call failed", "err", err)
		return nil, fmt.Errorf("%w: %w", core.ErrEmbedding, err)
	}
	return out, nil
}

// checkDimension rejects vectors whose length differs from the expected one.
// When no dimension was configured, the first non-empty vector sets it.
func (g *GuardedEmbedder) checkDimension(vec []float32) error {
	if len(vec) == 0 {
		return fmt.Errorf("%w: %w: empty vector", core.ErrEmbedding, ErrWrongDimension)
	}
	want := g.dims.Load()
	if want == 0 && !g.fixed {
		if g.dims.CompareAndSwap(0, int64(len(vec))) {
			g.logger.Info("learned embedding dimension", "dims", len(vec))
			return nil
		}
		want = g.dims.Load()
	}
	if int64(len(vec)) != want {
		return fmt.Errorf("%w: %w: got %d, want %d", core.ErrEmbedding, ErrWrongDimension, len(vec), want)
	}
	return nil
}
