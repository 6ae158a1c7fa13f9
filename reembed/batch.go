package reembed

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/poiesic/capsearch/core"
	"github.com/poiesic/capsearch/storage"
	"github.com/poiesic/capsearch/vectorize"
	"golang.org/x/sync/errgroup"
)

// BatchProcessor re-vectorizes batches of capabilities and writes them back.
type BatchProcessor struct {
	repo            storage.CapabilityRepository
	vectorizer      *vectorize.Vectorizer
	retry           vectorize.RetryPolicy
	concurrency     int
	continueOnError bool
	logger          *slog.Logger
}

// NewBatchProcessor creates a new batch processor.
// concurrency: how many capabilities of a batch are vectorized at once
// continueOnError: skip capabilities that still fail after retries instead of stopping
func NewBatchProcessor(repo storage.CapabilityRepository, vectorizer *vectorize.Vectorizer, retry vectorize.RetryPolicy, concurrency int, continueOnError bool, logger *slog.Logger) *BatchProcessor {
	if concurrency < 1 {
		concurrency = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BatchProcessor{
		repo:            repo,
		vectorizer:      vectorizer,
		retry:           retry,
		concurrency:     concurrency,
		continueOnError: continueOnError,
		logger:          logger,
	}
}

// Process computes fresh vectors for every capability in the batch and
// upserts them. Status, tags and source fields are written back unchanged.
// It returns the ids that were skipped because they kept failing; without
// continueOnError the first such failure is returned as the error instead.
func (bp *BatchProcessor) Process(ctx context.Context, capabilities []*core.Capability) ([]string, error) {
	if len(capabilities) == 0 {
		return nil, nil
	}

	vectors := make([]core.VectorTriple, len(capabilities))
	failures := make([]error, len(capabilities))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.concurrency)
	for i, c := range capabilities {
		g.Go(func() error {
			err := bp.retry.Do(gctx, func() error {
				var verr error
				vectors[i], verr = bp.vectorizer.Vectorize(gctx, c)
				return verr
			})
			if err == nil {
				return nil
			}
			if !bp.continueOnError || ctx.Err() != nil {
				return fmt.Errorf("failed to vectorize %s after %d attempts: %w", c.ID, bp.retry.MaxAttempts, err)
			}
			failures[i] = err
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var skipped []string
	for i, c := range capabilities {
		if failures[i] != nil {
			bp.logger.Warn("skipping capability", "id", c.ID, "err", failures[i])
			skipped = append(skipped, c.ID)
			continue
		}
		updated := *c
		updated.Vectors = vectors[i]
		if _, err := bp.repo.UpsertCapability(ctx, &updated); err != nil {
			return skipped, fmt.Errorf("failed to update capability %s: %w", c.ID, err)
		}
	}

	return skipped, nil
}
