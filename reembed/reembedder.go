// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package reembed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/poiesic/capsearch/core"
	"github.com/poiesic/capsearch/storage"
	"github.com/poiesic/capsearch/vectorize"
)

// Config holds configuration for the reembedding operation.
type Config struct {
	// BatchSize is the number of capabilities processed per batch.
	BatchSize int `yaml:"batch_size"`

	// ReportInterval is how often to report progress (number of capabilities).
	ReportInterval int `yaml:"report_interval"`

	// Concurrency is how many capabilities of a batch are vectorized at once.
	Concurrency int `yaml:"concurrency"`

	// ContinueOnError skips capabilities that keep failing instead of aborting the run.
	ContinueOnError bool `yaml:"continue_on_error"`

	// Retry bounds the attempts per capability.
	Retry vectorize.RetryPolicy `yaml:"retry"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      DefaultBatchSize,
		ReportInterval: 100,
		Concurrency:    4,
		Retry:          vectorize.RetryPolicy{MaxAttempts: 3, BaseDelay: time.Second},
	}
}

// Validate checks the configuration bounds.
func (c *Config) Validate() error {
	if c.BatchSize < 1 {
		return errors.New("reembed config: BatchSize must be at least 1")
	}
	if c.Concurrency < 1 {
		return errors.New("reembed config: Concurrency must be at least 1")
	}
	return c.Retry.Validate()
}

// Stats summarizes a finished run.
type Stats struct {
	Total   int
	Updated int
	Skipped []string
	Elapsed time.Duration
}

// Reembedder recomputes the vectors of every capability in a repository.
type Reembedder struct {
	repo      storage.CapabilityRepository
	config    *Config
	progress  io.Writer
	processor *BatchProcessor
	iterator  *CapabilityIterator
	logger    *slog.Logger
}

// Option configures a Reembedder.
type Option func(*Reembedder) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reembedder) error {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger
		return nil
	}
}

// NewReembedder creates a new reembedder.
// progress: where to write progress output (typically os.Stderr); nil discards it
func NewReembedder(repo storage.CapabilityRepository, vectorizer *vectorize.Vectorizer, config *Config, progress io.Writer, opts ...Option) (*Reembedder, error) {
	if repo == nil {
		return nil, ErrRepositoryRequired
	}
	if vectorizer == nil {
		return nil, ErrVectorizerRequired
	}
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if progress == nil {
		progress = io.Discard
	}

	r := &Reembedder{
		repo:     repo,
		config:   config,
		progress: progress,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	r.logger = r.logger.With("component", "reembedder")
	r.processor = NewBatchProcessor(repo, vectorizer, config.Retry, config.Concurrency, config.ContinueOnError, r.logger)
	r.iterator = NewCapabilityIterator(repo, config.BatchSize)
	return r, nil
}

// Run re-vectorizes every capability of a single listing of the store, so
// Stats.Total always equals what was processed. Progress is reported to the
// configured writer. Run is not coordinated with concurrent registrations; a
// capability registered while a batch is in flight may be overwritten with the
// version that batch read.
func (r *Reembedder) Run(ctx context.Context) (Stats, error) {
	all, err := r.repo.ListCapabilities(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to list capabilities: %w", err)
	}

	stats := Stats{Total: len(all)}
	if stats.Total == 0 {
		fmt.Fprintf(r.progress, "No capabilities found (0 capabilities)\n")
		return stats, nil
	}

	fmt.Fprintf(r.progress, "Starting reembedding of %d capabilities (batch size: %d)\n", stats.Total, r.config.BatchSize)

	tracker := NewProgressTracker(r.progress, stats.Total, r.config.ReportInterval)
	tracker.Start()

	err = r.iterator.ForEachIn(ctx, all, func(batch []*core.Capability) error {
		skipped, err := r.processor.Process(ctx, batch)
		stats.Skipped = append(stats.Skipped, skipped...)
		if err != nil {
			return fmt.Errorf("failed to process batch: %w", err)
		}
		stats.Updated += len(batch) - len(skipped)
		tracker.Increment(len(batch), len(skipped))
		return nil
	})
	stats.Elapsed = tracker.Elapsed()
	if err != nil {
		r.logger.Error("reembedding aborted", "updated", stats.Updated, "err", err)
		return stats, err
	}

	tracker.Finish()
	fmt.Fprintf(r.progress, "Reembedding complete. Updated %d of %d capabilities in %v (%.1f capabilities/sec)\n",
		stats.Updated, stats.Total, stats.Elapsed.Round(time.Millisecond), float64(stats.Total)/stats.Elapsed.Seconds())
	r.logger.Info("reembedding complete", "updated", stats.Updated, "skipped", len(stats.Skipped))
	return stats, nil
}
