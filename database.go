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


package capsearch

import (
	"context"
	"io"
	"log/slog"

	"github.com/poiesic/capsearch/ai"
	"github.com/poiesic/capsearch/ai/openai"
	"github.com/poiesic/capsearch/reembed"
	"github.com/poiesic/capsearch/registrar"
	"github.com/poiesic/capsearch/search"
	"github.com/poiesic/capsearch/similarity"
	"github.com/poiesic/capsearch/storage"
	"github.com/poiesic/capsearch/storage/badger"
	"github.com/poiesic/capsearch/storage/postgres"
	"github.com/poiesic/capsearch/vectorize"
)

// Database wires a capability store, an AI provider and the engines that
// use them. All state lives on the value; several databases can be open at once.
type Database struct {
	config     *Config
	repo       storage.CapabilityRepository
	provider   ai.AIProvider
	vectorizer *vectorize.Vectorizer
	similarity *similarity.Engine
	logger     *slog.Logger
}

// DatabaseOption configures a Database.
type DatabaseOption func(*databaseOptions)

type databaseOptions struct {
	provider ai.AIProvider
	logger   *slog.Logger
}

// WithAIProvider replaces the OpenAI-compatible provider built from the config.
// The database takes ownership and closes it on Close.
func WithAIProvider(provider ai.AIProvider) DatabaseOption {
	return func(o *databaseOptions) {
		o.provider = provider
	}
}

// WithLogger sets the logger handed to every component.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) DatabaseOption {
	return func(o *databaseOptions) {
		if logger == nil {
			logger = slog.Default()
		}
		o.logger = logger
	}
}

// Open validates cfg and opens the configured store and AI provider.
// A nil cfg selects DefaultConfig.
func Open(ctx context.Context, cfg *Config, opts ...DatabaseOption) (*Database, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Reembed == nil {
		cfg.Reembed = reembed.DefaultConfig()
	}

	options := &databaseOptions{
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(options)
	}
	logger := options.logger

	repo, native, err := openRepository(ctx, cfg.Storage, logger)
	if err != nil {
		return nil, err
	}

	strategy, err := similarity.ParseStrategy(cfg.Similarity)
	if err != nil {
		repo.Close()
		return nil, err
	}
	simOpts := []similarity.Option{similarity.WithLogger(logger), similarity.WithStrategy(strategy)}
	if native != nil {
		simOpts = append(simOpts, similarity.WithNativeScorer(native))
	}
	sim, err := similarity.NewEngine(simOpts...)
	if err != nil {
		repo.Close()
		return nil, err
	}

	provider := options.provider
	if provider == nil {
		provider, err = openai.NewProvider(cfg.AI)
		if err != nil {
			repo.Close()
			return nil, err
		}
	}

	vectorizer, err := vectorize.NewVectorizer(provider.Embedder(), vectorize.WithLogger(logger))
	if err != nil {
		provider.Close()
		repo.Close()
		return nil, err
	}

	logger.Debug("database opened", "engine", cfg.Storage.Engine, "similarity", strategy)
	return &Database{
		config:     cfg,
		repo:       repo,
		provider:   provider,
		vectorizer: vectorizer,
		similarity: sim,
		logger:     logger.With("component", "database"),
	}, nil
}

// openRepository opens the configured store. native is non-nil when the
// store can score vectors itself.
func openRepository(ctx context.Context, cfg StorageConfig, logger *slog.Logger) (storage.CapabilityRepository, similarity.NativeScorer, error) {
	switch cfg.Engine {
	case EnginePostgres:
		repo, err := postgres.NewRepository(ctx, cfg.DSN, postgres.WithLogger(logger))
		if err != nil {
			return nil, nil, err
		}
		return repo, repo, nil
	default:
		if cfg.InMemory {
			repo, err := badger.NewMemoryRepository(badger.WithLogger(logger))
			return repo, nil, err
		}
		repo, err := badger.NewRepository(cfg.Path, badger.WithLogger(logger))
		return repo, nil, err
	}
}

// Close releases the provider and the store.
func (db *Database) Close() error {
	// Close AI provider first
	if err := db.provider.Close(); err != nil {
		db.logger.Error("error closing AI provider", "err", err)
	}

	if err := db.repo.Close(); err != nil {
		db.logger.Error("error closing capability repository", "err", err)
		return err
	}
	return nil
}

// Config returns the validated configuration the database was opened with.
func (db *Database) Config() *Config {
	return db.config
}

func (db *Database) Repository() storage.CapabilityRepository {
	return db.repo
}

func (db *Database) Vectorizer() *vectorize.Vectorizer {
	return db.vectorizer
}

// NewRegistrar creates a registrar configured from the registrar section.
// opts are applied after the configured ones. Callers must Release it.
func (db *Database) NewRegistrar(opts ...registrar.Option) (*registrar.Registrar, error) {
	rc := db.config.Registrar
	base := []registrar.Option{
		registrar.WithRetryPolicy(rc.Retry),
		registrar.WithVectorReuse(rc.ReuseVectors),
		registrar.WithLogger(db.logger),
	}
	if rc.PoolSize > 0 {
		base = append(base, registrar.WithPoolSize(rc.PoolSize))
	}
	if rc.ExtractKeyElements {
		base = append(base, registrar.WithExtractor(db.provider.KeyElementExtractor()))
	}
	return registrar.NewRegistrar(db.repo, db.vectorizer, append(base, opts...)...)
}

// NewSearchEngine creates a search engine configured from the search section.
func (db *Database) NewSearchEngine(opts ...search.Option) (*search.Engine, error) {
	base := []search.Option{
		search.WithLogger(db.logger),
		search.WithConfig(db.config.Search),
		search.WithSimilarityEngine(db.similarity),
	}
	return search.NewEngine(db.repo, db.vectorizer, db.provider.KeyElementExtractor(), append(base, opts...)...)
}

// NewReembedder creates a reembedder configured from the reembed section.
// progress receives human-readable progress lines; nil discards them.
func (db *Database) NewReembedder(progress io.Writer, opts ...reembed.Option) (*reembed.Reembedder, error) {
	base := []reembed.Option{reembed.WithLogger(db.logger)}
	return reembed.NewReembedder(db.repo, db.vectorizer, db.config.Reembed, progress, append(base, opts...)...)
}
