package search

import (
	"cmp"
	"context"
	"log/slog"
	"slices"

	"github.com/google/uuid"
	"github.com/poiesic/capsearch/ai"
	"github.com/poiesic/capsearch/core"
	"github.com/poiesic/capsearch/similarity"
	"github.com/poiesic/capsearch/storage"
	"github.com/poiesic/capsearch/vectorize"
	"golang.org/x/sync/errgroup"
)

// Engine provides hybrid vector and tag search over capabilities.
// It holds no per-query state and is safe for concurrent use.
type Engine struct {
	repository    storage.CapabilityRepository
	vectorizer    *vectorize.Vectorizer
	extractor     ai.KeyElementExtractor
	similarity    *similarity.Engine
	config        Config
	queryKeywords bool
	logger        *slog.Logger
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

// WithConfig replaces the whole search configuration.
func WithConfig(cfg Config) Option {
	return func(e *Engine) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		e.config = cfg
		return nil
	}
}

// WithTagOverlapWeight sets the tag boost weight (0..1).
// Default is DefaultTagOverlapWeight.
func WithTagOverlapWeight(weight float64) Option {
	return func(e *Engine) error {
		cfg := e.config
		cfg.TagOverlapWeight = weight
		if err := cfg.Validate(); err != nil {
			return err
		}
		e.config = cfg
		return nil
	}
}

// WithSimilarityEngine sets the per-dimension ranking engine, for example
// one backed by a store's native scorer.
// Default is a manual similarity.Engine.
func WithSimilarityEngine(engine *similarity.Engine) Option {
	return func(e *Engine) error {
		if engine != nil {
			e.similarity = engine
		}
		return nil
	}
}

// WithQueryKeywords merges the query's own non-stop words into the
// extracted key elements before tag lookup.
// Default is false.
func WithQueryKeywords(enabled bool) Option {
	return func(e *Engine) error {
		e.queryKeywords = enabled
		return nil
	}
}

// NewEngine creates a new search engine.
func NewEngine(
	repository storage.CapabilityRepository,
	vectorizer *vectorize.Vectorizer,
	extractor ai.KeyElementExtractor,
	opts ...Option,
) (*Engine, error) {
	if repository == nil {
		return nil, ErrRepositoryRequired
	}
	if vectorizer == nil {
		return nil, ErrVectorizerRequired
	}
	if extractor == nil {
		return nil, ErrExtractorRequired
	}

	e := &Engine{
		repository: repository,
		vectorizer: vectorizer,
		extractor:  extractor,
		config:     DefaultConfig(),
		logger:     slog.Default(),
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}

	if e.similarity == nil {
		sim, err := similarity.NewEngine(similarity.WithLogger(e.logger))
		if err != nil {
			return nil, err
		}
		e.similarity = sim
	}
	e.logger = e.logger.With("component", "search")
	return e, nil
}

// Config returns the engine's configuration.
func (e *Engine) Config() Config {
	return e.config
}

// Search runs a hybrid search. It returns a possibly empty ranked list or a
// single terminal error wrapping core.ErrInvalidQuery, core.ErrEmbedding or
// core.ErrStore. Cancellation discards all partial work.
func (e *Engine) Search(ctx context.Context, q Query) ([]core.SearchResult, error) {
	return e.SearchWithMonitor(ctx, q, nil)
}

// SearchWithMonitor runs Search and reports each stage to monitor.
func (e *Engine) SearchWithMonitor(ctx context.Context, q Query, monitor SearchMonitor) ([]core.SearchResult, error) {
	if monitor == nil {
		monitor = &noopMonitor{}
	} else {
		monitor = &lockedMonitor{inner: monitor}
	}

	if err := q.Validate(); err != nil {
		return nil, err
	}
	limit, err := e.config.limit(q.Limit)
	if err != nil {
		return nil, err
	}

	requestID := uuid.NewString()
	logger := e.logger.With("request_id", requestID)
	monitor.Start(requestID, q)

	weights := q.Weights.Normalized()
	dims := activeDimensions(weights)

	var (
		queryTags  []string
		tagMatches []core.TagMatch
		pool       []*core.Capability
		ranked     [len(core.Dimensions)][]similarity.Scored
	)

	g, gctx := errgroup.WithContext(ctx)

	// Tag overlap branch: extract, then look up.
	g.Go(func() error {
		queryTags = e.queryKeyElements(gctx, q.Text, logger)
		monitor.AfterKeyElementExtraction(queryTags)
		if err := gctx.Err(); err != nil {
			return err
		}
		if len(queryTags) == 0 {
			return nil
		}
		matches, err := e.repository.ListByTags(gctx, queryTags)
		if err != nil {
			return err
		}
		tagMatches = matches
		monitor.AfterTagLookup(matches)
		return nil
	})

	// Vector branch: embed and load the pool, then rank each dimension.
	g.Go(func() error {
		var triple core.VectorTriple
		prep, pctx := errgroup.WithContext(gctx)
		prep.Go(func() error {
			var err error
			triple, err = e.vectorizer.VectorizeQuery(pctx, q.Text, dims, q.Overrides)
			return err
		})
		prep.Go(func() error {
			var err error
			pool, err = e.repository.ListCandidates(pctx, q.Kinds...)
			if err == nil {
				monitor.AfterCandidateLoad(len(pool))
			}
			return err
		})
		if err := prep.Wait(); err != nil {
			return err
		}
		if len(pool) == 0 {
			return nil
		}

		rank, rctx := errgroup.WithContext(gctx)
		for _, d := range dims {
			candidates := candidatesFor(pool, d)
			rank.Go(func() error {
				scored, err := e.similarity.TopK(rctx, d, triple.Get(d), candidates, 0)
				if err != nil {
					return err
				}
				ranked[d] = scored
				monitor.AfterDimensionRanking(d, scored)
				return nil
			})
		}
		return rank.Wait()
	})

	if err := g.Wait(); err != nil {
		logger.Debug("search failed", "err", err)
		return nil, err
	}

	results := e.combine(pool, ranked, weights, dims)

	// Tag boost, including capabilities reached only through tags.
	if len(tagMatches) > 0 {
		var err error
		results, err = e.applyTagBoost(ctx, results, tagMatches, len(queryTags), q.Kinds, monitor)
		if err != nil {
			logger.Debug("search failed", "err", err)
			return nil, err
		}
	}

	out := make([]core.SearchResult, 0, len(results))
	for _, r := range results {
		if r.Score < q.Threshold {
			continue
		}
		out = append(out, *r)
	}
	sortResults(out)
	if len(out) > limit {
		out = out[:limit]
	}

	logger.Debug("search complete",
		"pool", len(pool),
		"query_tags", len(queryTags),
		"tag_matches", len(tagMatches),
		"results", len(out))
	monitor.Finish(out)
	return out, nil
}

// queryKeyElements asks the extractor for tags. Extraction is best-effort:
// failures are logged and yield no tags.
func (e *Engine) queryKeyElements(ctx context.Context, text string, logger *slog.Logger) []string {
	tags, err := e.extractor.ExtractKeyElements(ctx, text)
	if err != nil {
		if ctx.Err() == nil {
			logger.Warn("key element extraction failed, continuing without tags", "err", err)
		}
		tags = nil
	}
	if e.queryKeywords {
		tags = append(tags, ai.TokenizeAndFilter(text)...)
	}
	return core.NormalizeKeyElements(tags)
}

// combine computes the weighted sum for every capability in the pool.
// A capability without a vector for a dimension scores 0 there.
func (e *Engine) combine(pool []*core.Capability, ranked [len(core.Dimensions)][]similarity.Scored, weights core.SearchWeights, dims []core.Dimension) map[string]*core.SearchResult {
	results := make(map[string]*core.SearchResult, len(pool))
	for _, c := range pool {
		results[c.ID] = &core.SearchResult{
			CapabilityID:    c.ID,
			MatchedElements: []string{},
			Capability:      c,
		}
	}
	for _, d := range dims {
		for _, s := range ranked[d] {
			if r, ok := results[s.ID]; ok {
				r.DimensionScores.Set(d, s.Score)
			}
		}
	}
	for _, r := range results {
		for _, d := range dims {
			r.VectorScore += weights.Get(d) * r.DimensionScores.Get(d)
		}
		r.Score = r.VectorScore
	}
	return results
}

// applyTagBoost adds weight * matched / max(1, queryTagCount) to every tag
// match. Matches outside the pool are loaded and kept when active and of a
// requested kind.
func (e *Engine) applyTagBoost(
	ctx context.Context,
	results map[string]*core.SearchResult,
	matches []core.TagMatch,
	queryTagCount int,
	kinds []core.Kind,
	monitor SearchMonitor,
) (map[string]*core.SearchResult, error) {
	var missing []string
	for _, m := range matches {
		if _, ok := results[m.CapabilityID]; !ok {
			missing = append(missing, m.CapabilityID)
		}
	}
	if len(missing) > 0 {
		caps, err := e.repository.GetCapabilities(ctx, missing...)
		if err != nil {
			return nil, err
		}
		for _, c := range caps {
			if !c.IsActive() || !storage.MatchesKinds(c.Kind, kinds) {
				continue
			}
			results[c.ID] = &core.SearchResult{
				CapabilityID:    c.ID,
				MatchedElements: []string{},
				Capability:      c,
			}
			monitor.TagOnlyHit(c)
		}
	}

	denominator := float64(max(1, queryTagCount))
	for _, m := range matches {
		r, ok := results[m.CapabilityID]
		if !ok {
			continue
		}
		r.MatchedElements = slices.Clone(m.MatchedTags)
		r.TagScore = e.config.TagOverlapWeight * float64(m.MatchCount) / denominator
		r.Score = r.VectorScore + r.TagScore
	}
	return results, nil
}

// candidatesFor projects the pool onto one dimension's vectors.
func candidatesFor(pool []*core.Capability, d core.Dimension) []similarity.Candidate {
	out := make([]similarity.Candidate, 0, len(pool))
	for _, c := range pool {
		out = append(out, similarity.Candidate{ID: c.ID, Vector: c.Vectors.Get(d)})
	}
	return out
}

// sortResults orders by score descending, then capability id ascending.
func sortResults(results []core.SearchResult) {
	slices.SortFunc(results, func(a, b core.SearchResult) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.CapabilityID, b.CapabilityID)
	})
}
