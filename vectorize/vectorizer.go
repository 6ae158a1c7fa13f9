package vectorize

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/poiesic/capsearch/ai"
	"github.com/poiesic/capsearch/core"
)

// ErrEmbedderRequired is returned when a Vectorizer is constructed without an embedder.
var ErrEmbedderRequired = errors.New("embedder required")

// Vectorizer produces vector triples for capabilities and queries.
// It holds no per-call state and is safe for concurrent use.
type Vectorizer struct {
	embedder ai.Embedder
	logger   *slog.Logger
}

// Option configures a Vectorizer.
type Option func(*Vectorizer) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(v *Vectorizer) error {
		if logger == nil {
			logger = slog.Default()
		}
		v.logger = logger
		return nil
	}
}

// NewVectorizer creates a vectorizer backed by embedder.
func NewVectorizer(embedder ai.Embedder, opts ...Option) (*Vectorizer, error) {
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	v := &Vectorizer{
		embedder: embedder,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(v); err != nil {
			return nil, err
		}
	}
	v.logger = v.logger.With("component", "vectorizer")
	return v, nil
}

// Vectorize embeds the three encodings of c in one batched gateway call.
func (v *Vectorizer) Vectorize(ctx context.Context, c *core.Capability) (core.VectorTriple, error) {
	if c == nil {
		return core.VectorTriple{}, fmt.Errorf("%w: capability is nil", core.ErrInvalidCapability)
	}
	enc := Encode(c)
	texts := enc.Texts()
	for i, text := range texts {
		if text == "" {
			return core.VectorTriple{}, fmt.Errorf("%w: %s encoding of %q is empty", core.ErrInvalidCapability, core.Dimensions[i], c.ID)
		}
	}

	vecs, err := v.embed(ctx, texts)
	if err != nil {
		v.logger.Error("failed to vectorize capability", "id", c.ID, "err", err)
		return core.VectorTriple{}, err
	}

	var triple core.VectorTriple
	for i, d := range core.Dimensions {
		triple.Set(d, vecs[i])
	}
	if err := core.ValidateVectors(triple); err != nil {
		return core.VectorTriple{}, fmt.Errorf("%w: %w", core.ErrEmbedding, err)
	}
	v.logger.Debug("vectorized capability", "id", c.ID, "dims", len(triple.Semantic))
	return triple, nil
}

// VectorizeQuery embeds a free-text query for the requested dimensions.
//
// Dimensions without an override share a single vector of text. Dimensions
// with an override are embedded from the override text instead. All texts go
// to the gateway in one call, each distinct text once.
func (v *Vectorizer) VectorizeQuery(ctx context.Context, text string, dims []core.Dimension, overrides map[core.Dimension]string) (core.VectorTriple, error) {
	if strings.TrimSpace(text) == "" {
		return core.VectorTriple{}, fmt.Errorf("%w: query text is empty", core.ErrInvalidQuery)
	}
	if len(dims) == 0 {
		return core.VectorTriple{}, nil
	}

	texts := make([]string, 0, len(dims))
	index := make(map[string]int, len(dims))
	source := make(map[core.Dimension]string, len(dims))
	for _, d := range dims {
		t := text
		if o := clean(overrides[d]); o != "" {
			t = o
		}
		source[d] = t
		if _, ok := index[t]; !ok {
			index[t] = len(texts)
			texts = append(texts, t)
		}
	}

	vecs, err := v.embed(ctx, texts)
	if err != nil {
		return core.VectorTriple{}, err
	}

	var triple core.VectorTriple
	for _, d := range dims {
		triple.Set(d, vecs[index[source[d]]])
	}
	return triple, nil
}

// embed calls the gateway and checks the response shape. Every failure wraps core.ErrEmbedding.
func (v *Vectorizer) embed(ctx context.Context, texts []string) ([][]float32, error) {
	vecs, err := v.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		if errors.Is(err, core.ErrEmbedding) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", core.ErrEmbedding, err)
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("%w: gateway returned %d vectors for %d texts", core.ErrEmbedding, len(vecs), len(texts))
	}
	for i, vec := range vecs {
		if len(vec) == 0 {
			return nil, fmt.Errorf("%w: gateway returned an empty vector for text %d", core.ErrEmbedding, i)
		}
	}
	return vecs, nil
}

// QueryOverrides builds per-dimension query texts from structured query
// metadata. Only dimensions with at least one populated field get an entry;
// no defaults are applied.
func QueryOverrides(p core.Profile) map[core.Dimension]string {
	out := make(map[core.Dimension]string, 3)

	var sem fragments
	sem.add("concept", p.Concept)
	sem.add("domain", p.Domain)
	sem.add("type", p.Type)
	if s := sem.String(); s != "" {
		out[core.DimensionSemantic] = s
	}

	if fn := encodeFunctional(core.Profile{Operation: p.Operation, Inputs: p.Inputs, Output: p.Output}); fn != "" {
		out[core.DimensionFunctional] = fn
	}

	var ctxt fragments
	ctxt.add("usage", p.Usage)
	for _, pre := range p.Prerequisites {
		ctxt.add("prereq", pre)
	}
	for _, con := range p.Constraints {
		ctxt.add("constraint", con)
	}
	if s := ctxt.String(); s != "" {
		out[core.DimensionContextual] = s
	}
	return out
}
