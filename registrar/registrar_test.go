package registrar

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/poiesic/capsearch/ai/mock"
	"github.com/poiesic/capsearch/core"
	"github.com/poiesic/capsearch/storage"
	"github.com/poiesic/capsearch/storage/badger"
	"github.com/poiesic/capsearch/vectorize"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	repo      storage.CapabilityRepository
	embedder  *mock.MockEmbedder
	registrar *Registrar
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	repo, err := badger.NewMemoryRepository()
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	embedder := mock.NewMockEmbedder()
	vectorizer, err := vectorize.NewVectorizer(embedder)
	require.NoError(t, err)

	opts = append([]Option{
		WithPoolSize(4),
		WithRetryPolicy(vectorize.RetryPolicy{MaxAttempts: 2, BaseDelay: time.Millisecond}),
	}, opts...)
	r, err := NewRegistrar(repo, vectorizer, opts...)
	require.NoError(t, err)
	t.Cleanup(r.Release)

	return &fixture{repo: repo, embedder: embedder, registrar: r}
}

func weatherFields() map[string]any {
	return map[string]any{
		"name":         "weather",
		"description":  "Current weather conditions and forecasts",
		"key_elements": []any{"weather", "real-time"},
		"api_endpoint": "https://api.example.com/weather",
		"inputs":       []any{map[string]any{"name": "location", "type": "string"}},
		"output":       "forecast",
	}
}

func TestNewRegistrar(t *testing.T) {
	repo, err := badger.NewMemoryRepository()
	require.NoError(t, err)
	defer repo.Close()
	vectorizer, err := vectorize.NewVectorizer(mock.NewMockEmbedder())
	require.NoError(t, err)

	_, err = NewRegistrar(nil, vectorizer)
	assert.ErrorIs(t, err, ErrRepositoryRequired)

	_, err = NewRegistrar(repo, nil)
	assert.ErrorIs(t, err, ErrVectorizerRequired)

	_, err = NewRegistrar(repo, vectorizer, WithRetryPolicy(vectorize.RetryPolicy{}))
	assert.ErrorIs(t, err, vectorize.ErrInvalidMaxAttempts)

	r, err := NewRegistrar(repo, vectorizer, WithLogger(nil), WithPoolSize(0))
	require.NoError(t, err)
	assert.Equal(t, 1, r.pool.Cap())
	r.Release()
}

func TestRegister(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id, err := f.registrar.Register(ctx, core.KindTool, weatherFields())
	require.NoError(t, err)
	assert.Equal(t, "tool_weather", id)

	got, err := f.repo.GetCapability(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, core.KindTool, got.Kind)
	assert.Equal(t, core.StatusActive, got.Status)
	assert.Equal(t, []string{"real-time", "weather"}, got.KeyElements)
	assert.Equal(t, 3, got.Vectors.Populated())
	assert.Len(t, got.Vectors.Semantic, mock.DefaultDimensions)
	assert.Equal(t, "https://api.example.com/weather", got.Payload.(core.ToolSpec).APIEndpoint)
	assert.Equal(t, 1, f.embedder.CallCount(), "one batched gateway call per capability")
}

func TestRegister_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.registrar.Register(ctx, core.KindTool, weatherFields())
	require.NoError(t, err)
	first, err := f.repo.GetCapability(ctx, "tool_weather")
	require.NoError(t, err)

	_, err = f.registrar.Register(ctx, core.KindTool, weatherFields())
	require.NoError(t, err)
	assert.Equal(t, 1, f.embedder.CallCount(), "unchanged encodings reuse stored vectors")

	again, err := f.repo.GetCapability(ctx, "tool_weather")
	require.NoError(t, err)
	assert.Equal(t, first.Vectors, again.Vectors)

	all, err := f.repo.ListCapabilities(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	changed := weatherFields()
	changed["description"] = "Severe weather alerts"
	_, err = f.registrar.Register(ctx, core.KindTool, changed)
	require.NoError(t, err)
	assert.Equal(t, 2, f.embedder.CallCount(), "changed source fields are re-vectorized")
}

func TestRegister_TagOnlyChangeKeepsVectors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.registrar.Register(ctx, core.KindTool, weatherFields())
	require.NoError(t, err)

	retagged := weatherFields()
	retagged["key_elements"] = []any{"weather", "forecast"}
	_, err = f.registrar.Register(ctx, core.KindTool, retagged)
	require.NoError(t, err)
	assert.Equal(t, 1, f.embedder.CallCount())

	matches, err := f.repo.ListByTags(ctx, []string{"real-time"})
	require.NoError(t, err)
	assert.Empty(t, matches, "stale tag edges are replaced")
}

func TestRegister_WithoutVectorReuse(t *testing.T) {
	f := newFixture(t, WithVectorReuse(false))
	ctx := context.Background()

	for range 2 {
		_, err := f.registrar.Register(ctx, core.KindTool, weatherFields())
		require.NoError(t, err)
	}
	assert.Equal(t, 2, f.embedder.CallCount())
}

func TestRegister_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.registrar.Register(ctx, core.KindTool, map[string]any{"description": "no name"})
	assert.ErrorIs(t, err, core.ErrInvalidCapability)

	_, err = f.registrar.Register(ctx, core.KindTool, map[string]any{"name": "x", "bogus": true})
	assert.ErrorIs(t, err, ErrMalformedRecord)

	_, err = f.registrar.Register(ctx, core.Kind(9), weatherFields())
	assert.ErrorIs(t, err, core.ErrUnknownKind)

	_, err = f.registrar.RegisterDescriptor(ctx, nil)
	assert.ErrorIs(t, err, core.ErrInvalidCapability)

	assert.Equal(t, 0, f.embedder.CallCount(), "invalid records never reach the gateway")
}

func TestRegister_EmbeddingRetry(t *testing.T) {
	f := newFixture(t)
	var calls atomic.Int32
	f.embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		if calls.Add(1) == 1 {
			return nil, errors.New("gateway timeout")
		}
		out := make([][]float32, len(texts))
		for i := range texts {
			out[i] = []float32{1, float32(i), 0}
		}
		return out, nil
	}

	id, err := f.registrar.Register(context.Background(), core.KindTool, weatherFields())
	require.NoError(t, err)
	assert.Equal(t, "tool_weather", id)
	assert.Equal(t, int32(2), calls.Load())
}

func TestRegister_EmbeddingFailure(t *testing.T) {
	f := newFixture(t)
	f.embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return nil, errors.New("gateway down")
	}

	id, err := f.registrar.Register(context.Background(), core.KindTool, weatherFields())
	assert.ErrorIs(t, err, core.ErrEmbedding)
	assert.Equal(t, "tool_weather", id, "the id is reported even when registration fails")
	assert.Equal(t, 2, f.embedder.CallCount(), "retried up to the policy limit")

	_, err = f.repo.GetCapability(context.Background(), "tool_weather")
	assert.ErrorIs(t, err, storage.ErrNotFound, "nothing is stored without vectors")
}

func TestRegister_ExtractsMissingKeyElements(t *testing.T) {
	extractor := mock.NewMockKeyElementExtractor()
	extractor.ExtractKeyElementsFunc = func(ctx context.Context, text string) ([]string, error) {
		return []string{"Orders", "tracking"}, nil
	}
	f := newFixture(t, WithExtractor(extractor))
	ctx := context.Background()

	id, err := f.registrar.Register(ctx, core.KindTool, map[string]any{"name": "order tracking"})
	require.NoError(t, err)
	got, err := f.repo.GetCapability(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []string{"orders", "tracking"}, got.KeyElements)

	_, err = f.registrar.Register(ctx, core.KindTool, weatherFields())
	require.NoError(t, err)
	assert.Equal(t, 1, extractor.CallCount(), "records with tags are not sent to the extractor")
}

func TestRegister_ExtractorFailureIsBestEffort(t *testing.T) {
	extractor := mock.NewMockKeyElementExtractor()
	extractor.ExtractKeyElementsFunc = func(ctx context.Context, text string) ([]string, error) {
		return nil, errors.New("model unavailable")
	}
	f := newFixture(t, WithExtractor(extractor))

	id, err := f.registrar.Register(context.Background(), core.KindKnowledgeSource, map[string]any{"name": "docs"})
	require.NoError(t, err)
	got, err := f.repo.GetCapability(context.Background(), id)
	require.NoError(t, err)
	assert.Empty(t, got.KeyElements)
}

func TestRegisterMany_PartialSuccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	records := []Record{
		NewRecord(core.KindTool, weatherFields()),
		NewRecord(core.KindTool, map[string]any{"name": "tracking", "key_elements": []any{"order", "tracking"}}),
		{Kind: "tool", Fields: map[string]any{"name": "broken", "input_schema": 3, "unknown_field": "x"}},
		NewRecord(core.KindKnowledgeSource, map[string]any{"name": "docs", "key_elements": []any{"product", "faq"}}),
	}

	results, err := f.registrar.RegisterMany(ctx, records)
	require.NoError(t, err)
	require.Len(t, results, 4)

	assert.True(t, results[0].Ok())
	assert.Equal(t, "tool_weather", results[0].ID)
	assert.True(t, results[1].Ok())
	assert.Equal(t, "tool_tracking", results[1].ID)
	assert.False(t, results[2].Ok())
	assert.ErrorIs(t, results[2].Err, ErrMalformedRecord)
	assert.True(t, results[3].Ok())
	assert.Equal(t, "kb_docs", results[3].ID)

	for _, id := range []string{"tool_weather", "tool_tracking", "kb_docs"} {
		got, err := f.repo.GetCapability(ctx, id)
		require.NoError(t, err, id)
		assert.Equal(t, 3, got.Vectors.Populated())
	}
}

func TestRegisterMany_EmbeddingFailureIsIsolated(t *testing.T) {
	f := newFixture(t)
	f.embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		if strings.Contains(texts[0], "broken") {
			return nil, errors.New("gateway rejected input")
		}
		out := make([][]float32, len(texts))
		for i := range texts {
			out[i] = []float32{0.5, 0.5}
		}
		return out, nil
	}

	records := make([]Record, 0, 12)
	for i := range 12 {
		name := fmt.Sprintf("tool %d", i)
		if i == 5 {
			name = "broken tool"
		}
		records = append(records, NewRecord(core.KindTool, map[string]any{"name": name}))
	}

	results, err := f.registrar.RegisterMany(context.Background(), records)
	require.NoError(t, err)
	for i, res := range results {
		if i == 5 {
			assert.ErrorIs(t, res.Err, core.ErrEmbedding)
			assert.Equal(t, "tool_broken_tool", res.ID)
			continue
		}
		assert.NoError(t, res.Err)
		assert.Equal(t, fmt.Sprintf("tool_tool_%d", i), res.ID, "results keep input order")
	}
}

func TestRegisterMany_FromRecordFile(t *testing.T) {
	f := newFixture(t)
	records, err := DecodeRecords(strings.NewReader(`
- kind: tool
  name: weather
  key_elements: [weather, real-time]
- kind: database_table
  database: shop
  table: orders
  schema: [{name: id, type: bigint}]
- 42
`))
	require.NoError(t, err)

	results, err := f.registrar.RegisterMany(context.Background(), records)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.True(t, results[0].Ok())
	assert.True(t, results[1].Ok())
	assert.Equal(t, "table_shop_orders", results[1].ID)
	assert.ErrorIs(t, results[2].Err, ErrMalformedRecord)
}

func TestRegisterMany_Cancelled(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := f.registrar.RegisterMany(ctx, []Record{
		NewRecord(core.KindTool, weatherFields()),
		NewRecord(core.KindKnowledgeSource, map[string]any{"name": "docs"}),
	})
	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, results, 2)
	for _, res := range results {
		assert.ErrorIs(t, res.Err, context.Canceled)
	}
	assert.Equal(t, 0, f.embedder.CallCount())
}

func TestRegisterMany_Empty(t *testing.T) {
	f := newFixture(t)
	results, err := f.registrar.RegisterMany(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestDisableAndEnable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id, err := f.registrar.Register(ctx, core.KindTool, weatherFields())
	require.NoError(t, err)
	before, err := f.repo.GetCapability(ctx, id)
	require.NoError(t, err)

	require.NoError(t, f.registrar.Disable(ctx, id))
	candidates, err := f.repo.ListCandidates(ctx)
	require.NoError(t, err)
	assert.Empty(t, candidates)

	disabled, err := f.repo.GetCapability(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, core.StatusDisabled, disabled.Status)
	assert.Equal(t, before.Vectors, disabled.Vectors, "disabling keeps vectors")

	require.NoError(t, f.registrar.Enable(ctx, id))
	candidates, err = f.repo.ListCandidates(ctx)
	require.NoError(t, err)
	assert.Len(t, candidates, 1)

	assert.ErrorIs(t, f.registrar.Disable(ctx, "tool_missing"), storage.ErrNotFound)
	assert.ErrorIs(t, f.registrar.Disable(ctx, " "), core.ErrEmptyCapabilityID)
}
