package badger

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/poiesic/capsearch/core"
	"github.com/poiesic/capsearch/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T, opts ...Option) *CapabilityRepository {
	t.Helper()
	repo, err := newMemoryRepository(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func testCapability(id string, kind core.Kind, tags ...string) *core.Capability {
	return &core.Capability{
		ID:          id,
		Kind:        kind,
		Name:        id,
		Description: "capability " + id,
		Status:      core.StatusActive,
		KeyElements: tags,
		Vectors: core.VectorTriple{
			Semantic:   []float32{1, 0, 0},
			Functional: []float32{0, 1, 0},
			Contextual: []float32{0, 0, 1},
		},
	}
}

func ids(caps []*core.Capability) []string {
	out := make([]string, len(caps))
	for i, c := range caps {
		out[i] = c.ID
	}
	return out
}

func TestUpsertAndGet(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 123456789, time.UTC)
	repo := newTestRepo(t, withClock(func() time.Time { return fixed }))
	ctx := context.Background()

	c := testCapability("tool_weather", core.KindTool, " Weather", "real-time", "weather")
	c.ExamplePhrases = []string{"what's the forecast"}
	c.Profile = core.Profile{Concept: "forecast", Inputs: []core.Param{{Name: "city", Type: "string"}}}
	c.Payload = core.ToolSpec{APIEndpoint: "https://api.example.com/weather", RateLimit: "60/min"}

	stored, err := repo.UpsertCapability(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, []string{"real-time", "weather"}, stored.KeyElements)
	assert.Equal(t, fixed.Truncate(time.Microsecond), stored.LastUpdated)
	// The caller's value is left untouched.
	assert.Equal(t, []string{" Weather", "real-time", "weather"}, c.KeyElements)

	got, err := repo.GetCapability(ctx, "tool_weather")
	require.NoError(t, err)
	assert.Equal(t, stored, got)
}

func TestGetCapability_NotFound(t *testing.T) {
	repo := newTestRepo(t)

	c, err := repo.GetCapability(context.Background(), "missing")
	assert.Nil(t, c)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.NotErrorIs(t, err, core.ErrStore)
}

func TestGetCapabilities_SkipsMissing(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b"} {
		_, err := repo.UpsertCapability(ctx, testCapability(id, core.KindTool))
		require.NoError(t, err)
	}

	got, err := repo.GetCapabilities(ctx, "b", "missing", "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, ids(got))
}

func TestUpsert_ReplacesTagSetExactly(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	_, err := repo.UpsertCapability(ctx, testCapability("cap", core.KindTool, "a", "b"))
	require.NoError(t, err)
	_, err = repo.UpsertCapability(ctx, testCapability("cap", core.KindTool, "a", "c"))
	require.NoError(t, err)

	matches, err := repo.ListByTags(ctx, []string{"b"})
	require.NoError(t, err)
	assert.Empty(t, matches)

	matches, err = repo.ListByTags(ctx, []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, []string{"a", "c"}, matches[0].MatchedTags)
	assert.Equal(t, 2, matches[0].MatchCount)

	// Clearing every tag removes every edge.
	_, err = repo.UpsertCapability(ctx, testCapability("cap", core.KindTool))
	require.NoError(t, err)
	matches, err = repo.ListByTags(ctx, []string{"a", "c"})
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestListByTags_Ordering(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	caps := []*core.Capability{
		testCapability("tool_weather", core.KindTool, "weather", "real-time"),
		testCapability("tool_tracking", core.KindTool, "order", "tracking", "real-time"),
		testCapability("kb_docs", core.KindKnowledgeSource, "product", "faq"),
		testCapability("tool_alerts", core.KindTool, "weather", "real-time", "alerts"),
	}
	for _, c := range caps {
		_, err := repo.UpsertCapability(ctx, c)
		require.NoError(t, err)
	}
	require.NoError(t, repo.SetStatus(ctx, "tool_tracking", core.StatusDisabled))

	matches, err := repo.ListByTags(ctx, []string{"Weather", "real-time", "unknown"})
	require.NoError(t, err)

	require.Len(t, matches, 3)
	assert.Equal(t, "tool_alerts", matches[0].CapabilityID)
	assert.Equal(t, "tool_weather", matches[1].CapabilityID)
	assert.Equal(t, []string{"real-time", "weather"}, matches[1].MatchedTags)
	// Disabled capabilities are still reported.
	assert.Equal(t, "tool_tracking", matches[2].CapabilityID)
	assert.Equal(t, 1, matches[2].MatchCount)

	matches, err = repo.ListByTags(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestListCandidates(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	for _, c := range []*core.Capability{
		testCapability("tool_b", core.KindTool),
		testCapability("kb_docs", core.KindKnowledgeSource),
		testCapability("tool_a", core.KindTool),
		testCapability("table_orders", core.KindDatabaseTable),
	} {
		_, err := repo.UpsertCapability(ctx, c)
		require.NoError(t, err)
	}
	require.NoError(t, repo.SetStatus(ctx, "tool_b", core.StatusDisabled))

	all, err := repo.ListCandidates(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"kb_docs", "table_orders", "tool_a"}, ids(all))

	tools, err := repo.ListCandidates(ctx, core.KindTool, core.KindConversationFact)
	require.NoError(t, err)
	assert.Equal(t, []string{"tool_a"}, ids(tools))

	everything, err := repo.ListCapabilities(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"kb_docs", "table_orders", "tool_a", "tool_b"}, ids(everything))
}

func TestListCandidates_Empty(t *testing.T) {
	repo := newTestRepo(t)

	got, err := repo.ListCandidates(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestUpsert_DimensionChangeAllowed(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	_, err := repo.UpsertCapability(ctx, testCapability("cap", core.KindTool))
	require.NoError(t, err)

	c := testCapability("cap", core.KindTool)
	c.Vectors = core.VectorTriple{Semantic: []float32{1, 2, 3, 4, 5}}
	_, err = repo.UpsertCapability(ctx, c)
	require.NoError(t, err)

	got, err := repo.GetCapability(ctx, "cap")
	require.NoError(t, err)
	assert.Len(t, got.Vectors.Semantic, 5)
	assert.Empty(t, got.Vectors.Functional)
}

func TestUpsert_Invalid(t *testing.T) {
	repo := newTestRepo(t)

	c := testCapability("", core.KindTool)
	_, err := repo.UpsertCapability(context.Background(), c)
	assert.ErrorIs(t, err, core.ErrInvalidCapability)
	assert.NotErrorIs(t, err, core.ErrStore)
}

func TestSetStatus(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	err := repo.SetStatus(ctx, "missing", core.StatusDisabled)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = repo.UpsertCapability(ctx, testCapability("cap", core.KindTool, "x"))
	require.NoError(t, err)

	err = repo.SetStatus(ctx, "cap", core.Status(9))
	assert.ErrorIs(t, err, core.ErrInvalidStatus)

	require.NoError(t, repo.SetStatus(ctx, "cap", core.StatusDisabled))
	got, err := repo.GetCapability(ctx, "cap")
	require.NoError(t, err)
	assert.Equal(t, core.StatusDisabled, got.Status)
	assert.NotEmpty(t, got.Vectors.Semantic)
	assert.Equal(t, []string{"x"}, got.KeyElements)
}

func TestUpsert_ConcurrentSameID(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.UpsertCapability(ctx, testCapability("cap", core.KindTool, fmt.Sprintf("tag-%d", i)))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := repo.GetCapability(ctx, "cap")
	require.NoError(t, err)
	require.Len(t, got.KeyElements, 1)

	all := make([]string, 20)
	for i := range all {
		all[i] = fmt.Sprintf("tag-%d", i)
	}
	matches, err := repo.ListByTags(ctx, all)
	require.NoError(t, err)
	// Exactly the last writer's tag survives.
	require.Len(t, matches, 1)
	assert.Equal(t, got.KeyElements, matches[0].MatchedTags)
	assert.Equal(t, 0, repo.locks.Len())
}

func TestRepository_Cancelled(t *testing.T) {
	repo := newTestRepo(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := repo.UpsertCapability(ctx, testCapability("cap", core.KindTool))
	assert.ErrorIs(t, err, context.Canceled)
	_, err = repo.ListCandidates(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	_, err = repo.ListByTags(ctx, []string{"a"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRepository_Closed(t *testing.T) {
	repo, err := newMemoryRepository()
	require.NoError(t, err)
	require.NoError(t, repo.Close())

	_, err = repo.GetCapability(context.Background(), "cap")
	assert.ErrorIs(t, err, core.ErrStore)
	assert.ErrorIs(t, err, storage.ErrStorageClosed)
}

func TestNewRepository_Persists(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	repo, err := NewRepository(dir)
	require.NoError(t, err)
	_, err = repo.UpsertCapability(ctx, testCapability("cap", core.KindTool, "persisted"))
	require.NoError(t, err)
	require.NoError(t, repo.Close())

	repo, err = NewRepository(dir)
	require.NoError(t, err)
	defer repo.Close()

	matches, err := repo.ListByTags(ctx, []string{"persisted"})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "cap", matches[0].CapabilityID)
}

func TestNewCapabilityRepository_RequiresBackend(t *testing.T) {
	_, err := NewCapabilityRepository(nil)
	assert.ErrorIs(t, err, storage.ErrBackendRequired)
}

func TestDiffTags(t *testing.T) {
	removed, added := diffTags([]string{"a", "b"}, []string{"a", "c"})
	assert.Equal(t, []string{"b"}, removed)
	assert.Equal(t, []string{"c"}, added)

	removed, added = diffTags(nil, []string{"x"})
	assert.Nil(t, removed)
	assert.Equal(t, []string{"x"}, added)
}
