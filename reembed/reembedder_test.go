package reembed

import (
	"bytes"
	"context"
	"testing"

	"github.com/poiesic/capsearch/ai/mock"
	"github.com/poiesic/capsearch/core"
	"github.com/poiesic/capsearch/storage"
	"github.com/poiesic/capsearch/vectorize"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReembedder_Run(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	old := []float32{1, 0, 0, 0}
	ids := seed(t, repo, 10, core.VectorTriple{Semantic: old, Functional: old, Contextual: old})
	require.NoError(t, repo.SetStatus(ctx, ids[4], core.StatusDisabled))

	var buf bytes.Buffer
	config := &Config{BatchSize: 3, ReportInterval: 3, Concurrency: 2, Retry: testRetry}
	embedder := mock.NewMockEmbedder()

	reembedder, err := NewReembedder(repo, newVectorizer(t, embedder), config, &buf)
	require.NoError(t, err)

	stats, err := reembedder.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10, stats.Total)
	assert.Equal(t, 10, stats.Updated)
	assert.Empty(t, stats.Skipped)
	assert.Equal(t, 10, embedder.CallCount(), "one batched gateway call per capability")

	all, err := repo.ListCapabilities(ctx)
	require.NoError(t, err)
	require.Len(t, all, 10)
	for _, c := range all {
		assert.Equal(t, 3, c.Vectors.Populated(), c.ID)
		assert.Len(t, c.Vectors.Semantic, mock.DefaultDimensions, "vectors come from the new model")
	}

	disabled, err := repo.GetCapability(ctx, ids[4])
	require.NoError(t, err)
	assert.Equal(t, core.StatusDisabled, disabled.Status)

	output := buf.String()
	assert.Contains(t, output, "Starting reembedding of 10 capabilities")
	assert.Contains(t, output, "10/10")
	assert.Contains(t, output, "Reembedding complete")
}

// lateRegistrationRepo stores one more capability right after the first
// listing, the way a concurrent registration would.
type lateRegistrationRepo struct {
	storage.CapabilityRepository
	late      *core.Capability
	listCalls int
}

func (r *lateRegistrationRepo) ListCapabilities(ctx context.Context) ([]*core.Capability, error) {
	r.listCalls++
	all, err := r.CapabilityRepository.ListCapabilities(ctx)
	if err != nil || r.listCalls > 1 {
		return all, err
	}
	_, err = r.CapabilityRepository.UpsertCapability(ctx, r.late)
	return all, err
}

func TestReembedder_SingleListing(t *testing.T) {
	base, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	old := []float32{1, 0, 0, 0}
	seed(t, base, 5, core.VectorTriple{Semantic: old, Functional: old, Contextual: old})
	repo := &lateRegistrationRepo{
		CapabilityRepository: base,
		late: &core.Capability{
			ID:          "cap_late",
			Kind:        core.KindTool,
			Name:        "late tool",
			Status:      core.StatusActive,
			KeyElements: []string{"tag"},
			Vectors:     core.VectorTriple{Semantic: old, Functional: old, Contextual: old},
		},
	}

	config := &Config{BatchSize: 2, ReportInterval: 2, Concurrency: 1, Retry: testRetry}
	reembedder, err := NewReembedder(repo, newVectorizer(t, mock.NewMockEmbedder()), config, nil)
	require.NoError(t, err)

	stats, err := reembedder.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, repo.listCalls, "the store is listed once per run")
	assert.Equal(t, 5, stats.Total)
	assert.Equal(t, stats.Total, stats.Updated)

	late, err := base.GetCapability(ctx, "cap_late")
	require.NoError(t, err)
	assert.Equal(t, old, late.Vectors.Semantic, "registered after the listing, left for the next run")
}

func TestReembedder_EmptyRepository(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	var buf bytes.Buffer
	reembedder, err := NewReembedder(repo, newVectorizer(t, mock.NewMockEmbedder()), nil, &buf)
	require.NoError(t, err)

	stats, err := reembedder.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Total)
	assert.Contains(t, buf.String(), "0 capabilities")
}

func TestReembedder_ContinueOnError(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	seed(t, repo, 4, core.VectorTriple{})

	config := &Config{BatchSize: 2, ReportInterval: 1, Concurrency: 1, ContinueOnError: true, Retry: testRetry}
	reembedder, err := NewReembedder(repo, newVectorizer(t, fixedEmbedder([]float32{1, 2}, "tool 2")), config, nil)
	require.NoError(t, err)

	stats, err := reembedder.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Updated)
	assert.Equal(t, []string{"cap_02"}, stats.Skipped)
}

func TestReembedder_Aborts(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	seed(t, repo, 4, core.VectorTriple{})

	config := &Config{BatchSize: 2, ReportInterval: 1, Concurrency: 1, Retry: testRetry}
	reembedder, err := NewReembedder(repo, newVectorizer(t, fixedEmbedder([]float32{1, 2}, "tool 2")), config, nil)
	require.NoError(t, err)

	stats, err := reembedder.Run(context.Background())
	assert.ErrorIs(t, err, core.ErrEmbedding)
	assert.Equal(t, 2, stats.Updated, "the first batch was written before the failure")
}

func TestReembedder_Cancelled(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	seed(t, repo, 3, core.VectorTriple{})

	reembedder, err := NewReembedder(repo, newVectorizer(t, mock.NewMockEmbedder()), nil, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = reembedder.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewReembedder_Errors(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	vectorizer := newVectorizer(t, mock.NewMockEmbedder())

	_, err := NewReembedder(nil, vectorizer, nil, nil)
	assert.ErrorIs(t, err, ErrRepositoryRequired)

	_, err = NewReembedder(repo, nil, nil, nil)
	assert.ErrorIs(t, err, ErrVectorizerRequired)

	_, err = NewReembedder(repo, vectorizer, &Config{BatchSize: 1, Concurrency: 1}, nil)
	assert.ErrorIs(t, err, vectorize.ErrInvalidMaxAttempts)

	_, err = NewReembedder(repo, vectorizer, &Config{BatchSize: 0, Concurrency: 1, Retry: testRetry}, nil)
	assert.Error(t, err)

	r, err := NewReembedder(repo, vectorizer, nil, nil, WithLogger(nil))
	require.NoError(t, err)
	assert.NotNil(t, r)
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, DefaultBatchSize, cfg.BatchSize)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
}
