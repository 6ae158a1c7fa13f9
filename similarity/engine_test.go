package similarity

import (
	"context"
	"errors"
	"testing"

	"github.com/poiesic/capsearch/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeScorer struct {
	err    error
	calls  int
	gotIDs []string
}

func (f *fakeScorer) ScoreVectors(_ context.Context, _ core.Dimension, query []float32, ids []string) ([]Scored, error) {
	f.calls++
	f.gotIDs = ids
	if f.err != nil {
		return nil, f.err
	}
	out := make([]Scored, 0, len(ids))
	for _, id := range ids {
		out = append(out, Scored{ID: id, Score: 0.5})
	}
	return out, nil
}

func pool() []Candidate {
	return []Candidate{
		{ID: "c", Vector: []float32{1, 0}},
		{ID: "a", Vector: []float32{0, 1}},
		{ID: "b", Vector: []float32{0, 1}},
		{ID: "short", Vector: []float32{1}},
		{ID: "empty"},
	}
}

func TestTopK_OrderAndTies(t *testing.T) {
	got, err := TopK([]float32{0, 1}, pool(), 0)
	require.NoError(t, err)

	ids := make([]string, len(got))
	for i, s := range got {
		ids[i] = s.ID
	}
	// a and b tie at 1.0 and sort by id; c scores 0; mismatched lengths are skipped.
	assert.Equal(t, []string{"a", "b", "c"}, ids)
}

func TestTopK_Limit(t *testing.T) {
	got, err := TopK([]float32{0, 1}, pool(), 2)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestTopK_EmptyQuery(t *testing.T) {
	_, err := TopK(nil, pool(), 3)
	assert.ErrorIs(t, err, core.ErrDimensionMismatch)
}

func TestTopK_Stable(t *testing.T) {
	first, err := TopK([]float32{0.3, 0.7}, pool(), 0)
	require.NoError(t, err)
	second, err := TopK([]float32{0.3, 0.7}, pool(), 0)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestEngine_Manual(t *testing.T) {
	e, err := NewEngine(WithStrategy(StrategyManual), WithNativeScorer(&fakeScorer{}))
	require.NoError(t, err)

	got, err := e.TopK(context.Background(), core.DimensionSemantic, []float32{1, 0}, pool(), 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "c", got[0].ID)
	assert.InDelta(t, 1.0, got[0].Score, 1e-9)
}

func TestEngine_NativeSkipsEmptyVectors(t *testing.T) {
	scorer := &fakeScorer{}
	e, err := NewEngine(WithNativeScorer(scorer))
	require.NoError(t, err)

	got, err := e.TopK(context.Background(), core.DimensionFunctional, []float32{1, 0}, pool(), 0)
	require.NoError(t, err)
	assert.Equal(t, 1, scorer.calls)
	assert.NotContains(t, scorer.gotIDs, "empty")
	// Equal native scores fall back to id order.
	assert.Equal(t, "a", got[0].ID)
}

func TestEngine_NativeFailureFallsBack(t *testing.T) {
	scorer := &fakeScorer{err: errors.New("connection reset")}
	e, err := NewEngine(WithStrategy(StrategyNative), WithNativeScorer(scorer))
	require.NoError(t, err)

	got, err := e.TopK(context.Background(), core.DimensionContextual, []float32{1, 0}, pool(), 0)
	require.NoError(t, err)
	assert.Equal(t, 1, scorer.calls)
	assert.Equal(t, "c", got[0].ID)
}

func TestEngine_Errors(t *testing.T) {
	_, err := NewEngine(WithStrategy(StrategyNative))
	assert.ErrorIs(t, err, ErrNativeScorerRequired)

	_, err = NewEngine(WithStrategy(Strategy(7)))
	assert.ErrorIs(t, err, ErrUnknownStrategy)

	e, err := NewEngine()
	require.NoError(t, err)
	_, err = e.TopK(context.Background(), core.DimensionSemantic, []float32{}, pool(), 0)
	assert.ErrorIs(t, err, core.ErrDimensionMismatch)

	got, err := e.TopK(context.Background(), core.DimensionSemantic, []float32{1}, nil, 0)
	require.NoError(t, err)
	assert.Empty(t, got)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = e.TopK(ctx, core.DimensionSemantic, []float32{1, 0}, pool(), 0)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParseStrategy(t *testing.T) {
	for _, s := range []Strategy{StrategyAuto, StrategyNative, StrategyManual} {
		got, err := ParseStrategy(s.String())
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}
	_, err := ParseStrategy("gpu")
	assert.ErrorIs(t, err, ErrUnknownStrategy)
}
