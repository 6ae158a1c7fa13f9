package core

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIDFromContent(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		wantSame bool
	}{
		{
			name:     "same content produces same ID",
			content:  "weather",
			wantSame: true,
		},
		{
			name:     "empty string",
			content:  "",
			wantSame: true,
		},
		{
			name:     "long content",
			content:  "a much longer key element that should still hash consistently",
			wantSame: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id1 := IDFromContent(tt.content)
			id2 := IDFromContent(tt.content)

			if tt.wantSame && id1 != id2 {
				t.Errorf("IDFromContent() produced different IDs for same content: %d vs %d", id1, id2)
			}
		})
	}
}

func TestIDFromContent_Different(t *testing.T) {
	id1 := IDFromContent("weather")
	id2 := IDFromContent("forecast")

	if id1 == id2 {
		t.Errorf("IDFromContent() produced same ID for different content")
	}
}

func TestKind_StringAndParse(t *testing.T) {
	for _, k := range Kinds {
		parsed, err := ParseKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, parsed)
	}

	_, err := ParseKind("spreadsheet")
	assert.ErrorIs(t, err, ErrUnknownKind)
	assert.Equal(t, "unknown", Kind(42).String())
}

func TestPayload_Kind(t *testing.T) {
	tests := []struct {
		payload Payload
		want    Kind
	}{
		{ToolSpec{}, KindTool},
		{KnowledgeSourceSpec{}, KindKnowledgeSource},
		{TableSpec{}, KindDatabaseTable},
		{FactSpec{}, KindConversationFact},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.payload.Kind())
	}
}

func TestVectorTriple_GetSet(t *testing.T) {
	var v VectorTriple
	assert.Equal(t, 0, v.Populated())

	v.Set(DimensionFunctional, []float32{1, 2})
	assert.Equal(t, []float32{1, 2}, v.Get(DimensionFunctional))
	assert.Nil(t, v.Get(DimensionSemantic))
	assert.Equal(t, 1, v.Populated())

	v.Set(DimensionSemantic, []float32{3, 4})
	v.Set(DimensionContextual, []float32{5, 6})
	assert.Equal(t, 3, v.Populated())
	assert.Nil(t, v.Get(Dimension(9)))
}

func TestSearchWeights_Normalized(t *testing.T) {
	t.Run("all zero falls back to equal thirds", func(t *testing.T) {
		got := SearchWeights{}.Normalized()
		assert.Equal(t, EqualWeights, got)
		assert.InDelta(t, 1.0, got.Sum(), 1e-9)
	})

	t.Run("non-zero weights are used as given", func(t *testing.T) {
		w := SearchWeights{Semantic: 0.5, Functional: 0.5, Contextual: 0.5}
		assert.Equal(t, w, w.Normalized())
	})
}

func TestSearchWeights_Validate(t *testing.T) {
	tests := []struct {
		name    string
		weights SearchWeights
		wantErr bool
	}{
		{"zero", SearchWeights{}, false},
		{"typical", SearchWeights{Semantic: 0.5, Functional: 0.3, Contextual: 0.2}, false},
		{"negative", SearchWeights{Semantic: -0.1}, true},
		{"nan", SearchWeights{Functional: math.NaN()}, true},
		{"inf", SearchWeights{Contextual: math.Inf(1)}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.weights.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidWeights)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDimensionScores_GetSet(t *testing.T) {
	var s DimensionScores
	s.Set(DimensionContextual, 0.7)
	assert.Equal(t, 0.7, s.Get(DimensionContextual))
	assert.Equal(t, 0.0, s.Get(DimensionSemantic))
	assert.Equal(t, "contextual", DimensionContextual.String())
}
