package mcpserver

import (
	"time"

	"github.com/poiesic/capsearch/core"
)

// ScoresView holds per-dimension similarity components.
type ScoresView struct {
	Semantic   float64 `json:"semantic"`
	Functional float64 `json:"functional"`
	Contextual float64 `json:"contextual"`
}

// ResultView is the wire form of a search hit.
type ResultView struct {
	ID              string     `json:"id"`
	Kind            string     `json:"kind"`
	Name            string     `json:"name"`
	Description     string     `json:"description,omitempty"`
	Score           float64    `json:"score"`
	VectorScore     float64    `json:"vector_score"`
	TagScore        float64    `json:"tag_score"`
	Scores          ScoresView `json:"scores"`
	MatchedElements []string   `json:"matched_elements,omitempty"`
}

// CapabilityView is the wire form of a stored capability, without vectors.
type CapabilityView struct {
	ID             string         `json:"id"`
	Kind           string         `json:"kind"`
	Name           string         `json:"name"`
	Description    string         `json:"description,omitempty"`
	Status         string         `json:"status"`
	KeyElements    []string       `json:"key_elements,omitempty"`
	ExamplePhrases []string       `json:"example_phrases,omitempty"`
	Dimensions     int            `json:"embedded_dimensions"`
	LastUpdated    time.Time      `json:"last_updated"`
	Details        map[string]any `json:"details,omitempty"`
}

// NewResultView converts a search result.
func NewResultView(r core.SearchResult) ResultView {
	v := ResultView{
		ID:          r.CapabilityID,
		Score:       r.Score,
		VectorScore: r.VectorScore,
		TagScore:    r.TagScore,
		Scores: ScoresView{
			Semantic:   r.DimensionScores.Get(core.DimensionSemantic),
			Functional: r.DimensionScores.Get(core.DimensionFunctional),
			Contextual: r.DimensionScores.Get(core.DimensionContextual),
		},
		MatchedElements: r.MatchedElements,
	}
	if c := r.Capability; c != nil {
		v.Kind = c.Kind.String()
		v.Name = c.Name
		v.Description = c.Description
	}
	return v
}

// NewCapabilityView converts a capability. Kind-specific fields are
// flattened into Details under their record-file names.
func NewCapabilityView(c *core.Capability) CapabilityView {
	return CapabilityView{
		ID:             c.ID,
		Kind:           c.Kind.String(),
		Name:           c.Name,
		Description:    c.Description,
		Status:         c.Status.String(),
		KeyElements:    c.KeyElements,
		ExamplePhrases: c.ExamplePhrases,
		Dimensions:     c.Vectors.Populated(),
		LastUpdated:    c.LastUpdated,
		Details:        payloadDetails(c.Payload),
	}
}

func payloadDetails(p core.Payload) map[string]any {
	details := map[string]any{}
	put := func(key string, value any) {
		switch v := value.(type) {
		case string:
			if v == "" {
				return
			}
		case []string:
			if len(v) == 0 {
				return
			}
		}
		details[key] = value
	}

	switch p := p.(type) {
	case core.ToolSpec:
		put("api_endpoint", p.APIEndpoint)
		put("input_schema", p.InputSchema)
		put("output_schema", p.OutputSchema)
		put("rate_limit", p.RateLimit)
	case core.KnowledgeSourceSpec:
		put("source_type", p.SourceType)
		put("location", p.Location)
		put("topics", p.Topics)
	case core.TableSpec:
		put("database", p.Database)
		put("table", p.Table)
		if len(p.Schema) > 0 {
			cols := make([]map[string]string, len(p.Schema))
			for i, col := range p.Schema {
				cols[i] = map[string]string{"name": col.Name, "type": col.Type}
			}
			details["schema"] = cols
		}
		put("sample_queries", p.SampleQueries)
	case core.FactSpec:
		put("subject", p.Subject)
		put("statement", p.Statement)
		put("source", p.Source)
		if !p.ObservedAt.IsZero() {
			details["observed_at"] = p.ObservedAt.Format(time.RFC3339)
		}
	}
	if len(details) == 0 {
		return nil
	}
	return details
}
