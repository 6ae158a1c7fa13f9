package registrar

import (
	"strings"
	"testing"
	"time"

	"github.com/poiesic/capsearch/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlug(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Weather", "weather"},
		{"  Get Weather Now ", "get_weather_now"},
		{"order-tracking/v2", "order_tracking_v2"},
		{"__a__b__", "a_b"},
		{"Crème brûlée", "crème_brûlée"},
		{"!!!", ""},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, slug(tt.in))
		})
	}
}

func TestCapabilityID(t *testing.T) {
	t.Run("tool from name", func(t *testing.T) {
		d := &ToolDescriptor{Common: Common{Name: " Weather "}}
		d.Normalize()
		id, err := d.CapabilityID()
		require.NoError(t, err)
		assert.Equal(t, "tool_weather", id)
	})

	t.Run("caller supplied id wins", func(t *testing.T) {
		d := &KnowledgeSourceDescriptor{Common: Common{ID: " custom ", Name: "Docs"}}
		d.Normalize()
		id, err := d.CapabilityID()
		require.NoError(t, err)
		assert.Equal(t, "custom", id)
	})

	t.Run("knowledge source", func(t *testing.T) {
		d := &KnowledgeSourceDescriptor{Common: Common{Name: "Product Docs"}}
		id, err := d.CapabilityID()
		require.NoError(t, err)
		assert.Equal(t, "kb_product_docs", id)
	})

	t.Run("table from database and table", func(t *testing.T) {
		d := &TableDescriptor{Database: "shop", Table: "Orders"}
		d.Normalize()
		id, err := d.CapabilityID()
		require.NoError(t, err)
		assert.Equal(t, "table_shop_orders", id)
		assert.Equal(t, "shop.Orders", d.Name)
	})

	t.Run("fact ids are stable and case-insensitive", func(t *testing.T) {
		a := &FactDescriptor{Subject: "Alice", Statement: "Prefers tea"}
		b := &FactDescriptor{Subject: "alice", Statement: "prefers TEA"}
		idA, err := a.CapabilityID()
		require.NoError(t, err)
		idB, err := b.CapabilityID()
		require.NoError(t, err)
		assert.Equal(t, idA, idB)
		assert.True(t, strings.HasPrefix(idA, "fact_"))

		other, err := (&FactDescriptor{Subject: "Alice", Statement: "Prefers coffee"}).CapabilityID()
		require.NoError(t, err)
		assert.NotEqual(t, idA, other)
	})

	t.Run("missing natural key", func(t *testing.T) {
		_, err := (&ToolDescriptor{}).CapabilityID()
		assert.ErrorIs(t, err, ErrMissingNaturalKey)
		assert.ErrorIs(t, err, core.ErrInvalidCapability)

		_, err = (&FactDescriptor{Subject: "Alice"}).CapabilityID()
		assert.ErrorIs(t, err, ErrMissingNaturalKey)
	})
}

func TestToolDescriptor_Capability(t *testing.T) {
	d := &ToolDescriptor{
		Common: Common{
			Name:        "Weather",
			Description: " Current conditions ",
			KeyElements: []string{"Weather", "real-time", "weather"},
			Concept:     "weather",
		},
		APIEndpoint: " https://api.example.com/weather ",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"location": map[string]any{"type": "string"},
				"days":     map[string]any{"type": []any{"integer", "null"}},
			},
		},
		OutputSchema: `{"type":"object"}`,
		RateLimit:    "60/min",
	}

	c, err := d.Capability()
	require.NoError(t, err)
	assert.Equal(t, "tool_weather", c.ID)
	assert.Equal(t, core.KindTool, c.Kind)
	assert.Equal(t, core.StatusActive, c.Status)
	assert.Equal(t, "Current conditions", c.Description)
	assert.Equal(t, []string{"real-time", "weather"}, c.KeyElements)
	assert.Equal(t, []core.Param{{Name: "days", Type: "integer|null"}, {Name: "location", Type: "string"}}, c.Profile.Inputs)

	spec, ok := c.Payload.(core.ToolSpec)
	require.True(t, ok)
	assert.Equal(t, "https://api.example.com/weather", spec.APIEndpoint)
	assert.JSONEq(t, `{"type":"object","properties":{"location":{"type":"string"},"days":{"type":["integer","null"]}}}`, spec.InputSchema)
	assert.Equal(t, `{"type":"object"}`, spec.OutputSchema)
	assert.Equal(t, "60/min", spec.RateLimit)
	assert.NoError(t, core.ValidateCapability(c))
}

func TestToolDescriptor_ExplicitInputsWin(t *testing.T) {
	d := &ToolDescriptor{
		Common:      Common{Name: "Track", Inputs: []ParamDescriptor{{Name: "order_id", Type: "string"}, {Name: " "}}},
		InputSchema: `{"properties":{"ignored":{"type":"string"}}}`,
	}
	c, err := d.Capability()
	require.NoError(t, err)
	assert.Equal(t, []core.Param{{Name: "order_id", Type: "string"}}, c.Profile.Inputs)
}

func TestTableDescriptor_Capability(t *testing.T) {
	d := &TableDescriptor{
		Database:      "shop",
		Table:         "orders",
		Columns:       []ColumnDescriptor{{Name: "id", Type: "bigint"}, {Name: ""}, {Name: "status", Type: "text"}},
		SampleQueries: []string{" select * from orders ", ""},
	}
	c, err := d.Capability()
	require.NoError(t, err)
	assert.Equal(t, "table_shop_orders", c.ID)
	assert.Equal(t, "shop.orders", c.Name)

	spec := c.Payload.(core.TableSpec)
	assert.Equal(t, []core.Column{{Name: "id", Type: "bigint"}, {Name: "status", Type: "text"}}, spec.Schema)
	assert.Equal(t, []string{"select * from orders"}, spec.SampleQueries)
}

func TestFactDescriptor_Capability(t *testing.T) {
	d := &FactDescriptor{Subject: "Alice", Statement: "Prefers tea", Source: "chat", ObservedAt: "2025-03-01T13:00:00+01:00"}
	c, err := d.Capability()
	require.NoError(t, err)
	assert.Equal(t, "Alice", c.Name)
	assert.Equal(t, "Prefers tea", c.Description)

	spec := c.Payload.(core.FactSpec)
	assert.Equal(t, time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC), spec.ObservedAt)

	c, err = (&FactDescriptor{Subject: "Alice", Statement: "Likes jazz", ObservedAt: "2024-12-24"}).Capability()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 12, 24, 0, 0, 0, 0, time.UTC), c.Payload.(core.FactSpec).ObservedAt)

	_, err = (&FactDescriptor{Subject: "Alice", Statement: "Likes jazz", ObservedAt: "last week"}).Capability()
	assert.ErrorIs(t, err, ErrMalformedRecord)
}

func TestDescriptor_Status(t *testing.T) {
	c, err := (&KnowledgeSourceDescriptor{Common: Common{Name: "Docs", Status: "Disabled"}}).Capability()
	require.NoError(t, err)
	assert.Equal(t, core.StatusDisabled, c.Status)

	_, err = (&KnowledgeSourceDescriptor{Common: Common{Name: "Docs", Status: "archived"}}).Capability()
	assert.ErrorIs(t, err, core.ErrInvalidStatus)
	assert.ErrorIs(t, err, core.ErrInvalidCapability)
}

func TestNewDescriptor(t *testing.T) {
	for _, kind := range core.Kinds {
		d, err := NewDescriptor(kind)
		require.NoError(t, err)
		assert.Equal(t, kind, d.Kind())
	}
	_, err := NewDescriptor(core.Kind(42))
	assert.ErrorIs(t, err, core.ErrUnknownKind)
}
