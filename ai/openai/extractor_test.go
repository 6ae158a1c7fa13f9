package openai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKeyElements(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		max  int
		want []string
	}{
		{
			name: "plain json",
			raw:  `{"key_elements":["weather","real-time"]}`,
			want: []string{"weather", "real-time"},
		},
		{
			name: "fenced json",
			raw:  "```json\n{\"key_elements\":[\"Order\",\" tracking \"]}\n```",
			want: []string{"order", "tracking"},
		},
		{
			name: "missing opening quote on key",
			raw:  `{key_elements":["faq"]}`,
			want: []string{"faq"},
		},
		{
			name: "bare key and trailing comma",
			raw:  `{key_elements: ["orders", "sales",],}`,
			want: []string{"orders", "sales"},
		},
		{
			name: "prose around the object",
			raw:  "Sure! Here you go: {\"key_elements\": [\"weather\"]} Hope that helps.",
			want: []string{"weather"},
		},
		{
			name: "commas and colons inside values are kept",
			raw:  `{"key_elements":["a, b: c"]}`,
			want: []string{"a, b: c"},
		},
		{
			name: "duplicates and blanks",
			raw:  `{"key_elements":["api","API","", "docs"]}`,
			want: []string{"api", "docs"},
		},
		{
			name: "respects max",
			raw:  `{"key_elements":["a","b","c"]}`,
			max:  2,
			want: []string{"a", "b"},
		},
		{
			name: "empty list",
			raw:  `{"key_elements":[]}`,
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseKeyElements(tt.raw, tt.max)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseKeyElements_Unparseable(t *testing.T) {
	_, err := parseKeyElements("I think the tags are weather and time", 5)
	assert.Error(t, err)
}

func TestScrubString(t *testing.T) {
	assert.Equal(t, "check the weather right now", scrubString("  check the weather, right now! "))
	assert.Equal(t, "", scrubString("?!."))
	assert.Equal(t, "real-time data", scrubString("real-time\tdata"))
	assert.Equal(t, "shop orders by customer_id", scrubString("shop.orders/by customer_id"))
	assert.Equal(t, "- weather", scrubString("(-) weather"))
}

func TestRepairJSON(t *testing.T) {
	assert.Equal(t, `{"a": 1, "b": [1, 2]}`, repairJSON(`{a: 1, "b": [1, 2,],}`))
	assert.Equal(t, `{"key": "x"}`, repairJSON("```json\n{key\": \"x\"}\n```"))
	assert.Equal(t, `{"s": "{x: 1,}"}`, repairJSON(`{"s": "{x: 1,}"}`))
	assert.Equal(t, "no json here", repairJSON("no json here"))
}

func TestBuildSystemPrompt(t *testing.T) {
	prompt := buildSystemPrompt(6)
	assert.Contains(t, prompt, `"key_elements"`)
	assert.Contains(t, prompt, "at most 6 tags")
}
