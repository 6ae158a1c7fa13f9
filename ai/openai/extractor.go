package openai

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/poiesic/capsearch/ai"
	"github.com/poiesic/capsearch/core"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// maxParseAttempts bounds retries for malformed model output.
const maxParseAttempts = 3

// KeyElementExtractor implements ai.KeyElementExtractor using OpenAI-compatible chat APIs.
type KeyElementExtractor struct {
	client      llms.Model
	maxElements int
	logger      *slog.Logger
}

// extraction is the wrapper structure for the LLM's JSON response.
type extraction struct {
	KeyElements []string `json:"key_elements"`
}

// newKeyElementExtractor is an internal constructor that returns the concrete type.
// Used by Provider to manage the instance.
func newKeyElementExtractor(config *ai.Config) (*KeyElementExtractor, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := openai.New(
		openai.WithBaseURL(config.ClassifierHost),
		openai.WithToken(config.APIKey),
		openai.WithModel(config.ClassifierModel),
	)
	if err != nil {
		return nil, err
	}

	return &KeyElementExtractor{
		client:      client,
		maxElements: config.MaxKeyElements,
		logger:      slog.Default().With("component", "openai-extractor"),
	}, nil
}

// NewKeyElementExtractor creates a new extractor using the provided configuration.
//
// Returns ai.KeyElementExtractor interface to enforce abstraction.
func NewKeyElementExtractor(config *ai.Config) (ai.KeyElementExtractor, error) {
	return newKeyElementExtractor(config)
}

// ExtractKeyElements asks the model for tags describing text.
// Output that still fails to parse after retries yields an empty slice.
// Only transport failures and cancellation are returned as errors.
func (e *KeyElementExtractor) ExtractKeyElements(ctx context.Context, text string) ([]string, error) {
	text = scrubString(text)
	if text == "" {
		return []string{}, nil
	}

	content := []llms.MessageContent{
		{
			Role:  llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextPart(buildSystemPrompt(e.maxElements))},
		},
		{
			Role:  llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{llms.TextPart(text)},
		},
	}

	for attempt := 0; attempt < maxParseAttempts; attempt++ {
		response, err := e.client.GenerateContent(ctx, content, llms.WithTemperature(0.0), llms.WithJSONMode())
		if err != nil {
			e.logger.Error("failed to generate content", "attempt", attempt+1, "err", err)
			return nil, err
		}

		if len(response.Choices) < 1 {
			e.logger.Debug("no choices returned from model")
			return []string{}, nil
		}

		tags, err := parseKeyElements(response.Choices[0].Content, e.maxElements)
		if err != nil {
			e.logger.Warn("error parsing extractor response",
				"attempt", attempt+1,
				"response", response.Choices[0].Content,
				"err", err)
			continue
		}

		e.logger.Debug("extracted key elements", "count", len(tags))
		return tags, nil
	}

	e.logger.Warn("giving up on extractor response", "attempts", maxParseAttempts)
	return []string{}, nil
}

// parseKeyElements decodes model output into normalized tags, keeping at most max.
func parseKeyElements(raw string, max int) ([]string, error) {
	var result extraction
	if err := json.Unmarshal([]byte(repairJSON(raw)), &result); err != nil {
		return nil, err
	}

	// Keep the model's priority order while dropping blanks and duplicates.
	seen := make(map[string]bool, len(result.KeyElements))
	tags := make([]string, 0, len(result.KeyElements))
	for _, tag := range result.KeyElements {
		normalized := core.NormalizeKeyElements([]string{tag})
		if len(normalized) == 0 || seen[normalized[0]] {
			continue
		}
		seen[normalized[0]] = true
		tags = append(tags, normalized[0])
		if max > 0 && len(tags) == max {
			break
		}
	}
	return tags, nil
}
