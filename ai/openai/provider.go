package openai

import (
	"log/slog"

	"github.com/poiesic/capsearch/ai"
)

// Provider implements ai.AIProvider using OpenAI-compatible services.
// It manages embedder and key element extractor instances.
type Provider struct {
	config    *ai.Config
	embedder  *ai.GuardedEmbedder
	extractor ai.KeyElementExtractor
	logger    *slog.Logger
}

// NewProvider creates a new AI provider with OpenAI-compatible services.
// The config is validated and normalized before use. The embedder is
// guarded per the config's dimension, rate and breaker settings.
//
// Returns ai.AIProvider interface (not *Provider) to enforce abstraction
// and prevent coupling to OpenAI-specific implementation details.
func NewProvider(config *ai.Config) (ai.AIProvider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	raw, err := newEmbedder(config)
	if err != nil {
		return nil, err
	}
	embedder, err := ai.NewGuardedEmbedder(raw, config)
	if err != nil {
		return nil, err
	}

	var extractor ai.KeyElementExtractor
	if config.ClassifierModel == "" {
		extractor = ai.NewKeywordExtractor(config.MaxKeyElements)
	} else {
		extractor, err = newKeyElementExtractor(config)
		if err != nil {
			return nil, err
		}
	}

	return &Provider{
		config:    config,
		embedder:  embedder,
		extractor: extractor,
		logger:    slog.Default().With("component", "openai-provider"),
	}, nil
}

// Embedder returns the guarded text embedding service.
func (p *Provider) Embedder() ai.Embedder {
	return p.embedder
}

// KeyElementExtractor returns the key element extraction service.
func (p *Provider) KeyElementExtractor() ai.KeyElementExtractor {
	return p.extractor
}

// Close releases resources held by the provider.
// Currently a no-op as the underlying clients don't require explicit cleanup.
func (p *Provider) Close() error {
	p.logger.Debug("closing OpenAI provider")
	return nil
}
