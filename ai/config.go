package ai

import (
	"errors"
	"strings"
	"time"
)

// Config holds configuration for AI services.
type Config struct {
	// EmbeddingHost is the base URL for the embedding service API.
	// Example: "http://localhost:11434/v1" for local OpenAI-compatible server
	EmbeddingHost string `yaml:"embedding_host"`

	// ClassifierHost is the base URL for the key element extraction service API.
	// Example: "http://localhost:11434/v1" for local OpenAI-compatible server
	ClassifierHost string `yaml:"classifier_host"`

	// EmbeddingModel is the model identifier to use for text embeddings.
	// Example: "embeddinggemma", "text-embedding-3-small"
	EmbeddingModel string `yaml:"embedding_model"`

	// ClassifierModel is the model identifier to use for key element extraction.
	// An empty value selects the local KeywordExtractor.
	ClassifierModel string `yaml:"classifier_model"`

	// APIKey is sent as the bearer token. Local servers ignore it.
	APIKey string `yaml:"api_key"`

	// Dimensions is the expected embedding length. Zero accepts whatever
	// length the first response has and enforces it afterwards.
	Dimensions int `yaml:"dimensions"`

	// MaxKeyElements caps the number of tags extracted from one text.
	// Default: 8
	MaxKeyElements int `yaml:"max_key_elements"`

	// RequestsPerSecond limits gateway calls. Zero disables limiting.
	RequestsPerSecond float64 `yaml:"requests_per_second"`

	// Burst is the rate limiter bucket size.
	// Default: 4
	Burst int `yaml:"burst"`

	// BreakerFailures is the number of consecutive failures that open the circuit.
	// Default: 5
	BreakerFailures uint32 `yaml:"breaker_failures"`

	// BreakerTimeout is how long the circuit stays open before a trial call.
	// Default: 30s
	BreakerTimeout time.Duration `yaml:"breaker_timeout"`
}

// ConfigOption is a functional option for configuring Config.
type ConfigOption func(*Config)

// WithEmbeddingHost sets the embedding service host URL.
func WithEmbeddingHost(host string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingHost = host
	}
}

// WithClassifierHost sets the classifier service host URL.
func WithClassifierHost(host string) ConfigOption {
	return func(c *Config) {
		c.ClassifierHost = host
	}
}

// WithHost sets both embedding and classifier hosts to the same URL.
func WithHost(host string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingHost = host
		c.ClassifierHost = host
	}
}

// WithEmbeddingModel sets the embedding model identifier.
func WithEmbeddingModel(model string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingModel = model
	}
}

// WithClassifierModel sets the classifier model identifier.
func WithClassifierModel(model string) ConfigOption {
	return func(c *Config) {
		c.ClassifierModel = model
	}
}

// WithDimensions sets the expected embedding length.
func WithDimensions(dims int) ConfigOption {
	return func(c *Config) {
		c.Dimensions = dims
	}
}

// WithMaxKeyElements sets the per-text tag cap.
func WithMaxKeyElements(max int) ConfigOption {
	return func(c *Config) {
		c.MaxKeyElements = max
	}
}

// WithRateLimit sets the gateway request rate and burst.
func WithRateLimit(perSecond float64, burst int) ConfigOption {
	return func(c *Config) {
		c.RequestsPerSecond = perSecond
		c.Burst = burst
	}
}

// WithCircuitBreaker sets the breaker trip threshold and open interval.
func WithCircuitBreaker(failures uint32, timeout time.Duration) ConfigOption {
	return func(c *Config) {
		c.BreakerFailures = failures
		c.BreakerTimeout = timeout
	}
}

// DefaultConfig returns a Config with sensible defaults for local development.
func DefaultConfig() *Config {
	defaultHost := "http://localhost:11434/v1"
	return &Config{
		EmbeddingHost:   defaultHost,
		ClassifierHost:  defaultHost,
		EmbeddingModel:  "embeddinggemma",
		ClassifierModel: "qwen2.5:3b",
		APIKey:          "none",
		MaxKeyElements:  8,
		Burst:           4,
		BreakerFailures: 5,
		BreakerTimeout:  30 * time.Second,
	}
}

// NewConfig creates a new Config with the given options applied to defaults.
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Normalize ensures configuration values are in the correct format.
func (c *Config) Normalize() {
	c.EmbeddingHost = normalizeHost(c.EmbeddingHost)
	c.ClassifierHost = normalizeHost(c.ClassifierHost)
	if c.APIKey == "" {
		c.APIKey = "none"
	}
}

// normalizeHost appends /v1 for OpenAI-compatible APIs.
func normalizeHost(host string) string {
	if host == "" || strings.HasSuffix(host, "/v1") {
		return host
	}
	return strings.TrimSuffix(host, "/") + "/v1"
}

// Validate checks that all required configuration fields are set.
// It normalizes the config before validating.
func (c *Config) Validate() error {
	c.Normalize()

	if c.EmbeddingHost == "" {
		return errors.New("ai config: EmbeddingHost is required")
	}
	if c.EmbeddingModel == "" {
		return errors.New("ai config: EmbeddingModel is required")
	}
	if c.ClassifierModel != "" && c.ClassifierHost == "" {
		return errors.New("ai config: ClassifierHost is required when ClassifierModel is set")
	}
	if c.Dimensions < 0 {
		return errors.New("ai config: Dimensions cannot be negative")
	}
	if c.MaxKeyElements < 1 || c.MaxKeyElements > 32 {
		return errors.New("ai config: MaxKeyElements must be between 1 and 32")
	}
	if c.RequestsPerSecond < 0 {
		return errors.New("ai config: RequestsPerSecond cannot be negative")
	}
	if c.RequestsPerSecond > 0 && c.Burst < 1 {
		return errors.New("ai config: Burst must be at least 1 when rate limiting")
	}
	if c.BreakerFailures == 0 {
		return errors.New("ai config: BreakerFailures must be at least 1")
	}
	if c.BreakerTimeout <= 0 {
		return errors.New("ai config: BreakerTimeout must be positive")
	}
	return nil
}
