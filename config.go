package capsearch

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/poiesic/capsearch/ai"
	"github.com/poiesic/capsearch/reembed"
	"github.com/poiesic/capsearch/search"
	"github.com/poiesic/capsearch/similarity"
	"github.com/poiesic/capsearch/vectorize"
	"gopkg.in/yaml.v3"
)

// Storage engines.
const (
	EngineBadger   = "badger"
	EnginePostgres = "postgres"
)

// ErrInvalidConfig is returned when a configuration cannot be used.
var ErrInvalidConfig = errors.New("invalid config")

// Config is the top-level configuration of a capsearch database.
type Config struct {
	Storage    StorageConfig   `yaml:"storage"`
	AI         *ai.Config      `yaml:"ai"`
	Search     search.Config   `yaml:"search"`
	Similarity string          `yaml:"similarity"`
	Registrar  RegistrarConfig `yaml:"registrar"`
	Reembed    *reembed.Config `yaml:"reembed"`
}

// StorageConfig selects and locates the capability store.
type StorageConfig struct {
	// Engine is "badger" (default) or "postgres".
	Engine string `yaml:"engine"`

	// Path is the badger database directory.
	Path string `yaml:"path"`

	// InMemory opens a throwaway badger store and ignores Path.
	InMemory bool `yaml:"in_memory"`

	// DSN is the PostgreSQL connection string.
	DSN string `yaml:"dsn"`
}

// RegistrarConfig tunes capability registration.
type RegistrarConfig struct {
	// PoolSize bounds concurrent registrations in RegisterMany.
	// Zero selects half the CPUs.
	PoolSize int `yaml:"pool_size"`

	// Retry bounds the embedding attempts per capability.
	Retry vectorize.RetryPolicy `yaml:"retry"`

	// ExtractKeyElements fills in tags for records that have none.
	ExtractKeyElements bool `yaml:"extract_key_elements"`

	// ReuseVectors skips embedding when the encodings of a capability are unchanged.
	ReuseVectors bool `yaml:"reuse_vectors"`
}

// DefaultConfig returns a Config for a local badger store and a local
// OpenAI-compatible gateway.
func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			Engine: EngineBadger,
			Path:   "capsearch.db",
		},
		AI:         ai.DefaultConfig(),
		Search:     search.DefaultConfig(),
		Similarity: similarity.StrategyAuto.String(),
		Registrar: RegistrarConfig{
			Retry:        vectorize.DefaultRetryPolicy(),
			ReuseVectors: true,
		},
		Reembed: reembed.DefaultConfig(),
	}
}

// LoadConfig reads a YAML config file. Keys missing from the file keep
// their defaults; unknown keys are an error.
func LoadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseConfig(f)
}

// ParseConfig decodes a YAML config over DefaultConfig and validates it.
func ParseConfig(r io.Reader) (*Config, error) {
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every section. The AI section is normalized in place.
func (c *Config) Validate() error {
	switch c.Storage.Engine {
	case EngineBadger:
		if !c.Storage.InMemory && c.Storage.Path == "" {
			return fmt.Errorf("%w: storage.path is required for badger", ErrInvalidConfig)
		}
	case EnginePostgres:
		if c.Storage.DSN == "" {
			return fmt.Errorf("%w: storage.dsn is required for postgres", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown storage engine %q", ErrInvalidConfig, c.Storage.Engine)
	}

	if c.AI == nil {
		return fmt.Errorf("%w: ai section is required", ErrInvalidConfig)
	}
	if err := c.AI.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := c.Search.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if _, err := similarity.ParseStrategy(c.Similarity); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if c.Registrar.PoolSize < 0 {
		return fmt.Errorf("%w: registrar.pool_size cannot be negative", ErrInvalidConfig)
	}
	if err := c.Registrar.Retry.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if c.Reembed != nil {
		if err := c.Reembed.Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	}
	return nil
}
