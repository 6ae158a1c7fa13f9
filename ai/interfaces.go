package ai

import "context"

// Embedder generates vector embeddings from text for semantic similarity search.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	// Returns an error if the embedding generation fails.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in a batch.
	// The returned slice contains embeddings in the same order as the input texts.
	// Returns an error if any embedding generation fails.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// KeyElementExtractor derives short tag strings from free text.
// Implementations must be thread-safe for concurrent use.
type KeyElementExtractor interface {
	// ExtractKeyElements returns lowercase tags describing text.
	// Extraction is a best-effort hint: unparseable model output yields an
	// empty slice rather than an error. Errors are reserved for transport
	// failures and cancellation.
	ExtractKeyElements(ctx context.Context, text string) ([]string, error)
}

// AIProvider aggregates all AI services needed by capsearch.
// This is the main entry point for AI functionality.
type AIProvider interface {
	// Embedder returns the text embedding service.
	// The returned Embedder is safe for concurrent use.
	Embedder() Embedder

	// KeyElementExtractor returns the tag extraction service.
	// The returned KeyElementExtractor is safe for concurrent use.
	KeyElementExtractor() KeyElementExtractor

	// Close releases resources held by the provider and its services.
	// After Close is called, the provider and its services should not be used.
	Close() error
}
