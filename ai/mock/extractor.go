package mock

import (
	"context"
	"sync"

	"github.com/poiesic/capsearch/ai"
)

// MockKeyElementExtractor is a test double for ai.KeyElementExtractor.
// It allows custom behavior injection via function fields. It is safe for
// concurrent use.
type MockKeyElementExtractor struct {
	// ExtractKeyElementsFunc is called by ExtractKeyElements if set.
	// If nil, returns the first five non-stop words of the text.
	ExtractKeyElementsFunc func(ctx context.Context, text string) ([]string, error)

	mu        sync.Mutex
	callCount int
}

var _ ai.KeyElementExtractor = (*MockKeyElementExtractor)(nil)

// NewMockKeyElementExtractor creates a mock extractor with default behavior.
// Note: Returns concrete type to allow test assertions via GetMockExtractor().
func NewMockKeyElementExtractor() *MockKeyElementExtractor {
	return &MockKeyElementExtractor{}
}

// ExtractKeyElements returns key elements for text.
func (m *MockKeyElementExtractor) ExtractKeyElements(ctx context.Context, text string) ([]string, error) {
	m.mu.Lock()
	m.callCount++
	fn := m.ExtractKeyElementsFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, text)
	}
	return ai.NewKeywordExtractor(5).ExtractKeyElements(ctx, text)
}

// CallCount returns the number of times ExtractKeyElements was called.
func (m *MockKeyElementExtractor) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// Reset clears the call count and custom functions.
func (m *MockKeyElementExtractor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount = 0
	m.ExtractKeyElementsFunc = nil
}
