package search

import (
	"sync"

	"github.com/poiesic/capsearch/core"
	"github.com/poiesic/capsearch/similarity"
)

// SearchMonitor provides hooks to observe the search process.
// Implement this interface to track intermediate steps and results during search.
// Calls for one search never overlap, even though the stages run concurrently.
type SearchMonitor interface {
	Start(requestID string, query Query)
	AfterKeyElementExtraction(tags []string)
	AfterTagLookup(matches []core.TagMatch)
	AfterCandidateLoad(count int)
	AfterDimensionRanking(dim core.Dimension, scored []similarity.Scored)
	TagOnlyHit(capability *core.Capability)
	Finish(results []core.SearchResult)
}

// noopMonitor is a no-op implementation of SearchMonitor
type noopMonitor struct{}

var _ SearchMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string, _ Query)                                       {}
func (n *noopMonitor) AfterKeyElementExtraction(_ []string)                          {}
func (n *noopMonitor) AfterTagLookup(_ []core.TagMatch)                              {}
func (n *noopMonitor) AfterCandidateLoad(_ int)                                      {}
func (n *noopMonitor) AfterDimensionRanking(_ core.Dimension, _ []similarity.Scored) {}
func (n *noopMonitor) TagOnlyHit(_ *core.Capability)                                 {}
func (n *noopMonitor) Finish(_ []core.SearchResult)                                  {}

// lockedMonitor serializes calls into a caller's monitor.
type lockedMonitor struct {
	mu    sync.Mutex
	inner SearchMonitor
}

var _ SearchMonitor = (*lockedMonitor)(nil)

func (m *lockedMonitor) Start(requestID string, query Query) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inner.Start(requestID, query)
}

func (m *lockedMonitor) AfterKeyElementExtraction(tags []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inner.AfterKeyElementExtraction(tags)
}

func (m *lockedMonitor) AfterTagLookup(matches []core.TagMatch) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inner.AfterTagLookup(matches)
}

func (m *lockedMonitor) AfterCandidateLoad(count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inner.AfterCandidateLoad(count)
}

func (m *lockedMonitor) AfterDimensionRanking(dim core.Dimension, scored []similarity.Scored) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inner.AfterDimensionRanking(dim, scored)
}

func (m *lockedMonitor) TagOnlyHit(capability *core.Capability) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inner.TagOnlyHit(capability)
}

func (m *lockedMonitor) Finish(results []core.SearchResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inner.Finish(results)
}
