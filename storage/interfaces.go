package storage

import (
	"context"

	"github.com/poiesic/capsearch/core"
)

// CapabilityRepository persists capabilities, their vectors and their tag edges.
//
// Implementations must serialize concurrent upserts of the same capability id
// so that tag-set replacement never races with itself. Writes of different ids
// need no coordination. Reads are snapshot reads and may or may not observe a
// write that is in flight.
type CapabilityRepository interface {
	// UpsertCapability writes all fields and vectors of c, keyed by c.ID.
	// Key elements are normalized and the tag edge set is replaced exactly:
	// edges to tags no longer present are removed. LastUpdated is set to now.
	// Vector dimensionality may differ from a previously stored version.
	// Returns the stored capability.
	UpsertCapability(ctx context.Context, c *core.Capability) (*core.Capability, error)

	// GetCapability retrieves a single capability by id.
	// Returns ErrNotFound if it doesn't exist.
	GetCapability(ctx context.Context, id string) (*core.Capability, error)

	// GetCapabilities retrieves multiple capabilities by id.
	// Returns only the capabilities that exist (no error for missing ids).
	GetCapabilities(ctx context.Context, ids ...string) ([]*core.Capability, error)

	// ListByTags returns capabilities whose tag set intersects tags, with the
	// intersecting tags, ordered by match count descending then id ascending.
	// Disabled capabilities are included; callers filter by status.
	ListByTags(ctx context.Context, tags []string) ([]core.TagMatch, error)

	// ListCandidates returns every active capability, optionally restricted
	// to the given kinds, ordered by id. This is the vector search pool.
	ListCandidates(ctx context.Context, kinds ...core.Kind) ([]*core.Capability, error)

	// ListCapabilities returns every stored capability regardless of status, ordered by id.
	ListCapabilities(ctx context.Context) ([]*core.Capability, error)

	// SetStatus changes the status of a capability without touching its vectors.
	// Returns ErrNotFound if it doesn't exist.
	SetStatus(ctx context.Context, id string, status core.Status) error

	// Close closes the repository and releases resources.
	Close() error
}
