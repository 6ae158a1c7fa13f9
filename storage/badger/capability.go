package badger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/capsearch/core"
	"github.com/poiesic/capsearch/storage"
)

// CapabilityRepository implements storage.CapabilityRepository for BadgerDB.
//
// Capabilities live under capab:<id>. Each distinct tag is an entity under
// kelem:<tagID> and each capability-tag edge is an empty value under
// capkel:<tagID>:<id>, so a tag lookup is a single prefix scan.
type CapabilityRepository struct {
	backend     *Backend
	ownsBackend bool
	locks       *storage.KeyedMutex
	logger      *slog.Logger
	now         func() time.Time
}

var _ storage.CapabilityRepository = (*CapabilityRepository)(nil)

// Option is a functional option for configuring a CapabilityRepository.
type Option func(*CapabilityRepository) error

// WithLogger sets a custom logger for the repository.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *CapabilityRepository) error {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger
		return nil
	}
}

// withClock overrides the LastUpdated source. Used by tests.
func withClock(now func() time.Time) Option {
	return func(r *CapabilityRepository) error {
		r.now = now
		return nil
	}
}

// NewCapabilityRepository creates a repository over an open backend.
// The caller keeps ownership of the backend.
func NewCapabilityRepository(backend *Backend, opts ...Option) (*CapabilityRepository, error) {
	if backend == nil {
		return nil, storage.ErrBackendRequired
	}
	r := &CapabilityRepository{
		backend: backend,
		locks:   storage.NewKeyedMutex(),
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	r.logger = r.logger.With("component", "badger-capabilities")
	return r, nil
}

// NewRepository opens (or creates) a database directory and returns a
// repository that closes it on Close.
func NewRepository(path string, opts ...Option) (storage.CapabilityRepository, error) {
	backend, err := OpenBackend(path, false)
	if err != nil {
		return nil, err
	}
	r, err := NewCapabilityRepository(backend, opts...)
	if err != nil {
		backend.Close()
		return nil, err
	}
	r.ownsBackend = true
	return r, nil
}

// Close releases resources. The backend is closed only if the repository opened it.
func (r *CapabilityRepository) Close() error {
	if r.ownsBackend && !r.backend.IsClosed() {
		return r.backend.Close()
	}
	return nil
}

// UpsertCapability writes c and replaces its tag edges exactly, in one transaction.
// Concurrent upserts of the same id are serialized.
func (r *CapabilityRepository) UpsertCapability(ctx context.Context, c *core.Capability) (*core.Capability, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := core.ValidateCapability(c); err != nil {
		return nil, err
	}

	stored := *c
	stored.KeyElements = core.NormalizeKeyElements(c.KeyElements)
	stored.LastUpdated = r.now().UTC().Truncate(time.Microsecond)

	unlock := r.locks.Lock(stored.ID)
	defer unlock()

	var removed, added []string
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeCapabilityKey(stored.ID)
		old, err := readCapability(tx, key)
		if err != nil {
			return err
		}
		var previous []string
		if old != nil {
			previous = old.KeyElements
		}
		removed, added = diffTags(previous, stored.KeyElements)

		for _, tag := range removed {
			if err := tx.Delete(makeCapabilityTagKey(tagID(tag), stored.ID)); err != nil {
				return err
			}
		}
		for _, tag := range added {
			id := tagID(tag)
			if err := tx.Set(makeKeyElementKey(id), []byte(tag)); err != nil {
				return err
			}
			if err := tx.Set(makeCapabilityTagKey(id, stored.ID), []byte{}); err != nil {
				return err
			}
		}

		if err := tx.Set(key, storage.MarshalCapability(&stored)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return nil, storeError("upsert capability", err)
	}

	r.logger.Debug("upserted capability",
		"id", stored.ID,
		"kind", stored.Kind.String(),
		"tags_added", len(added),
		"tags_removed", len(removed))
	return &stored, nil
}

// GetCapability retrieves a single capability by ID.
func (r *CapabilityRepository) GetCapability(ctx context.Context, id string) (*core.Capability, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var result *core.Capability
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readCapability(tx, makeCapabilityKey(id))
		if err != nil {
			return err
		}
		if result == nil {
			return storage.ErrNotFound
		}
		return nil
	}, false)
	if err != nil {
		return nil, storeError("get capability", err)
	}
	return result, nil
}

// GetCapabilities retrieves multiple capabilities by their IDs, in request order.
// Missing ids are skipped.
func (r *CapabilityRepository) GetCapabilities(ctx context.Context, ids ...string) ([]*core.Capability, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	result := make([]*core.Capability, 0, len(ids))
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range ids {
			c, err := readCapability(tx, makeCapabilityKey(id))
			if err != nil {
				return err
			}
			if c != nil {
				result = append(result, c)
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, storeError("get capabilities", err)
	}
	return result, nil
}

// ListByTags scans the edge index once per query tag.
func (r *CapabilityRepository) ListByTags(ctx context.Context, tags []string) ([]core.TagMatch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tags = core.NormalizeKeyElements(tags)
	if len(tags) == 0 {
		return []core.TagMatch{}, nil
	}

	byID := make(map[string]*core.TagMatch)
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for _, tag := range tags {
			if err := ctx.Err(); err != nil {
				return err
			}
			id := tagID(tag)
			known, err := r.isTag(tx, id, tag)
			if err != nil {
				return err
			}
			if !known {
				continue
			}

			prefix := makePartialCapabilityTagKey(id)
			for iter.Seek(prefix); iter.ValidForPrefix(prefix); iter.Next() {
				capabilityID := string(iter.Item().Key()[len(prefix):])
				m, ok := byID[capabilityID]
				if !ok {
					m = &core.TagMatch{CapabilityID: capabilityID}
					byID[capabilityID] = m
				}
				m.MatchedTags = append(m.MatchedTags, tag)
				m.MatchCount++
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, storeError("list by tags", err)
	}

	matches := make([]core.TagMatch, 0, len(byID))
	for _, m := range byID {
		matches = append(matches, *m)
	}
	storage.SortTagMatches(matches)
	return matches, nil
}

// isTag reports whether the key element entity for id exists and names tag.
// A different name means two tags share a hash; such edges are ignored.
func (r *CapabilityRepository) isTag(tx *badger.Txn, id core.ID, tag string) (bool, error) {
	item, err := tx.Get(makeKeyElementKey(id))
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return false, nil
		}
		return false, err
	}
	var name string
	err = item.Value(func(val []byte) error {
		name = string(val)
		return nil
	})
	if err != nil {
		return false, err
	}
	if name != tag {
		r.logger.Warn("key element id collision", "tag", tag, "stored", name)
		return false, nil
	}
	return true, nil
}

// ListCandidates returns active capabilities of the given kinds, ordered by id.
func (r *CapabilityRepository) ListCandidates(ctx context.Context, kinds ...core.Kind) ([]*core.Capability, error) {
	results, err := r.scan(ctx, func(c *core.Capability) bool {
		return c.IsActive() && storage.MatchesKinds(c.Kind, kinds)
	})
	if err != nil {
		return nil, storeError("list candidates", err)
	}
	return results, nil
}

// ListCapabilities returns every stored capability, ordered by id.
func (r *CapabilityRepository) ListCapabilities(ctx context.Context) ([]*core.Capability, error) {
	results, err := r.scan(ctx, func(*core.Capability) bool { return true })
	if err != nil {
		return nil, storeError("list capabilities", err)
	}
	return results, nil
}

// SetStatus changes the status of a stored capability.
func (r *CapabilityRepository) SetStatus(ctx context.Context, id string, status core.Status) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if status != core.StatusActive && status != core.StatusDisabled {
		return fmt.Errorf("%w: %w: value %d", core.ErrInvalidCapability, core.ErrInvalidStatus, status)
	}

	unlock := r.locks.Lock(id)
	defer unlock()

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeCapabilityKey(id)
		c, err := readCapability(tx, key)
		if err != nil {
			return err
		}
		if c == nil {
			return storage.ErrNotFound
		}
		if c.Status == status {
			return nil
		}
		c.Status = status
		c.LastUpdated = r.now().UTC().Truncate(time.Microsecond)
		if err := tx.Set(key, storage.MarshalCapability(c)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return storeError("set status", err)
	}
	r.logger.Debug("set capability status", "id", id, "status", status.String())
	return nil
}

// Helper methods

// scan iterates all capability records in key order and keeps those accepted by keep.
func (r *CapabilityRepository) scan(ctx context.Context, keep func(*core.Capability) bool) ([]*core.Capability, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	results := make([]*core.Capability, 0)
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		iter := tx.NewIterator(opts)
		defer iter.Close()

		prefix := []byte(capabilityPrefix + ":")
		for iter.Seek(prefix); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := iter.Item()
			if !hasPrefix(item.Key(), prefix) {
				break
			}

			var c *core.Capability
			err := item.Value(func(val []byte) error {
				var err error
				c, err = storage.UnmarshalCapability(val)
				return err
			})
			if err != nil {
				return fmt.Errorf("capability %q: %w", capabilityIDFromKey(item.Key()), err)
			}
			if keep(c) {
				results = append(results, c)
			}
		}
		return nil
	}, false)
	return results, err
}

// hasPrefix checks if a byte slice has a given prefix
func hasPrefix(s, prefix []byte) bool {
	return len(s) >= len(prefix) && string(s[:len(prefix)]) == string(prefix)
}

// readCapability reads a capability from the transaction.
// Returns nil, nil when the key does not exist.
func readCapability(tx *badger.Txn, key []byte) (*core.Capability, error) {
	item, err := tx.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var c *core.Capability
	err = item.Value(func(val []byte) error {
		var err error
		c, err = storage.UnmarshalCapability(val)
		return err
	})
	return c, err
}

// diffTags compares two normalized tag sets.
func diffTags(previous, next []string) (removed, added []string) {
	prev := make(map[string]struct{}, len(previous))
	for _, tag := range previous {
		prev[tag] = struct{}{}
	}
	for _, tag := range next {
		if _, ok := prev[tag]; ok {
			delete(prev, tag)
			continue
		}
		added = append(added, tag)
	}
	for _, tag := range previous {
		if _, ok := prev[tag]; ok {
			removed = append(removed, tag)
		}
	}
	return removed, added
}
