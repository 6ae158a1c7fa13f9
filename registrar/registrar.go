package registrar

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/capsearch/ai"
	"github.com/poiesic/capsearch/core"
	"github.com/poiesic/capsearch/storage"
	"github.com/poiesic/capsearch/vectorize"
)

// Registrar normalizes source records into capabilities and writes them,
// vectors included, to a capability repository.
type Registrar struct {
	repository storage.CapabilityRepository
	vectorizer *vectorize.Vectorizer
	extractor  ai.KeyElementExtractor
	pool       *ants.Pool
	retry      vectorize.RetryPolicy
	reuse      bool
	logger     *slog.Logger
}

// Result is the outcome of one record of a batch.
// ID is set whenever the record got far enough to have one, even on failure.
type Result struct {
	ID  string
	Err error
}

// Ok reports whether the record was registered.
func (r Result) Ok() bool {
	return r.Err == nil
}

// Option configures a Registrar.
type Option func(*Registrar) error

// WithPoolSize sets the worker pool size for batch registration.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(r *Registrar) error {
		if size < 1 {
			size = 1
		}
		if r.pool != nil {
			r.pool.Release()
			r.pool = nil
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		r.pool = pool
		return nil
	}
}

// WithRetryPolicy sets how embedding failures are retried.
// Default is vectorize.DefaultRetryPolicy().
func WithRetryPolicy(policy vectorize.RetryPolicy) Option {
	return func(r *Registrar) error {
		if err := policy.Validate(); err != nil {
			return err
		}
		r.retry = policy
		return nil
	}
}

// WithVectorReuse controls whether an unchanged capability keeps its stored
// vectors on re-registration. Default is true; disable it after switching
// embedding models.
func WithVectorReuse(reuse bool) Option {
	return func(r *Registrar) error {
		r.reuse = reuse
		return nil
	}
}

// WithExtractor fills in key elements for records that carry none.
// Extraction is best effort; a failure leaves the record untagged.
func WithExtractor(extractor ai.KeyElementExtractor) Option {
	return func(r *Registrar) error {
		r.extractor = extractor
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registrar) error {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger
		return nil
	}
}

// NewRegistrar creates a registrar writing to repository.
func NewRegistrar(repository storage.CapabilityRepository, vectorizer *vectorize.Vectorizer, opts ...Option) (*Registrar, error) {
	if repository == nil {
		return nil, ErrRepositoryRequired
	}
	if vectorizer == nil {
		return nil, ErrVectorizerRequired
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	r := &Registrar{
		repository: repository,
		vectorizer: vectorizer,
		pool:       pool,
		retry:      vectorize.DefaultRetryPolicy(),
		reuse:      true,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		if optErr := opt(r); optErr != nil {
			r.Release()
			return nil, optErr
		}
	}
	r.logger = r.logger.With("component", "registrar")
	return r, nil
}

// Register decodes raw as a record of kind and registers it.
// It returns the capability id.
func (r *Registrar) Register(ctx context.Context, kind core.Kind, raw map[string]any) (string, error) {
	d, err := DecodeDescriptor(kind, raw)
	if err != nil {
		return "", err
	}
	return r.RegisterDescriptor(ctx, d)
}

// RegisterDescriptor registers an already decoded descriptor.
func (r *Registrar) RegisterDescriptor(ctx context.Context, d Descriptor) (string, error) {
	if d == nil {
		return "", fmt.Errorf("%w: descriptor is nil", core.ErrInvalidCapability)
	}
	c, err := d.Capability()
	if err != nil {
		id, _ := d.CapabilityID()
		return id, err
	}
	stored, err := r.RegisterCapability(ctx, c)
	if err != nil {
		return c.ID, err
	}
	return stored.ID, nil
}

// RegisterCapability vectorizes c and upserts it. Vectors already on c are
// replaced. Unless vector reuse is off, a stored version with the same
// encodings and a full vector triple donates its vectors and the gateway is
// not called.
func (r *Registrar) RegisterCapability(ctx context.Context, c *core.Capability) (*core.Capability, error) {
	if err := core.ValidateCapability(c); err != nil {
		return nil, err
	}
	c.KeyElements = core.NormalizeKeyElements(c.KeyElements)
	if len(c.KeyElements) == 0 && r.extractor != nil {
		c.KeyElements = r.extractKeyElements(ctx, c)
	}

	vectors, reused, err := r.vectors(ctx, c)
	if err != nil {
		return nil, err
	}
	c.Vectors = vectors

	stored, err := r.repository.UpsertCapability(ctx, c)
	if err != nil {
		r.logger.Error("failed to store capability", "id", c.ID, "err", err)
		return nil, err
	}
	r.logger.Info("registered capability", "id", stored.ID, "kind", stored.Kind.String(), "tags", len(stored.KeyElements), "reused_vectors", reused)
	return stored, nil
}

func (r *Registrar) vectors(ctx context.Context, c *core.Capability) (core.VectorTriple, bool, error) {
	if r.reuse {
		existing, err := r.repository.GetCapability(ctx, c.ID)
		switch {
		case err == nil:
			if existing.Vectors.Populated() == len(core.Dimensions) && vectorize.Encode(existing) == vectorize.Encode(c) {
				return existing.Vectors, true, nil
			}
		case !errors.Is(err, storage.ErrNotFound):
			return core.VectorTriple{}, false, err
		}
	}

	var vectors core.VectorTriple
	err := r.retry.Do(ctx, func() error {
		var verr error
		vectors, verr = r.vectorizer.Vectorize(ctx, c)
		return verr
	})
	if err != nil {
		return core.VectorTriple{}, false, err
	}
	return vectors, false, nil
}

func (r *Registrar) extractKeyElements(ctx context.Context, c *core.Capability) []string {
	text := strings.TrimSpace(c.Name + ". " + c.Description)
	tags, err := r.extractor.ExtractKeyElements(ctx, text)
	if err != nil {
		r.logger.Warn("key element extraction failed, registering without tags", "id", c.ID, "err", err)
		return nil
	}
	return core.NormalizeKeyElements(tags)
}

// RegisterMany registers records concurrently on the worker pool and
// returns one Result per record, in input order. A failing record does not
// affect the others. If ctx is cancelled, records not yet started fail with
// the context error and RegisterMany returns that error alongside the results.
func (r *Registrar) RegisterMany(ctx context.Context, records []Record) ([]Result, error) {
	results := make([]Result, len(records))
	var wg sync.WaitGroup
	for i, rec := range records {
		if err := ctx.Err(); err != nil {
			results[i] = Result{Err: err}
			continue
		}
		wg.Add(1)
		submitErr := r.pool.Submit(func() {
			defer wg.Done()
			results[i] = r.registerRecord(ctx, rec)
		})
		if submitErr != nil {
			wg.Done()
			results[i] = Result{Err: submitErr}
		}
	}
	wg.Wait()

	failed := 0
	for _, res := range results {
		if !res.Ok() {
			failed++
		}
	}
	r.logger.Info("batch registration finished", "records", len(records), "failed", failed)
	return results, ctx.Err()
}

func (r *Registrar) registerRecord(ctx context.Context, rec Record) Result {
	if err := ctx.Err(); err != nil {
		return Result{Err: err}
	}
	d, err := rec.Descriptor()
	if err != nil {
		r.logger.Warn("skipping malformed record", "kind", rec.Kind, "err", err)
		return Result{Err: err}
	}
	id, err := r.RegisterDescriptor(ctx, d)
	return Result{ID: id, Err: err}
}

// Disable marks a capability as disabled so it no longer appears in search.
func (r *Registrar) Disable(ctx context.Context, id string) error {
	return r.setStatus(ctx, id, core.StatusDisabled)
}

// Enable returns a disabled capability to search.
func (r *Registrar) Enable(ctx context.Context, id string) error {
	return r.setStatus(ctx, id, core.StatusActive)
}

func (r *Registrar) setStatus(ctx context.Context, id string, status core.Status) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("%w: %w", core.ErrInvalidCapability, core.ErrEmptyCapabilityID)
	}
	if err := r.repository.SetStatus(ctx, id, status); err != nil {
		return err
	}
	r.logger.Info("capability status changed", "id", id, "status", status.String())
	return nil
}

// Release releases the worker pool.
// The registrar should not be used after calling Release.
func (r *Registrar) Release() {
	if r.pool != nil {
		r.pool.Release()
	}
}
