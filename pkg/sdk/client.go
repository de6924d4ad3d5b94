package vecsnap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kailas-cloud/vecsnap/internal/app"
	"github.com/kailas-cloud/vecsnap/internal/db"
	dbBadger "github.com/kailas-cloud/vecsnap/internal/db/badger"
	dbRedis "github.com/kailas-cloud/vecsnap/internal/db/redis"
	dbSQLite "github.com/kailas-cloud/vecsnap/internal/db/sqlite"
	"github.com/kailas-cloud/vecsnap/internal/domain"
	"github.com/kailas-cloud/vecsnap/internal/optimizer"
	"github.com/kailas-cloud/vecsnap/internal/transport/device"
	inferenceEmb "github.com/kailas-cloud/vecsnap/internal/transport/inference"
	openaiEmb "github.com/kailas-cloud/vecsnap/internal/transport/openai"
	"github.com/kailas-cloud/vecsnap/internal/transport/vectorindex"
	embeddinguc "github.com/kailas-cloud/vecsnap/internal/usecase/embedding"
	searchuc "github.com/kailas-cloud/vecsnap/internal/usecase/search"
)

const (
	defaultReadinessTimeout = 10 * time.Second
	defaultRetryBackoff     = 250 * time.Millisecond
)

// Internal interfaces, swapped for mocks in tests.
type ingestUseCase interface {
	IngestBytes(ctx context.Context, data []byte) (domain.StoredImage, error)
}

type libraryUseCase interface {
	List(ctx context.Context, limit int) ([]domain.StoredImage, error)
	Get(ctx context.Context, id string) (domain.StoredImage, error)
	Delete(ctx context.Context, id string) error
	Clear(ctx context.Context) error
	Publish(ctx context.Context, id string) (domain.UpsertItem, error)
}

type searchUseCase interface {
	SearchByID(ctx context.Context, id string, topK int) ([]domain.SearchHit, error)
	SearchByVector(ctx context.Context, vec domain.Vector, topK int) ([]domain.SearchHit, error)
}

type sessionUseCase interface {
	Search(ctx context.Context, key string) (searchuc.Snapshot, error)
	Snapshot() searchuc.Snapshot
}

// Client is the vecsnap SDK entry point.
type Client struct {
	store      db.Store
	ingestSvc  ingestUseCase
	librarySvc libraryUseCase
	searchSvc  searchUseCase
	sessionSvc sessionUseCase
	healthSvc  healthUseCase
	obs        *observer
}

// New creates a Client, opens the local store and loads the embedding backend.
// The provided context bounds the readiness checks.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{
		driver:     driverSQLite,
		path:       ":memory:",
		dimensions: domain.DefaultVectorConfig().Dimensions,
		cache:      true,
	}
	for _, o := range opts {
		o.apply(cfg)
	}

	backend, provider, err := createBackend(cfg)
	if err != nil {
		return nil, err
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	var index *vectorindex.Client
	if cfg.indexURL != "" {
		index, err = vectorindex.New(vectorindex.Config{
			BaseURL:     cfg.indexURL,
			Dimensions:  cfg.dimensions,
			DefaultTopK: cfg.topK,
			APIKey:      cfg.indexAPIKey,
			Registerer:  cfg.metricsReg,
		})
		if err != nil {
			return nil, fmt.Errorf("vecsnap: %w", err)
		}
	}

	store, err := createStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	p, err := app.New(app.Deps{
		Store:       store,
		Backend:     backend,
		Provider:    provider,
		Model:       cfg.model,
		Dimensions:  cfg.dimensions,
		Cache:       cfg.cache,
		Index:       index,
		Optimizer:   createOptimizer(cfg),
		AutoPublish: cfg.autoPublish,
		Search: searchuc.Config{
			TopK:         cfg.topK,
			Timeout:      cfg.timeout,
			Retries:      cfg.retries,
			RetryBackoff: defaultRetryBackoff,
		},
	})
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("vecsnap: %w", err)
	}
	if err := p.Init(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("vecsnap: %w", err)
	}

	return &Client{
		store:      store,
		ingestSvc:  p.Capture,
		librarySvc: p.Library,
		searchSvc:  p.Search,
		sessionSvc: p.Session,
		healthSvc:  p.Health,
		obs:        obs,
	}, nil
}

func createStore(ctx context.Context, cfg *clientConfig) (db.Store, error) {
	switch cfg.driver {
	case driverSQLite:
		s, err := dbSQLite.NewStore(cfg.path)
		if err != nil {
			return nil, fmt.Errorf("vecsnap: create sqlite store: %w", err)
		}
		return s, nil
	case driverBadger:
		if !cfg.inMemory && cfg.path == "" {
			return nil, errors.New("vecsnap: badger directory required (use WithBadger or WithBadgerInMemory)")
		}
		s, err := dbBadger.NewStore(dbBadger.Options{Dir: cfg.path, InMemory: cfg.inMemory})
		if err != nil {
			return nil, fmt.Errorf("vecsnap: create badger store: %w", err)
		}
		return s, nil
	case driverRedis, driverValkey:
		s, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:     cfg.addrs,
			Password:  cfg.password,
			KeyPrefix: cfg.keyPrefix,
		})
		if err != nil {
			return nil, fmt.Errorf("vecsnap: create %s store: %w", cfg.driver, err)
		}
		if err := s.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
			s.Close()
			return nil, fmt.Errorf("vecsnap: database not ready: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("vecsnap: unknown driver %q", cfg.driver)
	}
}

// createBackend picks the embedding backend; a custom Embedder wins.
func createBackend(cfg *clientConfig) (embeddinguc.Backend, string, error) {
	switch {
	case cfg.embedder != nil:
		return &embedderAdapter{inner: cfg.embedder}, "custom", nil
	case cfg.inferenceURL != "":
		return inferenceEmb.NewEmbedder(&inferenceEmb.Config{
			BaseURL:  cfg.inferenceURL,
			Model:    cfg.model,
			Provider: "inference",
		}), "inference", nil
	case cfg.openaiAPIKey != "" || cfg.openaiBaseURL != "":
		return openaiEmb.NewEmbedder(&openaiEmb.Config{
			APIKey:     cfg.openaiAPIKey,
			BaseURL:    cfg.openaiBaseURL,
			Model:      cfg.model,
			Dimensions: cfg.dimensions,
			Provider:   "openai",
		}), "openai", nil
	default:
		return nil, "", errors.New(
			"vecsnap: embedder required (use WithEmbedder, WithInferenceEmbedder or WithOpenAIEmbedder)",
		)
	}
}

// createOptimizer returns nil when optimization is disabled.
func createOptimizer(cfg *clientConfig) *optimizer.Optimizer {
	if cfg.noOptimizer {
		return nil
	}
	opts := optimizer.DefaultOptions()
	if cfg.quality > 0 {
		opts.Quality = cfg.quality
	}
	if cfg.maxWidth > 0 {
		opts.MaxWidth = cfg.maxWidth
	}
	if cfg.maxPixels > 0 {
		opts.MaxPixels = cfg.maxPixels
	}
	return optimizer.New(optimizer.Imaging{}, opts, nil, nil, nil)
}

// Close releases all resources.
func (c *Client) Close() {
	if c.store != nil {
		c.store.Close()
	}
}

// Ping checks local store connectivity.
func (c *Client) Ping(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("ping", start, err) }()

	if err = c.store.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Ingest optimizes and stores image bytes under a fresh id.
func (c *Client) Ingest(ctx context.Context, data []byte) (img Image, err error) {
	start := time.Now()
	defer func() { c.obs.observe("ingest", start, err, "bytes", len(data)) }()

	stored, err := c.ingestSvc.IngestBytes(ctx, data)
	if err != nil {
		return Image{}, fmt.Errorf("ingest: %w", err)
	}
	return fromDomainImage(stored), nil
}

// IngestFile reads an image file and ingests it.
// A missing file is ErrCaptureUnavailable, an unreadable one ErrCaptureAborted.
func (c *Client) IngestFile(ctx context.Context, path string) (Image, error) {
	data, err := device.File{Path: path}.Acquire(ctx)
	if err != nil {
		c.obs.observe("ingest", time.Now(), err, "path", path)
		return Image{}, fmt.Errorf("ingest %s: %w", path, err)
	}
	return c.Ingest(ctx, data)
}

// Images lists stored images, newest first. limit <= 0 returns all.
func (c *Client) Images(ctx context.Context, limit int) (imgs []Image, err error) {
	start := time.Now()
	defer func() { c.obs.observe("images", start, err) }()

	list, err := c.librarySvc.List(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}
	return fromDomainImages(list), nil
}

// Image returns one stored image or ErrImageNotFound.
func (c *Client) Image(ctx context.Context, id string) (img Image, err error) {
	start := time.Now()
	defer func() { c.obs.observe("image", start, err, "image_id", id) }()

	stored, err := c.librarySvc.Get(ctx, id)
	if err != nil {
		return Image{}, fmt.Errorf("get image %s: %w", id, err)
	}
	return fromDomainImage(stored), nil
}

// Delete removes an image locally and, when an index is configured, remotely.
func (c *Client) Delete(ctx context.Context, id string) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("delete", start, err, "image_id", id) }()

	if err = c.librarySvc.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete image %s: %w", id, err)
	}
	return nil
}

// Clear removes every stored image and its index entry.
func (c *Client) Clear(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("clear", start, err) }()

	if err = c.librarySvc.Clear(ctx); err != nil {
		return fmt.Errorf("clear images: %w", err)
	}
	return nil
}

// Publish embeds a stored image and upserts it into the index.
// It returns the published vector.
func (c *Client) Publish(ctx context.Context, id string) (vec []float32, err error) {
	start := time.Now()
	defer func() { c.obs.observe("publish", start, err, "image_id", id) }()

	item, err := c.librarySvc.Publish(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("publish %s: %w", id, err)
	}
	return item.Vector, nil
}

// Search embeds a stored image and returns its nearest neighbors.
// topK 0 uses the configured default; other values are clamped by the index.
func (c *Client) Search(ctx context.Context, imageID string, topK int) (hits []Hit, err error) {
	start := time.Now()
	defer func() { c.obs.observe("search", start, err, "image_id", imageID) }()

	res, err := c.searchSvc.SearchByID(ctx, imageID, topK)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", imageID, err)
	}
	return fromDomainHits(res), nil
}

// SearchVector queries the index with a caller-supplied vector.
// The vector is normalized before the query.
func (c *Client) SearchVector(ctx context.Context, vec []float32, topK int) (hits []Hit, err error) {
	start := time.Now()
	defer func() { c.obs.observe("search_vector", start, err, "dimensions", len(vec)) }()

	res, err := c.searchSvc.SearchByVector(ctx, domain.Vector(vec), topK)
	if err != nil {
		return nil, fmt.Errorf("search by vector: %w", err)
	}
	return fromDomainHits(res), nil
}

// Session makes imageID the current session request and waits for it.
// It returns ErrSuperseded when another image took over first. On failure the
// state still carries the image if it was retrieved.
func (c *Client) Session(ctx context.Context, imageID string) (st SessionState, err error) {
	start := time.Now()
	defer func() { c.obs.observe("session", start, err, "image_id", imageID) }()

	snap, err := c.sessionSvc.Search(ctx, imageID)
	if err != nil {
		return fromSnapshot(snap), fmt.Errorf("session %s: %w", imageID, err)
	}
	return fromSnapshot(snap), nil
}

// SessionState returns the current session state without waiting.
func (c *Client) SessionState() SessionState {
	return fromSnapshot(c.sessionSvc.Snapshot())
}
