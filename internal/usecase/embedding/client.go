package embedding

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/vecsnap/internal/domain"
	"github.com/kailas-cloud/vecsnap/internal/domain/embedding"
)

// Client turns image bytes into unit-length vectors.
//
// The backend is loaded by an explicit Init; Embed before a successful
// Init fails with domain.ErrEmbedderNotReady.
type Client struct {
	backend    Backend
	degenerate prometheus.Counter
	logger     *zap.Logger

	initMu sync.Mutex
	ready  atomic.Bool
}

// NewClient creates an embedding client. degenerate counts zero-norm outputs and may be nil.
func NewClient(backend Backend, degenerate prometheus.Counter, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{backend: backend, degenerate: degenerate, logger: logger}
}

// Init loads the backend once. Concurrent callers wait for the same load;
// a failed load is retried by the next Init.
func (c *Client) Init(ctx context.Context) error {
	if c.ready.Load() {
		return nil
	}

	c.initMu.Lock()
	defer c.initMu.Unlock()

	if c.ready.Load() {
		return nil
	}
	if err := c.backend.Load(ctx); err != nil {
		return fmt.Errorf("load embedding backend: %w", err)
	}
	c.ready.Store(true)
	return nil
}

// Ready reports whether Init has succeeded.
func (c *Client) Ready() bool {
	return c.ready.Load()
}

// Embed implements domain.Embedder: backend call, flatten, L2 normalize.
// A zero vector is returned as is (norm treated as 1).
func (c *Client) Embed(ctx context.Context, image []byte) (domain.Vector, error) {
	if !c.Ready() {
		return nil, domain.ErrEmbedderNotReady
	}

	out, err := c.backend.Embed(ctx, image)
	if err != nil {
		return nil, fmt.Errorf("backend embed: %w", err)
	}

	flat, err := embedding.Flatten(out)
	if err != nil {
		return nil, err
	}
	if len(flat) == 0 {
		return nil, fmt.Errorf("empty embedding: %w", domain.ErrUnrecognizedEmbeddingShape)
	}

	vec := domain.Vector(flat)
	if vec.Norm() == 0 {
		if c.degenerate != nil {
			c.degenerate.Inc()
		}
		c.logger.Warn("Embedding has zero norm, returned unnormalized", zap.Int("dimensions", len(vec)))
	}
	return vec.Normalize(), nil
}

// HealthCheck reports not-ready before Init, then defers to the backend if it can check itself.
func (c *Client) HealthCheck(ctx context.Context) error {
	if !c.Ready() {
		return domain.ErrEmbedderNotReady
	}
	if hc, ok := c.backend.(domain.HealthChecker); ok {
		return hc.HealthCheck(ctx)
	}
	return nil
}

// Resolver embeds images by their stored id.
type Resolver struct {
	embedder domain.Embedder
	images   ImageLookup
}

// NewResolver creates a Resolver over an embedder chain and the image store.
func NewResolver(embedder domain.Embedder, images ImageLookup) *Resolver {
	return &Resolver{embedder: embedder, images: images}
}

// EmbedByID loads the image and embeds it. A missing image is domain.ErrImageNotFound.
func (r *Resolver) EmbedByID(ctx context.Context, id string) (domain.Vector, error) {
	img, err := r.images.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get image %s: %w", id, err)
	}
	if img == nil {
		return nil, fmt.Errorf("image %s: %w", id, domain.ErrImageNotFound)
	}
	return r.embedder.Embed(ctx, img.Data)
}
