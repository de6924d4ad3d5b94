// Package app assembles the capture and search pipeline from already
// constructed backends. Both the server binary and the SDK build on it.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/vecsnap/internal/db"
	"github.com/kailas-cloud/vecsnap/internal/domain"
	"github.com/kailas-cloud/vecsnap/internal/metrics"
	"github.com/kailas-cloud/vecsnap/internal/optimizer"
	"github.com/kailas-cloud/vecsnap/internal/repository/embcache"
	imagerepo "github.com/kailas-cloud/vecsnap/internal/repository/image"
	"github.com/kailas-cloud/vecsnap/internal/transport/vectorindex"
	captureuc "github.com/kailas-cloud/vecsnap/internal/usecase/capture"
	embeddinguc "github.com/kailas-cloud/vecsnap/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/vecsnap/internal/usecase/health"
	libraryuc "github.com/kailas-cloud/vecsnap/internal/usecase/library"
	searchuc "github.com/kailas-cloud/vecsnap/internal/usecase/search"
)

// Deps are the externally built parts of the pipeline.
type Deps struct {
	Store   db.Store
	Backend embeddinguc.Backend

	// Provider and Model label metrics and namespace the embedding cache.
	Provider   string
	Model      string
	Dimensions int  // expected embedding length, <= 0 disables the check
	Cache      bool // cache vectors in Store, keyed by image hash

	Index       *vectorindex.Client // nil disables publish and search
	Optimizer   *optimizer.Optimizer
	Device      captureuc.Device
	AutoPublish bool
	Search      searchuc.Config

	Logger *zap.Logger
}

// Pipeline holds every service of one running instance.
type Pipeline struct {
	Store     db.Store
	Images    *imagerepo.Repo
	Embedding *embeddinguc.Client
	Embedder  domain.Embedder // decorated chain: client -> cache -> instrumented
	Resolver  *embeddinguc.Resolver
	Index     *vectorindex.Client

	Capture *captureuc.Service
	Library *libraryuc.Service
	Search  *searchuc.Service
	Session *searchuc.Orchestrator
	Health  *healthuc.Service
}

// New wires the services. It performs no I/O; call Init before embedding.
func New(d Deps) (*Pipeline, error) {
	if d.Store == nil {
		return nil, fmt.Errorf("app: store is required")
	}
	if d.Backend == nil {
		return nil, fmt.Errorf("app: embedding backend is required")
	}
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	images := imagerepo.New(d.Store)
	client := embeddinguc.NewClient(d.Backend, metrics.EmbeddingDegenerateTotal, logger)
	embedder := buildEmbedder(client, d, logger)
	resolver := embeddinguc.NewResolver(embedder, images)

	// Pass nil interfaces, not typed nil pointers, when the index is absent.
	var (
		publishIndex libraryuc.Index
		searchIndex  searchuc.Index = unavailableIndex{}
		healthIndex  healthuc.IndexChecker
	)
	if d.Index != nil {
		publishIndex = d.Index
		searchIndex = d.Index
		healthIndex = d.Index
	}

	defaultTopK := d.Search.TopK
	if d.Index != nil && defaultTopK <= 0 {
		defaultTopK = d.Index.DefaultTopK()
	}

	var opt captureuc.Optimizer
	if d.Optimizer != nil {
		opt = d.Optimizer
	}

	library := libraryuc.New(images, embedder, publishIndex, logger)
	capture := captureuc.New(d.Device, opt, images, metrics.CaptureTotal, logger)
	if d.AutoPublish && library.PublishEnabled() {
		capture.WithPublisher(library)
	}

	return &Pipeline{
		Store:     d.Store,
		Images:    images,
		Embedding: client,
		Embedder:  embedder,
		Resolver:  resolver,
		Index:     d.Index,
		Capture:   capture,
		Library:   library,
		Search:    searchuc.New(resolver, searchIndex, defaultTopK),
		Session:   searchuc.NewOrchestrator(images, embedder, searchIndex, d.Search, logger),
		Health:    healthuc.New(d.Store, healthIndex, client),
	}, nil
}

// Init loads the embedding backend.
func (p *Pipeline) Init(ctx context.Context) error {
	return p.Embedding.Init(ctx)
}

// buildEmbedder assembles the decorator chain: Client -> Cached -> Instrumented.
func buildEmbedder(client *embeddinguc.Client, d Deps, logger *zap.Logger) domain.Embedder {
	var embedder domain.Embedder = client
	if d.Cache {
		embedder = embcache.New(client, d.Store, embcache.Config{
			Namespace:  cacheNamespace(d),
			Dimensions: d.Dimensions,
			CacheTotal: metrics.EmbeddingCacheTotal,
			Logger:     logger,
		})
	}
	return embeddinguc.NewInstrumentedEmbedder(embedder, d.Provider, d.Model, d.Dimensions, logger)
}

func cacheNamespace(d Deps) string {
	if d.Model == "" {
		return d.Provider
	}
	return d.Provider + ":" + d.Model
}

// unavailableIndex answers every search when no index is configured.
type unavailableIndex struct{}

func (unavailableIndex) Search(context.Context, domain.Vector, int) ([]domain.SearchHit, error) {
	return nil, fmt.Errorf("no vector index configured: %w", domain.ErrPublishDisabled)
}
