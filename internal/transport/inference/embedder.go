// Package inference talks to a self-hosted image embedding process over HTTP.
//
// Contract:
//
//	GET  {base}/health  -> 2xx when the model is loaded
//	POST {base}/embed   raw image bytes -> vector-like JSON
//
// The response may be a flat array, a nested array or a {"data": [...], "dims": [...]}
// tensor object; it is classified by embedding.Parse.
package inference

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/vecsnap/internal/domain"
	"github.com/kailas-cloud/vecsnap/internal/domain/embedding"
	"github.com/kailas-cloud/vecsnap/internal/metrics"
)

const maxResponseBytes = 16 << 20

// Config holds the inference endpoint settings.
type Config struct {
	BaseURL  string
	Model    string // label only
	Timeout  time.Duration
	Provider string
	Logger   *zap.Logger
}

// Embedder calls a generic inference endpoint.
type Embedder struct {
	baseURL  string
	model    string
	provider string
	http     *http.Client
	logger   *zap.Logger
}

// NewEmbedder creates an inference backend.
func NewEmbedder(cfg *Config) *Embedder {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	provider := cfg.Provider
	if provider == "" {
		provider = "inference"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Embedder{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		model:    cfg.Model,
		provider: provider,
		http:     &http.Client{Timeout: timeout},
		logger:   logger,
	}
}

// Load checks /health once.
func (e *Embedder) Load(ctx context.Context) error {
	if err := e.HealthCheck(ctx); err != nil {
		return err
	}
	e.logger.Info("Embedding backend ready",
		zap.String("provider", e.provider),
		zap.String("url", e.baseURL),
	)
	return nil
}

// HealthCheck returns nil when GET /health answers 2xx.
func (e *Embedder) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"/health", http.NoBody)
	if err != nil {
		return fmt.Errorf("build health request: %w", err)
	}
	resp, err := e.http.Do(req)
	if err != nil {
		return fmt.Errorf("inference health: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("inference health: status %d: %w", resp.StatusCode, domain.ErrEmbeddingProviderError)
	}
	return nil
}

// Embed posts the image and parses whatever vector shape comes back.
func (e *Embedder) Embed(ctx context.Context, image []byte) (embedding.Output, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/embed", bytes.NewReader(image))
	if err != nil {
		return nil, fmt.Errorf("build embed request: %w", err)
	}
	req.Header.Set("Content-Type", http.DetectContentType(image))
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := e.http.Do(req)
	if err != nil {
		e.fail("transport")
		return nil, fmt.Errorf("inference request: %v: %w", err, domain.ErrEmbeddingProviderError)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		e.fail("read_body")
		return nil, fmt.Errorf("read inference response: %v: %w", err, domain.ErrEmbeddingProviderError)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		e.fail("api_error")
		return nil, fmt.Errorf("inference error %d: %s: %w",
			resp.StatusCode, strings.TrimSpace(string(body)), domain.ErrEmbeddingProviderError)
	}

	out, err := embedding.Parse(body)
	if err != nil {
		e.fail("bad_shape")
		return nil, err
	}

	metrics.EmbeddingRequestsTotal.WithLabelValues(e.provider, e.model, "success").Inc()
	metrics.EmbeddingRequestDuration.WithLabelValues(e.provider, e.model).Observe(time.Since(start).Seconds())
	return out, nil
}

func (e *Embedder) fail(kind string) {
	metrics.EmbeddingRequestsTotal.WithLabelValues(e.provider, e.model, "error").Inc()
	metrics.EmbeddingErrorsTotal.WithLabelValues(e.provider, e.model, kind).Inc()
}
