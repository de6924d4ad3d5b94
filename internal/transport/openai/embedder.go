package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/vecsnap/internal/domain"
	"github.com/kailas-cloud/vecsnap/internal/domain/embedding"
	"github.com/kailas-cloud/vecsnap/internal/metrics"
)

// Embedder is an image embedding backend speaking the OpenAI-compatible
// embeddings API. Images go out as data URLs, which multimodal embedding
// servers (vLLM, Jina, Nebius) accept as input.
type Embedder struct {
	client     *openai.Client
	model      openai.EmbeddingModel
	dimensions int
	user       string
	provider   string
	logger     *zap.Logger
}

// Config holds the embedding provider settings.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	// Dimensions is requested from the server and checked on every response.
	Dimensions int
	User       string
	Provider   string
	Logger     *zap.Logger
}

// NewEmbedder creates an OpenAI-compatible embedding backend.
func NewEmbedder(cfg *Config) *Embedder {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Embedder{
		client:     openai.NewClientWithConfig(clientCfg),
		model:      openai.EmbeddingModel(cfg.Model),
		dimensions: cfg.Dimensions,
		user:       cfg.User,
		provider:   cfg.Provider,
		logger:     logger.With(zap.String("provider", cfg.Provider), zap.String("model", cfg.Model)),
	}
}

// Load checks that the server is reachable and serves the configured model.
// Servers that list no models at all are trusted.
func (e *Embedder) Load(ctx context.Context) error {
	models, err := e.client.ListModels(ctx)
	if err != nil {
		return fmt.Errorf("list models: %w", parseAPIError(err))
	}
	if len(models.Models) > 0 && !serves(models.Models, string(e.model)) {
		return fmt.Errorf("model %q is not served by %s: %w", e.model, e.provider, domain.ErrEmbedderNotReady)
	}
	e.logger.Info("Embedding backend ready", zap.Int("models_listed", len(models.Models)))
	return nil
}

func serves(models []openai.Model, id string) bool {
	for _, m := range models {
		if m.ID == id {
			return true
		}
	}
	return false
}

// Embed sends one image and returns its raw vector.
func (e *Embedder) Embed(ctx context.Context, image []byte) (embedding.Output, error) {
	req := openai.EmbeddingRequest{
		Input:          []string{domain.StoredImage{Data: image}.DataURL()},
		Model:          e.model,
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
		User:           e.user,
	}
	if e.dimensions > 0 {
		req.Dimensions = e.dimensions
	}

	start := time.Now()
	resp, err := e.client.CreateEmbeddings(ctx, req)
	if err != nil {
		e.record(start, "api_error")
		return nil, parseAPIError(err)
	}

	vec, ok := firstEmbedding(resp.Data)
	if !ok {
		e.record(start, "empty_response")
		return nil, fmt.Errorf("empty embedding response: %w", domain.ErrEmbeddingProviderError)
	}
	if e.dimensions > 0 && len(vec) != e.dimensions {
		e.record(start, "dimension_mismatch")
		return nil, fmt.Errorf("%s returned a %d-dim vector: %w",
			e.model, len(vec), domain.NewDimensionMismatch(e.dimensions, len(vec)))
	}

	e.record(start, "")
	return embedding.FlatVector(vec), nil
}

// firstEmbedding picks the datum for input 0; servers may reorder data.
func firstEmbedding(data []openai.Embedding) ([]float32, bool) {
	for _, d := range data {
		if d.Index == 0 && len(d.Embedding) > 0 {
			return d.Embedding, true
		}
	}
	return nil, false
}

// record updates the transport metrics. An empty reason means success.
func (e *Embedder) record(start time.Time, reason string) {
	model := string(e.model)
	if reason == "" {
		metrics.EmbeddingRequestsTotal.WithLabelValues(e.provider, model, "success").Inc()
		metrics.EmbeddingRequestDuration.WithLabelValues(e.provider, model).Observe(time.Since(start).Seconds())
		return
	}
	metrics.EmbeddingRequestsTotal.WithLabelValues(e.provider, model, "error").Inc()
	metrics.EmbeddingErrorsTotal.WithLabelValues(e.provider, model, reason).Inc()
	e.logger.Debug("Embedding request failed", zap.String("reason", reason), zap.Duration("took", time.Since(start)))
}

// HealthCheck verifies API availability via ListModels.
func (e *Embedder) HealthCheck(ctx context.Context) error {
	if _, err := e.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

// parseAPIError turns go-openai errors into a readable message wrapping
// domain.ErrEmbeddingProviderError, which the API maps to 502.
func parseAPIError(err error) error {
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		msg := extractDetail(reqErr.Body)
		if msg == "" {
			msg = string(reqErr.Body)
		}
		return fmt.Errorf("embedding API error %d: %s: %w", reqErr.HTTPStatusCode, msg, domain.ErrEmbeddingProviderError)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("embedding API error %d: %s: %w",
			apiErr.HTTPStatusCode, apiErr.Message, domain.ErrEmbeddingProviderError)
	}

	return fmt.Errorf("embedding request failed: %v: %w", err, domain.ErrEmbeddingProviderError)
}

// extractDetail reads the "detail" field some servers (Nebius, vLLM) use
// instead of the OpenAI error envelope.
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil {
		return parsed.Detail
	}
	return ""
}
