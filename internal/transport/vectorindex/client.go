// Package vectorindex is a typed client for the remote ANN service.
//
// Every request is validated before it leaves the process: vector lengths
// must match the configured dimension and topK is clamped into [1, MaxTopK].
// The client is stateless and never retries.
package vectorindex

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/vecsnap/internal/domain"
)

// Config holds the index service settings.
type Config struct {
	BaseURL     string
	Dimensions  int           // default 384
	MaxTopK     int           // default 100
	DefaultTopK int           // default 10
	Timeout     time.Duration // default 10s
	APIKey      string        // sent as x-api-key when set

	HTTPClient *http.Client
	Logger     *zap.Logger
	Registerer prometheus.Registerer // nil disables metrics
}

// Client speaks the index HTTP+JSON contract.
type Client struct {
	baseURL string
	vec     domain.VectorConfig
	apiKey  string
	http    *http.Client
	obs     *observer
}

// New creates a client. Zero config fields take defaults.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("vectorindex: base url is required")
	}

	vec := domain.DefaultVectorConfig()
	if cfg.Dimensions > 0 {
		vec.Dimensions = cfg.Dimensions
	}
	if cfg.MaxTopK > 0 {
		vec.MaxTopK = cfg.MaxTopK
	}
	if cfg.DefaultTopK > 0 {
		vec.DefaultTopK = cfg.DefaultTopK
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	obs, err := newObserver(cfg.Logger, cfg.Registerer)
	if err != nil {
		return nil, err
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		vec:     vec,
		apiKey:  cfg.APIKey,
		http:    httpClient,
		obs:     obs,
	}, nil
}

// Dimensions returns the configured vector length.
func (c *Client) Dimensions() int { return c.vec.Dimensions }

// DefaultTopK returns the topK used when callers pass zero.
func (c *Client) DefaultTopK() int { return c.vec.DefaultTopK }

// ClampTopK clamps k into [1, MaxTopK].
func (c *Client) ClampTopK(k int) int {
	return ClampTopK(k, c.vec.MaxTopK)
}

// ClampTopK clamps k into [1, maxTopK].
func ClampTopK(k, maxTopK int) int {
	if k < 1 {
		return 1
	}
	if k > maxTopK {
		return maxTopK
	}
	return k
}

type upsertRequest struct {
	Items []domain.UpsertItem `json:"items"`
}

type searchRequest struct {
	Query []float32 `json:"query"`
	TopK  int       `json:"top_k"`
}

type deleteRequest struct {
	IDs []string `json:"ids"`
}

// Upsert writes items. Empty input is a no-op; every vector is validated
// before anything is sent.
func (c *Client) Upsert(ctx context.Context, items []domain.UpsertItem) (err error) {
	if len(items) == 0 {
		return nil
	}
	for _, it := range items {
		if len(it.Vector) != c.vec.Dimensions {
			return domain.NewDimensionMismatch(c.vec.Dimensions, len(it.Vector))
		}
	}

	defer c.obs.observe("upsert", time.Now(), &err)
	return c.post(ctx, "upsert", "/upsert", upsertRequest{Items: items}, nil)
}

// Search returns the service's ranked hits verbatim. An empty query
// returns no hits without a network call.
func (c *Client) Search(ctx context.Context, query domain.Vector, topK int) (hits []domain.SearchHit, err error) {
	if len(query) == 0 {
		return []domain.SearchHit{}, nil
	}
	if len(query) != c.vec.Dimensions {
		return nil, domain.NewDimensionMismatch(c.vec.Dimensions, len(query))
	}

	defer c.obs.observe("search", time.Now(), &err)
	req := searchRequest{Query: query, TopK: c.ClampTopK(topK)}
	if err := c.post(ctx, "search", "/search", req, &hits); err != nil {
		return nil, err
	}
	if hits == nil {
		hits = []domain.SearchHit{}
	}
	return hits, nil
}

// Delete removes ids. Empty input is a no-op.
func (c *Client) Delete(ctx context.Context, ids []string) (err error) {
	if len(ids) == 0 {
		return nil
	}
	defer c.obs.observe("delete", time.Now(), &err)
	return c.post(ctx, "delete", "/delete", deleteRequest{IDs: ids}, nil)
}

// Ping reports whether /health answers 2xx without ok=false. It never fails.
func (c *Client) Ping(ctx context.Context) bool {
	h, err := c.Health(ctx)
	return err == nil && h.OK
}

// Health fetches the service status {ok, count, dim}. A 2xx without a
// JSON body is reported as OK with zero count.
func (c *Client) Health(ctx context.Context) (h domain.IndexHealth, err error) {
	defer c.obs.observe("health", time.Now(), &err)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", http.NoBody)
	if err != nil {
		return domain.IndexHealth{}, &domain.IndexError{Op: "health", Err: err}
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.IndexHealth{}, &domain.IndexError{Op: "health", Err: err}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return domain.IndexHealth{}, &domain.IndexError{Op: "health", Status: resp.StatusCode, Body: string(body)}
	}

	h = domain.IndexHealth{OK: true}
	if len(bytes.TrimSpace(body)) > 0 {
		if jerr := json.Unmarshal(body, &h); jerr != nil {
			h = domain.IndexHealth{OK: true}
		}
	}
	return h, nil
}

func (c *Client) post(ctx context.Context, op, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return &domain.IndexError{Op: op, Err: fmt.Errorf("encode request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return &domain.IndexError{Op: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return &domain.IndexError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return &domain.IndexError{Op: op, Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &domain.IndexError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}
	req.Header.Set("Accept", "application/json")
}
