package vecsnap

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

// Store drivers.
const (
	driverSQLite = "sqlite"
	driverBadger = "badger"
	driverRedis  = "redis"
	driverValkey = "valkey"
)

type clientConfig struct {
	driver    string
	path      string // sqlite file or badger dir
	inMemory  bool
	addrs     []string
	password  string
	keyPrefix string

	embedder      Embedder
	inferenceURL  string
	openaiAPIKey  string
	openaiBaseURL string
	model         string
	dimensions    int
	cache         bool

	indexURL    string
	indexAPIKey string
	autoPublish bool

	quality     int
	maxWidth    int
	maxPixels   int
	noOptimizer bool

	topK         int
	timeout      time.Duration
	retries      int
	retryBackoff time.Duration

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

// WithSQLite stores images in a SQLite file. ":memory:" keeps them in RAM.
// This is the default, in memory.
func WithSQLite(path string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = driverSQLite
		c.path = path
	})
}

// WithBadger stores images in an embedded Badger database under dir.
func WithBadger(dir string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = driverBadger
		c.path = dir
		c.inMemory = false
	})
}

// WithBadgerInMemory uses a Badger database that lives in RAM only.
func WithBadgerInMemory() Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = driverBadger
		c.inMemory = true
	})
}

// WithRedis stores images in a Redis instance.
func WithRedis(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = driverRedis
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithValkey stores images in a Valkey instance.
func WithValkey(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = driverValkey
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithKeyPrefix namespaces Redis/Valkey keys. Default "vecsnap:".
func WithKeyPrefix(prefix string) Option {
	return optionFunc(func(c *clientConfig) {
		c.keyPrefix = prefix
	})
}

// WithEmbedder sets a custom image embedding backend.
func WithEmbedder(e Embedder) Option {
	return optionFunc(func(c *clientConfig) {
		c.embedder = e
	})
}

// WithInferenceEmbedder embeds through a self-hosted inference endpoint
// exposing GET /health and POST /embed.
func WithInferenceEmbedder(baseURL, model string) Option {
	return optionFunc(func(c *clientConfig) {
		c.inferenceURL = baseURL
		c.model = model
	})
}

// WithOpenAIEmbedder embeds through an OpenAI-compatible embeddings API
// that accepts images as data URLs.
func WithOpenAIEmbedder(apiKey, baseURL, model string) Option {
	return optionFunc(func(c *clientConfig) {
		c.openaiAPIKey = apiKey
		c.openaiBaseURL = baseURL
		c.model = model
	})
}

// WithDimensions sets the vector length shared by the embedder and the index.
// Default 384.
func WithDimensions(dim int) Option {
	return optionFunc(func(c *clientConfig) {
		c.dimensions = dim
	})
}

// WithEmbeddingCache toggles caching of vectors in the local store.
// Enabled by default.
func WithEmbeddingCache(enabled bool) Option {
	return optionFunc(func(c *clientConfig) {
		c.cache = enabled
	})
}

// WithIndex sets the base URL of the remote vector index.
// Without it, publishing and search fail with ErrPublishDisabled.
func WithIndex(baseURL string) Option {
	return optionFunc(func(c *clientConfig) {
		c.indexURL = baseURL
	})
}

// WithIndexAPIKey sends key as x-api-key on every index request.
func WithIndexAPIKey(key string) Option {
	return optionFunc(func(c *clientConfig) {
		c.indexAPIKey = key
	})
}

// WithAutoPublish publishes every ingested image to the index.
// A failed publish is logged and does not fail the ingest.
func WithAutoPublish() Option {
	return optionFunc(func(c *clientConfig) {
		c.autoPublish = true
	})
}

// WithOptimizer sets JPEG quality (1-100) and the maximum width before
// downscaling. Defaults: 80, 1280.
func WithOptimizer(quality, maxWidth int) Option {
	return optionFunc(func(c *clientConfig) {
		c.quality = quality
		c.maxWidth = maxWidth
		c.noOptimizer = false
	})
}

// WithMaxPixels sets the width*height limit above which images are stored
// without decoding. Default: 50 million.
func WithMaxPixels(n int) Option {
	return optionFunc(func(c *clientConfig) {
		c.maxPixels = n
	})
}

// WithoutOptimizer stores captured bytes unchanged.
func WithoutOptimizer() Option {
	return optionFunc(func(c *clientConfig) {
		c.noOptimizer = true
	})
}

// WithSearch tunes session searches: default topK, per-run timeout and
// the number of extra index attempts after a failure.
func WithSearch(topK int, timeout time.Duration, retries int) Option {
	return optionFunc(func(c *clientConfig) {
		c.topK = topK
		c.timeout = timeout
		c.retries = retries
	})
}

// WithLogger enables structured logging for SDK operations.
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers SDK and index client metrics on the given
// registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
