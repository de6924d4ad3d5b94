package embcache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/vecsnap/internal/db"
	"github.com/kailas-cloud/vecsnap/internal/domain"
)

const keyPrefix = "emb:"

// Cache lookup results, used as the "result" metric label.
const (
	resultHit   = "hit"
	resultMiss  = "miss"
	resultStale = "stale"
)

// kv is the slice of db.KVStore the cache needs.
type kv interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// Config tunes a CachedEmbedder.
type Config struct {
	// Namespace separates vectors of different models, e.g. "openai:clip".
	Namespace string
	// Dimensions, when set, rejects cached entries of any other length.
	Dimensions int
	// CacheTotal counts lookups by result (hit/miss/stale). Optional.
	CacheTotal *prometheus.CounterVec
	Logger     *zap.Logger
}

// CachedEmbedder is a content-addressed embedding cache: the key is the
// sha256 of the image bytes, so the same photo is embedded once per model.
type CachedEmbedder struct {
	inner domain.Embedder
	kv    kv
	cfg   Config
}

// New wraps inner with a cache stored in s.
func New(inner domain.Embedder, s kv, cfg Config) *CachedEmbedder {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &CachedEmbedder{inner: inner, kv: s, cfg: cfg}
}

// Embed returns the cached vector for image or computes and stores it.
// Cache failures degrade to a plain embed call.
func (c *CachedEmbedder) Embed(ctx context.Context, image []byte) (domain.Vector, error) {
	key := c.Key(image)

	vec, result := c.lookup(ctx, key)
	c.count(result)
	if result == resultHit {
		return vec, nil
	}

	vec, err := c.inner.Embed(ctx, image)
	if err != nil {
		return nil, fmt.Errorf("embed image: %w", err)
	}

	if err := c.kv.Set(ctx, key, encodeEntry(vec)); err != nil {
		c.cfg.Logger.Warn("Failed to cache embedding", zap.String("key", key), zap.Error(err))
	}
	return vec, nil
}

// Key is the cache key for image under this embedder's namespace.
func (c *CachedEmbedder) Key(image []byte) string {
	sum := sha256.Sum256(image)
	digest := hex.EncodeToString(sum[:])
	if c.cfg.Namespace == "" {
		return keyPrefix + digest
	}
	return keyPrefix + c.cfg.Namespace + ":" + digest
}

func (c *CachedEmbedder) lookup(ctx context.Context, key string) (domain.Vector, string) {
	data, err := c.kv.Get(ctx, key)
	switch {
	case errors.Is(err, db.ErrKeyNotFound):
		return nil, resultMiss
	case err != nil:
		c.cfg.Logger.Warn("Failed to read cached embedding", zap.String("key", key), zap.Error(err))
		return nil, resultMiss
	}

	vec, err := decodeEntry(data)
	if err != nil {
		c.cfg.Logger.Warn("Discarding corrupt cached embedding", zap.String("key", key), zap.Error(err))
		return nil, resultStale
	}
	if c.cfg.Dimensions > 0 && len(vec) != c.cfg.Dimensions {
		c.cfg.Logger.Debug("Discarding cached embedding of another size",
			zap.String("key", key), zap.Int("dims", len(vec)), zap.Int("want", c.cfg.Dimensions))
		return nil, resultStale
	}
	return vec, resultHit
}

func (c *CachedEmbedder) count(result string) {
	if c.cfg.CacheTotal != nil {
		c.cfg.CacheTotal.WithLabelValues(result).Inc()
	}
}

// An entry is a little-endian uint32 length followed by that many float32s.
func encodeEntry(v domain.Vector) []byte {
	buf := make([]byte, 4+len(v)*4)
	binary.LittleEndian.PutUint32(buf, uint32(len(v)))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4+i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeEntry(data []byte) (domain.Vector, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("cache entry too short: %d bytes", len(data))
	}
	n := int(binary.LittleEndian.Uint32(data))
	if n == 0 || len(data) != 4+n*4 {
		return nil, fmt.Errorf("cache entry length %d does not hold %d floats", len(data), n)
	}
	vec := make(domain.Vector, n)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[4+i*4:]))
	}
	return vec, nil
}
