// Package optimizer shrinks captured images before they are stored.
// Optimization is best effort: any failure yields the original bytes.
package optimizer

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Default optimization parameters.
const (
	DefaultQuality   = 80
	DefaultMaxWidth  = 1280
	DefaultMaxPixels = 50_000_000
)

// ErrTooLarge is returned by a Backend for images whose declared size
// exceeds Options.MaxPixels. Such images are stored unchanged.
var ErrTooLarge = errors.New("image too large to optimize")

// Options controls one optimization run.
type Options struct {
	Quality   int // encoder quality, 1-100
	MaxWidth  int // images wider than this are downscaled; never upscaled
	MaxPixels int // decode limit on width*height
}

// DefaultOptions returns quality 80, max width 1280, 50 MP decode limit.
func DefaultOptions() Options {
	return Options{Quality: DefaultQuality, MaxWidth: DefaultMaxWidth, MaxPixels: DefaultMaxPixels}
}

func (o Options) withDefaults() Options {
	if o.Quality <= 0 || o.Quality > 100 {
		o.Quality = DefaultQuality
	}
	if o.MaxWidth <= 0 {
		o.MaxWidth = DefaultMaxWidth
	}
	if o.MaxPixels <= 0 {
		o.MaxPixels = DefaultMaxPixels
	}
	return o
}

// Encoded is a Backend result. Resized is set when the source was wider
// than Options.MaxWidth.
type Encoded struct {
	Data    []byte
	Resized bool
}

// Backend re-encodes image bytes. It must refuse, without decoding pixels,
// images larger than Options.MaxPixels.
type Backend interface {
	Encode(data []byte, opts Options) (Encoded, error)
}

// Optimizer wraps a Backend with pass-through fallback and byte accounting.
type Optimizer struct {
	backend    Backend
	opts       Options
	bytesTotal *prometheus.CounterVec
	runsTotal  *prometheus.CounterVec
	logger     *zap.Logger
}

// New creates an optimizer. A nil backend makes every call a pass-through.
// bytesTotal has label "stage" (before/after), runsTotal has label "result"; both may be nil.
func New(
	backend Backend,
	opts Options,
	bytesTotal *prometheus.CounterVec,
	runsTotal *prometheus.CounterVec,
	logger *zap.Logger,
) *Optimizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Optimizer{
		backend:    backend,
		opts:       opts.withDefaults(),
		bytesTotal: bytesTotal,
		runsTotal:  runsTotal,
		logger:     logger,
	}
}

// Available reports whether a backend is configured.
func (o *Optimizer) Available() bool {
	return o != nil && o.backend != nil
}

// Optimize returns a smaller encoding of data, or data itself when the
// backend is unavailable, fails, or would not reduce the size. An image
// wider than MaxWidth is always returned downscaled, even in the rare case
// the downscaled encoding is longer than the input.
func (o *Optimizer) Optimize(ctx context.Context, data []byte) []byte {
	return o.OptimizeWith(ctx, data, o.opts)
}

// OptimizeWith is Optimize with per-call options.
func (o *Optimizer) OptimizeWith(ctx context.Context, data []byte, opts Options) []byte {
	if !o.Available() || len(data) == 0 {
		o.report("passthrough", len(data), len(data))
		return data
	}
	if ctx.Err() != nil {
		o.report("passthrough", len(data), len(data))
		return data
	}

	enc, err := o.backend.Encode(data, opts.withDefaults())
	switch {
	case errors.Is(err, ErrTooLarge):
		o.logger.Warn("Image exceeds optimizer pixel limit, keeping original",
			zap.Int("bytes", len(data)),
			zap.Error(err),
		)
		o.report("too_large", len(data), len(data))
		return data
	case err != nil:
		o.logger.Debug("Image optimization failed, keeping original",
			zap.Int("bytes", len(data)),
			zap.Error(err),
		)
		o.report("failed", len(data), len(data))
		return data
	case len(enc.Data) == 0:
		o.report("failed", len(data), len(data))
		return data
	case len(enc.Data) >= len(data) && !enc.Resized:
		o.report("larger", len(data), len(data))
		return data
	}

	o.report("optimized", len(data), len(enc.Data))
	return enc.Data
}

func (o *Optimizer) report(result string, before, after int) {
	if o == nil {
		return
	}
	if o.runsTotal != nil {
		o.runsTotal.WithLabelValues(result).Inc()
	}
	if o.bytesTotal != nil {
		o.bytesTotal.WithLabelValues("before").Add(float64(before))
		o.bytesTotal.WithLabelValues("after").Add(float64(after))
	}
	saved := 0.0
	if before > 0 {
		saved = 100 * float64(before-after) / float64(before)
	}
	o.logger.Debug("Image compression",
		zap.String("result", result),
		zap.Int("before_bytes", before),
		zap.Int("after_bytes", after),
		zap.Float64("saved_pct", saved),
	)
}
