package vectorindex

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// indexMetrics holds prometheus metrics for index operations.
type indexMetrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

func newIndexMetrics(reg prometheus.Registerer) (*indexMetrics, error) {
	m := &indexMetrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vecsnap",
			Subsystem: "index",
			Name:      "operations_total",
			Help:      "Total vector index operations by type and status.",
		}, []string{"operation", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "vecsnap",
			Subsystem: "index",
			Name:      "operation_duration_seconds",
			Help:      "Vector index operation duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
	}
	if err := registerOrReuse(reg, &m.operations); err != nil {
		return nil, err
	}
	if err := registerOrReuse(reg, &m.duration); err != nil {
		return nil, err
	}
	return m, nil
}

// registerOrReuse registers a collector or reuses an existing one.
func registerOrReuse[T prometheus.Collector](reg prometheus.Registerer, c *T) error {
	if err := reg.Register(*c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			existing, ok := are.ExistingCollector.(T)
			if !ok {
				return fmt.Errorf("vectorindex: metric already registered with incompatible type: %T", are.ExistingCollector)
			}
			*c = existing
			return nil
		}
		return fmt.Errorf("vectorindex: register metric: %w", err)
	}
	return nil
}

// observer provides logging and metrics for index operations.
type observer struct {
	logger  *zap.Logger
	metrics *indexMetrics
}

func newObserver(logger *zap.Logger, reg prometheus.Registerer) (*observer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var m *indexMetrics
	if reg != nil {
		var err error
		m, err = newIndexMetrics(reg)
		if err != nil {
			return nil, err
		}
	}
	return &observer{logger: logger, metrics: m}, nil
}

// observe is deferred with a pointer to the named error result.
func (o *observer) observe(op string, start time.Time, errp *error) {
	if o == nil {
		return
	}
	dur := time.Since(start)
	err := *errp

	if o.metrics != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		o.metrics.operations.WithLabelValues(op, status).Inc()
		o.metrics.duration.WithLabelValues(op).Observe(dur.Seconds())
	}

	if err != nil {
		o.logger.Warn("Index operation failed",
			zap.String("op", op),
			zap.Duration("duration", dur),
			zap.Error(err),
		)
	} else {
		o.logger.Debug("Index operation completed",
			zap.String("op", op),
			zap.Duration("duration", dur),
		)
	}
}
