package health

import (
	"context"

	"github.com/kailas-cloud/vecsnap/internal/domain"
)

// StorePinger checks local store availability.
type StorePinger interface {
	Ping(ctx context.Context) error
}

// IndexChecker reports vector index readiness.
type IndexChecker interface {
	Health(ctx context.Context) (domain.IndexHealth, error)
}

// EmbeddingChecker checks embedding provider availability.
type EmbeddingChecker interface {
	HealthCheck(ctx context.Context) error
}
