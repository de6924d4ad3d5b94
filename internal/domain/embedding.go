package domain

import "context"

// Embedder is the image vectorization contract shared between layers.
// Implementations return L2-normalized vectors.
type Embedder interface {
	Embed(ctx context.Context, image []byte) (Vector, error)
}

// HealthChecker verifies backend availability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}
