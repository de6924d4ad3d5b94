package vecsnap

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/vecsnap/internal/domain/embedding"
)

// Embedder converts image bytes to a vector.
// The SDK normalizes the result to unit length.
type Embedder interface {
	Embed(ctx context.Context, image []byte) ([]float32, error)
}

// Loader is implemented by embedders that need a warm-up step
// (model download, reachability check). New calls Load once.
type Loader interface {
	Load(ctx context.Context) error
}

// embedderAdapter wraps a public Embedder as an internal embedding backend.
type embedderAdapter struct {
	inner Embedder
}

func (a *embedderAdapter) Load(ctx context.Context) error {
	if l, ok := a.inner.(Loader); ok {
		return l.Load(ctx)
	}
	return nil
}

func (a *embedderAdapter) Embed(ctx context.Context, image []byte) (embedding.Output, error) {
	v, err := a.inner.Embed(ctx, image)
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	return embedding.FlatVector(v), nil
}
