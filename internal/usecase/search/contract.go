package search

import (
	"context"

	"github.com/kailas-cloud/vecsnap/internal/domain"
)

// ImageReader reads stored images; a nil image means not found.
type ImageReader interface {
	Get(ctx context.Context, id string) (*domain.StoredImage, error)
}

// Index runs nearest-neighbor queries. It validates and clamps on its own.
type Index interface {
	Search(ctx context.Context, query domain.Vector, topK int) ([]domain.SearchHit, error)
}

// IDEmbedder embeds a stored image by id.
type IDEmbedder interface {
	EmbedByID(ctx context.Context, id string) (domain.Vector, error)
}
