package embedding

import (
	"context"

	"github.com/kailas-cloud/vecsnap/internal/domain"
	"github.com/kailas-cloud/vecsnap/internal/domain/embedding"
)

// Backend is the opaque model: image bytes in, some vector shape out.
type Backend interface {
	// Load prepares the model (download, warm-up, reachability check).
	Load(ctx context.Context) error
	Embed(ctx context.Context, image []byte) (embedding.Output, error)
}

// ImageLookup reads stored images; nil result means not found.
type ImageLookup interface {
	Get(ctx context.Context, id string) (*domain.StoredImage, error)
}
