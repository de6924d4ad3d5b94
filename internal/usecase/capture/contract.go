package capture

import (
	"context"
	"time"

	"github.com/kailas-cloud/vecsnap/internal/domain"
)

// Device acquires one photo. Implementations live in transport/device.
type Device interface {
	Acquire(ctx context.Context) ([]byte, error)
}

// Optimizer shrinks image bytes; it never fails.
type Optimizer interface {
	Optimize(ctx context.Context, data []byte) []byte
}

// ImageStore persists captured images.
type ImageStore interface {
	Put(ctx context.Context, id string, data []byte, ts time.Time) error
}

// Publisher pushes a stored image into the remote index.
type Publisher interface {
	Publish(ctx context.Context, id string) (domain.UpsertItem, error)
}
