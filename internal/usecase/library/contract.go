package library

import (
	"context"

	"github.com/kailas-cloud/vecsnap/internal/domain"
)

// ImageStore is the local image cache.
type ImageStore interface {
	Get(ctx context.Context, id string) (*domain.StoredImage, error)
	GetAll(ctx context.Context) ([]domain.StoredImage, error)
	Delete(ctx context.Context, id string) error
	Clear(ctx context.Context) error
}

// Index is the remote vector index, write side.
type Index interface {
	Upsert(ctx context.Context, items []domain.UpsertItem) error
	Delete(ctx context.Context, ids []string) error
}
