// Package image is the local persistent image cache keyed by image id.
package image

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/kailas-cloud/vecsnap/internal/db"
	"github.com/kailas-cloud/vecsnap/internal/domain"
)

// store is the consumer interface for image records (ISP).
type store interface {
	EnsureSchema(ctx context.Context) error
	PutRecord(ctx context.Context, rec db.Record) error
	GetRecord(ctx context.Context, key string) (db.Record, error)
	ListRecords(ctx context.Context) ([]db.Record, error)
	DeleteRecord(ctx context.Context, key string) error
	ClearRecords(ctx context.Context) error
}

// Repo stores captured images. Safe for concurrent use.
type Repo struct {
	store store

	mu    sync.Mutex
	ready bool
}

// New creates an image repository. The schema is created on first use.
func New(s store) *Repo {
	return &Repo{store: s}
}

// Put writes one image record, replacing any previous record with the same id.
func (r *Repo) Put(ctx context.Context, id string, data []byte, ts time.Time) error {
	if err := r.ensureSchema(ctx); err != nil {
		return err
	}
	if err := r.store.PutRecord(ctx, db.Record{Key: id, Data: data, Timestamp: ts}); err != nil {
		return storageErr("put "+id, err)
	}
	return nil
}

// Get returns the image with the given id, or nil when no record exists.
func (r *Repo) Get(ctx context.Context, id string) (*domain.StoredImage, error) {
	if err := r.ensureSchema(ctx); err != nil {
		return nil, err
	}
	rec, err := r.store.GetRecord(ctx, id)
	if errors.Is(err, db.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("get "+id, err)
	}
	img := toDomain(rec)
	return &img, nil
}

// GetAll returns every stored image, newest first.
func (r *Repo) GetAll(ctx context.Context) ([]domain.StoredImage, error) {
	if err := r.ensureSchema(ctx); err != nil {
		return nil, err
	}
	recs, err := r.store.ListRecords(ctx)
	if err != nil {
		return nil, storageErr("list", err)
	}

	out := make([]domain.StoredImage, 0, len(recs))
	for _, rec := range recs {
		out = append(out, toDomain(rec))
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out, nil
}

// Delete removes one image. Missing ids are ignored.
func (r *Repo) Delete(ctx context.Context, id string) error {
	if err := r.ensureSchema(ctx); err != nil {
		return err
	}
	if err := r.store.DeleteRecord(ctx, id); err != nil {
		return storageErr("delete "+id, err)
	}
	return nil
}

// Clear removes every image.
func (r *Repo) Clear(ctx context.Context) error {
	if err := r.ensureSchema(ctx); err != nil {
		return err
	}
	if err := r.store.ClearRecords(ctx); err != nil {
		return storageErr("clear", err)
	}
	return nil
}

// ensureSchema runs EnsureSchema once. A failed attempt is retried on the next call.
func (r *Repo) ensureSchema(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ready {
		return nil
	}
	if err := r.store.EnsureSchema(ctx); err != nil {
		return storageErr("ensure schema", err)
	}
	r.ready = true
	return nil
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", domain.ErrStorage, op, err)
}

func toDomain(rec db.Record) domain.StoredImage {
	return domain.StoredImage{ID: rec.Key, Data: rec.Data, Timestamp: rec.Timestamp}
}
