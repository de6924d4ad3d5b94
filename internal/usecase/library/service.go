package library

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/vecsnap/internal/domain"
)

// Service manages the gallery of stored images and their index entries.
type Service struct {
	images   ImageStore
	embedder domain.Embedder
	index    Index // nil disables publishing
	logger   *zap.Logger
}

// New creates a library service. A nil index keeps the library local-only.
func New(images ImageStore, embedder domain.Embedder, index Index, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{images: images, embedder: embedder, index: index, logger: logger}
}

// PublishEnabled reports whether a remote index is configured.
func (s *Service) PublishEnabled() bool { return s.index != nil }

// List returns stored images, newest first. limit <= 0 returns all.
func (s *Service) List(ctx context.Context, limit int) ([]domain.StoredImage, error) {
	all, err := s.images.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

// Get returns one stored image or domain.ErrImageNotFound.
func (s *Service) Get(ctx context.Context, id string) (domain.StoredImage, error) {
	img, err := s.lookup(ctx, id)
	if err != nil {
		return domain.StoredImage{}, err
	}
	return *img, nil
}

// Delete removes the local record and, when publishing is enabled, the index entry.
// The local record is gone even if the remote delete fails.
func (s *Service) Delete(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("%w: image id is required", domain.ErrInvalidRequest)
	}
	if err := s.images.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete image %s: %w", id, err)
	}
	if s.index == nil {
		return nil
	}
	if err := s.index.Delete(ctx, []string{id}); err != nil {
		s.logger.Warn("Remote delete failed", zap.String("image_id", id), zap.Error(err))
		return fmt.Errorf("delete index entry %s: %w", id, err)
	}
	return nil
}

// Clear removes every stored image and, when publishing is enabled, their index entries.
func (s *Service) Clear(ctx context.Context) error {
	var ids []string
	if s.index != nil {
		all, err := s.images.GetAll(ctx)
		if err != nil {
			return fmt.Errorf("clear images: %w", err)
		}
		ids = make([]string, 0, len(all))
		for _, img := range all {
			ids = append(ids, img.ID)
		}
	}

	if err := s.images.Clear(ctx); err != nil {
		return fmt.Errorf("clear images: %w", err)
	}
	if len(ids) == 0 {
		return nil
	}
	if err := s.index.Delete(ctx, ids); err != nil {
		s.logger.Warn("Remote clear failed", zap.Int("count", len(ids)), zap.Error(err))
		return fmt.Errorf("delete index entries: %w", err)
	}
	return nil
}

// Publish embeds a stored image and upserts it into the index with
// timestamp and size metadata.
func (s *Service) Publish(ctx context.Context, id string) (domain.UpsertItem, error) {
	if s.index == nil {
		return domain.UpsertItem{}, domain.ErrPublishDisabled
	}
	img, err := s.lookup(ctx, id)
	if err != nil {
		return domain.UpsertItem{}, err
	}

	vec, err := s.embedder.Embed(ctx, img.Data)
	if err != nil {
		return domain.UpsertItem{}, fmt.Errorf("embed %s: %w", id, err)
	}

	item := domain.UpsertItem{
		ID:     img.ID,
		Vector: vec,
		Metadata: map[string]any{
			"timestamp": img.Timestamp.UTC().Format(time.RFC3339Nano),
			"bytes":     len(img.Data),
		},
	}
	if err := s.index.Upsert(ctx, []domain.UpsertItem{item}); err != nil {
		return domain.UpsertItem{}, fmt.Errorf("publish %s: %w", id, err)
	}

	s.logger.Info("Image published", zap.String("image_id", id), zap.Int("dim", len(vec)))
	return item, nil
}

func (s *Service) lookup(ctx context.Context, id string) (*domain.StoredImage, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: image id is required", domain.ErrInvalidRequest)
	}
	img, err := s.images.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get image %s: %w", id, err)
	}
	if img == nil {
		return nil, fmt.Errorf("get image %s: %w", id, domain.ErrImageNotFound)
	}
	return img, nil
}
