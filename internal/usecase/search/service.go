package search

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/vecsnap/internal/domain"
)

// Service answers one-shot similarity queries without orchestrator state.
type Service struct {
	byID        IDEmbedder
	index       Index
	defaultTopK int
}

// New creates a search service. defaultTopK applies when callers pass zero.
func New(byID IDEmbedder, index Index, defaultTopK int) *Service {
	if defaultTopK <= 0 {
		defaultTopK = domain.DefaultVectorConfig().DefaultTopK
	}
	return &Service{byID: byID, index: index, defaultTopK: defaultTopK}
}

// SearchByID embeds the stored image and queries the index.
func (s *Service) SearchByID(ctx context.Context, id string, topK int) ([]domain.SearchHit, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: image id is required", domain.ErrInvalidRequest)
	}
	vec, err := s.byID.EmbedByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.query(ctx, vec, topK)
}

// SearchByVector normalizes a caller-supplied vector and queries the index.
func (s *Service) SearchByVector(ctx context.Context, vec domain.Vector, topK int) ([]domain.SearchHit, error) {
	if len(vec) == 0 {
		return nil, fmt.Errorf("%w: vector is empty", domain.ErrInvalidRequest)
	}
	return s.query(ctx, vec.Normalize(), topK)
}

func (s *Service) query(ctx context.Context, vec domain.Vector, topK int) ([]domain.SearchHit, error) {
	if topK == 0 {
		topK = s.defaultTopK
	}
	hits, err := s.index.Search(ctx, vec, topK)
	if err != nil {
		return nil, fmt.Errorf("index search: %w", err)
	}
	return hits, nil
}
