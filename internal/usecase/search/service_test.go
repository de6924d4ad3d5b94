package search

import (
	"context"
	"errors"
	"testing"

	"github.com/kailas-cloud/vecsnap/internal/domain"
)

func TestService_SearchByID(t *testing.T) {
	resolver := &mockResolver{vec: domain.Vector{1, 0}}
	idx := &recordingIndex{}
	svc := New(resolver, idx, 5)

	hits, err := svc.SearchByID(context.Background(), "img-1", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolver.last != "img-1" {
		t.Errorf("expected resolver called with img-1, got %q", resolver.last)
	}
	if idx.topK != 5 {
		t.Errorf("expected default topK 5, got %d", idx.topK)
	}
	if len(hits) != 1 || hits[0].ID != "x" {
		t.Errorf("unexpected hits: %+v", hits)
	}
}

func TestService_SearchByID_ExplicitTopK(t *testing.T) {
	idx := &recordingIndex{}
	svc := New(&mockResolver{vec: domain.Vector{1}}, idx, 5)

	if _, err := svc.SearchByID(context.Background(), "a", 42); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if idx.topK != 42 {
		t.Errorf("expected topK 42 passed through, got %d", idx.topK)
	}
}

func TestService_SearchByID_EmptyID(t *testing.T) {
	svc := New(&mockResolver{}, &recordingIndex{}, 5)
	_, err := svc.SearchByID(context.Background(), "", 0)
	if !errors.Is(err, domain.ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
}

func TestService_SearchByID_ResolverError(t *testing.T) {
	idx := &recordingIndex{}
	svc := New(&mockResolver{err: domain.ErrImageNotFound}, idx, 5)

	_, err := svc.SearchByID(context.Background(), "missing", 0)
	if !errors.Is(err, domain.ErrImageNotFound) {
		t.Fatalf("expected ErrImageNotFound, got %v", err)
	}
	if idx.query != nil {
		t.Error("index must not be queried when embedding fails")
	}
}

func TestService_SearchByVector_Normalizes(t *testing.T) {
	idx := &recordingIndex{}
	svc := New(&mockResolver{}, idx, 5)

	if _, err := svc.SearchByVector(context.Background(), domain.Vector{3, 4}, 2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !idx.query.IsUnit() {
		t.Errorf("expected unit query, got %v (norm %f)", idx.query, idx.query.Norm())
	}
	if idx.topK != 2 {
		t.Errorf("expected topK 2, got %d", idx.topK)
	}
}

func TestService_SearchByVector_Empty(t *testing.T) {
	svc := New(&mockResolver{}, &recordingIndex{}, 5)
	_, err := svc.SearchByVector(context.Background(), nil, 0)
	if !errors.Is(err, domain.ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
}

func TestService_IndexError(t *testing.T) {
	idx := &recordingIndex{err: &domain.IndexError{Op: "search", Status: 500}}
	svc := New(&mockResolver{vec: domain.Vector{1}}, idx, 5)

	_, err := svc.SearchByID(context.Background(), "a", 0)
	if !errors.Is(err, domain.ErrSearchFailed) {
		t.Fatalf("expected ErrSearchFailed, got %v", err)
	}
}

func TestNew_DefaultTopK(t *testing.T) {
	svc := New(&mockResolver{}, &recordingIndex{}, 0)
	if svc.defaultTopK != domain.DefaultVectorConfig().DefaultTopK {
		t.Errorf("expected fallback topK, got %d", svc.defaultTopK)
	}
}
