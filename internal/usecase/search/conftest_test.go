package search

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kailas-cloud/vecsnap/internal/domain"
)

// --- Mocks ---

type mockImages struct {
	images map[string]*domain.StoredImage
	err    error
	calls  atomic.Int32
}

func newMockImages(ids ...string) *mockImages {
	m := &mockImages{images: map[string]*domain.StoredImage{}}
	for _, id := range ids {
		m.images[id] = &domain.StoredImage{ID: id, Data: []byte("img-" + id)}
	}
	return m
}

func (m *mockImages) Get(_ context.Context, id string) (*domain.StoredImage, error) {
	m.calls.Add(1)
	if m.err != nil {
		return nil, m.err
	}
	return m.images[id], nil
}

// mockEmbedder encodes the last image byte into the vector so the index can tell queries apart.
type mockEmbedder struct {
	calls atomic.Int32
	err   error
}

func (e *mockEmbedder) Embed(_ context.Context, image []byte) (domain.Vector, error) {
	e.calls.Add(1)
	if e.err != nil {
		return nil, e.err
	}
	return domain.Vector{float32(len(image)), float32(image[len(image)-1])}, nil
}

func hitsFor(query domain.Vector) []domain.SearchHit {
	return []domain.SearchHit{
		{ID: "match-" + string(rune(int(query[1]))), Score: 0.9},
		{ID: "other", Score: 0.5},
	}
}

type mockIndex struct {
	mu       sync.Mutex
	calls    int
	lastTopK int
	errs     []error // consumed one per call
}

func (m *mockIndex) Search(_ context.Context, query domain.Vector, topK int) ([]domain.SearchHit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.lastTopK = topK
	if m.calls <= len(m.errs) && m.errs[m.calls-1] != nil {
		return nil, m.errs[m.calls-1]
	}
	return hitsFor(query), nil
}

func (m *mockIndex) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// gatedIndex blocks each query until its gate is opened. Gates are keyed by
// the image id the query was built from.
type gatedIndex struct {
	mu    sync.Mutex
	gates map[string]chan struct{}
	calls atomic.Int32
}

func newGatedIndex() *gatedIndex {
	return &gatedIndex{gates: map[string]chan struct{}{}}
}

func (g *gatedIndex) gate(id string) chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	ch, ok := g.gates[id]
	if !ok {
		ch = make(chan struct{})
		g.gates[id] = ch
	}
	return ch
}

func (g *gatedIndex) open(id string) { close(g.gate(id)) }

func (g *gatedIndex) Search(ctx context.Context, query domain.Vector, _ int) ([]domain.SearchHit, error) {
	g.calls.Add(1)
	select {
	case <-g.gate(string(rune(int(query[1])))):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return hitsFor(query), nil
}

type mockResolver struct {
	vec  domain.Vector
	err  error
	last string
}

func (m *mockResolver) EmbedByID(_ context.Context, id string) (domain.Vector, error) {
	m.last = id
	return m.vec, m.err
}

type recordingIndex struct {
	query domain.Vector
	topK  int
	err   error
}

func (r *recordingIndex) Search(_ context.Context, query domain.Vector, topK int) ([]domain.SearchHit, error) {
	r.query = query
	r.topK = topK
	if r.err != nil {
		return nil, r.err
	}
	return []domain.SearchHit{{ID: "x", Score: 1}}, nil
}

// --- Helpers ---

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met within 2s")
		}
		time.Sleep(time.Millisecond)
	}
}

func waitClosed(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("channel not closed within 2s")
	}
}
