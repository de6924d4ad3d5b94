package vecsnap

import (
	"context"

	"github.com/kailas-cloud/vecsnap/internal/domain"
	healthuc "github.com/kailas-cloud/vecsnap/internal/usecase/health"
	searchuc "github.com/kailas-cloud/vecsnap/internal/usecase/search"
)

// --- ingestUseCase mock ---

type mockIngestUC struct {
	ingestFn func(ctx context.Context, data []byte) (domain.StoredImage, error)
}

func (m *mockIngestUC) IngestBytes(ctx context.Context, data []byte) (domain.StoredImage, error) {
	return m.ingestFn(ctx, data)
}

// --- libraryUseCase mock ---

type mockLibraryUC struct {
	listFn    func(ctx context.Context, limit int) ([]domain.StoredImage, error)
	getFn     func(ctx context.Context, id string) (domain.StoredImage, error)
	deleteFn  func(ctx context.Context, id string) error
	clearFn   func(ctx context.Context) error
	publishFn func(ctx context.Context, id string) (domain.UpsertItem, error)
}

func (m *mockLibraryUC) List(ctx context.Context, limit int) ([]domain.StoredImage, error) {
	return m.listFn(ctx, limit)
}

func (m *mockLibraryUC) Get(ctx context.Context, id string) (domain.StoredImage, error) {
	return m.getFn(ctx, id)
}

func (m *mockLibraryUC) Delete(ctx context.Context, id string) error {
	return m.deleteFn(ctx, id)
}

func (m *mockLibraryUC) Clear(ctx context.Context) error {
	return m.clearFn(ctx)
}

func (m *mockLibraryUC) Publish(ctx context.Context, id string) (domain.UpsertItem, error) {
	return m.publishFn(ctx, id)
}

// --- searchUseCase mock ---

type mockSearchUC struct {
	byIDFn     func(ctx context.Context, id string, topK int) ([]domain.SearchHit, error)
	byVectorFn func(ctx context.Context, vec domain.Vector, topK int) ([]domain.SearchHit, error)
}

func (m *mockSearchUC) SearchByID(ctx context.Context, id string, topK int) ([]domain.SearchHit, error) {
	return m.byIDFn(ctx, id, topK)
}

func (m *mockSearchUC) SearchByVector(
	ctx context.Context, vec domain.Vector, topK int,
) ([]domain.SearchHit, error) {
	return m.byVectorFn(ctx, vec, topK)
}

// --- sessionUseCase mock ---

type mockSessionUC struct {
	searchFn func(ctx context.Context, key string) (searchuc.Snapshot, error)
	snap     searchuc.Snapshot
}

func (m *mockSessionUC) Search(ctx context.Context, key string) (searchuc.Snapshot, error) {
	return m.searchFn(ctx, key)
}

func (m *mockSessionUC) Snapshot() searchuc.Snapshot { return m.snap }

// --- healthUseCase mock ---

type mockHealthUC struct {
	report healthuc.Report
}

func (m *mockHealthUC) Check(context.Context) healthuc.Report { return m.report }

// --- Embedder mock ---

type mockEmbedder struct {
	fn func(ctx context.Context, image []byte) ([]float32, error)
}

func (m *mockEmbedder) Embed(ctx context.Context, image []byte) ([]float32, error) {
	return m.fn(ctx, image)
}

type loadingEmbedder struct {
	mockEmbedder
	loadErr error
	loaded  int
}

func (l *loadingEmbedder) Load(context.Context) error {
	l.loaded++
	return l.loadErr
}

// --- helpers ---

func testClient(
	ingestSvc ingestUseCase,
	librarySvc libraryUseCase,
	searchSvc searchUseCase,
	sessionSvc sessionUseCase,
) *Client {
	return &Client{
		ingestSvc:  ingestSvc,
		librarySvc: librarySvc,
		searchSvc:  searchSvc,
		sessionSvc: sessionSvc,
	}
}
