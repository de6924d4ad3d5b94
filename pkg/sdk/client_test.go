package vecsnap

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/kailas-cloud/vecsnap/internal/domain"
	"github.com/kailas-cloud/vecsnap/internal/domain/embedding"
)

func TestNew_NoEmbedder(t *testing.T) {
	_, err := New(context.Background())
	if err == nil {
		t.Fatal("expected error when no embedder provided")
	}
}

func TestNew_UnknownDriver(t *testing.T) {
	cfg := &clientConfig{driver: "unknown"}
	_, err := createStore(context.Background(), cfg)
	if err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestNew_BadgerWithoutDir(t *testing.T) {
	cfg := &clientConfig{driver: driverBadger}
	if _, err := createStore(context.Background(), cfg); err == nil {
		t.Fatal("expected error for badger without directory")
	}
}

func TestNew_LoadFailure(t *testing.T) {
	emb := &loadingEmbedder{loadErr: errors.New("model missing")}
	_, err := New(context.Background(), WithEmbedder(emb))
	if err == nil {
		t.Fatal("expected error when the embedder fails to load")
	}
	if emb.loaded != 1 {
		t.Errorf("Load called %d times, want 1", emb.loaded)
	}
}

func TestCreateBackend(t *testing.T) {
	tests := []struct {
		name     string
		opt      Option
		provider string
	}{
		{"custom", WithEmbedder(&mockEmbedder{}), "custom"},
		{"inference", WithInferenceEmbedder("http://localhost:8080", "clip"), "inference"},
		{"openai", WithOpenAIEmbedder("sk-test", "", "clip"), "openai"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &clientConfig{}
			tt.opt.apply(cfg)
			backend, provider, err := createBackend(cfg)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if backend == nil {
				t.Fatal("nil backend")
			}
			if provider != tt.provider {
				t.Errorf("provider = %q, want %q", provider, tt.provider)
			}
		})
	}
}

func TestCreateOptimizer(t *testing.T) {
	cfg := &clientConfig{}
	WithoutOptimizer().apply(cfg)
	if createOptimizer(cfg) != nil {
		t.Error("expected nil optimizer when disabled")
	}

	WithOptimizer(60, 640).apply(cfg)
	WithMaxPixels(4_000_000).apply(cfg)
	if cfg.maxPixels != 4_000_000 {
		t.Errorf("maxPixels = %d, want 4000000", cfg.maxPixels)
	}
	if o := createOptimizer(cfg); o == nil || !o.Available() {
		t.Error("expected an available optimizer")
	}
}

func TestEmbedderAdapter(t *testing.T) {
	mock := &mockEmbedder{
		fn: func(_ context.Context, image []byte) ([]float32, error) {
			return []float32{3, 4}, nil
		},
	}

	adapter := &embedderAdapter{inner: mock}
	if err := adapter.Load(context.Background()); err != nil {
		t.Fatalf("load without Loader: %v", err)
	}
	out, err := adapter.Embed(context.Background(), []byte("img"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	flat, err := embedding.Flatten(out)
	if err != nil {
		t.Fatalf("flatten: %v", err)
	}
	if len(flat) != 2 || flat[0] != 3 {
		t.Errorf("flat = %v, want [3 4]", flat)
	}
}

func TestEmbedderAdapter_Error(t *testing.T) {
	mock := &mockEmbedder{
		fn: func(_ context.Context, _ []byte) ([]float32, error) {
			return nil, errors.New("provider down")
		},
	}

	adapter := &embedderAdapter{inner: mock}
	if _, err := adapter.Embed(context.Background(), []byte("img")); err == nil {
		t.Fatal("expected error from adapter")
	}
}

func TestEmbedderAdapter_Loader(t *testing.T) {
	emb := &loadingEmbedder{}
	adapter := &embedderAdapter{inner: emb}
	if err := adapter.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	if emb.loaded != 1 {
		t.Errorf("loaded = %d, want 1", emb.loaded)
	}
}

func TestClientOptions(t *testing.T) {
	cfg := &clientConfig{}

	WithValkey("localhost:6379", "secret").apply(cfg)
	if cfg.driver != driverValkey {
		t.Errorf("driver = %q, want valkey", cfg.driver)
	}
	if cfg.addrs[0] != "localhost:6379" {
		t.Errorf("addr = %q, want localhost:6379", cfg.addrs[0])
	}
	if cfg.password != "secret" {
		t.Errorf("password = %q, want secret", cfg.password)
	}

	cfg2 := &clientConfig{}
	WithRedis("localhost:6380", "pass").apply(cfg2)
	WithKeyPrefix("photos:").apply(cfg2)
	if cfg2.driver != driverRedis || cfg2.keyPrefix != "photos:" {
		t.Errorf("driver/prefix = %q/%q", cfg2.driver, cfg2.keyPrefix)
	}

	cfg3 := &clientConfig{}
	WithBadger("/tmp/snaps").apply(cfg3)
	if cfg3.driver != driverBadger || cfg3.path != "/tmp/snaps" || cfg3.inMemory {
		t.Errorf("badger cfg = %+v", cfg3)
	}
	WithBadgerInMemory().apply(cfg3)
	if !cfg3.inMemory {
		t.Error("expected in-memory badger")
	}

	cfg4 := &clientConfig{}
	WithSQLite("photos.db").apply(cfg4)
	WithDimensions(512).apply(cfg4)
	WithIndex("http://index:9000").apply(cfg4)
	WithIndexAPIKey("k").apply(cfg4)
	WithAutoPublish().apply(cfg4)
	WithEmbeddingCache(false).apply(cfg4)
	WithSearch(7, 3*time.Second, 2).apply(cfg4)
	if cfg4.driver != driverSQLite || cfg4.path != "photos.db" {
		t.Errorf("sqlite cfg = %q/%q", cfg4.driver, cfg4.path)
	}
	if cfg4.dimensions != 512 || cfg4.indexURL != "http://index:9000" || cfg4.indexAPIKey != "k" {
		t.Errorf("index cfg = %+v", cfg4)
	}
	if !cfg4.autoPublish || cfg4.cache {
		t.Errorf("autoPublish/cache = %v/%v", cfg4.autoPublish, cfg4.cache)
	}
	if cfg4.topK != 7 || cfg4.timeout != 3*time.Second || cfg4.retries != 2 {
		t.Errorf("search cfg = %d/%v/%d", cfg4.topK, cfg4.timeout, cfg4.retries)
	}

	cfg5 := &clientConfig{}
	logger := slog.Default()
	WithLogger(logger).apply(cfg5)
	if cfg5.logger != logger {
		t.Error("expected logger to be set")
	}
	reg := prometheus.NewRegistry()
	WithPrometheus(reg).apply(cfg5)
	if cfg5.metricsReg != reg {
		t.Error("expected metricsReg to be set")
	}
}

func TestClient_Close_NilStore(t *testing.T) {
	c := &Client{store: nil}
	c.Close()
}

func TestObserver_NilSafe(t *testing.T) {
	var obs *observer
	obs.observe("test", time.Now(), nil)
	obs.observe("test", time.Now(), errors.New("err"))
}

func TestObserver_WithPrometheus(t *testing.T) {
	reg := prometheus.NewRegistry()
	obs, err := newObserver(nil, reg)
	if err != nil {
		t.Fatalf("newObserver: %v", err)
	}

	obs.observe("image", time.Now().Add(-10*time.Millisecond), nil)
	obs.observe("image", time.Now(), errors.New("fail"))
	obs.observe("image", time.Now(), domain.ErrImageNotFound)
	obs.observe("session", time.Now(), domain.ErrSuperseded)

	if got := testutil.ToFloat64(obs.metrics.operations.WithLabelValues("image", "ok")); got != 1 {
		t.Errorf("ok = %v, want 1", got)
	}
	if got := testutil.ToFloat64(obs.metrics.operations.WithLabelValues("image", "error")); got != 1 {
		t.Errorf("error = %v, want 1", got)
	}
	if got := testutil.ToFloat64(obs.metrics.operations.WithLabelValues("image", "not_found")); got != 1 {
		t.Errorf("not_found = %v, want 1", got)
	}
	if got := testutil.ToFloat64(obs.metrics.operations.WithLabelValues("session", "superseded")); got != 1 {
		t.Errorf("superseded = %v, want 1", got)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	found := false
	for _, f := range families {
		if f.GetName() == "vecsnap_sdk_operations_total" {
			found = true
		}
	}
	if !found {
		t.Error("vecsnap_sdk_operations_total not found")
	}
}

func TestObserver_ReusesRegisteredMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := newObserver(nil, reg)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	second, err := newObserver(nil, reg)
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if first.metrics.operations != second.metrics.operations {
		t.Error("expected the second observer to reuse the registered counter")
	}
}

func TestObserver_WithLogger(t *testing.T) {
	obs, err := newObserver(slog.Default(), nil)
	if err != nil {
		t.Fatalf("newObserver: %v", err)
	}
	obs.observe("test.op", time.Now(), nil)
	obs.observe("test.op", time.Now(), errors.New("test error"), "image_id", "a")
	obs.observe("test.op", time.Now(), domain.ErrInvalidRequest)
}

// --- end to end over an in-memory store ---

// axisEmbedder maps the first byte of an image onto one of four axes.
var axisEmbedder = &mockEmbedder{
	fn: func(_ context.Context, image []byte) ([]float32, error) {
		v := []float32{0.1, 0.1, 0.1, 0.1}
		if len(image) > 0 {
			v[int(image[0])%4] += 1
		}
		return v, nil
	},
}

// echoIndex keeps upserted ids and answers every search with all of them,
// best dot product first.
type echoIndex struct {
	mu    sync.Mutex
	items map[string][]float32
}

func (e *echoIndex) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch r.URL.Path {
	case "/health":
		w.WriteHeader(http.StatusOK)
	case "/upsert":
		var req struct {
			Items []domain.UpsertItem `json:"items"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		for _, it := range req.Items {
			e.items[it.ID] = it.Vector
		}
	case "/delete":
		var req struct {
			IDs []string `json:"ids"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		for _, id := range req.IDs {
			delete(e.items, id)
		}
	case "/search":
		var req struct {
			Query []float32 `json:"query"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		var best domain.SearchHit
		hits := []domain.SearchHit{}
		for id, v := range e.items {
			var dot float32
			for i := range v {
				dot += v[i] * req.Query[i]
			}
			h := domain.SearchHit{ID: id, Score: dot}
			if dot > best.Score {
				best = h
			}
			hits = append(hits, h)
		}
		if best.ID != "" {
			hits = append([]domain.SearchHit{best}, hits...)
		}
		_ = json.NewEncoder(w).Encode(hits)
	}
}

func TestNew_EndToEnd(t *testing.T) {
	ctx := context.Background()
	idx := &echoIndex{items: map[string][]float32{}}
	srv := httptest.NewServer(idx)
	defer srv.Close()

	client, err := New(ctx,
		WithSQLite(":memory:"),
		WithEmbedder(axisEmbedder),
		WithDimensions(4),
		WithIndex(srv.URL),
		WithAutoPublish(),
		WithoutOptimizer(),
		WithSearch(3, 5*time.Second, 0),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer client.Close()

	if err := client.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}

	a, err := client.Ingest(ctx, []byte("aaaa"))
	if err != nil {
		t.Fatalf("ingest a: %v", err)
	}
	if _, err := client.Ingest(ctx, []byte("bbbb")); err != nil {
		t.Fatalf("ingest b: %v", err)
	}

	imgs, err := client.Images(ctx, 0)
	if err != nil || len(imgs) != 2 {
		t.Fatalf("images = %d, err = %v", len(imgs), err)
	}

	hits, err := client.Search(ctx, a.ID, 0)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) == 0 || hits[0].ID != a.ID {
		t.Fatalf("hits = %+v, want %s first", hits, a.ID)
	}

	st, err := client.Session(ctx, a.ID)
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	if st.Phase != PhaseDone || st.Image == nil || st.Image.ID != a.ID {
		t.Fatalf("state = %+v", st)
	}
	if cur := client.SessionState(); cur.Generation != st.Generation {
		t.Errorf("current generation = %d, want %d", cur.Generation, st.Generation)
	}

	if _, err := client.Session(ctx, "missing"); !errors.Is(err, ErrImageNotFound) {
		t.Errorf("session missing err = %v, want ErrImageNotFound", err)
	}

	if err := client.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	idx.mu.Lock()
	left := len(idx.items)
	idx.mu.Unlock()
	if left != 0 {
		t.Errorf("index still holds %d items after clear", left)
	}

	if h := client.Health(ctx); h.Status != "ok" {
		t.Errorf("health = %+v", h)
	}
}
