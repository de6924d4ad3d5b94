package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/vecsnap/internal/config"
	"github.com/kailas-cloud/vecsnap/internal/domain"
)

const testDims = 4

// fakeInference answers GET /health and POST /embed, mapping the first
// byte of the image onto one of four axes.
type fakeInference struct {
	unhealthy atomic.Bool
	embeds    atomic.Int32
}

func (f *fakeInference) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/health":
		if f.unhealthy.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	case "/embed":
		f.embeds.Add(1)
		body, _ := io.ReadAll(r.Body)
		v := []float32{0.1, 0.1, 0.1, 0.1}
		if len(body) > 0 {
			v[int(body[0])%testDims] += 1
		}
		_ = json.NewEncoder(w).Encode(v)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// fakeIndex is an in-memory ANN service ranking by dot product.
type fakeIndex struct {
	mu    sync.Mutex
	items map[string]domain.Vector
}

func (f *fakeIndex) has(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.items[id]
	return ok
}

func (f *fakeIndex) size() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.items)
}

func (f *fakeIndex) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch r.URL.Path {
	case "/health":
		_ = json.NewEncoder(w).Encode(domain.IndexHealth{OK: true, Count: len(f.items), Dim: testDims})
	case "/upsert":
		var req struct {
			Items []domain.UpsertItem `json:"items"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		for _, it := range req.Items {
			f.items[it.ID] = it.Vector
		}
	case "/delete":
		var req struct {
			IDs []string `json:"ids"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		for _, id := range req.IDs {
			delete(f.items, id)
		}
	case "/search":
		var req struct {
			Query []float32 `json:"query"`
			TopK  int       `json:"top_k"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		hits := make([]domain.SearchHit, 0, len(f.items))
		for id, v := range f.items {
			var dot float32
			for i := range v {
				dot += v[i] * req.Query[i]
			}
			hits = append(hits, domain.SearchHit{ID: id, Score: dot})
		}
		sort.Slice(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
		if len(hits) > req.TopK {
			hits = hits[:req.TopK]
		}
		_ = json.NewEncoder(w).Encode(hits)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

type testEnv struct {
	cfg       config.Config
	inference *fakeInference
	index     *fakeIndex
}

// newTestEnv starts fake inference and index services and returns a config
// pointing at them with a SQLite file in a temp dir.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		inference: &fakeInference{},
		index:     &fakeIndex{items: map[string]domain.Vector{}},
	}
	infSrv := httptest.NewServer(env.inference)
	t.Cleanup(infSrv.Close)
	idxSrv := httptest.NewServer(env.index)
	t.Cleanup(idxSrv.Close)

	env.cfg = config.Config{
		HTTP: config.HTTPConfig{Port: 8080},
		Database: config.DatabaseConfig{
			Driver: config.DriverSQLite,
			Path:   filepath.Join(t.TempDir(), "vecsnap.db"),
		},
		Embedding: config.EmbeddingConfig{
			Provider:   config.ProviderInference,
			BaseURL:    infSrv.URL,
			Model:      "axes",
			Dimensions: testDims,
		},
		Index: config.IndexConfig{
			BaseURL:    idxSrv.URL,
			Dimensions: testDims,
		},
		Optimizer: config.OptimizerConfig{Disabled: true},
	}
	env.cfg.ApplyDefaults()
	if err := env.cfg.Validate(); err != nil {
		t.Fatalf("test config: %v", err)
	}
	return env
}

// loader builds the application the way loadApplication does, from env.cfg.
func (e *testEnv) loader() loader {
	return func(cmd *cobra.Command) (*application, error) {
		cfg := e.cfg
		if err := applyCaptureFlags(cmd, &cfg.Capture); err != nil {
			return nil, err
		}
		return newApplication(cmd.Context(), cfg, zap.NewNop(), cmd.InOrStdin(), nil)
	}
}

// run executes one command line and returns its stdout.
func (e *testEnv) run(t *testing.T, stdin []byte, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd("test", e.loader())
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetIn(bytes.NewReader(stdin))
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func (e *testEnv) mustRun(t *testing.T, stdin []byte, args ...string) string {
	t.Helper()
	out, err := e.run(t, stdin, args...)
	if err != nil {
		t.Fatalf("%v: %v", args, err)
	}
	return out
}

// captureJSON captures one photo and returns its id.
func (e *testEnv) captureJSON(t *testing.T, stdin []byte, args ...string) string {
	t.Helper()
	out := e.mustRun(t, stdin, append([]string{"capture", "--json"}, args...)...)
	var imgs []imageJSON
	if err := json.Unmarshal([]byte(out), &imgs); err != nil {
		t.Fatalf("decode capture output %q: %v", out, err)
	}
	if len(imgs) != 1 || imgs[0].ID == "" {
		t.Fatalf("capture output = %+v", imgs)
	}
	return imgs[0].ID
}
