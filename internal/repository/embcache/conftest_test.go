package embcache

import (
	"context"
	"sync"

	"github.com/kailas-cloud/vecsnap/internal/db"
	"github.com/kailas-cloud/vecsnap/internal/domain"
)

type countingEmbedder struct {
	result domain.Vector
	err    error
	calls  int
}

func (e *countingEmbedder) Embed(_ context.Context, _ []byte) (domain.Vector, error) {
	e.calls++
	return e.result, e.err
}

// memKV is an in-memory kv; getErr and setErr force failures.
type memKV struct {
	mu     sync.Mutex
	data   map[string][]byte
	getErr error
	setErr error
}

func newMemKV() *memKV { return &memKV{data: map[string][]byte{}} }

func (m *memKV) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	v, ok := m.data[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return v, nil
}

func (m *memKV) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.data[key] = value
	return nil
}

func (m *memKV) keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.data))
	for k := range m.data {
		out = append(out, k)
	}
	return out
}
