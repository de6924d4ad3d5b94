package image

import (
	"context"
	"sync"

	"github.com/kailas-cloud/vecsnap/internal/db"
)

// memStore implements the consumer interface for tests.
type memStore struct {
	mu          sync.Mutex
	records     map[string]db.Record
	schemaCalls int

	ensureSchemaFn func(ctx context.Context) error
	putFn          func(ctx context.Context, rec db.Record) error
	listFn         func(ctx context.Context) ([]db.Record, error)
}

func newMemStore() *memStore {
	return &memStore{records: map[string]db.Record{}}
}

func (m *memStore) EnsureSchema(ctx context.Context) error {
	m.mu.Lock()
	m.schemaCalls++
	m.mu.Unlock()
	if m.ensureSchemaFn != nil {
		return m.ensureSchemaFn(ctx)
	}
	return nil
}

func (m *memStore) PutRecord(ctx context.Context, rec db.Record) error {
	if m.putFn != nil {
		return m.putFn(ctx, rec)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.Key] = rec
	return nil
}

func (m *memStore) GetRecord(_ context.Context, key string) (db.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[key]
	if !ok {
		return db.Record{}, db.ErrKeyNotFound
	}
	return rec, nil
}

func (m *memStore) ListRecords(ctx context.Context) ([]db.Record, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]db.Record, 0, len(m.records))
	for _, rec := range m.records {
		out = append(out, rec)
	}
	return out, nil
}

func (m *memStore) DeleteRecord(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, key)
	return nil
}

func (m *memStore) ClearRecords(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = map[string]db.Record{}
	return nil
}
