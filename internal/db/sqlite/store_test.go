package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kailas-cloud/vecsnap/internal/db"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "nested", "vecsnap.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.EnsureSchema(context.Background()))
	return s
}

func TestEnsureSchema_Idempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutRecord(ctx, db.Record{Key: "a", Data: []byte("x"), Timestamp: time.Now()}))
	require.NoError(t, s.EnsureSchema(ctx))

	_, err := s.GetRecord(ctx, "a")
	require.NoError(t, err, "second EnsureSchema must not drop data")
}

func TestPutGetRecord_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ts := time.Date(2026, 5, 4, 3, 2, 1, 123456789, time.FixedZone("X", 3600))

	require.NoError(t, s.PutRecord(ctx, db.Record{Key: "img-1", Data: []byte{0xff, 0xd8, 0x00}, Timestamp: ts}))

	rec, err := s.GetRecord(ctx, "img-1")
	require.NoError(t, err)
	assert.Equal(t, "img-1", rec.Key)
	assert.Equal(t, []byte{0xff, 0xd8, 0x00}, rec.Data)
	assert.True(t, rec.Timestamp.Equal(ts))
}

func TestPutRecord_ReplacesExisting(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutRecord(ctx, db.Record{Key: "a", Data: []byte("old"), Timestamp: time.Now()}))
	require.NoError(t, s.PutRecord(ctx, db.Record{Key: "a", Data: []byte("new"), Timestamp: time.Now()}))

	rec, err := s.GetRecord(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "new", string(rec.Data))

	all, err := s.ListRecords(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestGetRecord_NotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetRecord(context.Background(), "missing")
	assert.ErrorIs(t, err, db.ErrKeyNotFound)
}

func TestListRecords_NewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.PutRecord(ctx, db.Record{Key: "old", Data: []byte("1"), Timestamp: base}))
	require.NoError(t, s.PutRecord(ctx, db.Record{Key: "new", Data: []byte("3"), Timestamp: base.Add(2 * time.Second)}))
	require.NoError(t, s.PutRecord(ctx, db.Record{Key: "mid", Data: []byte("2"), Timestamp: base.Add(time.Millisecond)}))

	recs, err := s.ListRecords(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, []string{"new", "mid", "old"}, []string{recs[0].Key, recs[1].Key, recs[2].Key})
}

func TestListRecords_Empty(t *testing.T) {
	s := newTestStore(t)
	recs, err := s.ListRecords(context.Background())
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestDeleteAndClear(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, k := range []string{"a", "b", "c"} {
		require.NoError(t, s.PutRecord(ctx, db.Record{Key: k, Data: []byte(k), Timestamp: time.Now()}))
	}

	require.NoError(t, s.DeleteRecord(ctx, "a"))
	require.NoError(t, s.DeleteRecord(ctx, "a"), "deleting a missing row is a no-op")
	_, err := s.GetRecord(ctx, "a")
	assert.ErrorIs(t, err, db.ErrKeyNotFound)

	require.NoError(t, s.ClearRecords(ctx))
	recs, err := s.ListRecords(ctx)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestKV_GetSet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Get(ctx, "k")
	assert.ErrorIs(t, err, db.ErrKeyNotFound)

	require.NoError(t, s.Set(ctx, "k", []byte("v1")))
	require.NoError(t, s.Set(ctx, "k", []byte("v2")))

	v, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v2", string(v))
}

func TestConcurrentDistinctKeys(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := string(rune('a' + i))
			assert.NoError(t, s.PutRecord(ctx, db.Record{Key: key, Data: []byte(key), Timestamp: time.Now()}))
		}(i)
	}
	wg.Wait()

	recs, err := s.ListRecords(ctx)
	require.NoError(t, err)
	assert.Len(t, recs, 16)
}

func TestClosedStore(t *testing.T) {
	s, err := NewStore(filepath.Join(t.TempDir(), "closed.db"))
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close(), "double close is a no-op")

	err = s.PutRecord(context.Background(), db.Record{Key: "a", Timestamp: time.Now()})
	assert.True(t, errors.Is(err, db.ErrClosed))

	var dbErr *db.Error
	assert.ErrorAs(t, err, &dbErr)
	assert.Equal(t, db.OpPut, dbErr.Op)
}
