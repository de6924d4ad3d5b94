package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/vecsnap/internal/db"
)

const (
	fieldData = "data"
	fieldTS   = "ts"
)

// PutRecord writes one image hash. A single HSET is atomic per key.
func (s *Store) PutRecord(ctx context.Context, rec db.Record) error {
	cmd := s.b().Hset().Key(s.recordKey(rec.Key)).FieldValue().
		FieldValue(fieldData, rueidis.BinaryString(rec.Data)).
		FieldValue(fieldTS, rec.Timestamp.UTC().Format(time.RFC3339Nano)).
		Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		return &db.Error{Op: db.OpHSet, Err: err}
	}
	return nil
}

// GetRecord reads one image hash. A missing key is db.ErrKeyNotFound.
func (s *Store) GetRecord(ctx context.Context, key string) (db.Record, error) {
	cmd := s.b().Hgetall().Key(s.recordKey(key)).Build()
	m, err := s.do(ctx, cmd).AsStrMap()
	if err != nil {
		return db.Record{}, &db.Error{Op: db.OpHGetAll, Err: err}
	}
	if len(m) == 0 {
		return db.Record{}, db.ErrKeyNotFound
	}
	return recordFromHash(key, m)
}

// ListRecords scans all image hashes and fetches them in a single DoMulti round-trip.
func (s *Store) ListRecords(ctx context.Context) ([]db.Record, error) {
	keys, err := s.Scan(ctx, s.recordKey("*"))
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, nil
	}

	cmds := make([]rueidis.Completed, len(keys))
	for i, key := range keys {
		cmds[i] = s.b().Hgetall().Key(key).Build()
	}

	results := s.client.DoMulti(ctx, cmds...)
	out := make([]db.Record, 0, len(results))
	for i, res := range results {
		m, err := res.AsStrMap()
		if err != nil {
			return nil, &db.Error{Op: db.OpHGetAll, Err: fmt.Errorf("key %s: %w", keys[i], err)}
		}
		if len(m) == 0 {
			// deleted between SCAN and HGETALL
			continue
		}
		rec, err := recordFromHash(strings.TrimPrefix(keys[i], s.recordKey("")), m)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// DeleteRecord removes one image hash. Deleting a missing key is not an error.
func (s *Store) DeleteRecord(ctx context.Context, key string) error {
	cmd := s.b().Del().Key(s.recordKey(key)).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		return &db.Error{Op: db.OpDel, Err: err}
	}
	return nil
}

// ClearRecords removes every image hash under the store prefix.
func (s *Store) ClearRecords(ctx context.Context) error {
	keys, err := s.Scan(ctx, s.recordKey("*"))
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	cmd := s.b().Del().Key(keys...).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		return &db.Error{Op: db.OpDel, Err: err}
	}
	return nil
}

// Scan iterates keys matching a pattern.
func (s *Store) Scan(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	var cursor uint64

	for {
		cmd := s.b().Scan().Cursor(cursor).Match(pattern).Count(100).Build()
		res, err := s.do(ctx, cmd).AsScanEntry()
		if err != nil {
			return nil, &db.Error{Op: db.OpScan, Err: err}
		}
		keys = append(keys, res.Elements...)
		cursor = res.Cursor
		if cursor == 0 {
			break
		}
	}

	return keys, nil
}

func recordFromHash(key string, m map[string]string) (db.Record, error) {
	ts, err := time.Parse(time.RFC3339Nano, m[fieldTS])
	if err != nil {
		return db.Record{}, &db.Error{Op: db.OpHGetAll, Err: fmt.Errorf("key %s: bad timestamp: %w", key, err)}
	}
	return db.Record{Key: key, Data: []byte(m[fieldData]), Timestamp: ts}, nil
}
