package db

import (
	"context"
	"time"
)

// Store is the local persistence facade combining all sub-interfaces.
type Store interface {
	Pinger
	SchemaManager
	RecordStore
	KVStore
	Close() error
}

// Pinger checks backend availability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// SchemaManager creates the backing schema. EnsureSchema is create-if-absent and never destructive.
type SchemaManager interface {
	EnsureSchema(ctx context.Context) error
}

// Record is one stored image row: {id, data, timestamp}.
type Record struct {
	Key       string
	Data      []byte
	Timestamp time.Time
}

// RecordStore provides keyed image records.
// Writes for one key are atomic; writes for distinct keys never interfere.
type RecordStore interface {
	PutRecord(ctx context.Context, rec Record) error
	GetRecord(ctx context.Context, key string) (Record, error)
	ListRecords(ctx context.Context) ([]Record, error)
	DeleteRecord(ctx context.Context, key string) error
	ClearRecords(ctx context.Context) error
}

// KVStore provides opaque key-value entries (embedding cache).
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}
