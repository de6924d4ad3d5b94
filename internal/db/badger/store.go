// Package badger implements db.Store on an embedded BadgerDB.
package badger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"

	"github.com/kailas-cloud/vecsnap/internal/db"
)

// Compile-time check: Store implements db.Store.
var _ db.Store = (*Store)(nil)

var (
	imgPrefix   = []byte("img:")
	kvPrefix    = []byte("kv:")
	schemaKey   = []byte("schema")
	schemaValue = []byte("1")
)

// Options configures the Badger store.
type Options struct {
	// Dir holds the data files. Required unless InMemory is set.
	Dir string
	// InMemory keeps everything in RAM.
	InMemory bool
	// Logger receives badger warnings and errors. Nil silences badger.
	Logger *zap.Logger
}

// Store implements db.Store backed by BadgerDB v4.
type Store struct {
	db *badgerdb.DB
}

// record is the msgpack value stored under img:<id>.
type record struct {
	Data      []byte `msgpack:"d"`
	Timestamp int64  `msgpack:"t"`
}

// NewStore opens a Badger database.
func NewStore(opts Options) (*Store, error) {
	if !opts.InMemory && opts.Dir == "" {
		return nil, errors.New("badger: Dir is required for on-disk mode")
	}

	dbOpts := badgerdb.DefaultOptions(opts.Dir)
	if opts.InMemory {
		dbOpts = badgerdb.DefaultOptions("").WithInMemory(true)
	}
	lg := opts.Logger
	if lg == nil {
		lg = zap.NewNop()
	}
	dbOpts = dbOpts.WithLogger(zapLogger{lg.Sugar().Named("badger")})

	bdb, err := badgerdb.Open(dbOpts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &Store{db: bdb}, nil
}

// Ping reports whether the database is open.
func (s *Store) Ping(_ context.Context) error {
	if s.db.IsClosed() {
		return &db.Error{Op: db.OpPing, Err: db.ErrClosed}
	}
	return nil
}

// EnsureSchema writes the schema marker if absent.
func (s *Store) EnsureSchema(_ context.Context) error {
	err := s.db.Update(func(txn *badgerdb.Txn) error {
		_, err := txn.Get(schemaKey)
		if errors.Is(err, badgerdb.ErrKeyNotFound) {
			return txn.Set(schemaKey, schemaValue)
		}
		return err
	})
	if err != nil {
		return &db.Error{Op: db.OpEnsureSchema, Err: mapErr(err)}
	}
	return nil
}

// PutRecord writes one image record in a single transaction.
func (s *Store) PutRecord(_ context.Context, rec db.Record) error {
	val, err := msgpack.Marshal(record{Data: rec.Data, Timestamp: rec.Timestamp.UnixNano()})
	if err != nil {
		return &db.Error{Op: db.OpPut, Err: err}
	}
	err = s.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set(imgKey(rec.Key), val)
	})
	if err != nil {
		return &db.Error{Op: db.OpPut, Err: mapErr(err)}
	}
	return nil
}

// GetRecord reads one image record. A missing key is db.ErrKeyNotFound.
func (s *Store) GetRecord(_ context.Context, key string) (db.Record, error) {
	var val []byte
	err := s.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(imgKey(key))
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badgerdb.ErrKeyNotFound) {
		return db.Record{}, db.ErrKeyNotFound
	}
	if err != nil {
		return db.Record{}, &db.Error{Op: db.OpGet, Err: mapErr(err)}
	}
	return decodeRecord(key, val)
}

// ListRecords iterates the img: prefix and returns records newest first.
func (s *Store) ListRecords(_ context.Context) ([]db.Record, error) {
	var out []db.Record
	err := s.db.View(func(txn *badgerdb.Txn) error {
		it := txn.NewIterator(badgerdb.IteratorOptions{
			PrefetchValues: true,
			PrefetchSize:   50,
			Prefix:         imgPrefix,
		})
		defer it.Close()

		for it.Seek(imgPrefix); it.ValidForPrefix(imgPrefix); it.Next() {
			item := it.Item()
			key := string(item.Key()[len(imgPrefix):])
			val, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			rec, err := decodeRecord(key, val)
			if err != nil {
				return err
			}
			out = append(out, rec)
		}
		return nil
	})
	if err != nil {
		return nil, &db.Error{Op: db.OpList, Err: mapErr(err)}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out, nil
}

// DeleteRecord removes one image record. Deleting a missing key is not an error.
func (s *Store) DeleteRecord(_ context.Context, key string) error {
	err := s.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Delete(imgKey(key))
	})
	if err != nil && !errors.Is(err, badgerdb.ErrKeyNotFound) {
		return &db.Error{Op: db.OpDelete, Err: mapErr(err)}
	}
	return nil
}

// ClearRecords drops every image record.
func (s *Store) ClearRecords(_ context.Context) error {
	if err := s.db.DropPrefix(imgPrefix); err != nil {
		return &db.Error{Op: db.OpClear, Err: mapErr(err)}
	}
	return nil
}

// Get reads a kv entry.
func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	var val []byte
	err := s.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(append(append([]byte{}, kvPrefix...), key...))
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badgerdb.ErrKeyNotFound) {
		return nil, db.ErrKeyNotFound
	}
	if err != nil {
		return nil, &db.Error{Op: db.OpGet, Err: mapErr(err)}
	}
	return val, nil
}

// Set writes a kv entry.
func (s *Store) Set(_ context.Context, key string, value []byte) error {
	err := s.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set(append(append([]byte{}, kvPrefix...), key...), value)
	})
	if err != nil {
		return &db.Error{Op: db.OpSet, Err: mapErr(err)}
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db.IsClosed() {
		return nil
	}
	return s.db.Close()
}

func imgKey(id string) []byte {
	return append(append([]byte{}, imgPrefix...), id...)
}

func decodeRecord(key string, val []byte) (db.Record, error) {
	var r record
	if err := msgpack.Unmarshal(val, &r); err != nil {
		return db.Record{}, fmt.Errorf("decode %s: %w", key, err)
	}
	return db.Record{Key: key, Data: r.Data, Timestamp: time.Unix(0, r.Timestamp)}, nil
}

func mapErr(err error) error {
	if errors.Is(err, badgerdb.ErrDBClosed) {
		return db.ErrClosed
	}
	return err
}

// zapLogger routes badger output to zap, dropping info and debug chatter.
type zapLogger struct {
	l *zap.SugaredLogger
}

func (z zapLogger) Errorf(f string, v ...interface{})   { z.l.Errorf(f, v...) }
func (z zapLogger) Warningf(f string, v ...interface{}) { z.l.Warnf(f, v...) }
func (zapLogger) Infof(string, ...interface{})          {}
func (zapLogger) Debugf(string, ...interface{})         {}
