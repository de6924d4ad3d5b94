package db

import "errors"

// Sentinel errors for database operations.
var (
	ErrKeyNotFound = errors.New("db: key not found")
	ErrClosed      = errors.New("db: store closed")
)

// Op names used for error context.
const (
	OpEnsureSchema = "ENSURE_SCHEMA"
	OpPut          = "PUT"
	OpGet          = "GET"
	OpList         = "LIST"
	OpDelete       = "DELETE"
	OpClear        = "CLEAR"
	OpSet          = "SET"
	OpPing         = "PING"
	OpHSet         = "HSET"
	OpHGetAll      = "HGETALL"
	OpDel          = "DEL"
	OpScan         = "SCAN"
)

// Error wraps an underlying error with the operation name for diagnostics.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }
