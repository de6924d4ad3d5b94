package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrCaptureAborted signals that the user cancelled or the device denied permission.
	ErrCaptureAborted = errors.New("capture aborted")
	// ErrCaptureUnavailable signals that the capture surface is not reachable.
	ErrCaptureUnavailable = errors.New("capture unavailable")
	// ErrNoPhoto signals that the device finished without producing a photo.
	ErrNoPhoto = errors.New("no photo")

	// ErrStorage signals a local store malfunction (not a missing record).
	ErrStorage = errors.New("storage error")
	// ErrImageNotFound signals a missing stored image.
	ErrImageNotFound = errors.New("image not found")

	// ErrUnrecognizedEmbeddingShape signals an embedding backend output of unknown shape.
	ErrUnrecognizedEmbeddingShape = errors.New("unrecognized embedding shape")
	// ErrEmbedderNotReady signals use of an embedding client before Init.
	ErrEmbedderNotReady = errors.New("embedder not ready")
	// ErrEmbeddingProviderError signals an embedding backend failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")

	// ErrDimensionMismatch signals a vector whose length differs from the index dimension.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	// ErrUpsertFailed signals a failed index upsert.
	ErrUpsertFailed = errors.New("upsert failed")
	// ErrSearchFailed signals a failed index search.
	ErrSearchFailed = errors.New("search failed")
	// ErrDeleteFailed signals a failed index delete.
	ErrDeleteFailed = errors.New("delete failed")
	// ErrPublishDisabled signals a publish attempt without a configured index.
	ErrPublishDisabled = errors.New("publishing disabled")

	// ErrEmptyRequestKey signals an orchestrated search without an image id.
	ErrEmptyRequestKey = errors.New("empty request key")
	// ErrSuperseded signals that a newer request key took over while waiting.
	ErrSuperseded = errors.New("request superseded")
	// ErrInvalidRequest signals malformed caller input.
	ErrInvalidRequest = errors.New("invalid request")
)

// DimensionMismatchError carries the expected and actual vector lengths.
type DimensionMismatchError struct {
	Expected int
	Actual   int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("%s: expected %d, got %d", ErrDimensionMismatch.Error(), e.Expected, e.Actual)
}

func (e *DimensionMismatchError) Unwrap() error { return ErrDimensionMismatch }

// NewDimensionMismatch creates a dimension mismatch error.
func NewDimensionMismatch(expected, actual int) error {
	return &DimensionMismatchError{Expected: expected, Actual: actual}
}

// IndexError describes a non-2xx or transport failure from the vector index service.
// Status is 0 when the request never produced a response.
type IndexError struct {
	Op     string
	Status int
	Body   string
	Err    error
}

func (e *IndexError) Error() string {
	msg := fmt.Sprintf("index %s failed", e.Op)
	if e.Status > 0 {
		msg += fmt.Sprintf(" (%d)", e.Status)
	}
	if e.Body != "" {
		msg += " " + e.Body
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the operation sentinel and the transport cause.
func (e *IndexError) Unwrap() []error {
	errs := []error{opSentinel(e.Op)}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

func opSentinel(op string) error {
	switch op {
	case "upsert":
		return ErrUpsertFailed
	case "search":
		return ErrSearchFailed
	case "delete":
		return ErrDeleteFailed
	default:
		return errors.New("index " + op + " failed")
	}
}
