package vecsnap

import "github.com/kailas-cloud/vecsnap/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrCaptureAborted             = domain.ErrCaptureAborted
	ErrCaptureUnavailable         = domain.ErrCaptureUnavailable
	ErrNoPhoto                    = domain.ErrNoPhoto
	ErrStorage                    = domain.ErrStorage
	ErrImageNotFound              = domain.ErrImageNotFound
	ErrUnrecognizedEmbeddingShape = domain.ErrUnrecognizedEmbeddingShape
	ErrEmbedderNotReady           = domain.ErrEmbedderNotReady
	ErrEmbeddingProviderError     = domain.ErrEmbeddingProviderError
	ErrDimensionMismatch          = domain.ErrDimensionMismatch
	ErrUpsertFailed               = domain.ErrUpsertFailed
	ErrSearchFailed               = domain.ErrSearchFailed
	ErrDeleteFailed               = domain.ErrDeleteFailed
	ErrPublishDisabled            = domain.ErrPublishDisabled
	ErrEmptyRequestKey            = domain.ErrEmptyRequestKey
	ErrSuperseded                 = domain.ErrSuperseded
	ErrInvalidRequest             = domain.ErrInvalidRequest
)

// DimensionMismatchError carries the expected and actual vector lengths.
type DimensionMismatchError = domain.DimensionMismatchError
