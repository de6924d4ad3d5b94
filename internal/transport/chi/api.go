package chi

import (
	"time"
)

// ErrorResponseCode is the machine-readable error code of an ErrorResponse.
type ErrorResponseCode string

// Error codes.
const (
	ErrorResponseCodeBadRequest             ErrorResponseCode = "bad_request"
	ErrorResponseCodeUnauthorized           ErrorResponseCode = "unauthorized"
	ErrorResponseCodeImageNotFound          ErrorResponseCode = "image_not_found"
	ErrorResponseCodeNoPhoto                ErrorResponseCode = "no_photo"
	ErrorResponseCodePayloadTooLarge        ErrorResponseCode = "payload_too_large"
	ErrorResponseCodeVectorDimMismatch      ErrorResponseCode = "vector_dim_mismatch"
	ErrorResponseCodeEmbeddingNotReady      ErrorResponseCode = "embedding_not_ready"
	ErrorResponseCodeEmbeddingProviderError ErrorResponseCode = "embedding_provider_error"
	ErrorResponseCodeEmbeddingShape         ErrorResponseCode = "unrecognized_embedding_shape"
	ErrorResponseCodeIndexError             ErrorResponseCode = "index_error"
	ErrorResponseCodePublishDisabled        ErrorResponseCode = "publish_disabled"
	ErrorResponseCodeSuperseded             ErrorResponseCode = "superseded"
	ErrorResponseCodeStorageError           ErrorResponseCode = "storage_error"
	ErrorResponseCodeInternalError          ErrorResponseCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    ErrorResponseCode `json:"code"`
	Message string            `json:"message"`
}

// ImageSummary describes a stored image without its bytes.
type ImageSummary struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Bytes     int       `json:"bytes"`
}

// ImageResponse is one stored image rendered as a data URL.
type ImageResponse struct {
	ImageSummary
	DataURL string `json:"dataUrl"`
}

// ImageListResponse lists stored images, newest first.
type ImageListResponse struct {
	Items []ImageSummary `json:"items"`
	Count int            `json:"count"`
}

// ListImagesParams are the query parameters of GET /images.
type ListImagesParams struct {
	Limit *int `form:"limit,omitempty" json:"limit,omitempty"`
}

// SearchRequest is the body of POST /search. One of ImageID or Vector is required.
type SearchRequest struct {
	ImageID *string   `json:"imageId,omitempty"`
	Vector  []float32 `json:"vector,omitempty"`
	TopK    *int      `json:"topK,omitempty"`
}

// SearchResult is one neighbor.
type SearchResult struct {
	ID       string         `json:"id"`
	Score    float32        `json:"score"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// SearchResponse is the body of a successful search.
type SearchResponse struct {
	Results []SearchResult `json:"results"`
}

// SessionSearchRequest is the body of POST /session/search.
type SessionSearchRequest struct {
	ImageID string `json:"imageId"`
}

// SessionResponse renders the orchestrator snapshot.
type SessionResponse struct {
	Key        string         `json:"key"`
	Generation uint64         `json:"generation"`
	Phase      string         `json:"phase"`
	Image      *ImageResponse `json:"image,omitempty"`
	Results    []SearchResult `json:"results,omitempty"`
	Error      *ErrorResponse `json:"error,omitempty"`
}

// PublishResponse is the body of a successful publish.
type PublishResponse struct {
	ID         string         `json:"id"`
	Dimensions int            `json:"dimensions"`
	Metadata   map[string]any `json:"metadata"`
}

// IndexHealthResponse is the vector index readiness report.
type IndexHealthResponse struct {
	OK    bool `json:"ok"`
	Count int  `json:"count"`
	Dim   int  `json:"dim"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string               `json:"status"`
	Checks map[string]string    `json:"checks"`
	Index  *IndexHealthResponse `json:"index,omitempty"`
}
