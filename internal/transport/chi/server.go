package chi

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/vecsnap/internal/domain"
	logpkg "github.com/kailas-cloud/vecsnap/internal/logger"
	healthuc "github.com/kailas-cloud/vecsnap/internal/usecase/health"
	searchuc "github.com/kailas-cloud/vecsnap/internal/usecase/search"
)

// Ingestor optimizes and stores uploaded bytes.
type Ingestor interface {
	IngestBytes(ctx context.Context, data []byte) (domain.StoredImage, error)
}

// Library manages stored images.
type Library interface {
	List(ctx context.Context, limit int) ([]domain.StoredImage, error)
	Get(ctx context.Context, id string) (domain.StoredImage, error)
	Delete(ctx context.Context, id string) error
	Clear(ctx context.Context) error
	Publish(ctx context.Context, id string) (domain.UpsertItem, error)
}

// Searcher answers one-shot similarity queries.
type Searcher interface {
	SearchByID(ctx context.Context, id string, topK int) ([]domain.SearchHit, error)
	SearchByVector(ctx context.Context, vec domain.Vector, topK int) ([]domain.SearchHit, error)
}

// Session is the orchestrated search of the most recent image.
type Session interface {
	Search(ctx context.Context, key string) (searchuc.Snapshot, error)
	Snapshot() searchuc.Snapshot
}

// HealthChecker aggregates component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// errorMapping binds a sentinel to its HTTP status and code.
type errorMapping struct {
	sentinel error
	status   int
	code     ErrorResponseCode
}

// errorMappings is ordered: the first match wins.
var errorMappings = []errorMapping{
	{domain.ErrInvalidRequest, http.StatusBadRequest, ErrorResponseCodeBadRequest},
	{domain.ErrEmptyRequestKey, http.StatusBadRequest, ErrorResponseCodeBadRequest},
	{domain.ErrImageNotFound, http.StatusNotFound, ErrorResponseCodeImageNotFound},
	{domain.ErrNoPhoto, http.StatusBadRequest, ErrorResponseCodeNoPhoto},
	{domain.ErrDimensionMismatch, http.StatusBadRequest, ErrorResponseCodeVectorDimMismatch},
	{domain.ErrPublishDisabled, http.StatusNotImplemented, ErrorResponseCodePublishDisabled},
	{domain.ErrSuperseded, http.StatusConflict, ErrorResponseCodeSuperseded},
	{domain.ErrEmbedderNotReady, http.StatusServiceUnavailable, ErrorResponseCodeEmbeddingNotReady},
	{domain.ErrUnrecognizedEmbeddingShape, http.StatusBadGateway, ErrorResponseCodeEmbeddingShape},
	{domain.ErrEmbeddingProviderError, http.StatusBadGateway, ErrorResponseCodeEmbeddingProviderError},
	{domain.ErrUpsertFailed, http.StatusBadGateway, ErrorResponseCodeIndexError},
	{domain.ErrSearchFailed, http.StatusBadGateway, ErrorResponseCodeIndexError},
	{domain.ErrDeleteFailed, http.StatusBadGateway, ErrorResponseCodeIndexError},
	{domain.ErrStorage, http.StatusInternalServerError, ErrorResponseCodeStorageError},
}

// Server implements ServerInterface.
type Server struct {
	ingest         Ingestor
	library        Library
	search         Searcher
	session        Session
	health         HealthChecker
	maxUploadBytes int64
	logger         *zap.Logger
	errorHandlers  []errorHandler
}

var _ ServerInterface = (*Server)(nil)

// NewServer creates an HTTP API server.
func NewServer(
	ingest Ingestor,
	library Library,
	search Searcher,
	session Session,
	health HealthChecker,
	maxUploadBytes int64,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxUploadBytes <= 0 {
		maxUploadBytes = 20 << 20
	}
	s := &Server{
		ingest:         ingest,
		library:        library,
		search:         search,
		session:        session,
		health:         health,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
	}
	s.errorHandlers = []errorHandler{dimensionMismatchHandler}
	for _, m := range errorMappings {
		s.errorHandlers = append(s.errorHandlers, sentinelHandler(m.sentinel, m.status, m.code))
	}
	return s
}

// UploadImage handles POST /images. The body is raw image bytes, or JSON
// {"image": "<data URL or base64>"} when sent as application/json.
func (s *Server) UploadImage(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxUploadBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, ErrorResponseCodePayloadTooLarge,
				fmt.Sprintf("image exceeds %d bytes", tooLarge.Limit))
			return
		}
		writeError(w, http.StatusBadRequest, ErrorResponseCodeBadRequest, "failed to read body")
		return
	}

	data := body
	if isJSON(r.Header.Get("Content-Type")) {
		data, err = decodeImagePayload(body)
		if err != nil {
			writeError(w, http.StatusBadRequest, ErrorResponseCodeBadRequest, err.Error())
			return
		}
	}

	img, err := s.ingest.IngestBytes(r.Context(), data)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, summaryFromDomain(img))
}

// ListImages handles GET /images.
func (s *Server) ListImages(w http.ResponseWriter, r *http.Request, params ListImagesParams) {
	limit := derefInt(params.Limit)
	if limit < 0 {
		writeError(w, http.StatusBadRequest, ErrorResponseCodeBadRequest, "limit must not be negative")
		return
	}

	images, err := s.library.List(r.Context(), limit)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	items := make([]ImageSummary, len(images))
	for i, img := range images {
		items[i] = summaryFromDomain(img)
	}
	writeJSON(w, http.StatusOK, ImageListResponse{Items: items, Count: len(items)})
}

// ClearImages handles DELETE /images.
func (s *Server) ClearImages(w http.ResponseWriter, r *http.Request) {
	if err := s.library.Clear(r.Context()); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetImage handles GET /images/{id}.
func (s *Server) GetImage(w http.ResponseWriter, r *http.Request, id string) {
	r = r.WithContext(logpkg.WithImage(r.Context(), s.logger, id))
	img, err := s.library.Get(r.Context(), id)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, imageFromDomain(img))
}

// DeleteImage handles DELETE /images/{id}.
func (s *Server) DeleteImage(w http.ResponseWriter, r *http.Request, id string) {
	r = r.WithContext(logpkg.WithImage(r.Context(), s.logger, id))
	if err := s.library.Delete(r.Context(), id); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PublishImage handles POST /images/{id}/publish.
func (s *Server) PublishImage(w http.ResponseWriter, r *http.Request, id string) {
	r = r.WithContext(logpkg.WithImage(r.Context(), s.logger, id))
	item, err := s.library.Publish(r.Context(), id)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, PublishResponse{
		ID:         item.ID,
		Dimensions: len(item.Vector),
		Metadata:   item.Metadata,
	})
}

// Search handles POST /search.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrorResponseCodeBadRequest, "invalid request body")
		return
	}

	topK := 0
	if req.TopK != nil {
		topK = max(*req.TopK, 1)
	}

	var (
		hits []domain.SearchHit
		err  error
	)
	switch {
	case req.ImageID != nil && *req.ImageID != "":
		hits, err = s.search.SearchByID(r.Context(), *req.ImageID, topK)
	case len(req.Vector) > 0:
		hits, err = s.search.SearchByVector(r.Context(), domain.Vector(req.Vector), topK)
	default:
		writeError(w, http.StatusBadRequest, ErrorResponseCodeBadRequest, "imageId or vector required")
		return
	}
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, SearchResponse{Results: resultsFromDomain(hits)})
}

// SessionSearch handles POST /session/search. A failed run is still a
// snapshot: it is returned with the error embedded and the mapped status.
func (s *Server) SessionSearch(w http.ResponseWriter, r *http.Request) {
	var req SessionSearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrorResponseCodeBadRequest, "invalid request body")
		return
	}

	r = r.WithContext(logpkg.WithImage(r.Context(), s.logger, req.ImageID))

	snap, err := s.session.Search(r.Context(), req.ImageID)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, sessionFromSnapshot(snap))
	case snap.Phase == searchuc.PhaseFailed && snap.Key == req.ImageID:
		logpkg.FromContext(r.Context(), s.logger).Warn("session search failed", zap.Error(err))
		status, _ := classify(err)
		writeJSON(w, status, sessionFromSnapshot(snap))
	default:
		s.handleDomainError(w, r, err)
	}
}

// GetSession handles GET /session.
func (s *Server) GetSession(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, sessionFromSnapshot(s.session.Snapshot()))
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	resp := HealthResponse{Status: string(report.Status), Checks: checks}
	if report.Index != nil {
		resp.Index = &IndexHealthResponse{OK: report.Index.OK, Count: report.Index.Count, Dim: report.Index.Dim}
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}
	writeJSON(w, httpStatus, resp)
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorResponseCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	var dme *domain.DimensionMismatchError
	if errors.As(err, &dme) {
		return dme.Error()
	}
	for _, m := range errorMappings {
		if errors.Is(err, m.sentinel) {
			return m.sentinel.Error()
		}
	}
	return "internal error"
}

// classify maps err onto its HTTP status and code.
func classify(err error) (int, ErrorResponseCode) {
	for _, m := range errorMappings {
		if errors.Is(err, m.sentinel) {
			return m.status, m.code
		}
	}
	return http.StatusInternalServerError, ErrorResponseCodeInternalError
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorResponseCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

// dimensionMismatchHandler reports the expected and actual lengths.
func dimensionMismatchHandler(w http.ResponseWriter, err error, msg string) bool {
	var dme *domain.DimensionMismatchError
	if !errors.As(err, &dme) {
		return false
	}
	writeJSON(w, http.StatusBadRequest, map[string]any{
		"code":     ErrorResponseCodeVectorDimMismatch,
		"message":  msg,
		"expected": dme.Expected,
		"actual":   dme.Actual,
	})
	return true
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logpkg.FromContext(r.Context(), s.logger)
	log.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, ErrorResponseCodeInternalError, "internal error")
}

func summaryFromDomain(img domain.StoredImage) ImageSummary {
	return ImageSummary{ID: img.ID, Timestamp: img.Timestamp.UTC(), Bytes: len(img.Data)}
}

func imageFromDomain(img domain.StoredImage) ImageResponse {
	return ImageResponse{ImageSummary: summaryFromDomain(img), DataURL: img.DataURL()}
}

func resultsFromDomain(hits []domain.SearchHit) []SearchResult {
	out := make([]SearchResult, len(hits))
	for i, h := range hits {
		out[i] = SearchResult{ID: h.ID, Score: h.Score, Metadata: h.Metadata}
	}
	return out
}

func sessionFromSnapshot(snap searchuc.Snapshot) SessionResponse {
	resp := SessionResponse{
		Key:        snap.Key,
		Generation: snap.Generation,
		Phase:      string(snap.Phase),
	}
	if snap.Image != nil {
		img := imageFromDomain(*snap.Image)
		resp.Image = &img
	}
	if snap.Hits != nil {
		resp.Results = resultsFromDomain(snap.Hits)
	}
	if snap.Err != nil {
		_, code := classify(snap.Err)
		resp.Error = &ErrorResponse{Code: code, Message: safeDomainMessage(snap.Err)}
	}
	return resp
}

func isJSON(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	return err == nil && mt == "application/json"
}

// decodeImagePayload accepts {"image": "..."} holding a data URL or bare base64.
func decodeImagePayload(body []byte) ([]byte, error) {
	var payload struct {
		Image string `json:"image"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, errors.New("invalid request body")
	}
	encoded := payload.Image
	if strings.HasPrefix(encoded, "data:") {
		_, after, ok := strings.Cut(encoded, ";base64,")
		if !ok {
			return nil, errors.New("image data URL must be base64 encoded")
		}
		encoded = after
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, errors.New("image is not valid base64")
	}
	return data, nil
}

func derefInt(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}
