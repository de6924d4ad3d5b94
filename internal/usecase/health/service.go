package health

import (
	"context"

	"github.com/kailas-cloud/vecsnap/internal/domain"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates a remote dependency is failing; local capture still works.
	Degraded Status = "degraded"
	// Unhealthy indicates the local store is down.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Component names used as Report.Checks keys.
const (
	ComponentStore     = "store"
	ComponentIndex     = "index"
	ComponentEmbedding = "embedding"
)

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
	Index  *domain.IndexHealth // nil when the index is not configured or unreachable
}

// Service coordinates health checks.
type Service struct {
	store     StorePinger
	index     IndexChecker
	embedding EmbeddingChecker
}

// New creates a Service. index and embedding can be nil.
func New(store StorePinger, index IndexChecker, embedding EmbeddingChecker) *Service {
	return &Service{store: store, index: index, embedding: embedding}
}

// Check runs health checks against all components.
func (s *Service) Check(ctx context.Context) Report {
	r := Report{Checks: make(map[string]CheckResult)}

	r.Checks[ComponentStore] = result(s.store.Ping(ctx))

	if s.index != nil {
		h, err := s.index.Health(ctx)
		if err == nil {
			r.Index = &h
		}
		if err == nil && !h.OK {
			r.Checks[ComponentIndex] = CheckError
		} else {
			r.Checks[ComponentIndex] = result(err)
		}
	}

	if s.embedding != nil {
		r.Checks[ComponentEmbedding] = result(s.embedding.HealthCheck(ctx))
	}

	r.Status = Healthy
	for _, v := range r.Checks {
		if v == CheckError {
			r.Status = Degraded
			break
		}
	}
	if r.Checks[ComponentStore] == CheckError {
		r.Status = Unhealthy
	}
	return r
}

func result(err error) CheckResult {
	if err != nil {
		return CheckError
	}
	return CheckOK
}
