package vecsnap

import (
	"context"

	healthuc "github.com/kailas-cloud/vecsnap/internal/usecase/health"
)

// HealthStatus represents the aggregated pipeline health.
type HealthStatus struct {
	Status string            // "ok", "degraded", "error"
	Checks map[string]string // store/index/embedding → "ok"/"error"

	// Index is the remote index report, when it answered.
	IndexCount int
	IndexDim   int
}

// Health checks the local store, the embedding backend and the index.
func (c *Client) Health(ctx context.Context) HealthStatus {
	report := c.healthSvc.Check(ctx)
	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}
	hs := HealthStatus{
		Status: string(report.Status),
		Checks: checks,
	}
	if report.Index != nil {
		hs.IndexCount = report.Index.Count
		hs.IndexDim = report.Index.Dim
	}
	return hs
}

// healthUseCase is the internal interface for health checks.
type healthUseCase interface {
	Check(ctx context.Context) healthuc.Report
}
