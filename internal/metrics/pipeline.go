package metrics

import "github.com/prometheus/client_golang/prometheus"

// Capture, optimizer and orchestrator metrics.
var (
	CaptureTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vecsnap",
			Name:      "capture_total",
			Help:      "Capture attempts by outcome",
		},
		[]string{"result"}, // ok / aborted / unavailable / no_photo / error
	)

	OptimizerBytesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vecsnap",
			Name:      "optimizer_bytes_total",
			Help:      "Image bytes before and after optimization",
		},
		[]string{"stage"}, // before / after
	)

	OptimizerRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vecsnap",
			Name:      "optimizer_runs_total",
			Help:      "Optimizer runs by outcome",
		},
		[]string{"result"}, // optimized / passthrough / failed / larger / too_large
	)

	SearchRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vecsnap",
			Name:      "search_runs_total",
			Help:      "Orchestrated search runs by terminal phase",
		},
		[]string{"phase"}, // done / failed / stale
	)

	SearchDedupTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "vecsnap",
			Name:      "search_dedup_total",
			Help:      "Search submissions served by an in-flight or completed run",
		},
	)
)

var pipelineMetricsRegistered bool

// RegisterPipelineMetrics registers capture, optimizer and orchestrator metrics. Must be called once from main.
func RegisterPipelineMetrics() {
	if pipelineMetricsRegistered {
		return
	}
	prometheus.MustRegister(CaptureTotal)
	prometheus.MustRegister(OptimizerBytesTotal)
	prometheus.MustRegister(OptimizerRunsTotal)
	prometheus.MustRegister(SearchRunsTotal)
	prometheus.MustRegister(SearchDedupTotal)
	pipelineMetricsRegistered = true
}
