package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// Service name for metrics
	ServiceName = "osmshapes"
)

var (
	// Pipeline metrics
	PipelineRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "osmshapes_pipeline_runs_total",
			Help: "Total number of polygon reconstruction runs",
		},
		[]string{"status"},
	)

	PipelineStageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "osmshapes_pipeline_stage_duration_seconds",
			Help:    "Pipeline stage duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
		},
		[]string{"stage"},
	)

	ReferentialGapsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "osmshapes_referential_gaps_total",
			Help: "Total number of way node references dropped because the node was absent from the batch",
		},
	)

	// External service metrics
	ExternalServiceRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "osmshapes_external_service_requests_total",
			Help: "Total number of external service requests",
		},
		[]string{"service", "operation", "status"},
	)

	ExternalServiceRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "osmshapes_external_service_request_duration_seconds",
			Help:    "External service request duration in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0},
		},
		[]string{"service", "operation"},
	)

	// Rate limiting metrics
	RateLimitExceeded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "osmshapes_rate_limit_exceeded_total",
			Help: "Total number of rate limit exceeded events",
		},
		[]string{"service"},
	)

	RateLimitWaitTime = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "osmshapes_rate_limit_wait_duration_seconds",
			Help:    "Time spent waiting for rate limits",
			Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
		},
		[]string{"service"},
	)

	// Cache metrics
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "osmshapes_cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "osmshapes_cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"cache_type"},
	)

	CacheSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "osmshapes_cache_size",
			Help: "Current number of items in cache",
		},
		[]string{"cache_type"},
	)

	// Error metrics
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "osmshapes_errors_total",
			Help: "Total number of errors",
		},
		[]string{"component", "error_type"},
	)

	// System metrics
	GoRoutines = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "osmshapes_goroutines",
			Help: "Number of goroutines",
		},
	)

	MemoryUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "osmshapes_memory_usage_bytes",
			Help: "Memory usage in bytes",
		},
	)

	GCRuns = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "osmshapes_gc_runs_total",
			Help: "Total number of garbage collection runs",
		},
	)
)

// ServiceHealth describes the aggregate health of the library's
// external collaborators
type ServiceHealth struct {
	Service       string                 `json:"service"`
	Version       string                 `json:"version"`
	Status        string                 `json:"status"` // "healthy", "degraded", "unhealthy"
	Uptime        time.Duration          `json:"uptime"`
	UptimeSeconds int64                  `json:"uptime_seconds"`
	StartTime     time.Time              `json:"start_time,omitempty"`
	Connections   map[string]ConnStatus  `json:"connections"`
	Metrics       map[string]interface{} `json:"metrics,omitempty"`
}

// ConnStatus describes one monitored connection
type ConnStatus struct {
	Status    string `json:"status"`               // "connected", "disconnected", "error"
	Latency   int64  `json:"latency_ms,omitempty"` // Optional latency in milliseconds
	LastError string `json:"last_error,omitempty"` // Last error message if any
}

// Helper functions for common metric updates

func RecordPipelineRun(duration time.Duration, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	PipelineRunsTotal.WithLabelValues(status).Inc()
	PipelineStageDuration.WithLabelValues("run").Observe(duration.Seconds())
}

func RecordStageDuration(stage string, duration time.Duration) {
	PipelineStageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

func RecordReferentialGaps(count int) {
	if count > 0 {
		ReferentialGapsTotal.Add(float64(count))
	}
}

func RecordExternalServiceRequest(service, operation string, duration time.Duration, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	ExternalServiceRequestsTotal.WithLabelValues(service, operation, status).Inc()
	ExternalServiceRequestDuration.WithLabelValues(service, operation).Observe(duration.Seconds())
}

func RecordCacheHit(cacheType string) {
	CacheHits.WithLabelValues(cacheType).Inc()
}

func RecordCacheMiss(cacheType string) {
	CacheMisses.WithLabelValues(cacheType).Inc()
}

func UpdateCacheSize(cacheType string, size int) {
	CacheSize.WithLabelValues(cacheType).Set(float64(size))
}

func RecordRateLimitExceeded(service string) {
	RateLimitExceeded.WithLabelValues(service).Inc()
}

func RecordRateLimitWait(service string, duration time.Duration) {
	RateLimitWaitTime.WithLabelValues(service).Observe(duration.Seconds())
}

func RecordError(component, errorType string) {
	ErrorsTotal.WithLabelValues(component, errorType).Inc()
}
