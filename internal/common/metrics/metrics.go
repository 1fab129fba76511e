// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests by route and status",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	StorageOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storage_operations_total",
			Help: "Total number of object storage operations",
		},
		[]string{"provider", "operation", "outcome"},
	)

	StorageOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "storage_operation_duration_seconds",
			Help: "Duration of object storage operations in seconds",
		},
		[]string{"provider", "operation"},
	)

	DocumentUploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "document_uploads_total",
			Help: "Document uploads by category and outcome",
		},
		[]string{"category", "outcome"},
	)

	WizardTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wizard_transitions_total",
			Help: "Application wizard step transitions",
		},
		[]string{"action", "step"},
	)

	ApplicationsByStatus = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "loan_applications",
			Help: "Number of loan applications per status",
		},
		[]string{"status"},
	)

	AuthEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_events_total",
			Help: "Authentication events by type and outcome",
		},
		[]string{"event", "outcome"},
	)

	MCPSessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mcp_sessions_active",
			Help: "Number of open tool-protocol sessions",
		},
	)

	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)
)
