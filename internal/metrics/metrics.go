// Package metrics exposes Prometheus instrumentation for the pipeline and
// the serving API.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector provides application metrics collection.
type Collector struct {
	// Pipeline metrics
	StageRowsTotal      *prometheus.CounterVec
	StageDuration       *prometheus.HistogramVec
	RecordsDroppedTotal *prometheus.CounterVec
	AllocationPolicy    *prometheus.CounterVec
	FlagsAssignedTotal  *prometheus.CounterVec
	ExtractionErrors    prometheus.Counter

	// API metrics
	APIRequestsTotal   *prometheus.CounterVec
	APIRequestDuration *prometheus.HistogramVec
}

// NewCollector creates a new metrics collector.
func NewCollector(namespace string) *Collector {
	return &Collector{
		StageRowsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stage_rows_total",
				Help:      "Rows produced per pipeline stage",
			},
			[]string{"stage"},
		),

		StageDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "stage_duration_seconds",
				Help:      "Wall time per pipeline stage",
				Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300},
			},
			[]string{"stage"},
		),

		RecordsDroppedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "records_dropped_total",
				Help:      "Registry records dropped by reason",
			},
			[]string{"reason"},
		),

		AllocationPolicy: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "allocation_policy_total",
				Help:      "Disaster groups allocated per policy",
			},
			[]string{"policy"},
		),

		FlagsAssignedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "flags_assigned_total",
				Help:      "Quality flags assigned by code",
			},
			[]string{"code"},
		),

		ExtractionErrors: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "extraction_errors_total",
				Help:      "Flood metric rows carrying an extraction error",
			},
		),

		APIRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_requests_total",
				Help:      "API requests by endpoint and status",
			},
			[]string{"endpoint", "status"},
		),

		APIRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "api_request_duration_seconds",
				Help:      "API request duration in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
			},
			[]string{"endpoint"},
		),
	}
}
