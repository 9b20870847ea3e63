package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Parse metrics
	LinesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telhawk_combatlog_lines_total",
			Help: "Total number of log lines parsed",
		},
		[]string{"game", "status"},
	)

	BatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telhawk_combatlog_batches_total",
			Help: "Total number of batches handled",
		},
		[]string{"status"},
	)

	// Report metrics
	ReportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telhawk_combatlog_reports_total",
			Help: "Total number of report files generated",
		},
		[]string{"game"},
	)

	GenerateDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "telhawk_combatlog_generate_duration_seconds",
			Help:    "Duration of report generation for a partition in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Upload metrics
	UploadAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telhawk_combatlog_upload_attempts_total",
			Help: "Total number of object store upload attempts",
		},
		[]string{"strategy", "status"},
	)

	UploadBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "telhawk_combatlog_upload_bytes_total",
			Help: "Total bytes of report data uploaded",
		},
	)

	UploadDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "telhawk_combatlog_upload_duration_seconds",
			Help:    "Duration of a report upload including retries in seconds",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		},
	)
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
