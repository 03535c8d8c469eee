// Package metrics provides Prometheus metrics for the dirfetch client.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Remote request metrics
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dirfetch_requests_total",
			Help: "Total number of requests sent to the listing server",
		},
		[]string{"status"},
	)

	requestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dirfetch_request_duration_seconds",
			Help:    "Request duration in seconds, including retries",
			Buckets: prometheus.DefBuckets,
		},
	)

	retriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dirfetch_retries_total",
			Help: "Total number of attempts repeated after a connection failure",
		},
	)

	// Transfer metrics
	bytesDownloaded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dirfetch_bytes_downloaded_total",
			Help: "Total bytes read from response bodies",
		},
	)

	filesSaved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dirfetch_files_saved_total",
			Help: "Total number of files written to a destination",
		},
		[]string{"status"},
	)

	dirsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dirfetch_dirs_created_total",
			Help: "Total number of directories created during recursive downloads",
		},
	)

	overwriteDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dirfetch_overwrite_decisions_total",
			Help: "Total overwrite decisions for existing destinations",
		},
		[]string{"decision"},
	)

	// Shell metrics
	commandErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dirfetch_command_errors_total",
			Help: "Total failed shell commands by error kind",
		},
		[]string{"kind"},
	)

	// Sink metrics
	sinkOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dirfetch_sink_operation_duration_seconds",
			Help:    "Destination operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"sink", "operation"},
	)

	sinkOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dirfetch_sink_operations_total",
			Help: "Total destination operations",
		},
		[]string{"sink", "operation", "status"},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordRequest records a completed request. status is 0 when no response
// was received.
func RecordRequest(status int, duration time.Duration) {
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	requestsTotal.WithLabelValues(label).Inc()
	requestDuration.Observe(duration.Seconds())
}

// RecordRetry records a repeated attempt.
func RecordRetry() {
	retriesTotal.Inc()
}

// RecordBytes records body bytes read.
func RecordBytes(n int64) {
	bytesDownloaded.Add(float64(n))
}

// RecordFileSaved records a file write.
func RecordFileSaved(success bool) {
	filesSaved.WithLabelValues(statusLabel(success)).Inc()
}

// RecordDirCreated records a directory creation.
func RecordDirCreated() {
	dirsCreated.Inc()
}

// RecordOverwriteDecision records whether an existing destination was
// replaced.
func RecordOverwriteDecision(overwrite bool) {
	decision := "keep"
	if overwrite {
		decision = "overwrite"
	}
	overwriteDecisions.WithLabelValues(decision).Inc()
}

// RecordCommandError records a failed shell command.
func RecordCommandError(kind string) {
	commandErrors.WithLabelValues(kind).Inc()
}

// RecordSinkOperation records a destination operation.
func RecordSinkOperation(sink, operation string, duration time.Duration, success bool) {
	sinkOperationDuration.WithLabelValues(sink, operation).Observe(duration.Seconds())
	sinkOperationsTotal.WithLabelValues(sink, operation, statusLabel(success)).Inc()
}

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}
