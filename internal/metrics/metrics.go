// Package metrics holds the Prometheus collectors of the workflow engine.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/zulandar/docket/internal/apperr"
)

var (
	OperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docket_operations_total",
			Help: "Workflow operations by outcome kind",
		},
		[]string{"operation", "outcome"},
	)

	OperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "docket_operation_duration_seconds",
			Help:    "Workflow operation latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// BlobCleanups counts best-effort blob deletes by reason and result.
	BlobCleanups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docket_blob_cleanups_total",
			Help: "Best-effort blob deletes by reason and result",
		},
		[]string{"reason", "result"},
	)

	EventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docket_events_published_total",
			Help: "Domain events published by type and status",
		},
		[]string{"type", "status"},
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docket_http_requests_total",
			Help: "HTTP requests by route and status",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "docket_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

func init() {
	prometheus.MustRegister(
		OperationsTotal,
		OperationDuration,
		BlobCleanups,
		EventsPublished,
		HTTPRequestsTotal,
		HTTPRequestDuration,
	)
}

// Outcome returns the label recorded for err: "ok" or the error kind.
func Outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return string(apperr.KindOf(err))
}

// RecordOperation records one workflow operation.
func RecordOperation(op string, err error, d time.Duration) {
	OperationsTotal.WithLabelValues(op, Outcome(err)).Inc()
	OperationDuration.WithLabelValues(op).Observe(d.Seconds())
}

// RecordBlobCleanup records a best-effort blob delete.
func RecordBlobCleanup(reason string, err error) {
	result := "deleted"
	if err != nil {
		result = "failed"
	}
	BlobCleanups.WithLabelValues(reason, result).Inc()
}

// RecordEvent records a publish attempt.
func RecordEvent(eventType string, err error) {
	status := "ok"
	if err != nil {
		status = "failed"
	}
	EventsPublished.WithLabelValues(eventType, status).Inc()
}

// Middleware records request counts and latency per matched route.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		HTTPRequestsTotal.WithLabelValues(c.Request.Method, route, status).Inc()
		HTTPRequestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
