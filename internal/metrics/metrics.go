package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Submission outcomes
const (
	OutcomePassed   = "passed"
	OutcomeFailed   = "failed"
	OutcomeRejected = "rejected" // attempt limit or unknown assessment
	OutcomeError    = "error"
)

// Telemetry statuses
const (
	TelemetryDelivered = "delivered"
	TelemetryDropped   = "dropped"
	TelemetryFailed    = "failed"
)

var (
	SubmissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "submission_submissions_total",
			Help: "Submissions processed, by outcome",
		},
		[]string{"outcome"},
	)

	GradingDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "submission_grading_duration_seconds",
			Help:    "Time spent grading and aggregating one submission",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		},
	)

	TelemetryEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "submission_telemetry_events_total",
			Help: "xAPI statements handled by the telemetry emitter, by verb and status",
		},
		[]string{"verb", "status"},
	)

	RegradesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "submission_regrades_total",
			Help: "Manual re-grades, by status",
		},
		[]string{"status"},
	)

	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)
)

var initOnce sync.Once

// Init registers the collectors with the default registry. Safe to call more than once.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			SubmissionsTotal,
			GradingDuration,
			TelemetryEventsTotal,
			RegradesTotal,
			RequestCounter,
			RequestDuration,
		)
	})
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}

		RequestCounter.WithLabelValues(
			c.Request.Method,
			endpoint,
			strconv.Itoa(c.Writer.Status()),
		).Inc()

		RequestDuration.WithLabelValues(
			c.Request.Method,
			endpoint,
		).Observe(time.Since(start).Seconds())
	}
}

func PrometheusHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
