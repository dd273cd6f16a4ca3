// Package metrics exposes Prometheus instrumentation for the shadow AI
// sentinel service.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds the service's Prometheus metrics.
type Collector struct {
	detectionsTotal    *prometheus.CounterVec
	riskScores         prometheus.Histogram
	proposalsTotal     *prometheus.CounterVec
	amnestyTransitions *prometheus.CounterVec

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// NewCollector creates and registers all service metrics on the default
// registry.
func NewCollector() *Collector {
	return &Collector{
		detectionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shadow_sentinel_detections_total",
				Help: "Total number of shadow AI detections recorded",
			},
			[]string{"provider", "sensitivity"},
		),
		riskScores: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "shadow_sentinel_risk_score",
				Help:    "Distribution of composite compliance risk scores",
				Buckets: prometheus.LinearBuckets(0, 10, 11), // 0 to 100
			},
		),
		proposalsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shadow_sentinel_migration_proposals_total",
				Help: "Total number of migration proposals generated",
			},
			[]string{"proposed_module", "complexity"},
		),
		amnestyTransitions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shadow_sentinel_amnesty_transitions_total",
				Help: "Total number of amnesty program lifecycle transitions",
			},
			[]string{"transition"},
		),
		httpRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shadow_sentinel_http_requests_total",
				Help: "Total number of HTTP requests handled",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "shadow_sentinel_http_request_duration_seconds",
				Help:    "HTTP request latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
	}
}

// RecordDetection records one detection with its composite risk score.
func (c *Collector) RecordDetection(provider, sensitivity string, riskScore float64) {
	c.detectionsTotal.WithLabelValues(provider, sensitivity).Inc()
	c.riskScores.Observe(riskScore)
}

// RecordProposal records one generated migration proposal.
func (c *Collector) RecordProposal(proposedModule, complexity string) {
	c.proposalsTotal.WithLabelValues(proposedModule, complexity).Inc()
}

// RecordAmnestyTransition records one lifecycle transition
// (initiated, enforcing, cancelled).
func (c *Collector) RecordAmnestyTransition(transition string) {
	c.amnestyTransitions.WithLabelValues(transition).Inc()
}

// HTTPMiddleware instruments request counts and latency per route. The
// route template is used rather than the raw path to bound cardinality.
func (c *Collector) HTTPMiddleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()
		ctx.Next()

		path := ctx.FullPath()
		if path == "" {
			path = "unmatched"
		}
		c.httpRequestsTotal.WithLabelValues(
			ctx.Request.Method, path, strconv.Itoa(ctx.Writer.Status())).Inc()
		c.httpRequestDuration.WithLabelValues(
			ctx.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}
