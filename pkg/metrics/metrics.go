// Package metrics registers the engine's prometheus instruments.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// EngineOperations counts engine mutations by operation and outcome
	EngineOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "allocation_engine_operations_total",
		Help: "Engine mutations by operation and outcome",
	}, []string{"operation", "outcome"})

	// DistributionFanout tracks users touched per distribution pass
	DistributionFanout = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "allocation_engine_distribution_fanout",
		Help:    "Users affected per profit distribution",
		Buckets: prometheus.ExponentialBuckets(1, 4, 8),
	})

	// MaturedInvestments counts positions released by the sweep
	MaturedInvestments = promauto.NewCounter(prometheus.CounterOpts{
		Name: "allocation_engine_matured_investments_total",
		Help: "Investments matured by the due-date sweep",
	})

	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "allocation_engine_http_requests_total",
		Help: "HTTP requests by route, method and status",
	}, []string{"route", "method", "status"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "allocation_engine_http_request_duration_seconds",
		Help:    "HTTP request latency by route",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
)

// RecordOperation increments the engine operation counter
func RecordOperation(operation string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	EngineOperations.WithLabelValues(operation, outcome).Inc()
}

// GinMiddleware instruments every request
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		httpRequests.WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

// Handler exposes the prometheus scrape endpoint
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
