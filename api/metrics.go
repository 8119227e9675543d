package api

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"truelink/internal"
)

// Metrics holds the collectors exported on /metrics. Each Metrics owns its
// registry so several servers (and tests) can coexist in one process.
type Metrics struct {
	registry            *prometheus.Registry
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	resolutionsTotal    *prometheus.CounterVec
	streamedBytesTotal  prometheus.Counter
}

// NewMetrics creates and registers the collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "truelink_http_requests_total",
				Help: "Total number of HTTP requests served.",
			},
			[]string{"method", "endpoint", "status_code"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "truelink_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),
		resolutionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "truelink_resolutions_total",
				Help: "Resolutions by final status.",
			},
			[]string{"status"},
		),
		streamedBytesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "truelink_streamed_bytes_total",
				Help: "Bytes relayed by /download-stream.",
			},
		),
	}
	m.registry.MustRegister(
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.resolutionsTotal,
		m.streamedBytesTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Middleware records request counts and latency per route template.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		m.httpRequestsTotal.WithLabelValues(c.Request.Method, endpoint, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpRequestDuration.WithLabelValues(c.Request.Method, endpoint).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the exposition format.
func (m *Metrics) Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}

func (m *Metrics) observeOutcome(out internal.Outcome) {
	m.resolutionsTotal.WithLabelValues(string(out.Status)).Inc()
}

func (m *Metrics) addStreamed(n int) {
	m.streamedBytesTotal.Add(float64(n))
}
