package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/wb-go/wbf/ginext"
)

// Metrics holds the Prometheus collectors of the service on a private registry.
type Metrics struct {
	registry         *prometheus.Registry
	requestTotal     *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	pipelineTotal    *prometheus.CounterVec
	pipelineDuration *prometheus.HistogramVec
}

// New creates the collectors and registers them together with the Go and
// process collectors.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: registry,
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "image_converter_http_requests_total",
			Help: "Total HTTP requests handled by the server.",
		}, []string{"method", "route", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "image_converter_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		pipelineTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "image_converter_pipeline_runs_total",
			Help: "Total image pipeline runs by operation and outcome.",
		}, []string{"op", "status"}),
		pipelineDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "image_converter_pipeline_duration_seconds",
			Help:    "Image pipeline duration in seconds.",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"op"}),
	}

	registry.MustRegister(
		m.requestTotal,
		m.requestDuration,
		m.pipelineTotal,
		m.pipelineDuration,
	)

	return m
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware records the count and latency of every request, labelled by
// route template rather than raw path.
func (m *Metrics) Middleware(c *ginext.Context) {
	start := time.Now()
	c.Next()

	route := c.FullPath()
	if route == "" {
		route = "unmatched"
	}
	status := strconv.Itoa(c.Writer.Status())

	m.requestTotal.WithLabelValues(c.Request.Method, route, status).Inc()
	m.requestDuration.WithLabelValues(c.Request.Method, route, status).Observe(time.Since(start).Seconds())
}

// ObservePipeline records one run of an image pipeline operation.
func (m *Metrics) ObservePipeline(op string, seconds float64, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}

	m.pipelineTotal.WithLabelValues(op, status).Inc()
	m.pipelineDuration.WithLabelValues(op).Observe(seconds)
}
