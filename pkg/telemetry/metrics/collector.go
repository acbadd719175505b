package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"labsight/gateway/pkg/config"
)

// Collector owns every Prometheus metric exported by the gateway.
//
// All recording methods are safe on a nil *Collector, which lets components
// take an optional collector without guarding each call.
//
// Metrics (namespace and subsystem come from configuration):
//   - http_requests_total{route,method,status}
//   - http_request_duration_seconds{route}
//   - backend_requests_total{path,strategy,outcome}
//   - backend_request_duration_seconds{path}
//   - credential_failures_total{strategy,reason}
//   - active_streams
//   - stream_bytes_total
//   - rate_limited_total{path}
//   - uploads_total{outcome}
//   - upload_bytes_total
//   - poll_sessions_total{outcome}
//   - poll_attempts
type Collector struct {
	registry *prometheus.Registry

	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	backendRequests  *prometheus.CounterVec
	backendDuration  *prometheus.HistogramVec
	credentialErrors *prometheus.CounterVec
	activeStreams    prometheus.Gauge
	streamBytes      prometheus.Counter
	rateLimited      *prometheus.CounterVec
	uploads          *prometheus.CounterVec
	uploadBytes      prometheus.Counter
	pollSessions     *prometheus.CounterVec
	pollAttempts     prometheus.Histogram
}

// NewCollector registers all metrics in registry, or in a fresh registry
// when registry is nil. It returns nil when metrics are disabled.
func NewCollector(cfg config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if !cfg.Enabled {
		return nil
	}
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	buckets := cfg.RequestDurationBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}
	ns, sub := cfg.Namespace, cfg.Subsystem

	c := &Collector{
		registry: registry,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Subsystem: sub,
			Name: "http_requests_total",
			Help: "HTTP requests served, by route, method and status code.",
		}, []string{"route", "method", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns, Subsystem: sub,
			Name:    "http_request_duration_seconds",
			Help:    "Time to serve an HTTP request, including streamed bodies.",
			Buckets: buckets,
		}, []string{"route"}),
		backendRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Subsystem: sub,
			Name: "backend_requests_total",
			Help: "Requests forwarded to the backend, by path, credential strategy and outcome.",
		}, []string{"path", "strategy", "outcome"}),
		backendDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns, Subsystem: sub,
			Name:    "backend_request_duration_seconds",
			Help:    "Time until the backend returned response headers.",
			Buckets: buckets,
		}, []string{"path"}),
		credentialErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Subsystem: sub,
			Name: "credential_failures_total",
			Help: "Outbound requests sent without a credential because acquisition failed.",
		}, []string{"strategy", "reason"}),
		activeStreams: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns, Subsystem: sub,
			Name: "active_streams",
			Help: "Event streams currently being relayed to clients.",
		}),
		streamBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Subsystem: sub,
			Name: "stream_bytes_total",
			Help: "Bytes relayed from backend event streams to clients.",
		}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Subsystem: sub,
			Name: "rate_limited_total",
			Help: "Requests rejected with 429, by path.",
		}, []string{"path"}),
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Subsystem: sub,
			Name: "uploads_total",
			Help: "Upload attempts, by outcome.",
		}, []string{"outcome"}),
		uploadBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Subsystem: sub,
			Name: "upload_bytes_total",
			Help: "Bytes written to object storage.",
		}),
		pollSessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Subsystem: sub,
			Name: "poll_sessions_total",
			Help: "Finished upload status poll sessions, by outcome.",
		}, []string{"outcome"}),
		pollAttempts: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: ns, Subsystem: sub,
			Name:    "poll_attempts",
			Help:    "Status checks made per poll session.",
			Buckets: []float64{1, 2, 3, 5, 10, 15, 20, 50},
		}),
	}

	registry.MustRegister(
		c.httpRequests, c.httpDuration,
		c.backendRequests, c.backendDuration, c.credentialErrors,
		c.activeStreams, c.streamBytes,
		c.rateLimited,
		c.uploads, c.uploadBytes,
		c.pollSessions, c.pollAttempts,
	)

	return c
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// Handler returns the /metrics endpoint handler.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	})
}

// RecordHTTPRequest records a served request.
func (c *Collector) RecordHTTPRequest(route, method string, status int, d time.Duration) {
	if c == nil {
		return
	}
	c.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	c.httpDuration.WithLabelValues(route).Observe(d.Seconds())
}

// RecordBackendRequest records a forwarded request. Outcome is the status
// code class ("2xx", "4xx", "5xx") or "transport_error".
func (c *Collector) RecordBackendRequest(path, strategy, outcome string, d time.Duration) {
	if c == nil {
		return
	}
	c.backendRequests.WithLabelValues(path, strategy, outcome).Inc()
	c.backendDuration.WithLabelValues(path).Observe(d.Seconds())
}

// RecordCredentialFailure records a request sent without its credential.
func (c *Collector) RecordCredentialFailure(strategy, reason string) {
	if c == nil {
		return
	}
	c.credentialErrors.WithLabelValues(strategy, reason).Inc()
}

// StreamStarted increments the active stream gauge.
func (c *Collector) StreamStarted() {
	if c == nil {
		return
	}
	c.activeStreams.Inc()
}

// StreamFinished decrements the active stream gauge and counts relayed bytes.
func (c *Collector) StreamFinished(bytes int64) {
	if c == nil {
		return
	}
	c.activeStreams.Dec()
	c.streamBytes.Add(float64(bytes))
}

// RecordRateLimited records a rejected request.
func (c *Collector) RecordRateLimited(path string) {
	if c == nil {
		return
	}
	c.rateLimited.WithLabelValues(path).Inc()
}

// RecordUpload records an upload attempt and, on success, its size.
func (c *Collector) RecordUpload(outcome string, bytes int64) {
	if c == nil {
		return
	}
	c.uploads.WithLabelValues(outcome).Inc()
	if bytes > 0 {
		c.uploadBytes.Add(float64(bytes))
	}
}

// RecordPollSession records a finished poll session.
func (c *Collector) RecordPollSession(outcome string, attempts int) {
	if c == nil {
		return
	}
	c.pollSessions.WithLabelValues(outcome).Inc()
	c.pollAttempts.Observe(float64(attempts))
}

// StatusClass maps an HTTP status code to "1xx".."5xx".
func StatusClass(code int) string {
	if code < 100 || code > 599 {
		return "unknown"
	}
	return strconv.Itoa(code/100) + "xx"
}
