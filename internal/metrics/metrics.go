package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the service's Prometheus collectors, registered on a private
// registry. One instance is constructed per process and injected into the
// components that record to it.
type Metrics struct {
	registry *prometheus.Registry

	apiCalls       *prometheus.CounterVec
	rateLimitHits  *prometheus.CounterVec
	notionDuration *prometheus.HistogramVec
	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
}

// New creates a Metrics instance backed by its own registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		apiCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "notionbridge_api_calls_total",
			Help: "Total Notion API call attempts, counted per attempt including retries",
		}, []string{"operation"}),
		rateLimitHits: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "notionbridge_rate_limit_hits_total",
			Help: "Total rate-limited (HTTP 429) responses from the Notion API",
		}, []string{"operation"}),
		notionDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "notionbridge_notion_request_duration_seconds",
			Help:    "Notion API request duration by operation and status code",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation", "status"}),
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "notionbridge_http_requests_total",
			Help: "Total HTTP requests served",
		}, []string{"method", "path", "status"}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "notionbridge_http_request_duration_seconds",
			Help:    "HTTP request duration by method and path",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
	}
}

// Registry exposes the underlying registry for the /metrics handler.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// APICall records one upstream call attempt.
func (m *Metrics) APICall(operation string) {
	m.apiCalls.WithLabelValues(operation).Inc()
}

// RateLimitHit records one rate-limited upstream response.
func (m *Metrics) RateLimitHit(operation string) {
	m.rateLimitHits.WithLabelValues(operation).Inc()
}

// ObserveNotionRequest records the duration of one upstream HTTP exchange.
func (m *Metrics) ObserveNotionRequest(operation string, statusCode int, elapsed time.Duration) {
	m.notionDuration.WithLabelValues(operation, statusText(statusCode)).Observe(elapsed.Seconds())
}

// ObserveHTTPRequest records one served HTTP request.
func (m *Metrics) ObserveHTTPRequest(method, path string, statusCode int, elapsed time.Duration) {
	m.httpRequests.WithLabelValues(method, path, statusText(statusCode)).Inc()
	m.httpDuration.WithLabelValues(method, path).Observe(elapsed.Seconds())
}

func statusText(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
