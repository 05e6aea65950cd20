// Package metrics provides Prometheus instrumentation for the SOnion server shell.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsConfig defines which request metrics are collected and how they are named.
type MetricsConfig struct {
	Namespace        string // Namespace for metrics
	Subsystem        string // Subsystem for metrics
	EnableLatency    bool   // Enable the request duration histogram
	EnableThroughput bool   // Enable the response size counter
	EnableQPS        bool   // Enable the request counter
	EnableErrors     bool   // Enable the error counter (status >= 400)

	// Buckets overrides the latency histogram buckets. prometheus.DefBuckets is used when empty.
	Buckets []float64

	// Filter, when set, decides per request whether it is recorded.
	Filter func(method, path string) bool
}

// DefaultMetricsConfig returns a configuration with every metric enabled.
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace:        "sonion",
		Subsystem:        "http",
		EnableLatency:    true,
		EnableThroughput: true,
		EnableQPS:        true,
		EnableErrors:     true,
	}
}

// Collector records per-request metrics on a Prometheus registry.
type Collector struct {
	config   MetricsConfig
	registry *prometheus.Registry

	requests *prometheus.CounterVec
	errors   *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	bytes    *prometheus.CounterVec
	inFlight prometheus.Gauge
}

// NewCollector creates the enabled metrics and registers them on registry.
// A fresh registry is created when registry is nil.
func NewCollector(registry *prometheus.Registry, config MetricsConfig) (*Collector, error) {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	c := &Collector{
		config:   config,
		registry: registry,
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      "requests_in_flight",
			Help:      "Number of requests currently being served.",
		}),
	}
	collectors := []prometheus.Collector{c.inFlight}

	labels := []string{"method", "code"}

	if config.EnableQPS {
		c.requests = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      "requests_total",
			Help:      "Total number of requests served.",
		}, labels)
		collectors = append(collectors, c.requests)
	}

	if config.EnableErrors {
		c.errors = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      "request_errors_total",
			Help:      "Total number of requests answered with a status of 400 or above.",
		}, labels)
		collectors = append(collectors, c.errors)
	}

	if config.EnableLatency {
		buckets := config.Buckets
		if len(buckets) == 0 {
			buckets = prometheus.DefBuckets
		}
		c.latency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      "request_duration_seconds",
			Help:      "Time spent running the middleware chain and writing the response.",
			Buckets:   buckets,
		}, []string{"method"})
		collectors = append(collectors, c.latency)
	}

	if config.EnableThroughput {
		c.bytes = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      "response_bytes_total",
			Help:      "Total number of response body bytes written.",
		}, []string{"method"})
		collectors = append(collectors, c.bytes)
	}

	for _, col := range collectors {
		if err := registry.Register(col); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// Registry returns the registry the collector writes to.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Start marks a request as in flight. The returned function records the outcome
// and must be called exactly once.
func (c *Collector) Start(method, path string) func(status int, bytes int64) {
	if c.config.Filter != nil && !c.config.Filter(method, path) {
		return func(int, int64) {}
	}

	start := time.Now()
	c.inFlight.Inc()

	return func(status int, bytes int64) {
		c.inFlight.Dec()
		c.Observe(method, status, time.Since(start), bytes)
	}
}

// Observe records one completed request. Methods outside the standard set are
// recorded as "OTHER".
func (c *Collector) Observe(method string, status int, duration time.Duration, bytes int64) {
	method = methodLabel(method)
	code := strconv.Itoa(status)

	if c.requests != nil {
		c.requests.WithLabelValues(method, code).Inc()
	}
	if c.errors != nil && status >= 400 {
		c.errors.WithLabelValues(method, code).Inc()
	}
	if c.latency != nil {
		c.latency.WithLabelValues(method).Observe(duration.Seconds())
	}
	if c.bytes != nil && bytes > 0 {
		c.bytes.WithLabelValues(method).Add(float64(bytes))
	}
}

// methodLabel keeps the method label set bounded. Clients can send any token
// as a method.
func methodLabel(method string) string {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut, http.MethodPatch,
		http.MethodDelete, http.MethodConnect, http.MethodOptions, http.MethodTrace:
		return method
	}
	return "OTHER"
}
