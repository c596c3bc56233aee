package telemetry

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics for the OpenMosaic host. It
// implements the orchestrator's metrics sink.
type Metrics struct {
	config MetricsConfig

	// Configuration fetch metrics
	configFetches     *prometheus.CounterVec
	configFetchTiming *prometheus.HistogramVec

	// Bundle metrics
	bundleLoads *prometheus.CounterVec

	// Mount metrics
	mounts *prometheus.CounterVec

	// Relay metrics
	relayEvents    *prometheus.CounterVec
	relayReceivers *prometheus.HistogramVec

	// Error metrics
	errorsByClass *prometheus.CounterVec
	errorsByCode  *prometheus.CounterVec

	// System metrics
	modulesMounted prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics creates a metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		// Nil collector fields make every record method a no-op.
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.DefaultHistogramBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		configFetches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "config_fetches_total",
				Help:      "Total number of configuration document fetches",
			},
			[]string{"kind", "status"},
		),
		configFetchTiming: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "config_fetch_duration_seconds",
				Help:      "Duration of configuration document fetches in seconds",
				Buckets:   buckets,
			},
			[]string{"kind"},
		),

		bundleLoads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "bundle_loads_total",
				Help:      "Total number of bundle load attempts",
			},
			[]string{"status"},
		),

		mounts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "mounts_total",
				Help:      "Total number of module mount attempts",
			},
			[]string{"placement", "status"},
		),

		relayEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "relay_events_total",
				Help:      "Total number of relayed events",
			},
			[]string{"type"},
		),
		relayReceivers: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "relay_event_receivers",
				Help:      "Number of receivers per relayed event",
				Buckets:   []float64{0, 1, 2, 5, 10, 20},
			},
			[]string{"type"},
		),

		errorsByClass: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_by_class_total",
				Help:      "Total number of errors by error class",
			},
			[]string{"class"},
		),
		errorsByCode: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_by_code_total",
				Help:      "Total number of errors by error code",
			},
			[]string{"code"},
		),

		modulesMounted: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "modules_mounted",
				Help:      "Current number of mounted micro front-ends",
			},
		),
	}

	registry.MustRegister(
		m.configFetches,
		m.configFetchTiming,
		m.bundleLoads,
		m.mounts,
		m.relayEvents,
		m.relayReceivers,
		m.errorsByClass,
		m.errorsByCode,
		m.modulesMounted,
	)

	return m, nil
}

// RecordConfigFetch records a configuration document fetch outcome.
func (m *Metrics) RecordConfigFetch(kind, status string) {
	if m.configFetches == nil {
		return
	}
	m.configFetches.WithLabelValues(kind, status).Inc()
}

// ObserveConfigFetch records the duration of a configuration fetch.
func (m *Metrics) ObserveConfigFetch(kind string, duration time.Duration) {
	if m.configFetchTiming == nil {
		return
	}
	m.configFetchTiming.WithLabelValues(kind).Observe(duration.Seconds())
}

// RecordBundleLoad records a bundle load attempt outcome.
func (m *Metrics) RecordBundleLoad(status string) {
	if m.bundleLoads == nil {
		return
	}
	m.bundleLoads.WithLabelValues(status).Inc()
}

// RecordMount records a module mount attempt outcome.
func (m *Metrics) RecordMount(placement, status string) {
	if m.mounts == nil {
		return
	}
	m.mounts.WithLabelValues(placement, status).Inc()
	if status == "mounted" {
		m.modulesMounted.Inc()
	}
}

// RecordRelayEvent records a relayed event and its receiver count.
func (m *Metrics) RecordRelayEvent(eventType string, receivers int) {
	if m.relayEvents == nil {
		return
	}
	m.relayEvents.WithLabelValues(eventType).Inc()
	m.relayReceivers.WithLabelValues(eventType).Observe(float64(receivers))
}

// RecordError records an error by class and optionally by code.
func (m *Metrics) RecordError(class, code string) {
	if m.errorsByClass == nil {
		return
	}
	m.errorsByClass.WithLabelValues(class).Inc()
	if code != "" && m.errorsByCode != nil {
		m.errorsByCode.WithLabelValues(code).Inc()
	}
}

// Timer provides a convenient way to time operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since the timer was created.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// StartMetricsServer starts an HTTP server to expose metrics.
func (m *Metrics) StartMetricsServer() error {
	if !m.config.Enabled {
		return nil
	}

	path := m.config.Path
	if path == "" {
		path = "/metrics"
	}

	mux := http.NewServeMux()
	mux.Handle(path, m.Handler())

	server := &http.Server{
		Addr:              m.config.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Printf("metrics server error: %v\n", err)
		}
	}()

	return nil
}
