package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the service. A nil *Metrics
// records nothing.
type Metrics struct {
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	ProviderErrors   *prometheus.CounterVec
	UnmappedStatuses *prometheus.CounterVec
	ProvidersLoaded  *prometheus.GaugeVec
}

// NewMetrics creates the metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "integrations_requests_total",
				Help: "Total number of provider calls by operation, provider, and status",
			},
			[]string{"operation", "provider", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "integrations_request_duration_seconds",
				Help:    "Provider call duration in seconds by operation and provider",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation", "provider"},
		),
		ProviderErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "integrations_provider_errors_total",
				Help: "Total provider errors by provider and error kind",
			},
			[]string{"provider", "kind"},
		),
		UnmappedStatuses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "integrations_unmapped_tracking_status_total",
				Help: "Tracking codes that fell through to the default status, by provider",
			},
			[]string{"provider"},
		),
		ProvidersLoaded: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "integrations_providers_loaded",
				Help: "Adapters in the provider cache by category",
			},
			[]string{"category"},
		),
	}
}

// RecordRequest records a provider call.
func (m *Metrics) RecordRequest(operation, provider, status string, duration float64) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(operation, provider, status).Inc()
	m.RequestDuration.WithLabelValues(operation, provider).Observe(duration)
}

// RecordError records a provider error.
func (m *Metrics) RecordError(provider, kind string) {
	if m == nil {
		return
	}
	m.ProviderErrors.WithLabelValues(provider, kind).Inc()
}

// RecordUnmapped counts a tracking code without a status mapping.
func (m *Metrics) RecordUnmapped(provider string) {
	if m == nil {
		return
	}
	m.UnmappedStatuses.WithLabelValues(provider).Inc()
}

// SetLoaded records the size of a provider cache.
func (m *Metrics) SetLoaded(category string, n int) {
	if m == nil {
		return
	}
	m.ProvidersLoaded.WithLabelValues(category).Set(float64(n))
}
