package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service.
type Metrics struct {
	ActiveSessions   prometheus.Gauge
	SessionEvents    *prometheus.CounterVec
	WSMessages       *prometheus.CounterVec
	CatalogLookups   *prometheus.CounterVec
	ProviderErrors   *prometheus.CounterVec
	ResponderLatency prometheus.Histogram
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		ActiveSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Number of open chat sessions.",
		}),
		SessionEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_events_total",
			Help:      "Session events by type.",
		}, []string{"event"}),
		WSMessages: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_messages_total",
			Help:      "WebSocket messages by direction and event.",
		}, []string{"direction", "event"}),
		CatalogLookups: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_lookups_total",
			Help:      "Catalog lookups by outcome.",
		}, []string{"outcome"}),
		ProviderErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_errors_total",
			Help:      "Upstream provider failures by provider and code.",
		}, []string{"provider", "code"}),
		ResponderLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "responder_latency_ms",
			Help:      "Latency of one full responder call in milliseconds.",
			Buckets:   []float64{100, 250, 500, 1000, 2000, 5000, 10000, 30000},
		}),
	}
}

func (m *Metrics) ObserveResponderLatency(d time.Duration) {
	m.ResponderLatency.Observe(float64(d.Milliseconds()))
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
