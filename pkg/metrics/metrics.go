package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Request processing metrics
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "onem2m_requests_total",
			Help: "Total number of processed request primitives by operation and status code",
		},
		[]string{"operation", "rsc"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "onem2m_request_duration_seconds",
			Help:    "Request primitive processing duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	ResourcesTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "onem2m_resources_total",
			Help: "Total number of resources across all CSEs",
		},
	)

	// Router metrics
	ForwardsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "onem2m_router_forwards_total",
			Help: "Total number of forwarded requests by outcome",
		},
		[]string{"outcome"},
	)

	RegistrarFallbacks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "onem2m_router_registrar_fallbacks_total",
			Help: "Total number of forwards retried against the registrar CSE",
		},
	)

	// Notifier metrics
	NotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "onem2m_notifications_total",
			Help: "Total number of notification deliveries by scheme and outcome",
		},
		[]string{"scheme", "outcome"},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(RequestsTotal)
	prometheus.MustRegister(RequestDuration)
	prometheus.MustRegister(ResourcesTotal)
	prometheus.MustRegister(ForwardsTotal)
	prometheus.MustRegister(RegistrarFallbacks)
	prometheus.MustRegister(NotificationsTotal)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
