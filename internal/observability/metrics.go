package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "geofence"

// Metrics holds the Prometheus counters, histograms, and gauges for the service.
type Metrics struct {
	// Location requests.
	PositionRequests        *prometheus.CounterVec // labels: outcome={success,<error code name>}
	PositionRequestDuration prometheus.Histogram

	// Geofence registration.
	GeofenceOperations  *prometheus.CounterVec // labels: op={add,remove}, outcome={success,error}
	GeofencesRegistered prometheus.Gauge
	GeofencesActive     prometheus.Gauge
	ReregistrationRuns  *prometheus.CounterVec // labels: result={restarted,skipped}

	// Event dispatch.
	EventsPublished prometheus.Counter
	EventsFailed    prometheus.Counter
	EventsDropped   prometheus.Counter

	// Geocoding metrics.
	GeocodeRequests    *prometheus.CounterVec   // labels: outcome={success,error,empty}
	GeocodeCache       *prometheus.CounterVec   // labels: result={hit,miss}
	GeocodeAPIDuration prometheus.Histogram
	GeocodeEnabled     prometheus.Gauge
}

// NewMetrics creates and registers all service metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics(true)

	prometheus.MustRegister(
		m.PositionRequests,
		m.PositionRequestDuration,
		m.GeofenceOperations,
		m.GeofencesRegistered,
		m.GeofencesActive,
		m.ReregistrationRuns,
		m.EventsPublished,
		m.EventsFailed,
		m.EventsDropped,
		m.GeocodeRequests,
		m.GeocodeCache,
		m.GeocodeAPIDuration,
		m.GeocodeEnabled,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics(false)
}

func newMetrics(withHelp bool) *Metrics {
	help := func(s string) string {
		if withHelp {
			return s
		}
		return ""
	}

	return &Metrics{
		PositionRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "position_requests_total",
			Help:      help("Current-position requests by outcome."),
		}, []string{"outcome"}),
		PositionRequestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "position_request_duration_seconds",
			Help:      help("Time from request to the delivered continuation."),
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 3, 5, 10, 30},
		}),
		GeofenceOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "platform_operations_total",
			Help:      help("Platform geofence add/remove calls by outcome."),
		}, []string{"op", "outcome"}),
		GeofencesRegistered: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "registered",
			Help:      help("Number of geofences held by the repository."),
		}),
		GeofencesActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active",
			Help:      help("1 when geofence monitoring is intended to be live, 0 otherwise."),
		}),
		ReregistrationRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reregistration_runs_total",
			Help:      help("Scheduled re-registration runs by result."),
		}, []string{"result"}),
		EventsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      help("Geofence events delivered to the event sink."),
		}),
		EventsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_publish_failures_total",
			Help:      help("Failed publish attempts, retried with backoff."),
		}),
		EventsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dropped_total",
			Help:      help("Trigger events for unknown geofences or platform errors."),
		}),
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_requests_total",
			Help:      help("Reverse geocoding API requests by outcome."),
		}, []string{"outcome"}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_cache_total",
			Help:      help("Geocoding cache lookups by result."),
		}, []string{"result"}),
		GeocodeAPIDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "geocode_api_duration_seconds",
			Help:      help("Mapbox API request duration in seconds."),
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		GeocodeEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "geocode_enabled",
			Help:      help("1 when geocoding enrichment is enabled, 0 otherwise."),
		}),
	}
}
