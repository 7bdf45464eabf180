package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	eventsRouted    *prometheus.CounterVec
	eventsDropped   *prometheus.CounterVec
	streamConnected prometheus.Gauge
	reconnects      prometheus.Counter
	backendRequests *prometheus.CounterVec
	backendDuration *prometheus.HistogramVec
	storeSize       *prometheus.GaugeVec
	cacheResults    *prometheus.CounterVec
	gatherer        prometheus.Gatherer
}

// NewMetrics registers the collectors on reg; a nil reg gets a private registry.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	m := &Metrics{
		eventsRouted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chattie_realtime_events_total",
				Help: "Realtime events routed to a store",
			},
			[]string{"collection", "kind"},
		),
		eventsDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chattie_realtime_events_dropped_total",
				Help: "Realtime events discarded before reaching a store",
			},
			[]string{"reason"},
		),
		streamConnected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "chattie_realtime_connected",
				Help: "1 while the change stream is connected",
			},
		),
		reconnects: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "chattie_realtime_reinitialize_total",
				Help: "Number of subscription reinitializations",
			},
		),
		backendRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chattie_backend_requests_total",
				Help: "Backend requests by route and status",
			},
			[]string{"route", "status"},
		),
		backendDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "chattie_backend_request_duration_seconds",
				Help:    "Backend request duration in seconds",
				Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"route"},
		),
		storeSize: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "chattie_store_entries",
				Help: "Entries held by each local store",
			},
			[]string{"store"},
		),
		cacheResults: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chattie_cache_lookups_total",
				Help: "Cache hits and misses",
			},
			[]string{"cache", "status"},
		),
		gatherer: reg,
	}

	reg.MustRegister(
		m.eventsRouted,
		m.eventsDropped,
		m.streamConnected,
		m.reconnects,
		m.backendRequests,
		m.backendDuration,
		m.storeSize,
		m.cacheResults,
	)

	return m
}

func (m *Metrics) EventRouted(collection, kind string) {
	if m == nil {
		return
	}
	m.eventsRouted.WithLabelValues(collection, kind).Inc()
}

func (m *Metrics) EventDropped(reason string) {
	if m == nil {
		return
	}
	m.eventsDropped.WithLabelValues(reason).Inc()
}

func (m *Metrics) SetStreamConnected(connected bool) {
	if m == nil {
		return
	}
	if connected {
		m.streamConnected.Set(1)
	} else {
		m.streamConnected.Set(0)
	}
}

func (m *Metrics) Reinitialized() {
	if m == nil {
		return
	}
	m.reconnects.Inc()
}

func (m *Metrics) RecordBackendRequest(route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	m.backendRequests.WithLabelValues(route, label).Inc()
	m.backendDuration.WithLabelValues(route).Observe(duration.Seconds())
}

func (m *Metrics) SetStoreSize(store string, n int) {
	if m == nil {
		return
	}
	m.storeSize.WithLabelValues(store).Set(float64(n))
}

func (m *Metrics) RecordCacheHit(cacheType string, hit bool) {
	if m == nil {
		return
	}
	status := "hit"
	if !hit {
		status = "miss"
	}
	m.cacheResults.WithLabelValues(cacheType, status).Inc()
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
