package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics wraps the prometheus collectors for the query dispatch subsystem.
type Metrics struct {
	registry *prometheus.Registry

	queriesTotal    *prometheus.CounterVec
	queryDuration   *prometheus.HistogramVec
	reconnectsTotal *prometheus.CounterVec
	cancelledTotal  *prometheus.CounterVec
	drainedTotal    prometheus.Counter

	pendingDepth prometheus.Gauge
	uptime       prometheus.GaugeFunc
}

// Default histogram buckets for query duration (in milliseconds).
var defaultBuckets = []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000}

var (
	qm        *Metrics
	startTime = time.Now()
)

// Init initializes the Prometheus metrics subsystem.
func Init(namespace string, buckets []float64) {
	if len(buckets) == 0 {
		buckets = defaultBuckets
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGoCollector())
	registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	m := &Metrics{
		registry: registry,

		queriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "queries_total",
				Help:      "Total number of executed queries",
			},
			[]string{"connection", "status"},
		),

		queryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "query_duration_milliseconds",
				Help:      "Duration of query execution in milliseconds",
				Buckets:   buckets,
			},
			[]string{"connection"},
		),

		reconnectsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reconnects_total",
				Help:      "Total reconnect attempts that succeeded",
			},
			[]string{"connection"},
		),

		cancelledTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cancelled_requests_total",
				Help:      "Queued requests discarded before execution",
			},
			[]string{"reason"},
		),

		drainedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "drained_results_total",
				Help:      "Finished results delivered to caller callbacks",
			},
		),

		pendingDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "pending_queue_depth",
				Help:      "Current depth of the pending request queue",
			},
		),
	}

	m.uptime = prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "uptime_seconds",
			Help:      "Time since the daemon started",
		},
		func() float64 {
			return time.Since(startTime).Seconds()
		},
	)

	registry.MustRegister(
		m.queriesTotal,
		m.queryDuration,
		m.reconnectsTotal,
		m.cancelledTotal,
		m.drainedTotal,
		m.pendingDepth,
		m.uptime,
	)

	qm = m
}

// RecordQuery records one executed query and its duration.
func RecordQuery(connection string, durationMs int64, success bool) {
	if qm == nil {
		return
	}
	status := "success"
	if !success {
		status = "failed"
	}
	qm.queriesTotal.WithLabelValues(connection, status).Inc()
	qm.queryDuration.WithLabelValues(connection).Observe(float64(durationMs))
}

// RecordReconnect records a successful reconnect for a connection.
func RecordReconnect(connection string) {
	if qm == nil {
		return
	}
	qm.reconnectsTotal.WithLabelValues(connection).Inc()
}

// RecordCancelled records a request dropped before execution.
// reason: "owner_unload" or "connection_removed"
func RecordCancelled(reason string) {
	if qm == nil {
		return
	}
	qm.cancelledTotal.WithLabelValues(reason).Inc()
}

// RecordDrained records finished results delivered by the notification drain.
func RecordDrained(n int) {
	if qm == nil {
		return
	}
	qm.drainedTotal.Add(float64(n))
}

// SetPendingDepth sets the pending queue depth gauge.
func SetPendingDepth(depth int) {
	if qm == nil {
		return
	}
	qm.pendingDepth.Set(float64(depth))
}

// Handler returns an HTTP handler for Prometheus scraping.
func Handler() http.Handler {
	if qm == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("prometheus metrics not initialized"))
		})
	}
	return promhttp.HandlerFor(qm.registry, promhttp.HandlerOpts{})
}

// Registry returns the prometheus registry (for custom collectors).
func Registry() *prometheus.Registry {
	if qm == nil {
		return nil
	}
	return qm.registry
}
