package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors of the workshop server. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry          *prometheus.Registry
	simulationRuns    *prometheus.CounterVec
	simulationSeconds prometheus.Histogram
	aggregationRuns   *prometheus.CounterVec
	batchesRejected   prometheus.Counter
	listeners         prometheus.Gauge
	httpRequestsTotal *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		simulationRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "workshop_simulation_runs_total",
			Help: "Total team simulation runs by outcome.",
		}, []string{"outcome"}),
		simulationSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "workshop_simulation_duration_seconds",
			Help:    "Histogram of team simulation durations.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
		aggregationRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "workshop_aggregation_runs_total",
			Help: "Total cohort aggregation passes by outcome.",
		}, []string{"outcome"}),
		batchesRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "workshop_batches_rejected_total",
			Help: "Batch triggers rejected because another batch was running.",
		}),
		listeners: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "workshop_live_listeners",
			Help: "Connected live update listeners.",
		}),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total count of HTTP requests processed by route and status.",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request durations by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.simulationRuns,
		m.simulationSeconds,
		m.aggregationRuns,
		m.batchesRejected,
		m.listeners,
		m.httpRequestsTotal,
		m.httpDuration,
	)

	return m
}

// Handler exposes the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry is used by tests to gather values
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) SimulationFinished(duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.simulationSeconds.Observe(duration.Seconds())
	m.simulationRuns.WithLabelValues(outcome(err)).Inc()
}

func (m *Metrics) AggregationFinished(err error) {
	if m == nil {
		return
	}
	m.aggregationRuns.WithLabelValues(outcome(err)).Inc()
}

func (m *Metrics) BatchRejected() {
	if m == nil {
		return
	}
	m.batchesRejected.Inc()
}

// ListenerGauge reports the number of live listeners
func (m *Metrics) ListenerGauge() prometheus.Gauge {
	return m.listeners
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

// WrapHandler counts requests to route by response status
func (m *Metrics) WrapHandler(route string, next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(recorder, r)

		m.httpRequestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
