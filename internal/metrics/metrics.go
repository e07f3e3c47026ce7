// Package metrics holds the Prometheus collectors for the map service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sichatas",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "sichatas",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"method"})

	// DatasetFetches counts dataset fetches by outcome (ok, fetch_error, format_error).
	DatasetFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sichatas",
		Subsystem: "geodata",
		Name:      "fetches_total",
		Help:      "Total dataset fetches by outcome",
	}, []string{"dataset", "outcome"})

	FeaturesRetained = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "sichatas",
		Subsystem: "geodata",
		Name:      "features_retained",
		Help:      "Features kept by the last successful fetch",
	}, []string{"dataset"})

	FeaturesDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sichatas",
		Subsystem: "geodata",
		Name:      "features_dropped_total",
		Help:      "Features discarded during validation",
	}, []string{"dataset"})

	// Persistence counts best-effort artifact saves by outcome.
	Persistence = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sichatas",
		Subsystem: "spatial",
		Name:      "persist_total",
		Help:      "Spatial artifact persistence attempts by outcome",
	}, []string{"kind", "outcome"})

	IsochroneRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sichatas",
		Subsystem: "spatial",
		Name:      "isochrone_requests_total",
		Help:      "Isochrone lookups by source (cache, remote, error)",
	}, []string{"source"})

	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "sichatas",
		Subsystem: "session",
		Name:      "active",
		Help:      "Map sessions currently held in memory",
	})

	TasksDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "sichatas",
		Subsystem: "tasks",
		Name:      "dropped_total",
		Help:      "Background tasks rejected because the queue was full or closed",
	})
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Flush keeps SSE streaming working through the wrapper.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// Middleware records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		httpRequestsTotal.WithLabelValues(r.Method, strconv.Itoa(rec.status)).Inc()
		httpRequestDuration.WithLabelValues(r.Method).Observe(time.Since(start).Seconds())
	})
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
