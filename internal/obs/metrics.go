package obs

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTP metrics shared by every handler.
var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

// Workflow and authorization metrics.
var (
	transitionsApplied = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workflow_transitions_applied_total",
			Help: "Successfully applied workflow transitions.",
		},
		[]string{"kind", "action"},
	)

	transitionsRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workflow_transitions_rejected_total",
			Help: "Rejected workflow transition attempts by code.",
		},
		[]string{"kind", "code"},
	)

	authzDenials = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authz_denials_total",
			Help: "Authorization denials by code.",
		},
		[]string{"code"},
	)
)

// Init registers all metrics with the default registry. Call once at startup.
func Init() {
	prometheus.MustRegister(
		httpInFlight, httpRequestsTotal, httpRequestDuration,
		transitionsApplied, transitionsRejected, authzDenials,
	)
}

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// CountTransitionApplied increments the applied-transition counter.
func CountTransitionApplied(kind, action string) {
	transitionsApplied.WithLabelValues(kind, action).Inc()
}

// CountTransitionRejected increments the rejected-transition counter.
func CountTransitionRejected(kind, code string) {
	transitionsRejected.WithLabelValues(kind, code).Inc()
}

// CountDenial increments the authorization denial counter.
func CountDenial(code string) {
	authzDenials.WithLabelValues(code).Inc()
}

// Instrument wraps a handler with RPS/latency/in-flight measurement.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := CanonicalPath(r.URL.Path)
		method := r.Method

		httpInFlight.Inc()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: 200}
		next.ServeHTTP(sw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(sw.code)

		httpRequestDuration.WithLabelValues(method, path, status).Observe(duration)
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpInFlight.Dec()
	})
}

// CanonicalPath collapses resource identifiers so metric labels stay
// low-cardinality: /v1/events/<id>/transitions -> /v1/events/:id/transitions.
func CanonicalPath(raw string) string {
	path := raw
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return "/"
	}
	parts := strings.Split(path, "/")
	// "/v1/<collection>/<id>[/<sub>]"
	if len(parts) >= 4 && parts[1] == "v1" {
		switch parts[2] {
		case "events", "minutes", "plans", "cases":
			if parts[3] != "" {
				parts[3] = ":id"
			}
			if len(parts) > 5 {
				return path
			}
			return strings.Join(parts, "/")
		}
	}
	return path
}

// statusWriter records the response code for labeling.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
