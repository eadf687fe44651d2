package obs

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

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

	guardVerdictsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "access_guard_verdicts_total",
			Help: "Access guard verdicts by outcome.",
		},
		[]string{"verdict"},
	)

	sessionRefreshTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_refresh_total",
			Help: "Session refresh exchanges by result.",
		},
		[]string{"result"},
	)

	readyGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "service_ready",
		Help: "Readiness state: 1 ready, 0 not ready.",
	})
)

// Init registers all metrics in the default registry.
func Init() {
	prometheus.MustRegister(
		httpInFlight,
		httpRequestsTotal,
		httpRequestDuration,
		guardVerdictsTotal,
		sessionRefreshTotal,
		readyGauge,
	)
}

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// SetReady flips the readiness gauge.
func SetReady(ready bool) {
	if ready {
		readyGauge.Set(1)
		return
	}
	readyGauge.Set(0)
}

// CountVerdict records an access guard outcome.
func CountVerdict(verdict string) {
	guardVerdictsTotal.WithLabelValues(verdict).Inc()
}

// CountRefresh records a session refresh exchange result ("ok" or "expired").
func CountRefresh(result string) {
	sessionRefreshTotal.WithLabelValues(result).Inc()
}

// CanonicalPath collapses identifier path segments so metric cardinality
// stays bounded.
func CanonicalPath(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return "/"
	}
	parts := strings.Split(path, "/")
	if len(parts) >= 4 && parts[1] == "v1" {
		switch parts[2] {
		case "members", "donations", "beneficiaries", "users", "roles":
			if parts[3] != "" {
				parts[3] = ":id"
				return strings.Join(parts[:4], "/")
			}
		}
	}
	return path
}

// Instrument wraps a handler with RPS, latency and in-flight measurements.
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

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
