package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flyby_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "flyby_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	predictionDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "flyby_prediction_duration_seconds",
			Help:    "Time to sample, segment and describe one prediction request.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"mode", "status"},
	)

	passesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "flyby_passes_total",
			Help: "Total number of visible passes reported.",
		},
	)

	samplesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "flyby_samples_total",
			Help: "Total number of look-angle samples computed by the worker pool.",
		},
	)

	tleFetchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flyby_tle_fetch_total",
			Help: "TLE lookups by outcome (cache, fetched, stale, error).",
		},
		[]string{"result"},
	)

	renderErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "flyby_render_errors_total",
			Help: "Total number of charts that failed to render.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpDurationSeconds,
		predictionDurationSeconds,
		passesTotal,
		samplesTotal,
		tleFetchTotal,
		renderErrorsTotal,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObservePrediction records one finished prediction.
func ObservePrediction(mode, status string, d time.Duration, passes int) {
	predictionDurationSeconds.WithLabelValues(mode, status).Observe(d.Seconds())
	passesTotal.Add(float64(passes))
}

// AddSamples counts look-angle samples.
func AddSamples(n int) {
	if n > 0 {
		samplesTotal.Add(float64(n))
	}
}

// IncTLEFetch counts a TLE lookup by result.
func IncTLEFetch(result string) {
	tleFetchTotal.WithLabelValues(result).Inc()
}

// IncRenderErrors counts a chart that could not be drawn.
func IncRenderErrors() {
	renderErrorsTotal.Inc()
}

// normalizeRoute maps request paths onto a fixed label set so that chart
// file names and bot probes do not explode label cardinality.
func normalizeRoute(path string) string {
	switch path {
	case "/", "/generate", "/healthz", "/readyz", "/metrics",
		"/api/v1/catalog", "/api/v1/history":
		return path
	}
	if rest, ok := strings.CutPrefix(path, "/charts/"); ok && rest != "" && !strings.Contains(rest, "/") {
		return "/charts/{file}"
	}
	return "other"
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware records request count and duration for each request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		code := strconv.Itoa(rw.statusCode)
		path := normalizeRoute(r.URL.Path)

		httpRequestsTotal.WithLabelValues(path, r.Method, code).Inc()
		httpDurationSeconds.WithLabelValues(path, r.Method).Observe(duration)
	})
}
