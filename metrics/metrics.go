package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "photowall",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "photowall",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~10s; captures include the reveal delay
		},
		[]string{"method", "route"},
	)

	captures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "photowall",
			Subsystem: "capture",
			Name:      "total",
			Help:      "Captures by outcome (inserted, aborted).",
		},
		[]string{"outcome"},
	)

	captions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "photowall",
			Subsystem: "caption",
			Name:      "total",
			Help:      "Caption requests by outcome (done, fallback).",
		},
		[]string{"outcome"},
	)

	captionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "photowall",
			Subsystem: "caption",
			Name:      "duration_seconds",
			Help:      "Time from caption request to settled caption.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		},
	)

	gestures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "photowall",
			Subsystem: "gesture",
			Name:      "completed_total",
			Help:      "Completed gestures by kind.",
		},
		[]string{"kind"},
	)
)

func init() {
	Registry.MustRegister(
		httpRequests,
		httpDuration,
		captures,
		captions,
		captionDuration,
		gestures,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps next with request counting, labelled by chi route pattern.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(rec, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		method := strings.ToUpper(r.Method)
		httpRequests.WithLabelValues(method, route, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	})
}

// RecordCapture counts one capture outcome.
func RecordCapture(outcome string) {
	captures.WithLabelValues(outcome).Inc()
}

// RecordCaption counts one settled caption and its latency.
func RecordCaption(fallback bool, duration time.Duration) {
	outcome := "done"
	if fallback {
		outcome = "fallback"
	}
	captions.WithLabelValues(outcome).Inc()
	captionDuration.Observe(duration.Seconds())
}

// RecordGesture counts one completed gesture.
func RecordGesture(kind string) {
	gestures.WithLabelValues(kind).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack is needed by websocket upgrades passing through the instrumented router.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("metrics: underlying ResponseWriter does not implement http.Hijacker")
	}
	return h.Hijack()
}
